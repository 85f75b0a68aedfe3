package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"llamad/internal/config"
)

// Shared across subcommands; filled by the root PersistentPreRunE.
var (
	flagConfig   string
	flagLogLevel string

	cfg    config.Config
	logger zerolog.Logger
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "llamad",
		Short:         "Supervise a local llama-server and stream chat against it",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", os.Getenv("LLAMAD_CONFIG"), "Config file (.yaml|.yml|.json|.toml)")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: trace|debug|info|warn|error (defaults LLAMAD_LOG_LEVEL or info)")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig(flagConfig)
		if err != nil {
			return err
		}
		if flagLogLevel != "" {
			cfg.LogLevel = flagLogLevel
		}
		logger = newLogger(cfg.LogLevel)
		return nil
	}

	root.AddCommand(newServeCmd(), newChatCmd(), newStatusCmd(), newVersionCmd())

	completion := &cobra.Command{Use: "completion", Short: "Generate the autocompletion script for the specified shell"}
	completion.AddCommand(
		&cobra.Command{Use: "bash", Short: "Bash completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenBashCompletion(os.Stdout) }},
		&cobra.Command{Use: "zsh", Short: "Zsh completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenZshCompletion(os.Stdout) }},
		&cobra.Command{Use: "fish", Short: "Fish completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenFishCompletion(os.Stdout, true) }},
	)
	root.AddCommand(completion)

	return root
}

// loadConfig resolves the effective configuration: file (when given), then
// environment overrides, then defaults.
func loadConfig(path string) (config.Config, error) {
	var c config.Config
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return c, fmt.Errorf("load config: %w", err)
		}
		c = loaded
	}
	return config.ApplyEnv(c).WithDefaults(), nil
}

// newLogger builds the process logger: console rendering on a terminal,
// JSON lines otherwise. The level is installed globally so a config reload
// can change it for every component at once.
func newLogger(level string) zerolog.Logger {
	applyLogLevel(level)
	var w io.Writer = os.Stderr
	if isatty.IsTerminal(os.Stderr.Fd()) {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

func applyLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
