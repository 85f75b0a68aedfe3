package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"llamad/internal/client"
	"llamad/internal/config"
	"llamad/internal/httpapi"
	"llamad/internal/provision"
	"llamad/internal/runtime"
	"llamad/internal/supervisor"
)

func newServeCmd() *cobra.Command {
	var (
		addr        string
		binDir      string
		verbose     bool
		corsOrigins string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Spawn llama-server and run the chat gateway in front of it",
		Example: "  LLAMA_ARG_HOST=127.0.0.1 LLAMA_ARG_PORT=8080 LLAMA_ARG_MODEL=~/models/llm.gguf llamad serve\n" +
			"  llamad serve --addr :8090 --bin-dir ~/llama.cpp",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("bin-dir") {
				cfg.BinDir = binDir
			}
			if cmd.Flags().Changed("verbose") {
				cfg.Verbose = verbose
			}
			if cmd.Flags().Changed("cors-origins") {
				cfg.CORSEnabled = true
				cfg.CORSOrigins = splitCSV(corsOrigins)
			}
			return runServe(cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", config.DefaultAddr, "Gateway listen address")
	cmd.Flags().StringVar(&binDir, "bin-dir", "", "Directory holding the llama-server binary (default: $PATH lookup)")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Relay llama-server output through the daemon logger")
	cmd.Flags().StringVar(&corsOrigins, "cors-origins", "", "Comma-separated origins allowed via CORS")
	return cmd
}

func runServe(cfg config.Config) error {
	binPath, err := provision.ResolveServerBin(cfg.BinDir)
	if err != nil {
		return err
	}

	var extraEnv []string
	if lp := provision.LibraryPathEnv(binPath); lp != "" {
		extraEnv = append(extraEnv, lp)
	}
	sup, err := supervisor.New(supervisor.Config{
		BinPath:        binPath,
		ExtraEnv:       extraEnv,
		Verbose:        cfg.Verbose,
		StartupTimeout: cfg.StartupTimeout(),
		StopGrace:      cfg.StopGrace(),
		Logger:         logger.With().Str("component", "supervisor").Logger(),
	})
	if err != nil {
		return err
	}

	upstream := client.New(client.Config{
		BaseURL: sup.Endpoint().BaseURL(),
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Logger:  logger.With().Str("component", "client").Logger(),
	})
	rt := runtime.New(runtime.Config{
		Process:       sup,
		Upstream:      upstream,
		MaxConcurrent: cfg.MaxConcurrent,
		Logger:        logger.With().Str("component", "runtime").Logger(),
	})

	// baseCtx cancels on shutdown so in-flight streams drain.
	baseCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	httpapi.SetLogger(logger.With().Str("component", "http").Logger())
	httpapi.SetBaseContext(baseCtx)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins)

	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.NewMux(rt)}

	fatal := make(chan error, 2)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("upstream", sup.Endpoint().BaseURL()).Msg("llamad gateway listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal <- fmt.Errorf("gateway: %w", err)
		}
	}()
	// The gateway answers before the model finishes loading: /chat reports
	// not-ready until the supervisor flips to running.
	go func() {
		if err := sup.Start(baseCtx); err != nil {
			fatal <- err
		}
	}()

	if flagConfig != "" {
		go func() {
			// Only the log level is dynamic here; relay verbosity binds at
			// spawn time and structural settings require a restart.
			err := config.Watch(baseCtx, flagConfig, logger, func(next config.Config) {
				applyLogLevel(next.LogLevel)
			})
			if err != nil {
				logger.Warn().Err(err).Msg("config watch unavailable")
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case runErr = <-fatal:
		logger.Error().Err(runErr).Msg("shutting down")
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("gateway shutdown")
	}
	if err := sup.Stop(); err != nil {
		logger.Warn().Err(err).Msg("supervisor stop")
	}
	return runErr
}
