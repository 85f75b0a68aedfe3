package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"llamad/internal/client"
	"llamad/internal/config"
	"llamad/internal/provision"
	"llamad/internal/supervisor"
)

func newChatCmd() *cobra.Command {
	var (
		system       string
		image        string
		hideThinking bool
		showThinking bool
		accumulate   bool
		placeholder  string
		temperature  float64
		maxTokens    int
		model        string
		attach       bool
		scrubEnv     bool
	)
	cmd := &cobra.Command{
		Use:   "chat <prompt>",
		Short: "One-shot chat: spawn llama-server (or attach to one) and stream the answer",
		Example: "  LLAMA_ARG_HOST=127.0.0.1 LLAMA_ARG_PORT=8080 LLAMA_ARG_MODEL=~/models/llm.gguf llamad chat \"Write a haiku about RAM\"\n" +
			"  llamad chat --attach --show-thinking \"Why is the sky blue?\"",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := client.StreamRequest{
				Prompt:       args[0],
				SystemPrompt: system,
				Image:        image,
				ShowThinking: showThinking || !hideThinking,
				PerToken:     !accumulate,
			}
			if cmd.Flags().Changed("placeholder") {
				req.ThinkingPlaceholder = &placeholder
			}
			if cmd.Flags().Changed("temperature") {
				req.Options.Temperature = &temperature
			}
			if cmd.Flags().Changed("max-tokens") {
				req.Options.MaxTokens = &maxTokens
			}
			if model == "" {
				model = cfg.Model
			}
			return runChat(cmd, req, model, attach, scrubEnv, accumulate)
		},
	}
	cmd.Flags().StringVar(&system, "system", "", "System prompt")
	cmd.Flags().StringVar(&image, "image", "", "Image payload as base64 or a data: URL (sent alongside the prompt)")
	cmd.Flags().BoolVar(&hideThinking, "hide-thinking", true, "Replace <think> passages with the placeholder")
	cmd.Flags().BoolVar(&showThinking, "show-thinking", false, "Stream <think> passages verbatim")
	cmd.Flags().BoolVar(&accumulate, "accumulate", false, "Print the final answer once instead of streaming tokens")
	cmd.Flags().StringVar(&placeholder, "placeholder", "", "Placeholder emitted for hidden thinking (empty suppresses it)")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "Sampling temperature")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "Completion token cap")
	cmd.Flags().StringVar(&model, "model", "", "Model identifier forwarded upstream (defaults config)")
	cmd.Flags().BoolVar(&attach, "attach", false, "Use an already-running server instead of spawning one")
	cmd.Flags().BoolVar(&scrubEnv, "scrub-env", false, "Drop inherited LLAMA_ARG_*/LLAMA_LOG_* entries (except host/port) from the spawned server")
	return cmd
}

func runChat(cmd *cobra.Command, req client.StreamRequest, model string, attach, scrubEnv, accumulate bool) error {
	ctx := cmd.Context()
	endpoint, err := supervisor.EndpointFromEnv(nil)
	if err != nil {
		return err
	}

	cli := client.New(client.Config{
		BaseURL: endpoint.BaseURL(),
		APIKey:  cfg.APIKey,
		Model:   model,
		Logger:  logger.With().Str("component", "client").Logger(),
	})

	if attach {
		h := cli.CheckHealth(ctx)
		if !h.OK {
			return fmt.Errorf("server at %s is %s: %s", cli.BaseURL(), h.Status, h.Message)
		}
	} else {
		binPath, err := provision.ResolveServerBin(cfg.BinDir)
		if err != nil {
			return err
		}
		env := os.Environ()
		if scrubEnv {
			env = append(config.ScrubLlamaVars(env),
				"LLAMA_ARG_HOST="+endpoint.Host,
				fmt.Sprintf("LLAMA_ARG_PORT=%d", endpoint.Port))
		}
		var extraEnv []string
		if lp := provision.LibraryPathEnv(binPath); lp != "" {
			extraEnv = append(extraEnv, lp)
		}
		sup, err := supervisor.New(supervisor.Config{
			BinPath:        binPath,
			Env:            env,
			ExtraEnv:       extraEnv,
			Verbose:        cfg.Verbose,
			StartupTimeout: cfg.StartupTimeout(),
			StopGrace:      cfg.StopGrace(),
			Logger:         logger.With().Str("component", "supervisor").Logger(),
		})
		if err != nil {
			return err
		}
		if err := sup.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := sup.Stop(); err != nil {
				logger.Warn().Err(err).Msg("supervisor stop")
			}
		}()
	}

	emit := func(tok string) error {
		_, err := fmt.Fprint(os.Stdout, tok)
		return err
	}
	if accumulate {
		emit = nil // print once at the end
	}
	res, err := cli.Stream(ctx, req, emit)
	if err != nil {
		return err
	}
	if accumulate {
		fmt.Println(res.Content)
	} else {
		fmt.Println()
	}
	if res.FinishReason != "" && res.FinishReason != "stop" {
		logger.Warn().Str("finish_reason", res.FinishReason).Msg("generation ended early")
	}
	return nil
}
