package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"llamad/internal/client"
	"llamad/internal/supervisor"
	"llamad/pkg/types"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Probe the configured llama-server endpoint and print its state as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint, err := supervisor.EndpointFromEnv(nil)
			if err != nil {
				return err
			}
			cli := client.New(client.Config{
				BaseURL: endpoint.BaseURL(),
				APIKey:  cfg.APIKey,
				Model:   cfg.Model,
				Logger:  logger,
			})

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()

			out := struct {
				Endpoint string             `json:"endpoint"`
				Health   types.Health       `json:"health"`
				Props    *types.ServerProps `json:"props,omitempty"`
			}{Endpoint: cli.BaseURL()}
			out.Health = cli.CheckHealth(ctx)
			if out.Health.OK {
				if props, err := cli.Props(ctx); err == nil {
					out.Props = &props
				}
			}

			b, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(b))
			if out.Health.Status == types.HealthDown {
				return fmt.Errorf("no server reachable at %s", cli.BaseURL())
			}
			return nil
		},
	}
}
