package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"maestro-console/internal/adapter/agentclient"
	"maestro-console/internal/infra/config"
	"maestro-console/internal/infra/logger"
)

func newHealthCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the agent is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeLog, err := loadClient(flags.configPath)
			if err != nil {
				return err
			}
			defer closeLog()

			hs, err := client.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("agent at %s: %w", client.BaseURL(), err)
			}
			status := hs.Status
			if status == "" {
				status = "ok"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "agent at %s: %s\n", client.BaseURL(), status)
			return nil
		},
	}
}

// loadClient builds only the agent client, for one-shot commands.
func loadClient(cfgPath string) (*agentclient.Client, func() error, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	log, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	return agentclient.New(cfg.Agent, log.Component("agentclient")), log.Close, nil
}
