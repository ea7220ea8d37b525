package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "maestro",
		Short:         "Operator console for the browser-automation agent",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		// No subcommand runs the interactive console.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd, flags)
		},
	}
	root.SetVersionTemplate("{{printf \"maestro %s\\n\" .Version}}")
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", defaultConfigPath(),
		"config file (env MAESTRO_CONFIG)")

	root.AddCommand(
		newRunCmd(flags),
		newExecCmd(flags),
		newServeCmd(flags),
		newHealthCmd(flags),
		newReportsCmd(flags),
	)
	return root
}

func defaultConfigPath() string {
	if p := os.Getenv("MAESTRO_CONFIG"); p != "" {
		return p
	}
	return "maestro.yaml"
}
