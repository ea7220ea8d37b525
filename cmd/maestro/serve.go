package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the observer gateway without a terminal console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			a, err := loadApp(ctx, flags.configPath, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			srv := a.newGateway(addr)
			go func() {
				select {
				case <-srv.Ready():
					fmt.Fprintf(cmd.OutOrStdout(), "gateway listening on ws://%s/ws\n", srv.BoundAddr())
				case <-ctx.Done():
				}
			}()
			return srv.Start(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default gateway.addr)")
	return cmd
}
