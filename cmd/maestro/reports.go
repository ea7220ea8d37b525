package main

import (
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

func newReportsCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "List and read reports produced by the agent",
	}
	cmd.AddCommand(newReportsListCmd(flags), newReportsShowCmd(flags))
	return cmd
}

func newReportsListCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List report names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeLog, err := loadClient(flags.configPath)
			if err != nil {
				return err
			}
			defer closeLog()

			names, err := client.Reports(cmd.Context())
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no reports")
				return nil
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

func newReportsShowCmd(flags *globalFlags) *cobra.Command {
	var raw bool
	var width int

	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Print a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeLog, err := loadClient(flags.configPath)
			if err != nil {
				return err
			}
			defer closeLog()

			content, err := client.Report(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if raw {
				fmt.Fprint(cmd.OutOrStdout(), content)
				return nil
			}
			rendered, err := renderMarkdown(content, width)
			if err != nil {
				return fmt.Errorf("render report: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), rendered)
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print markdown without rendering")
	cmd.Flags().IntVar(&width, "width", 100, "word wrap width")
	return cmd
}

func renderMarkdown(content string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return r.Render(content)
}
