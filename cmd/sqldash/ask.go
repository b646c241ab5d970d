package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lojasmm/sqldash/internal/ai"
)

func newAskCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question with the tool-calling agent",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			answer := a.agent.Run(cmd.Context(), strings.Join(args, " "))
			fmt.Fprintln(cmd.OutOrStdout(), answer)
			if strings.HasPrefix(answer, ai.ErrorPrefix) {
				return fmt.Errorf("run failed")
			}
			return nil
		},
	}
}

func newDashboardCmd(flags *rootFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "dashboard <request>",
		Short: "Build an HTML dashboard for a request",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			page := a.agent.Dashboard(cmd.Context(), strings.Join(args, " "))
			if output == "" || output == "-" {
				fmt.Fprintln(cmd.OutOrStdout(), page)
			} else if err := os.WriteFile(output, []byte(page), 0o644); err != nil {
				return fmt.Errorf("write dashboard: %w", err)
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "dashboard written to %s\n", output)
			}
			if ai.IsErrorPage(page) {
				return fmt.Errorf("dashboard failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the page to this file instead of stdout")
	return cmd
}
