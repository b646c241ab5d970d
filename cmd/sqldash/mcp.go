package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/lojasmm/sqldash/internal/database"
	"github.com/lojasmm/sqldash/internal/mcpserver"
)

func newMCPCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Expose get_schema and read_query to MCP clients over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// stdout carries the protocol
			log.SetOutput(os.Stderr)

			cfg, err := flags.load()
			if err != nil {
				return err
			}
			db, err := database.Open(cmd.Context(), cfg.Database)
			if err != nil {
				return fmt.Errorf("database: %w", err)
			}
			defer db.Close()

			return mcpserver.Serve(cmd.Context(), mcpserver.New(db, version))
		},
	}
}
