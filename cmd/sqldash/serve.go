package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lojasmm/sqldash/internal/server"
	"github.com/lojasmm/sqldash/internal/session"
	"github.com/lojasmm/sqldash/internal/store"
)

const (
	cleanupEvery   = 30 * time.Minute
	sessionMaxIdle = time.Hour
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the agent and dashboard endpoints over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := flags.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := os.MkdirAll(a.cfg.DataDir, 0o755); err != nil {
				return fmt.Errorf("data dir: %w", err)
			}
			runs, err := store.NewBoltStore(filepath.Join(a.cfg.DataDir, "sqldash.db"))
			if err != nil {
				return fmt.Errorf("store: %w", err)
			}
			defer runs.Close()

			sessions := session.NewManager()
			limiter := server.NewRateLimiter(server.DefaultRateLimit, server.DefaultRateWindow)
			go server.Janitor(ctx, cleanupEvery,
				func() { sessions.Cleanup(sessionMaxIdle) },
				limiter.Cleanup,
			)

			if port == "" {
				port = a.cfg.Port
			}
			h := server.NewHandler(a.agent, runs, sessions, limiter)
			log.Printf("sqldash: database driver %s, llm provider %s", a.cfg.Database.Driver, a.cfg.LLM.Provider)
			return server.Run(ctx, server.New(":"+port, h.Routes()))
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides PORT)")
	return cmd
}
