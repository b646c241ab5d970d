package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lojasmm/sqldash/internal/ai"
	aitools "github.com/lojasmm/sqldash/internal/ai/tools"
	"github.com/lojasmm/sqldash/internal/config"
	"github.com/lojasmm/sqldash/internal/database"
	"github.com/lojasmm/sqldash/internal/llm"
)

const version = "0.1.0"

type rootFlags struct {
	document string
	envFile  string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:          "sqldash",
		Short:        "Ask questions about a SQL database and build dashboards from the answers",
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&flags.document, "config", "c", "config.json", "instruction document (JSON or YAML)")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", "", "environment file to load (default: .env if present)")

	root.AddCommand(
		newServeCmd(flags),
		newAskCmd(flags),
		newDashboardCmd(flags),
		newMCPCmd(flags),
		newConfigCmd(flags),
	)
	return root
}

func (f *rootFlags) load() (*config.Config, error) {
	return config.Load(config.Options{Document: f.document, EnvFile: f.envFile})
}

// app is everything a command needs to run the agent.
type app struct {
	cfg   *config.Config
	db    *database.Gateway
	agent *ai.Agent
}

func (f *rootFlags) open(ctx context.Context) (*app, error) {
	cfg, err := f.load()
	if err != nil {
		return nil, err
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	registry, err := aitools.BuildRegistry(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	completer, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("llm: %w", err)
	}

	return &app{
		cfg:   cfg,
		db:    db,
		agent: ai.NewAgent(completer, registry, cfg.Instructions),
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}
