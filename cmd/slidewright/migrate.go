package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rhuss/slidewright/pkg/storage/postgres"
	"github.com/rhuss/slidewright/pkg/storage/sqlite"
)

func newMigrateCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.migrate(cmd.Context())
		},
	}
}

func (c *commandContext) migrate(ctx context.Context) error {
	cfg, logger := c.config.Storage, c.logger

	switch cfg.Type {
	case "memory":
		logger.Info("in-memory storage has no schema; nothing to migrate")
		return nil
	case "sqlite":
		// Open applies pending migrations.
		s, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return fmt.Errorf("migrating sqlite store: %w", err)
		}
		logger.Info("sqlite schema up to date", "path", s.Path())
		return s.Close()
	case "postgres":
		s, err := postgres.New(ctx, postgres.Config{DSN: cfg.Postgres.DSN, MaxConns: 2})
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer s.Close()
		if err := s.Migrate(ctx); err != nil {
			return fmt.Errorf("migrating postgres store: %w", err)
		}
		logger.Info("postgres schema up to date")
		return nil
	default:
		return fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
