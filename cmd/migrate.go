package main

import (
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zoravur/bookstore/internal/store"
)

func newMigrateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the catalog schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.withMigrator(cmd, func(p *goose.Provider) error {
					results, err := p.Up(cmd.Context())
					c.logResults(results)
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.withMigrator(cmd, func(p *goose.Provider) error {
					res, err := p.Down(cmd.Context())
					if res != nil {
						c.logResults([]*goose.MigrationResult{res})
					}
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the state of every migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.withMigrator(cmd, func(p *goose.Provider) error {
					statuses, err := p.Status(cmd.Context())
					if err != nil {
						return err
					}
					out := cmd.OutOrStdout()
					for _, s := range statuses {
						applied := "pending"
						if s.State == goose.StateApplied {
							applied = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
						fmt.Fprintf(out, "%-40s %s\n", s.Source.Path, applied)
					}
					return nil
				})
			},
		},
	)
	return cmd
}

func (c *cli) withMigrator(cmd *cobra.Command, fn func(*goose.Provider) error) error {
	if c.cfg.Store.Driver == store.DriverMemory {
		return fmt.Errorf("migrate: store driver %q has no schema", c.cfg.Store.Driver)
	}
	db, err := store.OpenDB(cmd.Context(), c.cfg.Store.Driver, c.cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer func(db *sql.DB) { _ = db.Close() }(db)

	p, err := store.NewMigrator(db)
	if err != nil {
		return err
	}
	return fn(p)
}

func (c *cli) logResults(results []*goose.MigrationResult) {
	if len(results) == 0 {
		c.log.Info("no migrations to run")
	}
	for _, r := range results {
		c.log.Info("migration",
			zap.String("source", r.Source.Path),
			zap.String("direction", r.Direction),
			zap.Duration("took", r.Duration),
		)
	}
}
