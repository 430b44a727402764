package main

import (
	"database/sql"
	"fmt"
	"ms-checkout/internal/database/migrations"
	"strconv"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

func migrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRunner(func(r *migrations.Runner) error {
				if err := r.MigrateUp(); err != nil {
					return err
				}
				return printVersion(cmd, r)
			})
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations (all of them unless --steps is set)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRunner(func(r *migrations.Runner) error {
				if err := r.MigrateDown(steps); err != nil {
					return err
				}
				return printVersion(cmd, r)
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 0, "number of migrations to roll back")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRunner(func(r *migrations.Runner) error {
				return printVersion(cmd, r)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "to [version]",
		Short: "Migrate up or down to a specific version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseVersion(args[0])
			if err != nil {
				return err
			}
			return a.withRunner(func(r *migrations.Runner) error {
				if err := r.MigrateTo(version); err != nil {
					return err
				}
				return printVersion(cmd, r)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force [version]",
		Short: "Mark a version as applied and clean after a failed migration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseVersion(args[0])
			if err != nil {
				return err
			}
			return a.withRunner(func(r *migrations.Runner) error {
				return r.Force(int(version))
			})
		},
	})

	return cmd
}

func parseVersion(raw string) (uint, error) {
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: must be a non-negative integer", raw)
	}
	return uint(v), nil
}

func (a *app) withRunner(fn func(r *migrations.Runner) error) error {
	if a.cfg.Database.DSN == "" {
		return fmt.Errorf("no database configured: set POSTGRES_DSN or --dsn")
	}
	db, err := sql.Open("postgres", a.cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	runner := migrations.NewRunner(db, migrations.MigrateOptions{MigrationsDir: a.cfg.Database.MigrationsDir}, a.log)
	defer runner.Close()
	return fn(runner)
}

func printVersion(cmd *cobra.Command, r *migrations.Runner) error {
	version, dirty, err := r.Version()
	if err != nil {
		return err
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (%s)\n", version, state)
	return nil
}
