package main

import (
	"fmt"
	"ms-checkout/internal/config"
	"ms-checkout/internal/logger"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var Version = "dev"

// app carries what every subcommand shares.
type app struct {
	cfg *config.Config
	log *logger.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "checkoutctl",
		Short:         "Operator tooling for the checkout service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
			a.cfg = config.Load()
			a.log = logger.NewConsoleLogger()
			if dsn, _ := cmd.Flags().GetString("dsn"); dsn != "" {
				a.cfg.Database.DSN = dsn
			}
			if dir, _ := cmd.Flags().GetString("migrations"); dir != "" {
				a.cfg.Database.MigrationsDir = dir
			}
		},
	}

	rootCmd.PersistentFlags().String("dsn", "", "PostgreSQL DSN (defaults to POSTGRES_DSN)")
	rootCmd.PersistentFlags().String("migrations", "", "migrations directory (defaults to MIGRATIONS_DIR)")

	rootCmd.AddCommand(migrateCmd(a))
	rootCmd.AddCommand(eventsCmd(a))
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
