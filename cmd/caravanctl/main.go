package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"caravand/internal/seed"
	"caravand/pkg/db"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "caravanctl",
		Short:         "Admin utility for the caravand production tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newSeedCommand())
	return cmd
}

func dsnFromEnv() (string, error) {
	_ = godotenv.Load()
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		return "", errors.New("DB_DSN is not set")
	}
	return dsn, nil
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			dsn, err := dsnFromEnv()
			if err != nil {
				return err
			}

			pool, err := db.Open(ctx, dsn)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := db.Migrate(ctx, pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newSeedCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert stations, workers and operation definitions from a catalog file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			dsn, err := dsnFromEnv()
			if err != nil {
				return err
			}

			catalog, err := seed.Load(file)
			if err != nil {
				return err
			}

			orm, err := db.OpenORM(dsn)
			if err != nil {
				return err
			}
			defer func() { _ = db.CloseORM(orm) }()

			if err := seed.Apply(ctx, orm, catalog); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d stations, %d workers, %d definitions\n",
				len(catalog.Stations), len(catalog.Workers), len(catalog.Definitions))
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "catalog.yaml", "path to the seed catalog")
	return cmd
}
