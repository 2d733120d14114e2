package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/wavesplatform/balance-history/internal/config"
	"github.com/wavesplatform/balance-history/internal/dbx"
	"github.com/wavesplatform/balance-history/internal/logging"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Bootstrap the schema (tables, enums, indexes, distribution schema)",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Create every table/enum/index this repository owns, idempotently",
	RunE:  runMigrateUp,
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	rootCmd.AddCommand(migrateCmd)
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	sugar := log.Sugar()

	db, err := dbx.Open(cfg.Postgres, 1)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := dbx.Bootstrap(ctx, db, cfg.Postgres.DistributionSchema, cfg.Postgres.ReaderRole); err != nil {
		return err
	}

	sugar.Infow("schema bootstrap complete", "schema", cfg.Postgres.DistributionSchema)
	return nil
}
