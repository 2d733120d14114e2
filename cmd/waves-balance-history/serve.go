package main

import (
	"context"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wavesplatform/balance-history/internal/config"
	"github.com/wavesplatform/balance-history/internal/dbx"
	"github.com/wavesplatform/balance-history/internal/distribution"
	"github.com/wavesplatform/balance-history/internal/httpapi"
	"github.com/wavesplatform/balance-history/internal/logging"
	"github.com/wavesplatform/balance-history/internal/metrics"
	"github.com/wavesplatform/balance-history/internal/query"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP query surface (C9) over a pooled connection",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
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

	db, err := dbx.Open(cfg.Postgres, cfg.Postgres.PoolSize)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	reg := metrics.New()
	dist := distribution.New(db, cfg.Postgres.DistributionSchema, cfg.Postgres.ReaderRole).WithMetrics(reg)
	surface := query.New(db, dist)
	api := httpapi.New(surface, sugar)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	group, ctx := errgroup.WithContext(ctx)

	apiServer := &http.Server{Addr: addr(cfg.ServicePort), Handler: api}
	metricsServer := &http.Server{Addr: addr(cfg.MetricsPort), Handler: reg.Handler()}

	group.Go(func() error {
		sugar.Infow("http query surface listening", "port", cfg.ServicePort)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		sugar.Infow("metrics listening", "port", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		_ = apiServer.Close()
		_ = metricsServer.Close()
		return nil
	})

	return group.Wait()
}

func addr(port uint16) string {
	return ":" + strconv.Itoa(int(port))
}
