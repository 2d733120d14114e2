package main

import (
	"context"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wavesplatform/balance-history/internal/config"
	"github.com/wavesplatform/balance-history/internal/dbx"
	"github.com/wavesplatform/balance-history/internal/distribution"
	"github.com/wavesplatform/balance-history/internal/ingest"
	"github.com/wavesplatform/balance-history/internal/ledger"
	"github.com/wavesplatform/balance-history/internal/logging"
	"github.com/wavesplatform/balance-history/internal/metrics"
	"github.com/wavesplatform/balance-history/internal/recovery"
	"github.com/wavesplatform/balance-history/internal/safeheight"
	"github.com/wavesplatform/balance-history/internal/upstream"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Run the ingestion pipeline: block analyzer, balance analyzer, distribution worker",
	RunE:  runConsume,
}

func init() {
	rootCmd.AddCommand(consumeCmd)
}

func runConsume(cmd *cobra.Command, _ []string) error {
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

	// The writer path takes a dedicated connection, per SPEC_FULL.md §5:
	// a single long-running writer, not a shared pool.
	db, err := dbx.Open(cfg.Postgres, 1)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	reg := metrics.New()

	l := ledger.New(db)
	heights := safeheight.New(db)
	dist := distribution.New(db, cfg.Postgres.DistributionSchema, cfg.Postgres.ReaderRole).WithMetrics(reg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	result, err := recovery.Run(ctx, l, heights, dist)
	if err != nil {
		return err
	}
	startHeight := recovery.StartHeight(cfg.BlockchainStartHeight, result.TipHeight)
	sugar.Infow("recovery complete", "tip_height", result.TipHeight, "start_height", startHeight)

	client, err := upstream.Dial(ctx, cfg.BlockchainUpdatesURL, cfg.StreamInactivityTimeout)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	stream, err := client.Subscribe(ctx, startHeight)
	if err != nil {
		return err
	}
	defer func() { _ = stream.Close() }()

	blockAnalyzer := ingest.NewBlockAnalyzer(l).WithMetrics(reg)
	balanceAnalyzer := ingest.NewBalanceAnalyzer(db, ingest.DefaultChunkSize).WithMetrics(reg)
	supervisor := ingest.NewSupervisor(blockAnalyzer, balanceAnalyzer)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return supervisor.Run(ctx, stream)
	})

	group.Go(func() error {
		return runDistributionWorker(ctx, dist, l, sugar)
	})

	metricsServer := &http.Server{Addr: ":" + strconv.Itoa(int(cfg.MetricsPort)), Handler: reg.Handler()}
	group.Go(func() error {
		sugar.Infow("metrics listening", "port", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		_ = metricsServer.Close()
		return nil
	})

	return group.Wait()
}

// runDistributionWorker drives C8's loop: run continuously while tasks are
// pending, otherwise sleep PollIdle (5 minutes), per SPEC_FULL.md §4.5.
func runDistributionWorker(ctx context.Context, dist *distribution.Engine, l *ledger.Ledger, sugar *zap.SugaredLogger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		tipHeight, ok, err := l.LastHeight(ctx, ledger.TypeBlock, true)
		if err != nil {
			return err
		}
		if !ok {
			tipHeight = 0
		}

		picked, err := dist.RunOnce(ctx, tipHeight)
		if err != nil {
			sugar.Errorw("distribution worker: run once", "error", err)
		}
		if picked {
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(dist.PollIdle()):
		}
	}
}
