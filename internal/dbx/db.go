// Package dbx owns the Postgres connection: a bun.DB built on bun's
// pure-Go pgdriver, following the same "pass an owned connection handle
// explicitly" shape the original required of its tokio-postgres Db type,
// and the re-architecture note in SPEC_FULL.md against ad-hoc global
// connection singletons.
package dbx

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/wavesplatform/balance-history/internal/config"
)

// Open dials Postgres and wraps the connection in a bun.DB. poolSize bounds
// the number of concurrently open connections; writer paths are expected to
// hold a dedicated *bun.DB (pool size 1) while the query surface shares a
// pooled one sized from config (default 20, per SPEC_FULL.md §5).
func Open(cfg config.Postgres, poolSize int) (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(cfg.DSN()),
		pgdriver.WithTimeout(cfg.ConnectTimeout),
		pgdriver.WithDialTimeout(cfg.ConnectTimeout),
	))
	sqldb.SetMaxOpenConns(poolSize)
	sqldb.SetMaxIdleConns(poolSize)
	sqldb.SetConnMaxIdleTime(cfg.KeepAliveIdle)

	db := bun.NewDB(sqldb, pgdialect.New())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, errors.Wrap(err, "dbx: ping postgres")
	}

	return db, nil
}
