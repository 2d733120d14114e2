// Package distribution is the asynchronous holder-snapshot task engine
// (C8): callers request a frozen, ranked distribution of an asset's holders
// at a given height; a worker materializes it into its own table once.
// Grounded on the original's distribution_task and asset_distribution
// mappers.
package distribution

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/uptrace/bun"

	"github.com/wavesplatform/balance-history/internal/dictionary"
	"github.com/wavesplatform/balance-history/internal/metrics"
)

// State is a distribution task's lifecycle stage.
type State string

const (
	StateNew      State = "new"
	StateProgress State = "progress"
	StateDone     State = "done"
	StateError    State = "error"
)

// SafeHeightOffset mirrors safeheight.SafeHeightOffset; duplicated as a
// named constant here to keep this package decoupled from the writer's
// safe-height bookkeeping while documenting the same admission rule.
const SafeHeightOffset = 20

// Task is an asset_distribution_tasks row.
type Task struct {
	bun.BaseModel `bun:"table:asset_distribution_tasks"`

	UID          int64     `bun:"uid,pk,autoincrement"`
	AssetUID     int64     `bun:"asset_uid,notnull"`
	AssetText    string    `bun:"asset_text,notnull"`
	Height       int32     `bun:"height,notnull"`
	State        State     `bun:"state,notnull"`
	StateUpdated time.Time `bun:"state_updated,notnull"`
	ErrorMessage *string   `bun:"error_message"`
}

// CreateOutcome reports whether Create inserted a new task or found an
// existing one for the (asset, height) pair.
type CreateOutcome int

const (
	Created CreateOutcome = iota
	Accepted
)

// ErrHeightTooRecent is returned by Create when height is within the
// replay buffer of the chain tip.
var ErrHeightTooRecent = errors.New("distribution: height too close to tip")

// Engine owns the asset_distribution_tasks table and the frozen snapshot
// tables it produces.
type Engine struct {
	db         *bun.DB
	schema     string
	readerRole string
	pollIdle   time.Duration
	metrics    *metrics.Registry
}

func New(db *bun.DB, schema, readerRole string) *Engine {
	return &Engine{db: db, schema: schema, readerRole: readerRole, pollIdle: 5 * time.Minute}
}

// WithMetrics attaches a metrics registry updated as tasks complete.
func (e *Engine) WithMetrics(m *metrics.Registry) *Engine {
	e.metrics = m
	return e
}

// Create admits a new task if tipHeight - height >= SafeHeightOffset + 1,
// otherwise rejects it. An existing (asset, height) task is a no-op,
// reported as Accepted.
func (e *Engine) Create(ctx context.Context, assetText string, height, tipHeight int32) (CreateOutcome, error) {
	if tipHeight-height < SafeHeightOffset+1 {
		return 0, ErrHeightTooRecent
	}

	dict := dictionary.New(e.db)
	assetMap, err := dict.MergeAssets(ctx, []string{assetText})
	if err != nil {
		return 0, pkgerrors.Wrap(err, "distribution: create: resolve asset")
	}
	assetUID := assetMap[dictionary.NormalizeAssetID(assetText)]

	res, err := e.db.NewInsert().
		Model(&Task{AssetUID: assetUID, AssetText: assetText, Height: height, State: StateNew, StateUpdated: time.Now()}).
		On("CONFLICT (asset_uid, height) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "distribution: create: insert")
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return Created, nil
	}
	return Accepted, nil
}

// MarkInterruptedAsError transitions every task still in progress to error,
// part of startup recovery: a crash mid-materialization leaves no
// guarantee the snapshot table is complete.
func (e *Engine) MarkInterruptedAsError(ctx context.Context, message string) error {
	_, err := e.db.NewUpdate().
		Model((*Task)(nil)).
		Set("state = ?", StateError).
		Set("error_message = ?", message).
		Set("state_updated = ?", time.Now()).
		Where("state = ?", StateProgress).
		Exec(ctx)
	if err != nil {
		return pkgerrors.Wrap(err, "distribution: mark interrupted")
	}
	return nil
}

// RunOnce picks the highest-uid task in state new and drives it through
// progress to done or error. Returns ok=false when there was no task to
// pick, so the caller can back off for PollIdle.
func (e *Engine) RunOnce(ctx context.Context, tipHeight int32) (ok bool, err error) {
	var task Task
	err = e.db.NewSelect().
		Model(&task).
		Where("state = ?", StateNew).
		OrderExpr("uid DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, pkgerrors.Wrap(err, "distribution: pick task")
	}

	if _, err := e.db.NewUpdate().
		Model((*Task)(nil)).
		Set("state = ?", StateProgress).
		Set("state_updated = ?", time.Now()).
		Where("uid = ?", task.UID).
		Exec(ctx); err != nil {
		return false, pkgerrors.Wrap(err, "distribution: mark progress")
	}

	err = e.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return e.processTask(ctx, tx, task, tipHeight)
	})
	if err != nil {
		return false, pkgerrors.Wrap(err, "distribution: process task")
	}
	return true, nil
}

// PollIdle is the interval RunOnce's caller should sleep when it returned
// ok=false.
func (e *Engine) PollIdle() time.Duration { return e.pollIdle }

// Schema is the dedicated Postgres schema snapshot tables live in, exposed
// so the query surface can address them directly.
func (e *Engine) Schema() string { return e.schema }

func (e *Engine) processTask(ctx context.Context, tx bun.Tx, task Task, tipHeight int32) error {
	if task.Height > tipHeight {
		_, err := tx.NewUpdate().
			Model((*Task)(nil)).
			Set("state = ?", StateError).
			Set("error_message = ?", "invalid height").
			Set("state_updated = ?", time.Now()).
			Where("uid = ?", task.UID).
			Exec(ctx)
		if err == nil && e.metrics != nil {
			e.metrics.DistributionTasksError.Inc()
		}
		return err
	}

	table := SnapshotTableName(task.UID, task.Height)

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s.%s`, pgIdent(e.schema), pgIdent(table))); err != nil {
		return err
	}

	createSQL := fmt.Sprintf(`
		CREATE TABLE %s.%s AS
		SELECT
			row_number() OVER (ORDER BY amount DESC) AS uid,
			address_id, max_uid, max_bh_uid, amount, height
		FROM (
			SELECT
				m.address_id,
				max(m.uid) AS max_uid,
				max(m.balance_history_uid) AS max_bh_uid,
				(array_agg(m.amount ORDER BY m.balance_history_uid DESC))[1] AS amount,
				(array_agg(m.height ORDER BY m.balance_history_uid DESC))[1] AS height
			FROM balance_history_max_uids_per_height m
			WHERE m.asset_id = ? AND m.height <= ?
			GROUP BY m.address_id
		) agg
		WHERE amount > 0
		ORDER BY amount DESC`,
		pgIdent(e.schema), pgIdent(table),
	)
	if _, err := tx.NewRaw(createSQL, task.AssetUID, task.Height).Exec(ctx); err != nil {
		return err
	}

	indexSQL := fmt.Sprintf(`CREATE UNIQUE INDEX ON %s.%s (uid ASC)`, pgIdent(e.schema), pgIdent(table))
	if _, err := tx.ExecContext(ctx, indexSQL); err != nil {
		return err
	}

	if e.readerRole != "" {
		grantSQL := fmt.Sprintf(`GRANT SELECT ON %s.%s TO %s`, pgIdent(e.schema), pgIdent(table), pgIdent(e.readerRole))
		_, _ = tx.ExecContext(ctx, grantSQL)
	}

	_, err := tx.NewUpdate().
		Model((*Task)(nil)).
		Set("state = ?", StateDone).
		Set("state_updated = ?", time.Now()).
		Where("uid = ?", task.UID).
		Exec(ctx)
	if err == nil && e.metrics != nil {
		e.metrics.DistributionTasksDone.Inc()
	}
	return err
}

// SnapshotTableName is the frozen table name a completed task's rows live
// in, exported so the query surface can reference it directly.
func SnapshotTableName(taskUID int64, height int32) string {
	return fmt.Sprintf("task_uid_%d_%d", taskUID, height)
}

func pgIdent(name string) string {
	return `"` + name + `"`
}
