// Package recovery runs the startup reconciliation described in
// SPEC_FULL.md §4.2: discard any tail the last run could not prove
// durable, rebase every safe-height marker onto the surviving tip, and
// fail any distribution task the crash caught mid-materialization.
//
// Grounded on the original consumer's on-startup cleanup pass ahead of
// resubscribing to the node, adapted from Carmen's recovery-on-open path
// for its own archive/state stores (verify-then-truncate before serving
// new writes).
package recovery

import (
	"context"

	"github.com/pkg/errors"

	"github.com/wavesplatform/balance-history/internal/distribution"
	"github.com/wavesplatform/balance-history/internal/ledger"
	"github.com/wavesplatform/balance-history/internal/safeheight"
)

// Result is what the recovery pass learned, so the caller can compute the
// upstream subscription's start height.
type Result struct {
	// TipHeight is the height of the new greatest-uid block after
	// reconciliation, or 0 if the ledger ended up empty.
	TipHeight int32
}

// Run executes the five-step recovery sequence. It must complete before
// any stream update is processed.
func Run(ctx context.Context, l *ledger.Ledger, heights *safeheight.Store, dist *distribution.Engine) (Result, error) {
	// 1. Discard any block record that never reached is_solidified: a
	// crash mid-microblock-run leaves no durability guarantee for it.
	if err := l.DeleteUnsolidified(ctx); err != nil {
		return Result{}, errors.Wrap(err, "recovery: delete unsolidified")
	}

	// 2-3. Rebase the ledger onto the lowest safe-height watermark across
	// every logical table: anything above it might not have been fully
	// flushed by the table that lags furthest behind.
	safeHeight, hasSafeHeight, err := heights.Min(ctx)
	if err != nil {
		return Result{}, errors.Wrap(err, "recovery: read safe heights")
	}
	if !hasSafeHeight {
		safeHeight = 0
	}
	if err := l.DeleteAboveHeight(ctx, safeHeight); err != nil {
		return Result{}, errors.Wrap(err, "recovery: delete above safe height")
	}

	// 4. Rebase every safe-height row onto the new tip, not onto itself:
	// the discarded tail means some tables' markers previously pointed
	// past data that no longer exists.
	tipHeight, ok, err := l.TipHeight(ctx)
	if err != nil {
		return Result{}, errors.Wrap(err, "recovery: read tip height")
	}
	if !ok {
		tipHeight = 0
	}

	names, err := heights.AllTableNames(ctx)
	if err != nil {
		return Result{}, errors.Wrap(err, "recovery: list safe height tables")
	}
	for _, name := range names {
		if err := heights.SetTo(ctx, name, tipHeight); err != nil {
			return Result{}, errors.Wrapf(err, "recovery: rebase safe height %s", name)
		}
	}

	// 5. Any distribution task still "in progress" belonged to a process
	// that no longer exists; its snapshot table, if any, is incomplete.
	if err := dist.MarkInterruptedAsError(ctx, "consumer restarted"); err != nil {
		return Result{}, errors.Wrap(err, "recovery: mark interrupted distribution tasks")
	}

	return Result{TipHeight: tipHeight}, nil
}

// StartHeight is the height the upstream subscription should request:
// whichever is larger between the operator-configured start height and
// the height immediately after the surviving tip.
func StartHeight(configuredStartHeight int64, tipHeight int32) int64 {
	next := int64(tipHeight) + 1
	if configuredStartHeight > next {
		return configuredStartHeight
	}
	return next
}
