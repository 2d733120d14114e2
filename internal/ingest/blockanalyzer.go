package ingest

import (
	"context"

	"github.com/pkg/errors"

	"github.com/wavesplatform/balance-history/internal/ledger"
	"github.com/wavesplatform/balance-history/internal/metrics"
)

// blockLedger is the subset of *ledger.Ledger the analyzer drives, narrowed
// to an interface so the state machine can be tested without a database.
type blockLedger interface {
	Append(ctx context.Context, kind ledger.BlockType, id string, height int32, timeStamp int64, solidified bool) (int64, error)
	UnsolidifyTail(ctx context.Context) error
	Solidify(ctx context.Context, refBlockID, blockID string, height int32, timeStamp int64) (ledger.SolidifyResult, bool, error)
	Rollback(ctx context.Context, blockID string) (int64, error)
}

// BlockAnalyzer is C6: the stateful consumer that drives the block ledger
// and assigns each update its block_uid correlation key.
type BlockAnalyzer struct {
	ledger  blockLedger
	metrics *metrics.Registry

	wasMicroblocks bool
	saveSolidified bool
}

func NewBlockAnalyzer(l *ledger.Ledger) *BlockAnalyzer {
	return &BlockAnalyzer{ledger: l, saveSolidified: true}
}

// WithMetrics attaches a metrics registry whose BlocksIngested counter is
// incremented on every successfully processed update.
func (a *BlockAnalyzer) WithMetrics(m *metrics.Registry) *BlockAnalyzer {
	a.metrics = m
	return a
}

func newBlockAnalyzerWithLedger(l blockLedger) *BlockAnalyzer {
	return &BlockAnalyzer{ledger: l, saveSolidified: true}
}

// Process advances the state machine for one update and returns the
// block_uid that becomes the correlation key for the balance analyzer.
func (a *BlockAnalyzer) Process(ctx context.Context, u BlockchainUpdate) (int64, error) {
	uid, err := a.process(ctx, u)
	if err == nil && a.metrics != nil {
		a.metrics.BlocksIngested.Inc()
	}
	return uid, err
}

func (a *BlockAnalyzer) process(ctx context.Context, u BlockchainUpdate) (int64, error) {
	switch u.Kind {
	case KindBlock:
		if a.wasMicroblocks {
			result, ok, err := a.ledger.Solidify(ctx, u.ReferenceID, u.ID, u.Height, u.TimeStamp)
			a.wasMicroblocks = false
			if err != nil {
				return 0, errors.Wrap(err, "ingest: block analyzer: solidify")
			}
			if ok {
				return result.MaxUID, nil
			}
		}
		uid, err := a.ledger.Append(ctx, ledger.TypeBlock, u.ID, u.Height, u.TimeStamp, true)
		if err != nil {
			return 0, errors.Wrap(err, "ingest: block analyzer: append block")
		}
		return uid, nil

	case KindMicroBlock:
		if a.saveSolidified {
			if err := a.ledger.UnsolidifyTail(ctx); err != nil {
				return 0, errors.Wrap(err, "ingest: block analyzer: unsolidify tail")
			}
			a.saveSolidified = false
		}
		uid, err := a.ledger.Append(ctx, ledger.TypeMicroBlock, u.ID, u.Height, 0, false)
		if err != nil {
			return 0, errors.Wrap(err, "ingest: block analyzer: append microblock")
		}
		a.wasMicroblocks = true
		return uid, nil

	case KindRollback:
		uid, err := a.ledger.Rollback(ctx, u.RollbackToID)
		if err != nil {
			return 0, errors.Wrap(err, "ingest: block analyzer: rollback")
		}
		return uid, nil

	default:
		return 0, errors.Errorf("ingest: unknown update kind %d", u.Kind)
	}
}
