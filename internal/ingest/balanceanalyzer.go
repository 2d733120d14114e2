package ingest

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"

	"github.com/wavesplatform/balance-history/internal/balance"
	"github.com/wavesplatform/balance-history/internal/dictionary"
	"github.com/wavesplatform/balance-history/internal/metrics"
	"github.com/wavesplatform/balance-history/internal/safeheight"
)

// DefaultChunkSize is the pending-entry threshold that forces a flush of
// historical (non-microblock) blocks, tuned so flushes stay cheap while
// microblocks still always flush immediately for query freshness.
const DefaultChunkSize = 1000

// BalanceAnalyzer is C7: the single-consumer batcher that drains tagged
// updates and periodically flushes a chunk of normalized balance entries
// through the dictionary, balance writer and safe-height bookkeeping in one
// transaction.
type BalanceAnalyzer struct {
	db        *bun.DB
	chunkSize int
	metrics   *metrics.Registry

	pending []BalanceEntry
}

func NewBalanceAnalyzer(db *bun.DB, chunkSize int) *BalanceAnalyzer {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &BalanceAnalyzer{db: db, chunkSize: chunkSize}
}

// WithMetrics attaches a metrics registry updated on every flush.
func (a *BalanceAnalyzer) WithMetrics(m *metrics.Registry) *BalanceAnalyzer {
	a.metrics = m
	return a
}

// Process appends u's balance changes (tagged with blockUID, the uid the
// block analyzer just assigned) to the pending chunk, flushing when u is a
// microblock, a rollback, or the chunk has grown past the configured size.
// Rollbacks flush immediately so their corrective balance rows are visible
// right away rather than sitting in pending until the next microblock.
func (a *BalanceAnalyzer) Process(ctx context.Context, u BlockchainUpdate, blockUID int64) error {
	a.pending = append(a.pending, entriesFromUpdate(u, blockUID)...)

	if u.Kind == KindMicroBlock || u.Kind == KindRollback || len(a.pending) > a.chunkSize {
		return a.Flush(ctx)
	}
	return nil
}

// Flush commits any pending entries immediately, regardless of size. Safe
// to call with nothing pending.
func (a *BalanceAnalyzer) Flush(ctx context.Context) error {
	if len(a.pending) == 0 {
		return nil
	}
	chunk := a.pending
	a.pending = nil

	if err := a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return flushChunk(ctx, tx, chunk)
	}); err != nil {
		return err
	}

	if a.metrics != nil {
		a.metrics.BalanceRowsFlushed.Add(float64(len(chunk)))
		minHeight := chunk[0].Height
		for _, e := range chunk[1:] {
			if e.Height < minHeight {
				minHeight = e.Height
			}
		}
		a.metrics.ConsumerSafeHeight.Set(float64(safeheight.SafeHeightFor(minHeight)))
	}
	return nil
}

func flushChunk(ctx context.Context, tx bun.IDB, chunk []BalanceEntry) error {
	dict := dictionary.New(tx)
	writer := balance.New(tx)
	heights := safeheight.New(tx)

	assetTexts := make([]string, len(chunk))
	addressTexts := make([]string, len(chunk))
	minHeight := chunk[0].Height
	for i, e := range chunk {
		assetTexts[i] = e.Asset
		addressTexts[i] = e.Address
		if e.Height < minHeight {
			minHeight = e.Height
		}
	}

	assetIDMap, err := dict.MergeAssets(ctx, assetTexts)
	if err != nil {
		return errors.Wrap(err, "ingest: balance analyzer: merge assets")
	}

	addressIDMap, err := dict.MergeAddresses(ctx, addressTexts)
	if err != nil {
		return errors.Wrap(err, "ingest: balance analyzer: merge addresses")
	}

	entries := make([]balance.Entry, len(chunk))
	for i, e := range chunk {
		entries[i] = balance.Entry{
			BlockUID: e.BlockUID,
			Height:   e.Height,
			Address:  e.Address,
			Asset:    e.Asset,
			Amount:   e.Amount,
		}
	}

	bhUIDs, err := writer.SaveBulk(ctx, entries, assetIDMap, addressIDMap)
	if err != nil {
		return errors.Wrap(err, "ingest: balance analyzer: save bulk")
	}

	if err := writer.FillMaxUIDPerHeight(ctx, bhUIDs); err != nil {
		return errors.Wrap(err, "ingest: balance analyzer: fill max-uid-per-height")
	}

	if err := heights.Save(ctx, safeheight.BalanceHistoryTable, safeheight.SafeHeightFor(minHeight)); err != nil {
		return errors.Wrap(err, "ingest: balance analyzer: save safe height")
	}

	return nil
}
