// Package balance is the single writer of balance-history rows and their
// derived max-uid-per-height index, grounded on the original's
// balance_history and balance_history_max_uids_per_height mappers. Both
// tables are written inside the same transaction the caller opened.
package balance

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"

	"github.com/wavesplatform/balance-history/internal/amountx"
	"github.com/wavesplatform/balance-history/internal/dictionary"
)

// Entry is one normalized balance change extracted from a stream update.
type Entry struct {
	BlockUID int64
	Height   int32
	Address  string
	Asset    string
	Amount   amountx.Amount
}

// Row is a balance_history table row.
type Row struct {
	bun.BaseModel `bun:"table:balance_history"`

	UID       int64         `bun:"uid,pk,autoincrement"`
	BlockUID  int64         `bun:"block_uid,notnull"`
	AddressID int64         `bun:"address_id,notnull"`
	AssetID   int64         `bun:"asset_id,notnull"`
	Amount    amountx.Amount `bun:"amount,notnull,type:numeric(100,0)"`
}

// MaxUIDRow is a balance_history_max_uids_per_height table row.
type MaxUIDRow struct {
	bun.BaseModel `bun:"table:balance_history_max_uids_per_height"`

	UID               int64         `bun:"uid,pk,autoincrement"`
	BalanceHistoryUID int64         `bun:"balance_history_uid,notnull"`
	AssetID           int64         `bun:"asset_id,notnull"`
	AddressID         int64         `bun:"address_id,notnull"`
	BlockUID          int64         `bun:"block_uid,notnull"`
	Height            int32         `bun:"height,notnull"`
	Amount            amountx.Amount `bun:"amount,notnull,type:numeric(100,0)"`
}

// Writer saves balance-history rows and maintains the max-uid-per-height
// index within a caller-supplied transaction.
type Writer struct {
	db bun.IDB
}

func New(db bun.IDB) *Writer {
	return &Writer{db: db}
}

// SaveBulk inserts entries through an inner join against the block ledger,
// so rows referencing a block that a concurrent rollback has already
// removed are silently dropped. The join locks the matched ledger rows
// FOR UPDATE to serialize against rollbacks landing mid-flush. Returns the
// uids assigned to the rows that were actually inserted, in entries order
// for the surviving ones.
func (w *Writer) SaveBulk(ctx context.Context, entries []Entry, assetIDMap, addressIDMap map[string]int64) ([]int64, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(entries))
	args := make([]interface{}, 0, len(entries)*4)
	for i, e := range entries {
		assetID, ok := assetIDMap[dictionary.NormalizeAssetID(e.Asset)]
		if !ok {
			return nil, errors.Errorf("balance: no asset uid interned for %q", e.Asset)
		}
		addressID, ok := addressIDMap[e.Address]
		if !ok {
			return nil, errors.Errorf("balance: no address uid interned for %q", e.Address)
		}
		placeholders[i] = "(?::bigint, ?::bigint, ?::bigint, ?::numeric)"
		args = append(args, e.BlockUID, addressID, assetID, e.Amount.ToBunBig())
	}

	query := fmt.Sprintf(`
		INSERT INTO balance_history (block_uid, address_id, asset_id, amount)
		SELECT v.block_uid, v.address_id, v.asset_id, v.amount
		FROM (VALUES %s) AS v(block_uid, address_id, asset_id, amount)
		JOIN blocks_microblocks b ON b.uid = v.block_uid
		FOR UPDATE OF b
		RETURNING balance_history.uid`,
		strings.Join(placeholders, ", "),
	)

	var uids []int64
	if err := w.db.NewRaw(query, args...).Scan(ctx, &uids); err != nil {
		return nil, errors.Wrap(err, "balance: save bulk")
	}
	return uids, nil
}

// FillMaxUIDPerHeight upserts, for every affected (asset, address, height),
// the row with the greatest balance_history_uid among the given uids.
func (w *Writer) FillMaxUIDPerHeight(ctx context.Context, bhUIDs []int64) error {
	if len(bhUIDs) == 0 {
		return nil
	}

	query := `
		INSERT INTO balance_history_max_uids_per_height
			(balance_history_uid, asset_id, address_id, block_uid, height, amount)
		SELECT DISTINCT ON (bh.asset_id, bh.address_id, b.height)
			bh.uid, bh.asset_id, bh.address_id, bh.block_uid, b.height, bh.amount
		FROM balance_history bh
		JOIN blocks_microblocks b ON b.uid = bh.block_uid
		WHERE bh.uid IN (?)
		ORDER BY bh.asset_id, bh.address_id, b.height, bh.uid DESC
		ON CONFLICT (asset_id, height, address_id) DO UPDATE SET
			balance_history_uid = EXCLUDED.balance_history_uid,
			block_uid = EXCLUDED.block_uid,
			amount = EXCLUDED.amount`

	if _, err := w.db.NewRaw(query, bun.In(bhUIDs)).Exec(ctx); err != nil {
		return errors.Wrap(err, "balance: fill max-uid-per-height")
	}
	return nil
}
