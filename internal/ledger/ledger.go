// Package ledger is the append-only log of block and microblock records:
// the single writer that owns solidification and rollback, grounded on the
// original consumer's blocks_microblocks mapper and its "rewrite the tail"
// solidify procedure.
package ledger

import (
	"context"
	"database/sql"
	"errors"

	pkgerrors "github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// BlockType distinguishes the three kinds of ledger record.
type BlockType string

const (
	TypeBlock      BlockType = "block"
	TypeMicroBlock BlockType = "microblock"
	TypeRollback   BlockType = "rollback"
)

// Block is a row of blocks_microblocks.
type Block struct {
	bun.BaseModel `bun:"table:blocks_microblocks"`

	UID          int64     `bun:"uid,pk,autoincrement"`
	ID           string    `bun:"id,notnull"`
	MicroBlockID *string   `bun:"microblock_id"`
	Height       int32     `bun:"height,notnull"`
	TimeStamp    int64     `bun:"time_stamp,notnull"`
	IsSolidified bool      `bun:"is_solidified,notnull"`
	BlockType    BlockType `bun:"block_type,notnull"`
}

// Rollback is an audit row of blocks_rollbacks.
type Rollback struct {
	bun.BaseModel `bun:"table:blocks_rollbacks"`

	UID                int64  `bun:"uid,pk,autoincrement"`
	MaxUIDKept         *int64 `bun:"max_uid_kept"`
	ID                 string `bun:"id,notnull"`
	MaxHeight          *int32 `bun:"max_height"`
	MaxTimeStamp       *int64 `bun:"max_time_stamp"`
	DeletedBlocksData  string `bun:"deleted_blocks_data"`
}

// Ledger is the exclusive owner of block records.
type Ledger struct {
	db bun.IDB
}

func New(db bun.IDB) *Ledger {
	return &Ledger{db: db}
}

// Append inserts a new record and returns its freshly assigned uid. For
// microblocks, pass timeStamp = 0 and solidified = false.
func (l *Ledger) Append(ctx context.Context, kind BlockType, id string, height int32, timeStamp int64, solidified bool) (int64, error) {
	row := &Block{
		ID:           id,
		Height:       height,
		TimeStamp:    timeStamp,
		IsSolidified: solidified,
		BlockType:    kind,
	}
	if _, err := l.db.NewInsert().Model(row).Returning("uid").Exec(ctx); err != nil {
		return 0, pkgerrors.Wrap(err, "ledger: append")
	}
	return row.UID, nil
}

// UnsolidifyTail sets is_solidified = false on the record with the greatest
// uid. Called exactly once per consumer lifetime: on the first microblock
// after a run of confirmed blocks.
func (l *Ledger) UnsolidifyTail(ctx context.Context) error {
	_, err := l.db.NewUpdate().
		Model((*Block)(nil)).
		Set("is_solidified = false").
		Where("uid = (SELECT max(uid) FROM blocks_microblocks)").
		Exec(ctx)
	if err != nil {
		return pkgerrors.Wrap(err, "ledger: unsolidify tail")
	}
	return nil
}

// SolidifyResult is the outcome of a successful Solidify call: the
// correlation key the microblock tail now shares (stable across
// solidification, per spec invariant) and the (height, time_stamp) it was
// finalized against.
type SolidifyResult struct {
	MaxUID    int64
	Height    int32
	TimeStamp int64
}

// Solidify finalizes the non-solidified tail against the confirming
// update's own header. The reopened anchor row (the previously-durable
// block that unsolidify_tail marked provisional again, identified by its
// non-zero time_stamp) is rewritten in place, never deleted: its old id
// is preserved into microblock_id, and its new id becomes refBlockID (the
// confirming update's reference_block_id). Its own height and time_stamp
// are left untouched, so the height it actually occurred at stays
// resolvable by ResolveUID. The microblock descendants (time_stamp = 0)
// are, separately, given the confirming block's own id, height and
// time_stamp and marked solidified, each preserving its own uid: this is
// the "resulting solidified record" the confirming block's own balance
// changes correlate against, never a freshly appended row. Returns
// ok=false if there was no microblock tail to solidify.
func (l *Ledger) Solidify(ctx context.Context, refBlockID, blockID string, height int32, timeStamp int64) (result SolidifyResult, ok bool, err error) {
	var anchor Block
	err = l.db.NewSelect().
		Model(&anchor).
		Where("is_solidified = false AND time_stamp != 0").
		Scan(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// No reopened anchor (a later microblock run): anchor.UID stays 0,
		// so the rewrite below touches no row and only the tail solidifies.
	case err != nil:
		return SolidifyResult{}, false, pkgerrors.Wrap(err, "ledger: solidify: load anchor")
	}

	oldAnchorID := anchor.ID
	if _, err := l.db.NewUpdate().
		Model((*Block)(nil)).
		Set("is_solidified = true").
		Set("microblock_id = ?", oldAnchorID).
		Set("id = ?", refBlockID).
		Where("uid = ?", anchor.UID).
		Exec(ctx); err != nil {
		return SolidifyResult{}, false, pkgerrors.Wrap(err, "ledger: solidify: rewrite anchor")
	}

	var updated []Block
	if err := l.db.NewUpdate().
		Model((*Block)(nil)).
		Set("id = ?", blockID).
		Set("height = ?", height).
		Set("time_stamp = ?", timeStamp).
		Set("is_solidified = true").
		Where("is_solidified = false AND time_stamp = 0").
		Returning("uid").
		Scan(ctx, &updated); err != nil {
		return SolidifyResult{}, false, pkgerrors.Wrap(err, "ledger: solidify: inherit microblocks")
	}
	if len(updated) == 0 {
		return SolidifyResult{}, false, nil
	}

	maxUID := updated[0].UID
	for _, b := range updated[1:] {
		if b.UID > maxUID {
			maxUID = b.UID
		}
	}

	return SolidifyResult{MaxUID: maxUID, Height: height, TimeStamp: timeStamp}, true, nil
}

// Rollback deletes every record with uid greater than the surviving tip for
// blockID, recording the deleted set in the rollback audit table first.
// Returns the max kept uid.
func (l *Ledger) Rollback(ctx context.Context, blockID string) (int64, error) {
	var keptUID sql.NullInt64
	if err := l.db.NewSelect().
		Model((*Block)(nil)).
		ColumnExpr("max(uid)").
		Where("id = ?", blockID).
		Scan(ctx, &keptUID); err != nil {
		return 0, pkgerrors.Wrap(err, "ledger: rollback: resolve kept uid")
	}

	maxKept := keptUID.Int64 // 0 when NULL: every record postdates an unknown id

	var deleted []Block
	if err := l.db.NewSelect().
		Model(&deleted).
		Where("uid > ?", maxKept).
		Scan(ctx); err != nil {
		return 0, pkgerrors.Wrap(err, "ledger: rollback: load deleted")
	}

	audit := &Rollback{
		ID:                blockID,
		DeletedBlocksData: encodeDeleted(deleted),
	}
	if maxKept > 0 {
		audit.MaxUIDKept = &maxKept
	}
	if len(deleted) > 0 {
		last := deleted[len(deleted)-1]
		audit.MaxHeight = &last.Height
		audit.MaxTimeStamp = &last.TimeStamp
	}
	if _, err := l.db.NewInsert().Model(audit).Exec(ctx); err != nil {
		return 0, pkgerrors.Wrap(err, "ledger: rollback: write audit")
	}

	if _, err := l.db.NewDelete().
		Model((*Block)(nil)).
		Where("uid > ?", maxKept).
		Exec(ctx); err != nil {
		return 0, pkgerrors.Wrap(err, "ledger: rollback: delete")
	}

	return maxKept, nil
}

// LastHeight returns the height of the latest durable block of the given
// type, or ok=false if there is none.
func (l *Ledger) LastHeight(ctx context.Context, kind BlockType, solidified bool) (height int32, ok bool, err error) {
	var h sql.NullInt32
	err = l.db.NewSelect().
		Model((*Block)(nil)).
		ColumnExpr("max(height)").
		Where("block_type = ? AND is_solidified = ?", kind, solidified).
		Scan(ctx, &h)
	if err != nil {
		return 0, false, pkgerrors.Wrap(err, "ledger: last height")
	}
	if !h.Valid {
		return 0, false, nil
	}
	return h.Int32, true, nil
}

// DeleteUnsolidified removes every record whose is_solidified flag is still
// false, part of startup recovery: a crash mid-microblock-run leaves no
// durable guarantee about that tail.
func (l *Ledger) DeleteUnsolidified(ctx context.Context) error {
	_, err := l.db.NewDelete().
		Model((*Block)(nil)).
		Where("is_solidified = false").
		Exec(ctx)
	if err != nil {
		return pkgerrors.Wrap(err, "ledger: delete unsolidified")
	}
	return nil
}

// DeleteAboveHeight removes every record with height greater than h, part
// of startup recovery rebasing onto the safe-height watermark.
func (l *Ledger) DeleteAboveHeight(ctx context.Context, h int32) error {
	_, err := l.db.NewDelete().
		Model((*Block)(nil)).
		Where("height > ?", h).
		Exec(ctx)
	if err != nil {
		return pkgerrors.Wrap(err, "ledger: delete above height")
	}
	return nil
}

// TipHeight returns the height of the greatest-uid record, or (0, false)
// if the ledger is empty.
func (l *Ledger) TipHeight(ctx context.Context) (int32, bool, error) {
	var row Block
	err := l.db.NewSelect().
		Model(&row).
		OrderExpr("uid DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, pkgerrors.Wrap(err, "ledger: tip height")
	}
	return row.Height, true, nil
}

func encodeDeleted(blocks []Block) string {
	ids := make([]byte, 0, 16*len(blocks))
	for i, b := range blocks {
		if i > 0 {
			ids = append(ids, ',')
		}
		ids = append(ids, b.ID...)
	}
	return string(ids)
}
