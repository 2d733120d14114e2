// Package safeheight records, per logical table, the height below which all
// data is durable. Consumers rebase from this marker on restart, grounded on
// the original's safe_heights mapper.
package safeheight

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// BalanceHistoryTable is the logical table name the balance analyzer
// advances on every flush.
const BalanceHistoryTable = "balance_history"

// SafeHeightOffset trails the chunk's minimum height by this much before
// it is considered durable, giving microblock churn room to settle.
const SafeHeightOffset = 20

// SafeHeightFor clamps minHeight-SafeHeightOffset to zero, mirroring the
// original's max(0, height-offset): at low chain heights the naive
// subtraction goes negative, and a negative safe height would make startup
// recovery (DeleteAboveHeight) discard the entire ledger.
func SafeHeightFor(minHeight int32) int32 {
	h := minHeight - SafeHeightOffset
	if h < 0 {
		return 0
	}
	return h
}

// Row is a safe_heights table row.
type Row struct {
	bun.BaseModel `bun:"table:safe_heights"`

	UID       int64  `bun:"uid,pk,autoincrement"`
	TableName string `bun:"table_name,notnull,unique"`
	Height    int32  `bun:"height,notnull"`
}

// Store manages the safe_heights table.
type Store struct {
	db bun.IDB
}

func New(db bun.IDB) *Store {
	return &Store{db: db}
}

// Save advances table's safe height, but only if the new value is strictly
// greater than the stored one: the marker is non-decreasing.
func (s *Store) Save(ctx context.Context, table string, height int32) error {
	_, err := s.db.NewInsert().
		Model(&Row{TableName: table, Height: height}).
		On("CONFLICT (table_name) DO UPDATE").
		Set("height = EXCLUDED.height").
		Where("safe_heights.height < EXCLUDED.height").
		Exec(ctx)
	if err != nil {
		return errors.Wrapf(err, "safeheight: save %s", table)
	}
	return nil
}

// SetTo forcibly sets table's height, used by startup recovery where the
// marker is rebased rather than advanced.
func (s *Store) SetTo(ctx context.Context, table string, height int32) error {
	_, err := s.db.NewInsert().
		Model(&Row{TableName: table, Height: height}).
		On("CONFLICT (table_name) DO UPDATE").
		Set("height = EXCLUDED.height").
		Exec(ctx)
	if err != nil {
		return errors.Wrapf(err, "safeheight: set %s", table)
	}
	return nil
}

// Min returns the minimum height across every named table, or (0, false)
// when no rows exist.
func (s *Store) Min(ctx context.Context) (int32, bool, error) {
	var rows []Row
	if err := s.db.NewSelect().Model(&rows).Scan(ctx); err != nil {
		return 0, false, errors.Wrap(err, "safeheight: min")
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	min := rows[0].Height
	for _, r := range rows[1:] {
		if r.Height < min {
			min = r.Height
		}
	}
	return min, true, nil
}

// AllTableNames lists every table with a safe-height marker, used during
// recovery to rebase every one of them to the new tip.
func (s *Store) AllTableNames(ctx context.Context) ([]string, error) {
	var rows []Row
	if err := s.db.NewSelect().Model(&rows).Column("table_name").Scan(ctx); err != nil {
		return nil, errors.Wrap(err, "safeheight: list tables")
	}
	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.TableName
	}
	return names, nil
}
