// Package dictionary interns the base58 address and asset-id strings that
// show up repeatedly in balance-update events into small integer surrogate
// keys, the same bulk-upsert-then-reselect shape the original consumer used
// for unique_address/unique_assets.
package dictionary

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// Address is a row of the unique_address table.
type Address struct {
	bun.BaseModel `bun:"table:unique_address"`

	UID     int64  `bun:"uid,pk,autoincrement"`
	Address string `bun:"address,notnull,unique"`
}

// Asset is a row of the unique_assets table.
type Asset struct {
	bun.BaseModel `bun:"table:unique_assets"`

	UID     int64  `bun:"uid,pk,autoincrement"`
	AssetID string `bun:"asset_id,notnull,unique"`
}

// WavesAssetID is the sentinel used in balance-update events to mean the
// chain's native asset rather than an issued token.
const WavesAssetID = "WAVES"

// NormalizeAssetID maps the empty asset string onto the WAVES sentinel so
// both spellings intern to the same fixed uid 1.
func NormalizeAssetID(assetID string) string {
	if assetID == "" {
		return WavesAssetID
	}
	return assetID
}

// Dictionary interns addresses and asset ids against a shared connection.
type Dictionary struct {
	db bun.IDB
}

func New(db bun.IDB) *Dictionary {
	return &Dictionary{db: db}
}

// MergeAddresses upserts any addresses not already known and returns the
// full address -> uid map for every address passed in, known or new.
func (d *Dictionary) MergeAddresses(ctx context.Context, addresses []string) (map[string]int64, error) {
	values := distinct(addresses)
	if len(values) == 0 {
		return map[string]int64{}, nil
	}

	rows := make([]Address, len(values))
	for i, v := range values {
		rows[i] = Address{Address: v}
	}

	if _, err := d.db.NewInsert().
		Model(&rows).
		On("CONFLICT (address) DO NOTHING").
		Exec(ctx); err != nil {
		return nil, errors.Wrap(err, "dictionary: merge addresses")
	}

	var out []Address
	if err := d.db.NewSelect().
		Model(&out).
		Where("address IN (?)", bun.In(values)).
		Scan(ctx); err != nil {
		return nil, errors.Wrap(err, "dictionary: reselect addresses")
	}

	result := make(map[string]int64, len(out))
	for _, a := range out {
		result[a.Address] = a.UID
	}
	return result, nil
}

// MergeAssets upserts any asset ids not already known and returns the full
// asset_id -> uid map for every asset id passed in, known or new.
func (d *Dictionary) MergeAssets(ctx context.Context, assetIDs []string) (map[string]int64, error) {
	normalized := make([]string, len(assetIDs))
	for i, a := range assetIDs {
		normalized[i] = NormalizeAssetID(a)
	}
	values := distinct(normalized)
	if len(values) == 0 {
		return map[string]int64{}, nil
	}

	rows := make([]Asset, len(values))
	for i, v := range values {
		rows[i] = Asset{AssetID: v}
	}

	if _, err := d.db.NewInsert().
		Model(&rows).
		On("CONFLICT (asset_id) DO NOTHING").
		Exec(ctx); err != nil {
		return nil, errors.Wrap(err, "dictionary: merge assets")
	}

	var out []Asset
	if err := d.db.NewSelect().
		Model(&out).
		Where("asset_id IN (?)", bun.In(values)).
		Scan(ctx); err != nil {
		return nil, errors.Wrap(err, "dictionary: reselect assets")
	}

	result := make(map[string]int64, len(out))
	for _, a := range out {
		result[a.AssetID] = a.UID
	}
	return result, nil
}

// LookupAddressID returns the uid interned for address, or ok=false if the
// query surface has never seen this address in any balance update.
func (d *Dictionary) LookupAddressID(ctx context.Context, address string) (int64, bool, error) {
	var row Address
	err := d.db.NewSelect().Model(&row).Where("address = ?", address).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return 0, false, nil
		}
		return 0, false, errors.Wrap(err, "dictionary: lookup address")
	}
	return row.UID, true, nil
}

// LookupAssetID returns the uid interned for assetID (normalizing "" to
// WAVES first), or ok=false if unknown.
func (d *Dictionary) LookupAssetID(ctx context.Context, assetID string) (int64, bool, error) {
	var row Asset
	err := d.db.NewSelect().Model(&row).Where("asset_id = ?", NormalizeAssetID(assetID)).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return 0, false, nil
		}
		return 0, false, errors.Wrap(err, "dictionary: lookup asset")
	}
	return row.UID, true, nil
}

// AssetTextByID is the inverse of LookupAssetID, used to render a response
// row back into the caller's asset_id vocabulary.
func (d *Dictionary) AssetTextByID(ctx context.Context, ids []int64) (map[int64]string, error) {
	ids = distinctInt64(ids)
	if len(ids) == 0 {
		return map[int64]string{}, nil
	}
	var rows []Asset
	if err := d.db.NewSelect().Model(&rows).Where("uid IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		return nil, errors.Wrap(err, "dictionary: asset text by id")
	}
	out := make(map[int64]string, len(rows))
	for _, r := range rows {
		out[r.UID] = r.AssetID
	}
	return out, nil
}

// AddressTextByID is the inverse of LookupAddressID.
func (d *Dictionary) AddressTextByID(ctx context.Context, ids []int64) (map[int64]string, error) {
	ids = distinctInt64(ids)
	if len(ids) == 0 {
		return map[int64]string{}, nil
	}
	var rows []Address
	if err := d.db.NewSelect().Model(&rows).Where("uid IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		return nil, errors.Wrap(err, "dictionary: address text by id")
	}
	out := make(map[int64]string, len(rows))
	for _, r := range rows {
		out[r.UID] = r.Address
	}
	return out, nil
}

// AssetsTouchedByAddress lists the distinct asset uids any balance-history
// row ever recorded for addressID.
func (d *Dictionary) AssetsTouchedByAddress(ctx context.Context, addressID int64) ([]int64, error) {
	var ids []int64
	err := d.db.NewSelect().
		TableExpr("balance_history").
		ColumnExpr("DISTINCT asset_id").
		Where("address_id = ?", addressID).
		Scan(ctx, &ids)
	if err != nil {
		return nil, errors.Wrap(err, "dictionary: assets touched by address")
	}
	return ids, nil
}

// ValidateBase58 reports whether s is well-formed base58, the wire
// encoding every Waves address and issued asset id uses. The empty string
// is accepted: it normalizes to the WAVES sentinel rather than denoting an
// actual base58-encoded identifier.
func ValidateBase58(s string) bool {
	if s == "" {
		return true
	}
	_, err := base58.Decode(s)
	return err == nil
}

func isNoRows(err error) bool {
	return stderrors.Is(err, sql.ErrNoRows)
}

func distinctInt64(values []int64) []int64 {
	seen := make(map[int64]struct{}, len(values))
	out := make([]int64, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
