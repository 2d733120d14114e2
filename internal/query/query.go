// Package query is the read side (C9): point-in-time balance lookups,
// per-address asset enumeration, daily balance aggregates, and the
// asset-distribution snapshot surface. It never mutates the block ledger
// or balance history; the only write path it exposes is admitting a new
// distribution task, delegated straight to the distribution engine.
//
// Grounded on Carmen's backend/archive "GetBalance(block, account)"
// closest-block-at-or-below lookup, generalized to the (address, asset)
// pair shape this system needs.
package query

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"

	"github.com/wavesplatform/balance-history/internal/amountx"
	"github.com/wavesplatform/balance-history/internal/balance"
	"github.com/wavesplatform/balance-history/internal/dictionary"
	"github.com/wavesplatform/balance-history/internal/distribution"
	"github.com/wavesplatform/balance-history/internal/ledger"
)

// MaxBigInt is the sentinel ResolveUID returns when the caller supplies
// neither a height nor a timestamp: "as of now", encoded as the largest
// value any real uid could be less than.
const MaxBigInt int64 = math.MaxInt64

// MaxPairs is the limit on how many (address, asset) pairs a single
// BalancesByPairs call accepts.
const MaxPairs = 100

// PageSize bounds how many rows a single page of results returns; callers
// query PageSize+1 rows to detect whether another page follows without a
// separate count query.
const PageSize = 100

// Pair identifies one address/asset balance to resolve.
type Pair struct {
	Address string
	Asset   string
}

// BalanceResult is one resolved balance, shaped for the HTTP response body
// described in SPEC_FULL.md §6.
type BalanceResult struct {
	Address        string
	AssetID        string
	Amount         amountx.Amount
	BlockHeight    int32
	BlockTimestamp int64
}

// AggregateRow is one calendar day's first/last observed balance.
type AggregateRow struct {
	DateStamp   time.Time
	AmountBegin amountx.Amount
	AmountEnd   amountx.Amount
}

// DistributionStatus is the coarse outcome of a Distribution call.
type DistributionStatus int

const (
	// StatusExist means the task is done and Items/HasNext/LastUID are
	// populated.
	StatusExist DistributionStatus = iota
	// StatusNoData means no task exists for (asset, height) at all.
	StatusNoData
	// StatusInProgress means a task exists but has not reached done (or
	// has failed); callers surface this as HTTP 202.
	StatusInProgress
)

// DistributionRow is one ranked holder in a snapshot.
type DistributionRow struct {
	Rank    int64
	Address string
	Amount  amountx.Amount
	Height  int32
}

// DistributionPage is the result of a successful Distribution lookup.
type DistributionPage struct {
	Status   DistributionStatus
	Items    []DistributionRow
	HasNext  bool
	LastUID  int64
}

// ErrTooManyPairs is returned by BalancesByPairs when len(pairs) > MaxPairs.
var ErrTooManyPairs = errors.New("query: too many address/asset pairs")

// Surface is C9: every read operation, plus distribution-task admission.
type Surface struct {
	db         *bun.DB
	dictionary *dictionary.Dictionary
	dist       *distribution.Engine
}

func New(db *bun.DB, dist *distribution.Engine) *Surface {
	return &Surface{db: db, dictionary: dictionary.New(db), dist: dist}
}

// ResolveUID returns the greatest block uid with height <= atHeight (when
// given), or with time_stamp/1000 <= atTimestamp.Unix() (when given). When
// neither is supplied it returns MaxBigInt, meaning "the current tip,
// whatever it is by the time a caller joins against it".
func (s *Surface) ResolveUID(ctx context.Context, atHeight *int32, atTimestamp *time.Time) (int64, error) {
	if atHeight == nil && atTimestamp == nil {
		return MaxBigInt, nil
	}

	q := s.db.NewSelect().Model((*ledger.Block)(nil)).ColumnExpr("max(uid)")
	if atHeight != nil {
		q = q.Where("height <= ?", *atHeight)
	} else {
		q = q.Where("time_stamp <= ?", atTimestamp.Unix()*1000)
	}

	var uid sql.NullInt64
	if err := q.Scan(ctx, &uid); err != nil {
		return 0, errors.Wrap(err, "query: resolve uid")
	}
	if !uid.Valid {
		return 0, nil
	}
	return uid.Int64, nil
}

// BalancesByPairs resolves, for each pair, the greatest-block_uid balance
// row with block_uid <= uid. Pairs whose address or asset was never
// interned are silently omitted (there is no balance to report).
func (s *Surface) BalancesByPairs(ctx context.Context, uid int64, pairs []Pair) ([]BalanceResult, error) {
	if len(pairs) > MaxPairs {
		return nil, ErrTooManyPairs
	}

	results := make([]BalanceResult, 0, len(pairs))
	for _, p := range pairs {
		addressID, ok, err := s.dictionary.LookupAddressID(ctx, p.Address)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		assetID, ok, err := s.dictionary.LookupAssetID(ctx, p.Asset)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		row, found, err := s.latestBalance(ctx, addressID, assetID, uid)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		row.Address = p.Address
		row.AssetID = dictionary.NormalizeAssetID(p.Asset)
		results = append(results, row)
	}
	return results, nil
}

func (s *Surface) latestBalance(ctx context.Context, addressID, assetID, maxUID int64) (BalanceResult, bool, error) {
	var row struct {
		Amount    amountx.Amount `bun:"amount"`
		Height    int32          `bun:"height"`
		TimeStamp int64          `bun:"time_stamp"`
	}

	err := s.db.NewSelect().
		TableExpr("balance_history AS bh").
		ColumnExpr("bh.amount AS amount, b.height AS height, b.time_stamp AS time_stamp").
		Join("JOIN blocks_microblocks AS b ON b.uid = bh.block_uid").
		Where("bh.address_id = ? AND bh.asset_id = ? AND bh.block_uid <= ?", addressID, assetID, maxUID).
		OrderExpr("bh.block_uid DESC").
		Limit(1).
		Scan(ctx, &row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return BalanceResult{}, false, nil
	}
	if err != nil {
		return BalanceResult{}, false, errors.Wrap(err, "query: latest balance")
	}

	return BalanceResult{Amount: row.Amount, BlockHeight: row.Height, BlockTimestamp: row.TimeStamp}, true, nil
}

// BalancesByAddress enumerates every asset address has ever touched and
// resolves each one as of uid.
func (s *Surface) BalancesByAddress(ctx context.Context, uid int64, address string) ([]BalanceResult, error) {
	addressID, ok, err := s.dictionary.LookupAddressID(ctx, address)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	assetIDs, err := s.dictionary.AssetsTouchedByAddress(ctx, addressID)
	if err != nil {
		return nil, err
	}
	if len(assetIDs) == 0 {
		return nil, nil
	}

	assetTexts, err := s.dictionary.AssetTextByID(ctx, assetIDs)
	if err != nil {
		return nil, err
	}

	pairs := make([]Pair, 0, len(assetTexts))
	for _, text := range assetTexts {
		pairs = append(pairs, Pair{Address: address, Asset: text})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Asset < pairs[j].Asset })

	return s.BalancesByPairs(ctx, uid, pairs)
}

// Aggregates walks balance_history for (address, asset) within
// [dateFrom, dateTo] and returns one row per calendar day with activity:
// the first and last balance observed that day. Resolves the open
// question flagged in SPEC_FULL.md §3.
func (s *Surface) Aggregates(ctx context.Context, address, asset string, dateFrom, dateTo time.Time) ([]AggregateRow, error) {
	addressID, ok, err := s.dictionary.LookupAddressID(ctx, address)
	if err != nil || !ok {
		return nil, err
	}
	assetID, ok, err := s.dictionary.LookupAssetID(ctx, asset)
	if err != nil || !ok {
		return nil, err
	}

	var rows []balance.Row
	err = s.db.NewSelect().
		TableExpr("balance_history AS bh").
		ColumnExpr("bh.uid, bh.block_uid, bh.address_id, bh.asset_id, bh.amount").
		Join("JOIN blocks_microblocks AS b ON b.uid = bh.block_uid").
		Where("bh.address_id = ? AND bh.asset_id = ?", addressID, assetID).
		Where("b.time_stamp BETWEEN ? AND ?", dateFrom.Unix()*1000, dateTo.Unix()*1000).
		OrderExpr("bh.block_uid ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, errors.Wrap(err, "query: aggregates")
	}

	// Re-fetch timestamps alongside amounts: balance.Row has no time_stamp
	// column, so pull the parallel slice once instead of joining per row.
	timestamps, err := s.blockTimestamps(ctx, rows)
	if err != nil {
		return nil, err
	}

	var out []AggregateRow
	var currentDay time.Time
	var begin, end amountx.Amount
	have := false
	for i, r := range rows {
		day := time.Unix(timestamps[i]/1000, 0).UTC().Truncate(24 * time.Hour)
		if !have || !day.Equal(currentDay) {
			if have {
				out = append(out, AggregateRow{DateStamp: currentDay, AmountBegin: begin, AmountEnd: end})
			}
			currentDay = day
			begin = r.Amount
			have = true
		}
		end = r.Amount
	}
	if have {
		out = append(out, AggregateRow{DateStamp: currentDay, AmountBegin: begin, AmountEnd: end})
	}
	return out, nil
}

func (s *Surface) blockTimestamps(ctx context.Context, rows []balance.Row) ([]int64, error) {
	out := make([]int64, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	blockUIDs := make([]int64, len(rows))
	for i, r := range rows {
		blockUIDs[i] = r.BlockUID
	}
	var blocks []ledger.Block
	if err := s.db.NewSelect().Model(&blocks).Where("uid IN (?)", bun.In(blockUIDs)).Scan(ctx); err != nil {
		return nil, errors.Wrap(err, "query: aggregates: block timestamps")
	}
	byUID := make(map[int64]int64, len(blocks))
	for _, b := range blocks {
		byUID[b.UID] = b.TimeStamp
	}
	for i, r := range rows {
		out[i] = byUID[r.BlockUID]
	}
	return out, nil
}

// Distribution pages a completed snapshot for (asset, height), or reports
// that none exists / is still in progress. afterRank is a rank cursor
// (0 means start from the beginning).
func (s *Surface) Distribution(ctx context.Context, asset string, height int32, afterRank int64) (DistributionPage, error) {
	var task distribution.Task
	err := s.db.NewSelect().
		Model(&task).
		Where("asset_text = ? AND height = ?", dictionary.NormalizeAssetID(asset), height).
		Scan(ctx)
	if stderrors.Is(err, sql.ErrNoRows) {
		return DistributionPage{Status: StatusNoData}, nil
	}
	if err != nil {
		return DistributionPage{}, errors.Wrap(err, "query: distribution: load task")
	}
	if task.State != distribution.StateDone {
		return DistributionPage{Status: StatusInProgress}, nil
	}

	table := distribution.SnapshotTableName(task.UID, task.Height)

	var rows []struct {
		UID       int64          `bun:"uid"`
		AddressID int64          `bun:"address_id"`
		Amount    amountx.Amount `bun:"amount"`
		Height    int32          `bun:"height"`
	}
	err = s.db.NewRaw(
		fmt.Sprintf(`SELECT uid, address_id, amount, height FROM %s.%s WHERE uid > ? ORDER BY uid ASC LIMIT ?`,
			pgIdent(s.dist.Schema()), pgIdent(table)),
		afterRank, PageSize+1,
	).Scan(ctx, &rows)
	if err != nil {
		return DistributionPage{}, errors.Wrap(err, "query: distribution: read snapshot")
	}

	hasNext := len(rows) > PageSize
	if hasNext {
		rows = rows[:PageSize]
	}

	addressIDs := make([]int64, len(rows))
	for i, r := range rows {
		addressIDs[i] = r.AddressID
	}
	addressTexts, err := s.dictionary.AddressTextByID(ctx, addressIDs)
	if err != nil {
		return DistributionPage{}, err
	}

	items := make([]DistributionRow, len(rows))
	lastUID := afterRank
	for i, r := range rows {
		items[i] = DistributionRow{Rank: r.UID, Address: addressTexts[r.AddressID], Amount: r.Amount, Height: r.Height}
		lastUID = r.UID
	}

	return DistributionPage{Status: StatusExist, Items: items, HasNext: hasNext, LastUID: lastUID}, nil
}

// CreateDistributionTask resolves the current tip height and delegates
// admission to the distribution engine.
func (s *Surface) CreateDistributionTask(ctx context.Context, asset string, height int32) (distribution.CreateOutcome, error) {
	tipHeight, ok, err := s.tipHeight(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		tipHeight = 0
	}
	return s.dist.Create(ctx, asset, height, tipHeight)
}

func (s *Surface) tipHeight(ctx context.Context) (int32, bool, error) {
	l := ledger.New(s.db)
	return l.LastHeight(ctx, ledger.TypeBlock, true)
}

func pgIdent(name string) string {
	return `"` + name + `"`
}
