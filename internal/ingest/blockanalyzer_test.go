package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavesplatform/balance-history/internal/ledger"
)

// fakeLedger is a minimal in-memory stand-in for *ledger.Ledger, good
// enough to exercise the block analyzer's state machine without a
// database.
type fakeLedger struct {
	rows           []ledger.Block
	nextUID        int64
	unsolidifyCall int
	rollbackCall   int
}

func (f *fakeLedger) Append(_ context.Context, kind ledger.BlockType, id string, height int32, timeStamp int64, solidified bool) (int64, error) {
	f.nextUID++
	f.rows = append(f.rows, ledger.Block{
		UID: f.nextUID, ID: id, Height: height, TimeStamp: timeStamp,
		IsSolidified: solidified, BlockType: kind,
	})
	return f.nextUID, nil
}

func (f *fakeLedger) UnsolidifyTail(context.Context) error {
	f.unsolidifyCall++
	if len(f.rows) == 0 {
		return nil
	}
	f.rows[len(f.rows)-1].IsSolidified = false
	return nil
}

func (f *fakeLedger) Solidify(_ context.Context, refBlockID, blockID string, height int32, timeStamp int64) (ledger.SolidifyResult, bool, error) {
	var anchorIdx = -1
	for i, r := range f.rows {
		if !r.IsSolidified && r.TimeStamp != 0 {
			anchorIdx = i
			break
		}
	}
	if anchorIdx < 0 {
		return ledger.SolidifyResult{}, false, nil
	}

	anchorOldID := f.rows[anchorIdx].ID
	f.rows[anchorIdx].MicroBlockID = &anchorOldID
	f.rows[anchorIdx].ID = refBlockID
	f.rows[anchorIdx].IsSolidified = true

	var maxUID int64
	found := false
	for i := range f.rows {
		if !f.rows[i].IsSolidified && f.rows[i].TimeStamp == 0 {
			f.rows[i].ID = blockID
			f.rows[i].Height = height
			f.rows[i].TimeStamp = timeStamp
			f.rows[i].IsSolidified = true
			if f.rows[i].UID > maxUID {
				maxUID = f.rows[i].UID
			}
			found = true
		}
	}
	if !found {
		return ledger.SolidifyResult{}, false, nil
	}
	return ledger.SolidifyResult{MaxUID: maxUID, Height: height, TimeStamp: timeStamp}, true, nil
}

func (f *fakeLedger) Rollback(_ context.Context, blockID string) (int64, error) {
	f.rollbackCall++
	maxKept := int64(0)
	for _, r := range f.rows {
		if r.ID == blockID && r.UID > maxKept {
			maxKept = r.UID
		}
	}
	kept := f.rows[:0]
	for _, r := range f.rows {
		if r.UID <= maxKept {
			kept = append(kept, r)
		}
	}
	f.rows = kept
	return maxKept, nil
}

func (f *fakeLedger) byUID(uid int64) (ledger.Block, bool) {
	for _, r := range f.rows {
		if r.UID == uid {
			return r, true
		}
	}
	return ledger.Block{}, false
}

func TestBlockAnalyzer_FreshBlock(t *testing.T) {
	fl := &fakeLedger{}
	a := newBlockAnalyzerWithLedger(fl)

	uid, err := a.Process(context.Background(), BlockchainUpdate{
		Kind: KindBlock, ID: "B1", Height: 100, TimeStamp: 1000,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), uid)

	row, ok := fl.byUID(1)
	require.True(t, ok)
	assert.Equal(t, "B1", row.ID)
	assert.True(t, row.IsSolidified)
}

func TestBlockAnalyzer_MicroblockThenConfirmingBlock(t *testing.T) {
	fl := &fakeLedger{}
	a := newBlockAnalyzerWithLedger(fl)
	ctx := context.Background()

	_, err := a.Process(ctx, BlockchainUpdate{Kind: KindBlock, ID: "B1", Height: 100, TimeStamp: 1000})
	require.NoError(t, err)

	uid, err := a.Process(ctx, BlockchainUpdate{
		Kind: KindMicroBlock, ID: "M1", Height: 101,
		BalanceChanges: []BalanceChange{},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), uid)
	assert.Equal(t, 1, fl.unsolidifyCall)

	row1, ok := fl.byUID(1)
	require.True(t, ok)
	assert.False(t, row1.IsSolidified)

	uid, err = a.Process(ctx, BlockchainUpdate{
		Kind: KindBlock, ID: "B2", ReferenceID: "M1", Height: 101, TimeStamp: 1100,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), uid, "the solidified microblock tail is the correlation key, not a freshly appended row")

	anchor, ok := fl.byUID(1)
	require.True(t, ok, "the reopened anchor is rewritten in place, never deleted")
	assert.Equal(t, "M1", anchor.ID)
	require.NotNil(t, anchor.MicroBlockID)
	assert.Equal(t, "B1", *anchor.MicroBlockID)
	assert.True(t, anchor.IsSolidified)
	assert.Equal(t, int32(100), anchor.Height, "the anchor keeps its own history, it does not take on B2's height")
	assert.Equal(t, int64(1000), anchor.TimeStamp, "the anchor keeps its own time_stamp")

	tail, ok := fl.byUID(2)
	require.True(t, ok)
	assert.Equal(t, "B2", tail.ID, "the microblock tail takes on the confirming block's own id")
	assert.True(t, tail.IsSolidified)
	assert.Equal(t, int32(101), tail.Height)
	assert.Equal(t, int64(1100), tail.TimeStamp, "the microblock tail takes on the confirming block's own (height, time_stamp)")

	_, ok = fl.byUID(3)
	assert.False(t, ok, "no new row is appended for the confirming block once a microblock tail solidifies into it")

	assert.False(t, a.wasMicroblocks)
}

func TestBlockAnalyzer_SecondMicroblockRunDoesNotUnsolidifyAgain(t *testing.T) {
	fl := &fakeLedger{}
	a := newBlockAnalyzerWithLedger(fl)
	ctx := context.Background()

	_, _ = a.Process(ctx, BlockchainUpdate{Kind: KindBlock, ID: "B1", Height: 100, TimeStamp: 1000})
	_, _ = a.Process(ctx, BlockchainUpdate{Kind: KindMicroBlock, ID: "M1", Height: 101})
	_, _ = a.Process(ctx, BlockchainUpdate{Kind: KindBlock, ID: "B2", ReferenceID: "M1", Height: 101, TimeStamp: 1100})

	_, err := a.Process(ctx, BlockchainUpdate{Kind: KindMicroBlock, ID: "M2", Height: 102})
	require.NoError(t, err)

	assert.Equal(t, 1, fl.unsolidifyCall, "unsolidify_tail runs exactly once per consumer lifetime")
}

func TestBlockAnalyzer_Rollback(t *testing.T) {
	fl := &fakeLedger{}
	a := newBlockAnalyzerWithLedger(fl)
	ctx := context.Background()

	_, _ = a.Process(ctx, BlockchainUpdate{Kind: KindBlock, ID: "B1", Height: 100, TimeStamp: 1000})
	_, _ = a.Process(ctx, BlockchainUpdate{Kind: KindBlock, ID: "B2", Height: 101, TimeStamp: 1100})

	uid, err := a.Process(ctx, BlockchainUpdate{Kind: KindRollback, RollbackToID: "B1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), uid)
	assert.Len(t, fl.rows, 1)
}
