package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/wavesplatform/balance-history/internal/ledger"
)

// These exercise the block analyzer's error paths: a gomock-backed ledger
// is a better fit than the stateful fake for asserting an exact call was
// made and then injecting its failure, without also having to reimplement
// the failing state transition in the fake.

func TestBlockAnalyzer_AppendErrorPropagates(t *testing.T) {
	ctrl := gomock.NewController(t)
	ml := NewMockblockLedger(ctrl)
	ml.EXPECT().
		Append(gomock.Any(), ledger.TypeBlock, "B1", int32(100), int64(1000), true).
		Return(int64(0), assert.AnError)

	a := newBlockAnalyzerWithLedger(ml)
	_, err := a.Process(context.Background(), BlockchainUpdate{Kind: KindBlock, ID: "B1", Height: 100, TimeStamp: 1000})

	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestBlockAnalyzer_UnsolidifyTailErrorPropagates(t *testing.T) {
	ctrl := gomock.NewController(t)
	ml := NewMockblockLedger(ctrl)
	ml.EXPECT().UnsolidifyTail(gomock.Any()).Return(assert.AnError)

	a := newBlockAnalyzerWithLedger(ml)
	_, err := a.Process(context.Background(), BlockchainUpdate{Kind: KindMicroBlock, ID: "M1", Height: 100})

	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestBlockAnalyzer_SolidifyErrorPropagates(t *testing.T) {
	ctrl := gomock.NewController(t)
	ml := NewMockblockLedger(ctrl)
	ml.EXPECT().
		Solidify(gomock.Any(), "M1", "B2", int32(101), int64(1100)).
		Return(ledger.SolidifyResult{}, false, assert.AnError)

	a := newBlockAnalyzerWithLedger(ml)
	a.wasMicroblocks = true

	_, err := a.Process(context.Background(), BlockchainUpdate{Kind: KindBlock, ID: "B2", ReferenceID: "M1", Height: 101, TimeStamp: 1100})

	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, a.wasMicroblocks, "wasMicroblocks clears even when solidify fails")
}

func TestBlockAnalyzer_RollbackErrorPropagates(t *testing.T) {
	ctrl := gomock.NewController(t)
	ml := NewMockblockLedger(ctrl)
	ml.EXPECT().Rollback(gomock.Any(), "B1").Return(int64(0), assert.AnError)

	a := newBlockAnalyzerWithLedger(ml)
	_, err := a.Process(context.Background(), BlockchainUpdate{Kind: KindRollback, RollbackToID: "B1"})

	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}
