package balance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wavesplatform/balance-history/internal/amountx"
)

func TestSaveBulk_MissingAssetMapping(t *testing.T) {
	w := New(nil)
	_, err := w.SaveBulk(context.Background(), []Entry{
		{BlockUID: 1, Height: 10, Address: "A", Asset: "UNKNOWN", Amount: amountx.New(1)},
	}, map[string]int64{}, map[string]int64{"A": 1})
	assert.Error(t, err)
}

func TestSaveBulk_MissingAddressMapping(t *testing.T) {
	w := New(nil)
	_, err := w.SaveBulk(context.Background(), []Entry{
		{BlockUID: 1, Height: 10, Address: "UNKNOWN", Asset: "", Amount: amountx.New(1)},
	}, map[string]int64{"WAVES": 1}, map[string]int64{})
	assert.Error(t, err)
}

func TestSaveBulk_Empty(t *testing.T) {
	w := New(nil)
	uids, err := w.SaveBulk(context.Background(), nil, nil, nil)
	assert.NoError(t, err)
	assert.Nil(t, uids)
}

func TestFillMaxUIDPerHeight_Empty(t *testing.T) {
	w := New(nil)
	err := w.FillMaxUIDPerHeight(context.Background(), nil)
	assert.NoError(t, err)
}
