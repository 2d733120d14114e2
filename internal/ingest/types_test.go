package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wavesplatform/balance-history/internal/amountx"
)

func TestNormalizeToken(t *testing.T) {
	assert.Equal(t, "abc", normalizeToken("  abc  "))
	assert.Equal(t, "abc", normalizeToken("ab\x00c"))
	assert.Equal(t, "", normalizeToken("\x00\x00"))
}

func TestEntriesFromUpdate(t *testing.T) {
	u := BlockchainUpdate{
		Height: 100,
		BalanceChanges: []BalanceChange{
			{Address: " A ", Asset: "", Amount: amountx.New(500)},
			{Address: "B", Asset: "X\x00", Amount: amountx.New(10)},
		},
	}
	entries := entriesFromUpdate(u, 7)
	assert.Len(t, entries, 2)
	assert.Equal(t, int64(7), entries[0].BlockUID)
	assert.Equal(t, int32(100), entries[0].Height)
	assert.Equal(t, "A", entries[0].Address)
	assert.Equal(t, "", entries[0].Asset)
	assert.Equal(t, "X", entries[1].Asset)
}
