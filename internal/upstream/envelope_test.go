package upstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavesplatform/balance-history/internal/ingest"
)

func TestEnvelope_BlockRoundTrip(t *testing.T) {
	raw := []byte(`{
		"height": 100,
		"append": {
			"block": {"id": "B1", "reference": "B0", "timestamp": 1000},
			"balances": [{"address": "A", "asset_id": "", "amount": "500"}]
		}
	}`)

	var env subscribeEnvelope
	require.NoError(t, jsonUnmarshal(raw, &env))

	u := env.toUpdate()
	assert.Equal(t, ingest.KindBlock, u.Kind)
	assert.Equal(t, "B1", u.ID)
	assert.Equal(t, int32(100), u.Height)
	require.Len(t, u.BalanceChanges, 1)
	assert.Equal(t, "500", u.BalanceChanges[0].Amount.String())
}

func TestEnvelope_MicroBlock(t *testing.T) {
	raw := []byte(`{
		"height": 101,
		"append": {
			"micro_block": {"total_block_id": "M1"},
			"balances": [{"address": "A", "asset_id": "WAVES", "amount": "600"}]
		}
	}`)

	var env subscribeEnvelope
	require.NoError(t, jsonUnmarshal(raw, &env))

	u := env.toUpdate()
	assert.Equal(t, ingest.KindMicroBlock, u.Kind)
	assert.Equal(t, "M1", u.ID)
}

func TestEnvelope_Rollback(t *testing.T) {
	raw := []byte(`{"height": 100, "rollback": {"id": "B1", "balances": []}}`)

	var env subscribeEnvelope
	require.NoError(t, jsonUnmarshal(raw, &env))

	u := env.toUpdate()
	assert.Equal(t, ingest.KindRollback, u.Kind)
	assert.Equal(t, "B1", u.RollbackToID)
}
