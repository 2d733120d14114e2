package upstream

import (
	"encoding/json"
	"math/big"

	"github.com/wavesplatform/balance-history/internal/amountx"
	"github.com/wavesplatform/balance-history/internal/ingest"
)

func jsonMarshal(v interface{}) ([]byte, error)          { return json.Marshal(v) }
func jsonUnmarshal(data []byte, v interface{}) error     { return json.Unmarshal(data, v) }

// subscribeEnvelope is the JSON-codec wire shape of a SubscribeEvent: one
// update, either an Append (block or microblock body plus balance deltas)
// or a Rollback.
type subscribeEnvelope struct {
	Height int32            `json:"height"`
	Append *appendEnvelope  `json:"append,omitempty"`
	Rollback *rollbackEnvelope `json:"rollback,omitempty"`
}

type appendEnvelope struct {
	Block      *blockBody `json:"block,omitempty"`
	MicroBlock *microBlockBody `json:"micro_block,omitempty"`
	Balances   []balanceDelta `json:"balances"`
}

type blockBody struct {
	ID        string `json:"id"`
	Reference string `json:"reference"`
	TimeStamp int64  `json:"timestamp"`
}

type microBlockBody struct {
	TotalBlockID string `json:"total_block_id"`
}

type rollbackEnvelope struct {
	ID       string         `json:"id"`
	Balances []balanceDelta `json:"balances"`
}

type balanceDelta struct {
	Address string `json:"address"`
	Asset   string `json:"asset_id"`
	Amount  string `json:"amount"`
}

func (d balanceDelta) toChange() ingest.BalanceChange {
	b, ok := new(big.Int).SetString(d.Amount, 10)
	if !ok {
		b = big.NewInt(0)
	}
	amount, err := amountx.NewFromBigInt(b)
	if err != nil {
		amount = amountx.Zero
	}
	return ingest.BalanceChange{Address: d.Address, Asset: d.Asset, Amount: amount}
}

func (e subscribeEnvelope) toUpdate() ingest.BlockchainUpdate {
	switch {
	case e.Append != nil && e.Append.Block != nil:
		changes := make([]ingest.BalanceChange, len(e.Append.Balances))
		for i, b := range e.Append.Balances {
			changes[i] = b.toChange()
		}
		return ingest.BlockchainUpdate{
			Kind:           ingest.KindBlock,
			Height:         e.Height,
			ID:             e.Append.Block.ID,
			ReferenceID:    e.Append.Block.Reference,
			TimeStamp:      e.Append.Block.TimeStamp,
			BalanceChanges: changes,
		}
	case e.Append != nil && e.Append.MicroBlock != nil:
		changes := make([]ingest.BalanceChange, len(e.Append.Balances))
		for i, b := range e.Append.Balances {
			changes[i] = b.toChange()
		}
		return ingest.BlockchainUpdate{
			Kind:           ingest.KindMicroBlock,
			Height:         e.Height,
			ID:             e.Append.MicroBlock.TotalBlockID,
			BalanceChanges: changes,
		}
	case e.Rollback != nil:
		changes := make([]ingest.BalanceChange, len(e.Rollback.Balances))
		for i, b := range e.Rollback.Balances {
			changes[i] = b.toChange()
		}
		return ingest.BlockchainUpdate{
			Kind:           ingest.KindRollback,
			Height:         e.Height,
			RollbackToID:   e.Rollback.ID,
			BalanceChanges: changes,
		}
	default:
		return ingest.BlockchainUpdate{Height: e.Height}
	}
}
