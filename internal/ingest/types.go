// Package ingest hosts the two stream-driven consumers: the block analyzer
// (C6), which drives the block ledger, and the balance analyzer (C7), which
// batches and flushes balance-history writes. Both are fed, in order, by a
// supervisor reading the upstream update stream.
package ingest

import (
	"strings"

	"github.com/wavesplatform/balance-history/internal/amountx"
)

// UpdateKind distinguishes the three shapes an upstream update can take.
type UpdateKind int

const (
	KindBlock UpdateKind = iota
	KindMicroBlock
	KindRollback
)

// BalanceChange is one raw (address, asset, amount-after) triple taken from
// an update's state_update or a transaction's state update.
type BalanceChange struct {
	Address string
	Asset   string
	Amount  amountx.Amount
}

// BlockchainUpdate is the normalized shape of a single upstream
// SubscribeEvent, already split out of whatever the transport layer
// decoded off the wire.
type BlockchainUpdate struct {
	Kind   UpdateKind
	Height int32

	// Block / MicroBlock fields.
	ID              string // block id, or microblock's total_block_id
	ReferenceID     string // reference_block_id from a Block header: the id it extends
	TimeStamp       int64
	BalanceChanges  []BalanceChange

	// Rollback fields.
	RollbackToID string
}

// BalanceEntry is a normalized update ready to be buffered by the balance
// analyzer, tagged with the block_uid the block analyzer assigned to its
// parent update.
type BalanceEntry struct {
	BlockUID int64
	Height   int32
	Address  string
	Asset    string
	Amount   amountx.Amount
}

// normalizeToken trims whitespace and strips embedded NUL bytes, the same
// cleanup the original applied to addresses and asset ids before using them
// as dictionary keys.
func normalizeToken(s string) string {
	s = strings.TrimSpace(s)
	if !strings.ContainsRune(s, 0) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == 0 {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// entriesFromUpdate converts an update's balance changes into tagged
// entries once the block analyzer has assigned blockUID.
func entriesFromUpdate(u BlockchainUpdate, blockUID int64) []BalanceEntry {
	entries := make([]BalanceEntry, 0, len(u.BalanceChanges))
	for _, c := range u.BalanceChanges {
		entries = append(entries, BalanceEntry{
			BlockUID: blockUID,
			Height:   u.Height,
			Address:  normalizeToken(c.Address),
			Asset:    normalizeToken(c.Asset),
			Amount:   c.Amount,
		})
	}
	return entries
}
