package safeheight

import "testing"

func TestConstants(t *testing.T) {
	if SafeHeightOffset != 20 {
		t.Fatalf("SafeHeightOffset = %d, want 20", SafeHeightOffset)
	}
	if BalanceHistoryTable != "balance_history" {
		t.Fatalf("BalanceHistoryTable = %q, want balance_history", BalanceHistoryTable)
	}
}
