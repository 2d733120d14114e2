package recovery

import "testing"

func TestStartHeight_PrefersConfiguredWhenAhead(t *testing.T) {
	if got := StartHeight(500, 100); got != 500 {
		t.Fatalf("StartHeight() = %d, want 500", got)
	}
}

func TestStartHeight_PrefersTipSuccessorWhenAhead(t *testing.T) {
	if got := StartHeight(1, 100); got != 101 {
		t.Fatalf("StartHeight() = %d, want 101", got)
	}
}

func TestStartHeight_EmptyLedger(t *testing.T) {
	if got := StartHeight(1, 0); got != 1 {
		t.Fatalf("StartHeight() = %d, want 1", got)
	}
}
