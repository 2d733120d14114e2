package ledger

import "testing"

func TestEncodeDeleted(t *testing.T) {
	got := encodeDeleted([]Block{{ID: "A"}, {ID: "B"}, {ID: "C"}})
	want := "A,B,C"
	if got != want {
		t.Fatalf("encodeDeleted() = %q, want %q", got, want)
	}
}

func TestEncodeDeleted_Empty(t *testing.T) {
	if got := encodeDeleted(nil); got != "" {
		t.Fatalf("encodeDeleted(nil) = %q, want empty", got)
	}
}
