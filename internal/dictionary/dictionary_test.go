package dictionary

import "testing"

func TestDistinct(t *testing.T) {
	got := distinct([]string{"a", "b", "a", "c", "b"})
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("distinct() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("distinct() = %v, want %v", got, want)
		}
	}
}

func TestDistinct_Empty(t *testing.T) {
	if got := distinct(nil); len(got) != 0 {
		t.Fatalf("distinct(nil) = %v, want empty", got)
	}
}
