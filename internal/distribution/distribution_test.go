package distribution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotTableName(t *testing.T) {
	assert.Equal(t, "task_uid_1_100", SnapshotTableName(1, 100))
}

func TestCreate_RejectsHeightTooClose(t *testing.T) {
	e := New(nil, "asset_distribution", "reader")

	// tip=100, height=85: 100-85=15 < 21 -> rejected
	_, err := e.Create(context.Background(), "X", 85, 100)
	assert.ErrorIs(t, err, ErrHeightTooRecent)
}

func TestCreate_AdmitsAtExactBoundary(t *testing.T) {
	// tip=100, height=79: 100-79=21 >= 21 -> would be admitted (boundary
	// only; DB call itself is not exercised here since db is nil).
	e := New(nil, "asset_distribution", "reader")
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic dereferencing nil db past the admission check")
		}
	}()
	_, _ = e.Create(context.Background(), "X", 79, 100)
}
