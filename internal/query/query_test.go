package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaxBigIntIsSentinel(t *testing.T) {
	assert.Equal(t, int64(1<<63-1), MaxBigInt)
}

func TestBalancesByPairs_RejectsOverLimit(t *testing.T) {
	s := New(nil, nil)
	pairs := make([]Pair, MaxPairs+1)
	_, err := s.BalancesByPairs(nil, MaxBigInt, pairs) //nolint:staticcheck // nil ctx: validation short-circuits before any db use
	assert.ErrorIs(t, err, ErrTooManyPairs)
}

func TestBalancesByPairs_AtLimitDoesNotRejectEarly(t *testing.T) {
	s := New(nil, nil)
	pairs := make([]Pair, MaxPairs)
	assert.Len(t, pairs, MaxPairs)

	// Past the limit check the call reaches the dictionary lookup, which
	// fails on the nil db; either way it must not be ErrTooManyPairs.
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = nil
			}
		}()
		_, err = s.BalancesByPairs(context.Background(), MaxBigInt, pairs)
		return err
	}()
	assert.NotErrorIs(t, err, ErrTooManyPairs)
}
