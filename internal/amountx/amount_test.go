package amountx

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		args []uint64
		want string
	}{
		{"no arguments", []uint64{}, "0"},
		{"one argument", []uint64{1}, "1"},
		{"two arguments", []uint64{1, 2}, "18446744073709551618"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, New(test.args...).String())
		})
	}
}

func TestNewFromInt64_PanicsOnNegative(t *testing.T) {
	assert.Panics(t, func() { NewFromInt64(-1) })
}

func TestNewFromBigInt_RejectsNegative(t *testing.T) {
	_, err := NewFromBigInt(big.NewInt(-5))
	require.Error(t, err)
}

func TestAddSub_RoundTrip(t *testing.T) {
	a := New(500)
	b := New(200)
	sum := Add(a, b)
	assert.Equal(t, "700", sum.String())
	assert.Equal(t, "500", Sub(sum, b).String())
}

func TestBunBig_RoundTrip(t *testing.T) {
	a := New(123456789)
	back, err := FromBunBig(a.ToBunBig())
	require.NoError(t, err)
	assert.Equal(t, 0, a.Cmp(back))
}

func TestIsZero(t *testing.T) {
	assert.True(t, Zero.IsZero())
	assert.False(t, New(1).IsZero())
}

func TestScan_RoundTrip(t *testing.T) {
	var a Amount
	require.NoError(t, a.Scan("123456789012345678901234567890"))
	assert.Equal(t, "123456789012345678901234567890", a.String())

	var b Amount
	require.NoError(t, b.Scan([]byte("42")))
	assert.Equal(t, "42", b.String())

	var zero Amount
	require.NoError(t, zero.Scan(nil))
	assert.True(t, zero.IsZero())
}

func TestScan_RejectsGarbage(t *testing.T) {
	var a Amount
	require.Error(t, a.Scan("not-a-number"))
}
