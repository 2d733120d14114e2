// Package amountx holds the arbitrary-precision balance value used
// throughout the indexer. It is adapted from Carmen's common/amount
// package: same uint256-backed representation and constructor set, plus
// conversions to the big.Int-based column type bun's Postgres driver
// expects for NUMERIC(100,0) columns.
package amountx

import (
	"database/sql/driver"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/uptrace/bun/extra/bunbig"
)

// Amount is an unsigned 256-bit integer used for balance values. Waves
// balances (and asset supplies) never go negative; deltas are folded into
// an absolute "amount after" balance before this type is ever constructed.
type Amount struct {
	internal uint256.Int
}

// Zero is the additive identity.
var Zero = Amount{}

// New creates an Amount from up to 4 uint64 limbs in big-endian order.
func New(args ...uint64) Amount {
	if len(args) > 4 {
		panic("too many arguments")
	}
	result := Amount{}
	offset := 4 - len(args)
	for i := 0; i < len(args); i++ {
		result.internal[3-i-offset] = args[i]
	}
	return result
}

// NewFromInt64 creates an Amount from a signed 64-bit value. It panics if
// value is negative: the wire protocol never emits negative balances.
func NewFromInt64(value int64) Amount {
	if value < 0 {
		panic("amount cannot be negative")
	}
	return New(uint64(value))
}

// NewFromBigInt creates an Amount from a big.Int, rejecting negative or
// oversized (> 256 bit) values.
func NewFromBigInt(b *big.Int) (Amount, error) {
	if b == nil {
		return Amount{}, nil
	}
	if b.Sign() < 0 {
		return Amount{}, fmt.Errorf("amountx: cannot construct Amount from negative big.Int")
	}
	result := uint256.Int{}
	if result.SetFromBig(b) {
		return Amount{}, fmt.Errorf("amountx: big.Int exceeds 256 bits")
	}
	return Amount{internal: result}, nil
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool {
	return a.internal.IsZero()
}

// Sign returns -1, 0 or 1. Amount is always >= 0, so this is 0 or 1.
func (a Amount) Sign() int {
	if a.IsZero() {
		return 0
	}
	return 1
}

// Cmp compares two amounts the way big.Int.Cmp does.
func (a Amount) Cmp(b Amount) int {
	return a.internal.Cmp(&b.internal)
}

// ToBig returns the big.Int representation of the amount.
func (a Amount) ToBig() *big.Int {
	return a.internal.ToBig()
}

// String renders the amount in decimal.
func (a Amount) String() string {
	return a.internal.String()
}

// ToBunBig converts the amount to the numeric column type bun maps onto
// Postgres' NUMERIC(100,0).
func (a Amount) ToBunBig() *bunbig.Int {
	return bunbig.FromMathBig(a.ToBig())
}

// FromBunBig converts a numeric column value back into an Amount.
func FromBunBig(v *bunbig.Int) (Amount, error) {
	if v == nil {
		return Amount{}, nil
	}
	return NewFromBigInt(v.Int)
}

// Add returns the sum of two amounts.
func Add(a, b Amount) Amount {
	result := Amount{}
	result.internal.Add(&a.internal, &b.internal)
	return result
}

// Sub returns the difference of two amounts.
func Sub(a, b Amount) Amount {
	result := Amount{}
	result.internal.Sub(&a.internal, &b.internal)
	return result
}

// Value implements database/sql/driver.Valuer so an Amount can be used
// directly as a query parameter (encoded as its decimal string form).
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

// Scan implements sql.Scanner so an Amount can be read directly out of a
// NUMERIC(100,0) column.
func (a *Amount) Scan(src interface{}) error {
	if src == nil {
		*a = Amount{}
		return nil
	}

	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("amountx: cannot scan %T into Amount", src)
	}

	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fmt.Errorf("amountx: invalid decimal amount %q", s)
	}
	result, err := NewFromBigInt(b)
	if err != nil {
		return err
	}
	*a = result
	return nil
}
