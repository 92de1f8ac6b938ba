package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits carried by every amount.
const Scale = 2

// MaxAmount mirrors the decimal(10,2) column of the student records schema:
// eight integer digits and two fractional digits, in minor units.
const MaxAmount Amount = 99_999_999_99

// ErrInvalidAmount indicates an amount that is not a positive fixed-point
// value with at most two fractional digits.
var ErrInvalidAmount = errors.New("invalid amount")

// Amount is a monetary value in minor units (hundredths). Balances and
// transaction amounts never touch binary floating point.
type Amount int64

// Parse converts a decimal value into an Amount, rejecting zero, negative,
// over-scaled and out-of-range values.
func Parse(d decimal.Decimal) (Amount, error) {
	minor := d.Shift(Scale)
	if !minor.IsInteger() {
		return 0, fmt.Errorf("%w: more than %d fractional digits", ErrInvalidAmount, Scale)
	}
	if d.Sign() <= 0 {
		return 0, fmt.Errorf("%w: must be positive", ErrInvalidAmount)
	}
	units := minor.IntPart()
	if !minor.Equal(decimal.NewFromInt(units)) || Amount(units) > MaxAmount {
		return 0, fmt.Errorf("%w: exceeds maximum", ErrInvalidAmount)
	}
	return Amount(units), nil
}

// ParseString parses a textual decimal amount.
func ParseString(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidAmount, s)
	}
	return Parse(d)
}

// Decimal returns the amount as a two-digit-scale decimal.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -Scale)
}

// String formats the amount with exactly two fractional digits.
func (a Amount) String() string {
	return a.Decimal().StringFixed(Scale)
}
