// Package amount converts merchant decimal amounts to and from the integer
// minor-unit representation used by the ledger and by advertised values.
package amount

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// NativeDecimals is the minor-unit exponent of the ledger's native asset (lovelace).
const NativeDecimals = 6

// MaxDecimals is the largest exponent whose scale, 10^18, still fits in int64.
const MaxDecimals = 18

var (
	ErrNegativeDecimals = errors.New("decimals must be >= 0")
	ErrDecimalsRange    = fmt.Errorf("decimals must be <= %d", MaxDecimals)
	ErrNegativeAmount   = errors.New("amount must be >= 0")
	ErrOverflow         = errors.New("amount does not fit in int64 minor units")
)

// CheckDecimals reports whether decimals is a usable minor-unit exponent.
func CheckDecimals(decimals int) error {
	switch {
	case decimals < 0:
		return ErrNegativeDecimals
	case decimals > MaxDecimals:
		return ErrDecimalsRange
	}
	return nil
}

// Encode returns amount × 10^decimals with any remaining fraction truncated
// toward zero, e.g. Encode(2.5, 2) == 250.
func Encode(amount decimal.Decimal, decimals int) (int64, error) {
	if err := CheckDecimals(decimals); err != nil {
		return 0, fmt.Errorf("encode %s: %w", amount, err)
	}
	if amount.IsNegative() {
		return 0, fmt.Errorf("encode %s: %w", amount, ErrNegativeAmount)
	}
	minor := amount.Shift(int32(decimals)).Truncate(0)
	bi := minor.BigInt()
	if !bi.IsInt64() {
		return 0, fmt.Errorf("encode %s with %d decimals: %w", amount, decimals, ErrOverflow)
	}
	return bi.Int64(), nil
}

// Decode is the inverse of Encode for reporting: minor / 10^decimals.
func Decode(minor int64, decimals int) (decimal.Decimal, error) {
	if err := CheckDecimals(decimals); err != nil {
		return decimal.Zero, fmt.Errorf("decode %d: %w", minor, err)
	}
	return decimal.New(minor, -int32(decimals)), nil
}

// Format renders the value advertised for a merchant amount: the encoded
// minor units when decimals is set, the plain decimal otherwise.
func Format(amount decimal.Decimal, decimals *int) (string, error) {
	if decimals == nil {
		return amount.String(), nil
	}
	minor, err := Encode(amount, *decimals)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", minor), nil
}
