// Package utils holds small conversion helpers shared by the service and
// handler layers.
package utils

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a human decimal string ("12.5") into an integer
// amount at the given precision. Digits below the precision are rejected
// rather than silently truncated.
func ParseAmount(s string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q: negative", s)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("invalid amount %q: more than %d decimal places", s, decimals)
	}
	return scaled.BigInt(), nil
}

// FormatAmount renders an integer amount at the given precision as a human
// decimal string.
func FormatAmount(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

// ParseBigInt parses a base-10 integer string, returning zero for empty
// input. Persisted mirror columns always hold canonical base-10 strings.
func ParseBigInt(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer string %q", s)
	}
	return v, nil
}

// BigIntString renders a big integer for persistence, mapping nil to "0".
func BigIntString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
