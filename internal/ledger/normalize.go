package ledger

import "math/big"

// NormalizedDecimals is the canonical fixed-point precision of the ledger.
// Every amount the ledger stores or compares is expressed at this scale.
const NormalizedDecimals = 18

var bigTen = big.NewInt(10)

// scaleFactor returns 10^(18-decimals).
func scaleFactor(decimals uint8) *big.Int {
	return new(big.Int).Exp(bigTen, big.NewInt(int64(NormalizedDecimals-decimals)), nil)
}

// Normalize converts an amount expressed in the asset's native precision to
// the canonical 18-decimal fixed-point unit.
func Normalize(amount *big.Int, decimals uint8) (*big.Int, error) {
	if decimals > NormalizedDecimals {
		return nil, ErrDecimalsTooHigh
	}
	if decimals == NormalizedDecimals {
		return new(big.Int).Set(amount), nil
	}
	return new(big.Int).Mul(amount, scaleFactor(decimals)), nil
}

// Denormalize converts a canonical 18-decimal amount back to the asset's
// native precision. Precision below the native scale is truncated, never
// rounded up: a gateway must not pay out more than the ledger accounted for.
func Denormalize(amount *big.Int, decimals uint8) (*big.Int, error) {
	if decimals > NormalizedDecimals {
		return nil, ErrDecimalsTooHigh
	}
	if decimals == NormalizedDecimals {
		return new(big.Int).Set(amount), nil
	}
	return new(big.Int).Quo(amount, scaleFactor(decimals)), nil
}
