package ledger

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wad(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), WadScale)
}

func TestNormalizeScalesUpToEighteenDecimals(t *testing.T) {
	// 1000 units of a 6-decimal asset
	amount := big.NewInt(1000_000000)
	normalized, err := Normalize(amount, 6)
	require.NoError(t, err)
	assert.Equal(t, wad(1000), normalized)
}

func TestNormalizeIdentityAtEighteenDecimals(t *testing.T) {
	amount := wad(42)
	normalized, err := Normalize(amount, 18)
	require.NoError(t, err)
	assert.Equal(t, amount, normalized)
	assert.NotSame(t, amount, normalized)
}

func TestNormalizeRejectsDecimalsAboveEighteen(t *testing.T) {
	_, err := Normalize(big.NewInt(1), 19)
	assert.ErrorIs(t, err, ErrDecimalsTooHigh)
	_, err = Denormalize(big.NewInt(1), 24)
	assert.ErrorIs(t, err, ErrDecimalsTooHigh)
}

func TestDenormalizeRoundTrip(t *testing.T) {
	for _, decimals := range []uint8{0, 2, 6, 8, 12, 18} {
		amount := big.NewInt(123456789)
		normalized, err := Normalize(amount, decimals)
		require.NoError(t, err)
		back, err := Denormalize(normalized, decimals)
		require.NoError(t, err)
		assert.Equal(t, amount, back, "decimals=%d", decimals)
	}
}

func TestDenormalizeTruncatesBelowNativeScale(t *testing.T) {
	// 66.666666666666666667 at 18 decimals, paid out in 6 decimals:
	// everything below 1e-6 is truncated, never rounded up.
	normalized, ok := new(big.Int).SetString("66666666666666666667", 10)
	require.True(t, ok)
	native, err := Denormalize(normalized, 6)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(66_666666), native)
}
