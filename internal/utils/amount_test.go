package utils

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("12.5", 6)
	require.NoError(t, err)
	assert.Equal(t, "12500000", v.String())

	v, err = ParseAmount("0", 18)
	require.NoError(t, err)
	assert.Equal(t, 0, v.Sign())

	v, err = ParseAmount("1", 0)
	require.NoError(t, err)
	assert.Equal(t, "1", v.String())
}

func TestParseAmountRejectsExcessPrecision(t *testing.T) {
	_, err := ParseAmount("0.1234567", 6)
	assert.Error(t, err)
}

func TestParseAmountRejectsNegative(t *testing.T) {
	_, err := ParseAmount("-1", 6)
	assert.Error(t, err)
}

func TestParseAmountRejectsGarbage(t *testing.T) {
	_, err := ParseAmount("1e", 6)
	assert.Error(t, err)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "12.5", FormatAmount(big.NewInt(12500000), 6))
	assert.Equal(t, "0", FormatAmount(nil, 6))
	assert.Equal(t, "0.000001", FormatAmount(big.NewInt(1), 6))
}

func TestParseAmountFormatRoundTrip(t *testing.T) {
	v, err := ParseAmount("104.000321", 6)
	require.NoError(t, err)
	assert.Equal(t, "104.000321", FormatAmount(v, 6))
}

func TestParseBigInt(t *testing.T) {
	v, err := ParseBigInt("")
	require.NoError(t, err)
	assert.Equal(t, 0, v.Sign())

	v, err = ParseBigInt("123456789012345678901234567890")
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678901234567890", v.String())

	_, err = ParseBigInt("0x10")
	assert.Error(t, err)
}

func TestBigIntString(t *testing.T) {
	assert.Equal(t, "0", BigIntString(nil))
	assert.Equal(t, "42", BigIntString(big.NewInt(42)))
}
