package ledger

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var feeRecipient = common.HexToAddress("0x00000000000000000000000000000000000000fe")

func TestAssessFeeShortCircuits(t *testing.T) {
	cfg := FeeConfig{RateBps: 1000, Recipient: feeRecipient}

	// Non-positive profit.
	out := AssessPerformanceFee(new(big.Int), wad(1000), wad(1000), wad(1), cfg)
	assert.Zero(t, out.FeeShares.Sign())
	assert.Equal(t, wad(1), out.HighWaterMark)

	// Zero rate.
	out = AssessPerformanceFee(wad(100), wad(1100), wad(1000), wad(1), FeeConfig{Recipient: feeRecipient})
	assert.Zero(t, out.FeeShares.Sign())

	// Zero recipient.
	out = AssessPerformanceFee(wad(100), wad(1100), wad(1000), wad(1), FeeConfig{RateBps: 1000})
	assert.Zero(t, out.FeeShares.Sign())

	// Zero supply.
	out = AssessPerformanceFee(wad(100), wad(100), new(big.Int), new(big.Int), cfg)
	assert.Zero(t, out.FeeShares.Sign())
}

func TestAssessFeeAboveMark(t *testing.T) {
	// supply 1000, managed 1500 after +500 profit, mark at 1.0, 10% fee.
	cfg := FeeConfig{RateBps: 1000, Recipient: feeRecipient}
	out := AssessPerformanceFee(wad(500), wad(1500), wad(1000), wad(1), cfg)

	// Taxable profit is the full 500; fee value 50; converted at current
	// price: 50 * 1000 / 1500 shares.
	assert.Equal(t, wad(50), out.FeeAmount)
	expectedShares, _ := new(big.Int).SetString("33333333333333333333", 10)
	assert.Equal(t, expectedShares, out.FeeShares)

	// Mark advances to the current price of 1.5.
	expectedMark, _ := new(big.Int).SetString("1500000000000000000", 10)
	assert.Equal(t, expectedMark, out.HighWaterMark)
}

func TestAssessFeeOnlyTaxesGainAboveMark(t *testing.T) {
	// Mark at 1.2: only the price move from 1.2 to 1.5 is taxable even
	// though the pre-profit price was 1.0.
	cfg := FeeConfig{RateBps: 1000, Recipient: feeRecipient}
	out := AssessPerformanceFee(wad(500), wad(1500), wad(1000), big.NewInt(12e17), cfg)

	// taxableProfit = 0.3 * 1000 = 300; fee = 30.
	assert.Equal(t, wad(30), out.FeeAmount)
}

func TestAssessFeeBelowMarkIsFree(t *testing.T) {
	// Recovery below the mark charges nothing and keeps the mark.
	cfg := FeeConfig{RateBps: 1000, Recipient: feeRecipient}
	out := AssessPerformanceFee(wad(500), wad(1500), wad(1000), wad(2), cfg)
	assert.Zero(t, out.FeeShares.Sign())
	assert.Equal(t, wad(2), out.HighWaterMark)
}

func TestAssessFeeMarkBootstrapAfterReset(t *testing.T) {
	// A zeroed mark bootstraps from the pre-profit price, so only this
	// report's gain is taxable.
	cfg := FeeConfig{RateBps: 1000, Recipient: feeRecipient}
	out := AssessPerformanceFee(wad(500), wad(1500), wad(1000), new(big.Int), cfg)
	require.Equal(t, wad(50), out.FeeAmount)

	// Untaxed gains accrued before the reset stay free: with the price
	// already at 1.5 pre-profit, only the 1.5 -> 2.0 move is taxable.
	out = AssessPerformanceFee(wad(500), wad(2000), wad(1000), new(big.Int), cfg)
	assert.Equal(t, wad(50), out.FeeAmount)
	assert.Equal(t, wad(2), out.HighWaterMark)
}
