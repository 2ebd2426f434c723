package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// MaxFeeBps caps the configurable performance fee rate at 50%.
const MaxFeeBps = 5000

const bpsDenominator = 10000

// FeeConfig is the performance fee configuration supplied by the config
// collaborator.
type FeeConfig struct {
	RateBps   uint32
	Recipient common.Address
}

// FeeAssessment is the outcome of running the performance fee engine over a
// reported profit.
type FeeAssessment struct {
	// FeeShares is the share count to mint to the fee recipient. Zero means
	// no fee is due.
	FeeShares *big.Int
	// FeeAmount is the normalized asset value the fee shares represent at
	// the pre-dilution price.
	FeeAmount *big.Int
	// HighWaterMark is the mark after assessment. It only moves up, except
	// through an explicit administrative reset handled outside this engine.
	HighWaterMark *big.Int
}

// AssessPerformanceFee computes the fee shares owed on a reported profit.
//
// managed is the managed-assets value with the profit already folded in;
// profit is the delta that was folded in. The engine charges the configured
// rate only on the part of the price gain above both the pre-profit price and
// the high-water-mark, then converts that fee value into shares at the
// current price. A zero rate, zero recipient, or non-positive profit is a
// no-op that leaves the mark unchanged.
func AssessPerformanceFee(profit, managed, supply, highWaterMark *big.Int, cfg FeeConfig) FeeAssessment {
	noFee := FeeAssessment{
		FeeShares:     new(big.Int),
		FeeAmount:     new(big.Int),
		HighWaterMark: new(big.Int).Set(highWaterMark),
	}
	if profit.Sign() <= 0 || cfg.RateBps == 0 || cfg.Recipient == (common.Address{}) {
		return noFee
	}
	if supply.Sign() == 0 {
		return noFee
	}

	currentPrice := PricePerShare(supply, managed)
	priceBeforeProfit := PricePerShare(supply, new(big.Int).Sub(managed, profit))

	hwm := new(big.Int).Set(highWaterMark)
	if hwm.Sign() == 0 {
		// Recovery bootstrap after an administrative mark reset: treat the
		// pre-profit price as the mark so only this report's gain is taxable.
		hwm.Set(priceBeforeProfit)
	}
	if currentPrice.Cmp(hwm) <= 0 {
		noFee.HighWaterMark = hwm
		return noFee
	}

	taxableBase := hwm
	if priceBeforeProfit.Cmp(taxableBase) > 0 {
		taxableBase = priceBeforeProfit
	}

	taxableProfit := new(big.Int).Sub(currentPrice, taxableBase)
	taxableProfit.Mul(taxableProfit, supply)
	taxableProfit.Quo(taxableProfit, WadScale)

	feeAmount := new(big.Int).Mul(taxableProfit, big.NewInt(int64(cfg.RateBps)))
	feeAmount.Quo(feeAmount, big.NewInt(bpsDenominator))

	feeShares := new(big.Int).Mul(feeAmount, supply)
	feeShares.Quo(feeShares, managed)

	return FeeAssessment{
		FeeShares:     feeShares,
		FeeAmount:     feeAmount,
		HighWaterMark: currentPrice,
	}
}
