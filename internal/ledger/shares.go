package ledger

import "math/big"

// WadScale is 10^18, the fixed-point unit used for price-per-share math.
var WadScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// PreviewMint returns the shares minted for a normalized deposit amount.
// On an empty vault (zero supply or zero managed assets) the price is
// bootstrapped 1:1; otherwise shares = floor(amount * supply / managed).
func PreviewMint(amount, supply, managed *big.Int) (*big.Int, error) {
	if amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	if supply.Sign() == 0 || managed.Sign() == 0 {
		return new(big.Int).Set(amount), nil
	}
	shares := new(big.Int).Mul(amount, supply)
	shares.Quo(shares, managed)
	if shares.Sign() == 0 {
		return nil, ErrZeroShares
	}
	return shares, nil
}

// PreviewLock returns the shares that must be locked to guarantee a payout
// of the given normalized amount. The division rounds up so the vault never
// promises more assets per locked share than the current price; the caller
// must reject the empty-vault state beforehand.
func PreviewLock(amount, supply, managed *big.Int) (*big.Int, error) {
	if amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	if managed.Sign() == 0 {
		return nil, ErrVaultEmpty
	}
	if supply.Sign() == 0 {
		return new(big.Int).Set(amount), nil
	}
	// ceil(amount * supply / managed)
	shares := new(big.Int).Mul(amount, supply)
	shares.Add(shares, new(big.Int).Sub(managed, big.NewInt(1)))
	shares.Quo(shares, managed)
	return shares, nil
}

// ConvertToAssetsFloor returns the normalized asset value of a share count,
// rounded down. The symmetric rounding rule protects the vault on
// share-denominated withdrawal requests.
func ConvertToAssetsFloor(shares, supply, managed *big.Int) (*big.Int, error) {
	if shares.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	if supply.Sign() == 0 || managed.Sign() == 0 {
		return nil, ErrVaultEmpty
	}
	amount := new(big.Int).Mul(shares, managed)
	amount.Quo(amount, supply)
	return amount, nil
}

// PricePerShare returns managed * 1e18 / supply, or zero for an empty vault.
func PricePerShare(supply, managed *big.Int) *big.Int {
	if supply.Sign() == 0 {
		return new(big.Int)
	}
	pps := new(big.Int).Mul(managed, WadScale)
	return pps.Quo(pps, supply)
}
