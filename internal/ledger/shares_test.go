package ledger

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreviewMintBootstrapsOneToOne(t *testing.T) {
	shares, err := PreviewMint(wad(1000), new(big.Int), new(big.Int))
	require.NoError(t, err)
	assert.Equal(t, wad(1000), shares)

	// Zero managed with nonzero supply still bootstraps.
	shares, err = PreviewMint(wad(7), wad(100), new(big.Int))
	require.NoError(t, err)
	assert.Equal(t, wad(7), shares)
}

func TestPreviewMintFloorsAtCurrentPrice(t *testing.T) {
	// Price 1.5: depositing 300 mints 200 shares.
	shares, err := PreviewMint(wad(300), wad(1000), wad(1500))
	require.NoError(t, err)
	assert.Equal(t, wad(200), shares)
}

func TestPreviewMintRejectsZeroResult(t *testing.T) {
	// One normalized unit at an absurd price floors to zero shares.
	_, err := PreviewMint(big.NewInt(1), big.NewInt(1), wad(1000))
	assert.ErrorIs(t, err, ErrZeroShares)

	_, err = PreviewMint(new(big.Int), wad(1), wad(1))
	assert.ErrorIs(t, err, ErrZeroAmount)
}

func TestPreviewLockRoundsUp(t *testing.T) {
	// Price 1.5: locking for a 100 payout needs ceil(66.66..) shares.
	shares, err := PreviewLock(wad(100), wad(1000), wad(1500))
	require.NoError(t, err)
	expected, _ := new(big.Int).SetString("66666666666666666667", 10)
	assert.Equal(t, expected, shares)

	// An exact division does not round.
	shares, err = PreviewLock(wad(300), wad(1000), wad(1500))
	require.NoError(t, err)
	assert.Equal(t, wad(200), shares)
}

func TestPreviewLockRejectsEmptyVault(t *testing.T) {
	_, err := PreviewLock(wad(1), wad(10), new(big.Int))
	assert.ErrorIs(t, err, ErrVaultEmpty)
}

func TestPreviewLockBootstrapSupply(t *testing.T) {
	shares, err := PreviewLock(wad(5), new(big.Int), wad(10))
	require.NoError(t, err)
	assert.Equal(t, wad(5), shares)
}

func TestConvertToAssetsFloor(t *testing.T) {
	amount, err := ConvertToAssetsFloor(wad(200), wad(1000), wad(1500))
	require.NoError(t, err)
	assert.Equal(t, wad(300), amount)

	// Floor protects the vault: 1 share at price 2/3 pays 0.66.. truncated.
	amount, err = ConvertToAssetsFloor(big.NewInt(3), wad(3), wad(2))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(2), amount)

	_, err = ConvertToAssetsFloor(wad(1), new(big.Int), new(big.Int))
	assert.ErrorIs(t, err, ErrVaultEmpty)
}

func TestProportionalDepositKeepsPrice(t *testing.T) {
	supply := wad(1000)
	managed := wad(1500)
	before := PricePerShare(supply, managed)

	amount := wad(150) // a tenth of managed
	shares, err := PreviewMint(amount, supply, managed)
	require.NoError(t, err)

	after := PricePerShare(new(big.Int).Add(supply, shares), new(big.Int).Add(managed, amount))
	diff := new(big.Int).Sub(before, after)
	assert.True(t, diff.CmpAbs(big.NewInt(1)) <= 0, "price moved by %s", diff)
}

func TestPricePerShareEmptySupply(t *testing.T) {
	assert.Equal(t, new(big.Int), PricePerShare(new(big.Int), wad(5)))
}
