package ledger

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	yieldVault  = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	otherVault  = common.HexToAddress("0x00000000000000000000000000000000000000e2")
	strangeCoin = common.HexToAddress("0x00000000000000000000000000000000000000e3")
)

type stubVaultPolicy struct{ allowed map[common.Address]bool }

func (p *stubVaultPolicy) IsVaultAllowed(v common.Address) bool { return p.allowed[v] }

// stubVaultClient values shares 1:1 with deposited assets.
type stubVaultClient struct {
	underlying map[common.Address]common.Address
}

func (c *stubVaultClient) UnderlyingAsset(_ context.Context, v common.Address) (common.Address, error) {
	return c.underlying[v], nil
}

func (c *stubVaultClient) Deposit(_ context.Context, _ common.Address, amount *big.Int) (*big.Int, error) {
	return new(big.Int).Set(amount), nil
}

func (c *stubVaultClient) Withdraw(_ context.Context, _ common.Address, shares *big.Int) (*big.Int, error) {
	return new(big.Int).Set(shares), nil
}

func (c *stubVaultClient) AssetValue(_ context.Context, _ common.Address, shares *big.Int) (*big.Int, error) {
	return new(big.Int).Set(shares), nil
}

func newVaultEnv(t *testing.T) (*Ledger, *stubVaultClient) {
	t.Helper()
	policy := &stubVaultPolicy{allowed: map[common.Address]bool{yieldVault: true, otherVault: true}}
	client := &stubVaultClient{underlying: map[common.Address]common.Address{
		yieldVault: usdc,
		otherVault: strangeCoin,
	}}
	l := NewLedger(1, identity, &stubPauser{}, &stubTransport{}, policy, client)
	require.NoError(t, l.SetAllowedAsset(usdc, 6, true))
	return l, client
}

func TestAllocateCachesUnderlyingOnFirstUse(t *testing.T) {
	l, _ := newVaultEnv(t)
	ctx := context.Background()

	pos, cached, err := l.AllocateToVault(ctx, yieldVault, big.NewInt(500_000000))
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, usdc, pos.Underlying)
	assert.Equal(t, big.NewInt(500_000000), pos.Shares)

	// Second allocation reuses the cache.
	pos, cached, err = l.AllocateToVault(ctx, yieldVault, big.NewInt(100_000000))
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, big.NewInt(600_000000), pos.Shares)
}

func TestAllocateRejectsUnallowlistedVaultAndAsset(t *testing.T) {
	l, _ := newVaultEnv(t)
	ctx := context.Background()

	_, _, err := l.AllocateToVault(ctx, strangeCoin, big.NewInt(1))
	assert.ErrorIs(t, err, ErrVaultNotAllowed)

	// otherVault is allowlisted but its underlying is not a deposit asset.
	_, _, err = l.AllocateToVault(ctx, otherVault, big.NewInt(1))
	assert.ErrorIs(t, err, ErrAssetNotAllowed)
}

func TestAllocateDetectsUnderlyingMigration(t *testing.T) {
	l, client := newVaultEnv(t)
	ctx := context.Background()

	_, _, err := l.AllocateToVault(ctx, yieldVault, big.NewInt(500_000000))
	require.NoError(t, err)

	// The sub-vault migrates to a different underlying out from under the
	// cache; the next allocation must refuse.
	client.underlying[yieldVault] = strangeCoin
	_, _, err = l.AllocateToVault(ctx, yieldVault, big.NewInt(1))
	assert.ErrorIs(t, err, ErrVaultAssetMismatch)
}

func TestVaultPositionsNormalizeValues(t *testing.T) {
	l, _ := newVaultEnv(t)
	ctx := context.Background()

	_, _, err := l.AllocateToVault(ctx, yieldVault, big.NewInt(500_000000))
	require.NoError(t, err)

	positions, err := l.VaultPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, yieldVault, positions[0].Vault)
	assert.Equal(t, big.NewInt(500_000000), positions[0].AssetValue)
	assert.Equal(t, wad(500), positions[0].NormalizedValue)
}

func TestWithdrawAndRedeemVault(t *testing.T) {
	l, _ := newVaultEnv(t)
	ctx := context.Background()

	_, _, err := l.AllocateToVault(ctx, yieldVault, big.NewInt(500_000000))
	require.NoError(t, err)

	assets, err := l.WithdrawFromVault(ctx, yieldVault, big.NewInt(200_000000))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(200_000000), assets)

	_, err = l.WithdrawFromVault(ctx, yieldVault, big.NewInt(400_000000))
	assert.ErrorIs(t, err, ErrInsufficientUnlockedShares)

	assets, err = l.RedeemVault(ctx, yieldVault)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(300_000000), assets)

	// An emptied position drops out of the valuation list.
	positions, err := l.VaultPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, positions)

	_, err = l.RedeemVault(ctx, yieldVault)
	assert.ErrorIs(t, err, ErrVaultPositionEmpty)
}
