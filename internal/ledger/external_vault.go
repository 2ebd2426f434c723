package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type vaultRecord struct {
	underlying common.Address
	shares     *big.Int
}

// VaultPositionCache tracks allocations into external yield-bearing
// sub-vaults. Each vault's self-reported underlying asset is cached on first
// allocation and revalidated against the live report on every later one,
// which detects a sub-vault migrated to a different underlying out from
// under the ledger.
//
// The cache is owned by a ledger state object and mutated only inside its
// critical section.
type VaultPositionCache struct {
	policy  VaultPolicy
	client  ExternalVaultClient
	records map[common.Address]*vaultRecord
	tracked []common.Address
}

// NewVaultPositionCache returns an empty cache.
func NewVaultPositionCache(policy VaultPolicy, client ExternalVaultClient) *VaultPositionCache {
	return &VaultPositionCache{
		policy:  policy,
		client:  client,
		records: make(map[common.Address]*vaultRecord),
	}
}

// allocate validates the vault against policy and the underlying cache,
// deposits into the vault, then commits the position. assetAllowed reports
// whether an underlying is an allowlisted deposit asset; it gates only the
// first interaction with a vault.
func (c *VaultPositionCache) allocate(ctx context.Context, vault common.Address, amount *big.Int, assetAllowed func(common.Address) bool) (*VaultPosition, bool, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, false, ErrZeroAmount
	}
	if c.policy == nil || !c.policy.IsVaultAllowed(vault) {
		return nil, false, ErrVaultNotAllowed
	}

	live, err := c.client.UnderlyingAsset(ctx, vault)
	if err != nil {
		return nil, false, err
	}

	record, known := c.records[vault]
	if known {
		if record.underlying != live {
			return nil, false, ErrVaultAssetMismatch
		}
	} else if !assetAllowed(live) {
		return nil, false, ErrAssetNotAllowed
	}

	shares, err := c.client.Deposit(ctx, vault, amount)
	if err != nil {
		return nil, false, err
	}

	if !known {
		record = &vaultRecord{underlying: live, shares: new(big.Int)}
		c.records[vault] = record
		c.tracked = append(c.tracked, vault)
	}
	record.shares.Add(record.shares, shares)

	return &VaultPosition{
		Vault:      vault,
		Underlying: record.underlying,
		Shares:     new(big.Int).Set(record.shares),
	}, !known, nil
}

// withdraw redeems a share count from a tracked vault.
func (c *VaultPositionCache) withdraw(ctx context.Context, vault common.Address, shares *big.Int) (*big.Int, error) {
	if shares == nil || shares.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	record, ok := c.records[vault]
	if !ok || record.shares.Sign() == 0 {
		return nil, ErrVaultPositionEmpty
	}
	if record.shares.Cmp(shares) < 0 {
		return nil, ErrInsufficientUnlockedShares
	}
	assets, err := c.client.Withdraw(ctx, vault, shares)
	if err != nil {
		return nil, err
	}
	record.shares.Sub(record.shares, shares)
	return assets, nil
}

// positions values every tracked vault with a nonzero share balance.
// decimalsOf resolves an underlying asset to its configured precision for
// normalization.
func (c *VaultPositionCache) positions(ctx context.Context, decimalsOf func(common.Address) (uint8, bool)) ([]VaultPosition, error) {
	out := make([]VaultPosition, 0, len(c.tracked))
	for _, vault := range c.tracked {
		record := c.records[vault]
		if record.shares.Sign() == 0 {
			continue
		}
		value, err := c.client.AssetValue(ctx, vault, record.shares)
		if err != nil {
			return nil, err
		}
		position := VaultPosition{
			Vault:      vault,
			Underlying: record.underlying,
			Shares:     new(big.Int).Set(record.shares),
			AssetValue: value,
		}
		if decimals, ok := decimalsOf(record.underlying); ok {
			normalized, err := Normalize(value, decimals)
			if err != nil {
				return nil, err
			}
			position.NormalizedValue = normalized
		}
		out = append(out, position)
	}
	return out, nil
}

// restore rebuilds a tracked position during rehydration.
func (c *VaultPositionCache) restore(vault, underlying common.Address, shares *big.Int) {
	if _, ok := c.records[vault]; !ok {
		c.tracked = append(c.tracked, vault)
	}
	c.records[vault] = &vaultRecord{underlying: underlying, shares: new(big.Int).Set(shares)}
}

// --- home ledger surface ---

// AllocateToVault moves custody assets into an external yield vault. Managed
// assets are unchanged: the position remains under management, only its
// custody location moves. The returned bool reports whether this was the
// vault's first allocation (its underlying was cached).
func (l *Ledger) AllocateToVault(ctx context.Context, vault common.Address, amount *big.Int) (*VaultPosition, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.paused() {
		return nil, false, ErrPaused
	}
	return l.vaults.allocate(ctx, vault, amount, func(asset common.Address) bool {
		cfg, ok := l.assets[asset]
		return ok && cfg.Allowed
	})
}

// WithdrawFromVault redeems shares from an external vault back into custody.
// The returned amount is in the underlying's native precision.
func (l *Ledger) WithdrawFromVault(ctx context.Context, vault common.Address, shares *big.Int) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.paused() {
		return nil, ErrPaused
	}
	return l.vaults.withdraw(ctx, vault, shares)
}

// RedeemVault exits an external vault position entirely.
func (l *Ledger) RedeemVault(ctx context.Context, vault common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.paused() {
		return nil, ErrPaused
	}
	record, ok := l.vaults.records[vault]
	if !ok || record.shares.Sign() == 0 {
		return nil, ErrVaultPositionEmpty
	}
	return l.vaults.withdraw(ctx, vault, new(big.Int).Set(record.shares))
}

// VaultPositions values every tracked external vault position.
func (l *Ledger) VaultPositions(ctx context.Context) ([]VaultPosition, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.vaults.positions(ctx, func(asset common.Address) (uint8, bool) {
		cfg, ok := l.assets[asset]
		if !ok {
			return 0, false
		}
		return cfg.Decimals, true
	})
}
