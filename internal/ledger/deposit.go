package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// DepositResult describes a committed deposit: the id under replay
// protection, the receiving holder and the minted shares.
type DepositResult struct {
	DepositID        common.Hash
	Receiver         common.Address
	Asset            common.Address
	NormalizedAmount *big.Int
	SharesMinted     *big.Int
	PricePerShare    *big.Int
	// NewIdentity is set when a remote deposit registered the origin account
	// for the first time.
	NewIdentity bool
	// OriginNetwork is zero for local deposits.
	OriginNetwork uint32
	OriginAccount string
}

// Deposit takes custody of a local allowlisted asset and mints shares to the
// receiver at the current price. The deposit id is derived locally and
// consumed under the deposit replay guard, so the audit trail shares one id
// namespace with remote deposits.
func (l *Ledger) Deposit(ctx context.Context, receiver common.Address, asset common.Address, amount *big.Int) (*DepositResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.paused() {
		return nil, ErrPaused
	}
	if receiver == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	cfg, ok := l.assets[asset]
	if !ok || !cfg.Allowed {
		return nil, ErrAssetNotAllowed
	}

	normalized, err := Normalize(amount, cfg.Decimals)
	if err != nil {
		return nil, err
	}
	shares, err := PreviewMint(normalized, l.supply, l.managed)
	if err != nil {
		return nil, err
	}

	if l.transport != nil {
		if err := l.transport.TransferIn(ctx, asset, receiver.Bytes(), amount); err != nil {
			return nil, err
		}
	}

	depositID := l.nextLocalID("deposit")
	if err := l.depositGuard.Consume(depositID); err != nil {
		return nil, err
	}
	l.managed.Add(l.managed, normalized)
	l.supply.Add(l.supply, shares)
	l.creditBalance(receiver, shares)

	return &DepositResult{
		DepositID:        depositID,
		Receiver:         receiver,
		Asset:            asset,
		NormalizedAmount: normalized,
		SharesMinted:     shares,
		PricePerShare:    PricePerShare(l.supply, l.managed),
	}, nil
}

// RecordRemoteDeposit applies a deposit that was taken into custody by a
// remote gateway and relayed here. The relayer supplies the cross-network
// deposit id, the origin account and an already-normalized amount; the
// deposit asset is named by its virtual derivation and must be allowlisted
// for the origin network. Shares are minted to the origin account's
// pseudo-identity.
//
// The id is consumed only after every validation has passed, so a rejected
// delivery can be corrected and resubmitted under the same id.
func (l *Ledger) RecordRemoteDeposit(depositID common.Hash, originNetwork uint32, originAccount string, assetID string, amountNormalized *big.Int) (*DepositResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.paused() {
		return nil, ErrPaused
	}
	if depositID == (common.Hash{}) {
		return nil, ErrInvalidAccount
	}
	if l.depositGuard.Consumed(depositID) {
		return nil, ErrReplay
	}
	if amountNormalized == nil || amountNormalized.Sign() <= 0 {
		return nil, ErrZeroAmount
	}

	virtualAsset, err := DeriveVirtualAsset(originNetwork, assetID)
	if err != nil {
		return nil, err
	}
	if !l.destinationAllowed(originNetwork, virtualAsset) {
		return nil, ErrDestinationNotAllowed
	}

	shares, err := PreviewMint(amountNormalized, l.supply, l.managed)
	if err != nil {
		return nil, err
	}
	receiver, created, err := l.identities.RegisterOrLookup(originNetwork, originAccount)
	if err != nil {
		return nil, err
	}

	// Commit point: guard marking and balance mutation happen together.
	if err := l.depositGuard.Consume(depositID); err != nil {
		return nil, err
	}
	l.managed.Add(l.managed, amountNormalized)
	l.supply.Add(l.supply, shares)
	l.creditBalance(receiver, shares)

	return &DepositResult{
		DepositID:        depositID,
		Receiver:         receiver,
		Asset:            virtualAsset,
		NormalizedAmount: new(big.Int).Set(amountNormalized),
		SharesMinted:     shares,
		PricePerShare:    PricePerShare(l.supply, l.managed),
		NewIdentity:      created,
		OriginNetwork:    originNetwork,
		OriginAccount:    originAccount,
	}, nil
}

// RegisterPseudoIdentity exposes identity registration outside the deposit
// path, for relayed account pre-registration.
func (l *Ledger) RegisterPseudoIdentity(originNetwork uint32, originAccount string) (common.Address, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.paused() {
		return common.Address{}, false, ErrPaused
	}
	return l.identities.RegisterOrLookup(originNetwork, originAccount)
}
