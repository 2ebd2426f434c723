package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// RequestStatus is the lifecycle state of a withdrawal request. Completed and
// Canceled are terminal.
type RequestStatus string

const (
	RequestStatusNone      RequestStatus = "none"
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusCompleted RequestStatus = "completed"
	RequestStatusCanceled  RequestStatus = "canceled"
)

// AssetConfig describes an allowlisted deposit asset.
type AssetConfig struct {
	Decimals uint8
	Allowed  bool
}

// WithdrawalRequest is a pending or settled obligation to pay out normalized
// assets to a receiver on a destination network.
type WithdrawalRequest struct {
	ID           common.Hash
	Owner        common.Address
	Receiver     []byte
	DestNetwork  uint32
	DestAsset    common.Address
	Amount       *big.Int // normalized
	LockedShares *big.Int
	Status       RequestStatus
}

// clone returns a copy safe to hand outside the critical section.
func (r *WithdrawalRequest) clone() *WithdrawalRequest {
	cp := *r
	cp.Receiver = append([]byte(nil), r.Receiver...)
	cp.Amount = new(big.Int).Set(r.Amount)
	cp.LockedShares = new(big.Int).Set(r.LockedShares)
	return &cp
}

// VaultPosition is the valuation of one external vault position.
type VaultPosition struct {
	Vault           common.Address
	Underlying      common.Address
	Shares          *big.Int
	AssetValue      *big.Int // underlying native precision
	NormalizedValue *big.Int
}

// Pauser is the external circuit-breaker collaborator. Every state-mutating
// entry point except request completion and cancellation consults it.
type Pauser interface {
	IsPaused() bool
}

// AssetTransport moves the underlying fungible asset into or out of custody.
// The ledger computes amounts and trusts transport to fully succeed or fully
// fail.
type AssetTransport interface {
	TransferIn(ctx context.Context, asset common.Address, from []byte, amount *big.Int) error
	TransferOut(ctx context.Context, asset common.Address, to []byte, amount *big.Int) error
}

// VaultPolicy is the external allowlist collaborator for yield sub-vaults.
type VaultPolicy interface {
	IsVaultAllowed(vault common.Address) bool
}

// ExternalVaultClient talks to a yield-bearing sub-vault. UnderlyingAsset is
// the vault's live self-reported deposit asset and is revalidated against the
// cache on every allocation.
type ExternalVaultClient interface {
	UnderlyingAsset(ctx context.Context, vault common.Address) (common.Address, error)
	Deposit(ctx context.Context, vault common.Address, amount *big.Int) (*big.Int, error)
	Withdraw(ctx context.Context, vault common.Address, shares *big.Int) (*big.Int, error)
	AssetValue(ctx context.Context, vault common.Address, shares *big.Int) (*big.Int, error)
}
