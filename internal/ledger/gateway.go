package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// GatewayLedger is the remote-side custody ledger: it takes deposits into
// custody and executes relayed payout requests, with no LP-share accounting.
// Shares, fees and the high-water-mark live only on the home ledger; the
// gateway tracks per-asset normalized custody balances and the withdrawal
// request lifecycle.
type GatewayLedger struct {
	mu sync.Mutex

	network  uint32
	identity common.Address

	pauser    Pauser
	transport AssetTransport

	assets  map[common.Address]AssetConfig
	custody map[common.Address]*big.Int // normalized, per asset

	requests map[common.Hash]*WithdrawalRequest

	depositGuard *ReplayGuard
	requestGuard *ReplayGuard

	vaults *VaultPositionCache

	depositCounter uint64
}

// NewGatewayLedger creates an empty gateway ledger for one remote network.
func NewGatewayLedger(network uint32, identity common.Address, pauser Pauser, transport AssetTransport, policy VaultPolicy, vaultClient ExternalVaultClient) *GatewayLedger {
	return &GatewayLedger{
		network:      network,
		identity:     identity,
		pauser:       pauser,
		transport:    transport,
		assets:       make(map[common.Address]AssetConfig),
		custody:      make(map[common.Address]*big.Int),
		requests:     make(map[common.Hash]*WithdrawalRequest),
		depositGuard: NewReplayGuard(),
		requestGuard: NewReplayGuard(),
		vaults:       NewVaultPositionCache(policy, vaultClient),
	}
}

func (g *GatewayLedger) paused() bool {
	return g.pauser != nil && g.pauser.IsPaused()
}

// SetAllowedAsset mirrors the home ledger's asset configuration rule:
// decimals are fixed on first sight.
func (g *GatewayLedger) SetAllowedAsset(asset common.Address, decimals uint8, allowed bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused() {
		return ErrPaused
	}
	if asset == (common.Address{}) {
		return ErrZeroAddress
	}
	if decimals > NormalizedDecimals {
		return ErrDecimalsTooHigh
	}
	if existing, ok := g.assets[asset]; ok && existing.Decimals != decimals {
		return ErrDecimalsImmutable
	}
	g.assets[asset] = AssetConfig{Decimals: decimals, Allowed: allowed}
	return nil
}

func (g *GatewayLedger) custodyOf(asset common.Address) *big.Int {
	if b, ok := g.custody[asset]; ok {
		return b
	}
	return new(big.Int)
}

// GatewayDeposit describes a deposit taken into gateway custody, ready to be
// relayed to the home ledger.
type GatewayDeposit struct {
	DepositID        common.Hash
	Depositor        string
	Asset            common.Address
	Amount           *big.Int // native precision
	NormalizedAmount *big.Int
}

// RecordDeposit takes an allowlisted asset into custody and derives the
// cross-network deposit id the relayer will carry home. The id is consumed
// under the gateway's deposit guard at the same commit that credits custody.
func (g *GatewayLedger) RecordDeposit(ctx context.Context, depositor string, asset common.Address, amount *big.Int) (*GatewayDeposit, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused() {
		return nil, ErrPaused
	}
	if depositor == "" {
		return nil, ErrInvalidAccount
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	cfg, ok := g.assets[asset]
	if !ok || !cfg.Allowed {
		return nil, ErrAssetNotAllowed
	}
	normalized, err := Normalize(amount, cfg.Decimals)
	if err != nil {
		return nil, err
	}
	if g.transport != nil {
		if err := g.transport.TransferIn(ctx, asset, []byte(depositor), amount); err != nil {
			return nil, err
		}
	}

	g.depositCounter++
	depositID := crypto.Keccak256Hash([]byte(fmt.Sprintf("hako:deposit:%d:%s:%d", g.network, g.identity.Hex(), g.depositCounter)))
	if err := g.depositGuard.Consume(depositID); err != nil {
		return nil, err
	}
	g.custody[asset] = new(big.Int).Add(g.custodyOf(asset), normalized)

	return &GatewayDeposit{
		DepositID:        depositID,
		Depositor:        depositor,
		Asset:            asset,
		Amount:           new(big.Int).Set(amount),
		NormalizedAmount: normalized,
	}, nil
}

// RecordPayoutRequest books a relayed withdrawal request against gateway
// custody. The cross-network request id is consumed exactly once; a
// validation failure leaves it unconsumed for a corrected retry.
func (g *GatewayLedger) RecordPayoutRequest(requestID common.Hash, receiver []byte, asset common.Address, amountNormalized *big.Int) (*WithdrawalRequest, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused() {
		return nil, ErrPaused
	}
	if requestID == (common.Hash{}) {
		return nil, ErrInvalidAccount
	}
	if g.requestGuard.Consumed(requestID) {
		return nil, ErrReplay
	}
	if len(receiver) == 0 {
		return nil, ErrEmptyReceiver
	}
	if amountNormalized == nil || amountNormalized.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	if cfg, ok := g.assets[asset]; !ok || !cfg.Allowed {
		return nil, ErrAssetNotAllowed
	}

	if err := g.requestGuard.Consume(requestID); err != nil {
		return nil, err
	}
	req := &WithdrawalRequest{
		ID:           requestID,
		Receiver:     append([]byte(nil), receiver...),
		DestNetwork:  g.network,
		DestAsset:    asset,
		Amount:       new(big.Int).Set(amountNormalized),
		LockedShares: new(big.Int),
		Status:       RequestStatusPending,
	}
	g.requests[requestID] = req
	return req.clone(), nil
}

// PayoutResult describes an executed gateway payout.
type PayoutResult struct {
	Request      *WithdrawalRequest
	NativeAmount *big.Int
}

// CompletePayout executes a pending payout: custody is debited by the stored
// normalized amount (underflow is a hard stop) and transport pays the
// receiver the denormalized native amount, truncating precision below the
// native scale. Available while paused.
func (g *GatewayLedger) CompletePayout(ctx context.Context, requestID common.Hash) (*PayoutResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	req, ok := g.requests[requestID]
	if !ok {
		return nil, ErrRequestNotFound
	}
	if req.Status != RequestStatusPending {
		return nil, ErrRequestNotPending
	}
	if g.custodyOf(req.DestAsset).Cmp(req.Amount) < 0 {
		return nil, ErrCustodyUnderflow
	}
	cfg := g.assets[req.DestAsset]
	native, err := Denormalize(req.Amount, cfg.Decimals)
	if err != nil {
		return nil, err
	}
	if g.transport != nil {
		if err := g.transport.TransferOut(ctx, req.DestAsset, req.Receiver, native); err != nil {
			return nil, err
		}
	}

	req.Status = RequestStatusCompleted
	g.custody[req.DestAsset] = new(big.Int).Sub(g.custodyOf(req.DestAsset), req.Amount)
	return &PayoutResult{Request: req.clone(), NativeAmount: native}, nil
}

// CancelPayout voids a pending payout request. Custody is untouched.
// Available while paused.
func (g *GatewayLedger) CancelPayout(requestID common.Hash) (*WithdrawalRequest, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	req, ok := g.requests[requestID]
	if !ok {
		return nil, ErrRequestNotFound
	}
	if req.Status != RequestStatusPending {
		return nil, ErrRequestNotPending
	}
	req.Status = RequestStatusCanceled
	return req.clone(), nil
}

// CustodyOf returns the gateway's normalized custody balance for an asset.
func (g *GatewayLedger) CustodyOf(asset common.Address) *big.Int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return new(big.Int).Set(g.custodyOf(asset))
}

// Request returns a copy of a payout request, or ErrRequestNotFound.
func (g *GatewayLedger) Request(id common.Hash) (*WithdrawalRequest, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	req, ok := g.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	return req.clone(), nil
}

// AllocateToVault moves gateway custody into an external yield vault, with
// the same first-use underlying caching as the home ledger.
func (g *GatewayLedger) AllocateToVault(ctx context.Context, vault common.Address, amount *big.Int) (*VaultPosition, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused() {
		return nil, false, ErrPaused
	}
	return g.vaults.allocate(ctx, vault, amount, func(asset common.Address) bool {
		cfg, ok := g.assets[asset]
		return ok && cfg.Allowed
	})
}

// WithdrawFromVault redeems shares from an external vault back into gateway
// custody.
func (g *GatewayLedger) WithdrawFromVault(ctx context.Context, vault common.Address, shares *big.Int) (*big.Int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused() {
		return nil, ErrPaused
	}
	return g.vaults.withdraw(ctx, vault, shares)
}

// VaultPositions values the gateway's tracked external vault positions.
func (g *GatewayLedger) VaultPositions(ctx context.Context) ([]VaultPosition, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.vaults.positions(ctx, func(asset common.Address) (uint8, bool) {
		cfg, ok := g.assets[asset]
		if !ok {
			return 0, false
		}
		return cfg.Decimals, true
	})
}
