package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Ledger is the home-side accounting state: canonical LP-share supply,
// per-holder balances and locks, normalized managed assets, the withdrawal
// request book, replay guards, pseudo-identities and external vault
// positions. One Ledger owns all of that state explicitly; there are no
// package-level statics.
//
// Every mutating operation takes the ledger mutex for its full
// read-modify-write, commits every change or none, and never assumes any
// ordering between independent operations beyond the per-owner withdrawal
// nonce.
type Ledger struct {
	mu sync.Mutex

	network  uint32
	identity common.Address

	pauser    Pauser
	transport AssetTransport

	assets       map[common.Address]AssetConfig
	destNetworks map[uint32]bool
	destAssets   map[uint32]map[common.Address]bool

	supply   *big.Int
	managed  *big.Int
	balances map[common.Address]*big.Int
	locked   map[common.Address]*big.Int
	nonces   map[common.Address]uint64

	highWaterMark *big.Int
	fee           FeeConfig

	requests map[common.Hash]*WithdrawalRequest

	depositGuard *ReplayGuard
	requestGuard *ReplayGuard
	opGuard      *ReplayGuard

	identities *PseudoIdentityRegistry
	vaults     *VaultPositionCache

	opCounter uint64
}

// NewLedger creates an empty home ledger for the given local network id and
// ledger identity. The identity participates in local id derivation only; it
// is not an authorization mechanism.
func NewLedger(network uint32, identity common.Address, pauser Pauser, transport AssetTransport, policy VaultPolicy, vaultClient ExternalVaultClient) *Ledger {
	return &Ledger{
		network:       network,
		identity:      identity,
		pauser:        pauser,
		transport:     transport,
		assets:        make(map[common.Address]AssetConfig),
		destNetworks:  make(map[uint32]bool),
		destAssets:    make(map[uint32]map[common.Address]bool),
		supply:        new(big.Int),
		managed:       new(big.Int),
		balances:      make(map[common.Address]*big.Int),
		locked:        make(map[common.Address]*big.Int),
		nonces:        make(map[common.Address]uint64),
		highWaterMark: new(big.Int),
		requests:      make(map[common.Hash]*WithdrawalRequest),
		depositGuard:  NewReplayGuard(),
		requestGuard:  NewReplayGuard(),
		opGuard:       NewReplayGuard(),
		identities:    NewPseudoIdentityRegistry(),
		vaults:        NewVaultPositionCache(policy, vaultClient),
	}
}

func (l *Ledger) paused() bool {
	return l.pauser != nil && l.pauser.IsPaused()
}

// nextLocalID derives a unique identifier for a locally-initiated operation
// from the network id, the ledger identity and a strictly increasing counter.
// Uniqueness is all it provides; it carries no authority.
func (l *Ledger) nextLocalID(kind string) common.Hash {
	l.opCounter++
	preimage := fmt.Sprintf("hako:%s:%d:%s:%d", kind, l.network, l.identity.Hex(), l.opCounter)
	return crypto.Keccak256Hash([]byte(preimage))
}

// --- asset and destination configuration (config collaborator surface) ---

// SetAllowedAsset adds or updates a deposit asset. Decimals are fixed the
// first time an asset is seen; later calls may only flip the allowed flag.
func (l *Ledger) SetAllowedAsset(asset common.Address, decimals uint8, allowed bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.paused() {
		return ErrPaused
	}
	if asset == (common.Address{}) {
		return ErrZeroAddress
	}
	if decimals > NormalizedDecimals {
		return ErrDecimalsTooHigh
	}
	if existing, ok := l.assets[asset]; ok && existing.Decimals != decimals {
		return ErrDecimalsImmutable
	}
	l.assets[asset] = AssetConfig{Decimals: decimals, Allowed: allowed}
	return nil
}

// SetDestinationNetwork allows or disallows a destination network.
func (l *Ledger) SetDestinationNetwork(network uint32, allowed bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.paused() {
		return ErrPaused
	}
	if network == 0 {
		return ErrInvalidNetwork
	}
	l.destNetworks[network] = allowed
	if allowed && l.destAssets[network] == nil {
		l.destAssets[network] = make(map[common.Address]bool)
	}
	return nil
}

// SetDestinationAsset allows or disallows a destination asset. The network
// entry must already be present and allowed.
func (l *Ledger) SetDestinationAsset(network uint32, asset common.Address, allowed bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.paused() {
		return ErrPaused
	}
	if network == 0 {
		return ErrInvalidNetwork
	}
	if asset == (common.Address{}) {
		return ErrZeroAddress
	}
	if !l.destNetworks[network] {
		return ErrDestinationNotAllowed
	}
	l.destAssets[network][asset] = allowed
	return nil
}

func (l *Ledger) destinationAllowed(network uint32, asset common.Address) bool {
	return l.destNetworks[network] && l.destAssets[network][asset]
}

// SetFeeConfig updates the performance fee rate and recipient.
func (l *Ledger) SetFeeConfig(rateBps uint32, recipient common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.paused() {
		return ErrPaused
	}
	if rateBps > MaxFeeBps {
		return ErrFeeRateTooHigh
	}
	l.fee = FeeConfig{RateBps: rateBps, Recipient: recipient}
	return nil
}

// ResetHighWaterMark zeroes the mark. This is the explicit administrative
// recovery path that makes a later fee assessment bootstrap the mark from
// its pre-profit price.
func (l *Ledger) ResetHighWaterMark() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.paused() {
		return ErrPaused
	}
	l.highWaterMark = new(big.Int)
	return nil
}

// --- profit and loss reporting ---

// ProfitReport is the outcome of applying an externally reported profit.
type ProfitReport struct {
	Profit        *big.Int
	FeeShares     *big.Int
	FeeAmount     *big.Int
	FeeRecipient  common.Address
	HighWaterMark *big.Int
	PricePerShare *big.Int
}

// ReportProfit folds a positive profit delta into managed assets and runs
// the performance fee engine over the result. Fee shares dilute existing
// holders; they consume no managed-asset capacity.
func (l *Ledger) ReportProfit(profit *big.Int) (*ProfitReport, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.paused() {
		return nil, ErrPaused
	}
	if profit == nil || profit.Sign() <= 0 {
		return nil, ErrZeroAmount
	}

	l.managed.Add(l.managed, profit)
	assessment := AssessPerformanceFee(profit, l.managed, l.supply, l.highWaterMark, l.fee)
	if assessment.FeeShares.Sign() > 0 {
		l.supply.Add(l.supply, assessment.FeeShares)
		l.creditBalance(l.fee.Recipient, assessment.FeeShares)
	}
	l.highWaterMark = assessment.HighWaterMark

	return &ProfitReport{
		Profit:        new(big.Int).Set(profit),
		FeeShares:     assessment.FeeShares,
		FeeAmount:     assessment.FeeAmount,
		FeeRecipient:  l.fee.Recipient,
		HighWaterMark: new(big.Int).Set(l.highWaterMark),
		PricePerShare: PricePerShare(l.supply, l.managed),
	}, nil
}

// ReportLoss decrements managed assets by an externally reported loss. The
// high-water-mark is untouched, so recovery gains up to the old mark stay
// fee-free.
func (l *Ledger) ReportLoss(loss *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.paused() {
		return ErrPaused
	}
	if loss == nil || loss.Sign() <= 0 {
		return ErrZeroAmount
	}
	if l.managed.Cmp(loss) < 0 {
		return ErrManagedAssetsUnderflow
	}
	l.managed.Sub(l.managed, loss)
	return nil
}

// --- share transfer ---

// Transfer moves unlocked shares between holders. The locked portion of a
// balance is reserved against pending withdrawal requests and cannot move.
func (l *Ledger) Transfer(from, to common.Address, shares *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.paused() {
		return ErrPaused
	}
	if shares == nil || shares.Sign() <= 0 {
		return ErrZeroAmount
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if l.unlockedOf(from).Cmp(shares) < 0 {
		return ErrInsufficientUnlockedShares
	}
	l.debitBalance(from, shares)
	l.creditBalance(to, shares)
	return nil
}

// --- outbound transfers (asset manager surface) ---

// OutboundTransfer moves custody assets toward an allowlisted destination
// network through the transport collaborator. The derived operation id is
// consumed exactly once so a retried invocation never double-spends custody.
type OutboundTransfer struct {
	OperationID common.Hash
	Asset       common.Address
	DestNetwork uint32
	Receiver    []byte
	Amount      *big.Int
}

// ExecuteOutboundTransfer validates the destination, derives and consumes an
// operation id, then invokes transport. Managed assets are unchanged: the
// funds remain under management, only their custody location moves.
func (l *Ledger) ExecuteOutboundTransfer(ctx context.Context, asset common.Address, destNetwork uint32, receiver []byte, amount *big.Int) (*OutboundTransfer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.paused() {
		return nil, ErrPaused
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	if len(receiver) == 0 {
		return nil, ErrEmptyReceiver
	}
	cfg, ok := l.assets[asset]
	if !ok || !cfg.Allowed {
		return nil, ErrAssetNotAllowed
	}
	if !l.destNetworks[destNetwork] {
		return nil, ErrDestinationNotAllowed
	}

	opID := l.nextLocalID("op")
	if err := l.opGuard.Consume(opID); err != nil {
		return nil, err
	}
	if l.transport != nil {
		if err := l.transport.TransferOut(ctx, asset, receiver, amount); err != nil {
			// Transport failed before anything was committed locally; roll the
			// counter-derived id back so the ledger state is unchanged.
			delete(l.opGuard.seen, opID)
			l.opCounter--
			return nil, err
		}
	}

	return &OutboundTransfer{
		OperationID: opID,
		Asset:       asset,
		DestNetwork: destNetwork,
		Receiver:    append([]byte(nil), receiver...),
		Amount:      new(big.Int).Set(amount),
	}, nil
}

// --- balance bookkeeping helpers (callers hold the mutex) ---

func (l *Ledger) balanceOf(h common.Address) *big.Int {
	if b, ok := l.balances[h]; ok {
		return b
	}
	return new(big.Int)
}

func (l *Ledger) lockedOf(h common.Address) *big.Int {
	if b, ok := l.locked[h]; ok {
		return b
	}
	return new(big.Int)
}

func (l *Ledger) unlockedOf(h common.Address) *big.Int {
	return new(big.Int).Sub(l.balanceOf(h), l.lockedOf(h))
}

func (l *Ledger) creditBalance(h common.Address, shares *big.Int) {
	l.balances[h] = new(big.Int).Add(l.balanceOf(h), shares)
}

func (l *Ledger) debitBalance(h common.Address, shares *big.Int) {
	l.balances[h] = new(big.Int).Sub(l.balanceOf(h), shares)
}

// --- read surface ---

// Snapshot is a point-in-time view of the aggregate ledger state.
type Snapshot struct {
	Supply        *big.Int
	Managed       *big.Int
	PricePerShare *big.Int
	HighWaterMark *big.Int
	FeeRateBps    uint32
	FeeRecipient  common.Address
}

// Snapshot returns aggregate supply, managed assets, price and fee state.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot{
		Supply:        new(big.Int).Set(l.supply),
		Managed:       new(big.Int).Set(l.managed),
		PricePerShare: PricePerShare(l.supply, l.managed),
		HighWaterMark: new(big.Int).Set(l.highWaterMark),
		FeeRateBps:    l.fee.RateBps,
		FeeRecipient:  l.fee.Recipient,
	}
}

// BalanceOf returns a holder's share balance.
func (l *Ledger) BalanceOf(h common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balanceOf(h))
}

// LockedOf returns a holder's locked share count.
func (l *Ledger) LockedOf(h common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.lockedOf(h))
}

// NonceOf returns a holder's next expected withdrawal nonce.
func (l *Ledger) NonceOf(h common.Address) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nonces[h]
}

// Request returns a copy of a withdrawal request, or ErrRequestNotFound.
func (l *Ledger) Request(id common.Hash) (*WithdrawalRequest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	req, ok := l.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	return req.clone(), nil
}

// AssetDecimals returns the configured decimals of an allowlisted asset.
func (l *Ledger) AssetDecimals(asset common.Address) (uint8, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cfg, ok := l.assets[asset]
	if !ok || !cfg.Allowed {
		return 0, ErrAssetNotAllowed
	}
	return cfg.Decimals, nil
}

// LookupOrigin resolves a pseudo-identity back to its origin hash.
func (l *Ledger) LookupOrigin(local common.Address) (common.Hash, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.identities.LookupOrigin(local)
}
