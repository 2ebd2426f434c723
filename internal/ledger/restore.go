package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Rehydration surface. The service layer persists every committed mutation;
// on boot it replays the persisted records back into an empty ledger through
// these setters. They bypass validation and replay checks on purpose: the
// records were validated when first committed.

// RestoreTotals sets aggregate supply, managed assets, the high-water-mark
// and the local id counter.
func (l *Ledger) RestoreTotals(supply, managed, highWaterMark *big.Int, opCounter uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.supply = new(big.Int).Set(supply)
	l.managed = new(big.Int).Set(managed)
	l.highWaterMark = new(big.Int).Set(highWaterMark)
	l.opCounter = opCounter
}

// RestoreHolder sets one holder's balance, locked count and nonce.
func (l *Ledger) RestoreHolder(holder common.Address, balance, locked *big.Int, nonce uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[holder] = new(big.Int).Set(balance)
	l.locked[holder] = new(big.Int).Set(locked)
	if nonce > 0 {
		l.nonces[holder] = nonce
	}
}

// RestoreRequest re-books a withdrawal request in its persisted state.
func (l *Ledger) RestoreRequest(req *WithdrawalRequest) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests[req.ID] = req.clone()
}

// RestoreDepositID re-marks a consumed deposit id.
func (l *Ledger) RestoreDepositID(id common.Hash) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.depositGuard.Restore(id)
}

// RestoreRequestID re-marks a consumed remote request id.
func (l *Ledger) RestoreRequestID(id common.Hash) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requestGuard.Restore(id)
}

// RestoreOperationID re-marks a consumed outbound operation id.
func (l *Ledger) RestoreOperationID(id common.Hash) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.opGuard.Restore(id)
}

// RestoreIdentity re-binds a pseudo-identity mapping.
func (l *Ledger) RestoreIdentity(originHash common.Hash, local common.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.identities.Restore(originHash, local)
}

// RestoreVaultPosition rebuilds a tracked external vault position.
func (l *Ledger) RestoreVaultPosition(vault, underlying common.Address, shares *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.vaults.restore(vault, underlying, shares)
}

// OpCounter returns the number of local identifiers derived so far. The
// service layer persists it with the aggregate totals.
func (l *Ledger) OpCounter() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.opCounter
}

// Gateway rehydration surface, same contract as the home ledger's.

// RestoreCustody sets one asset's normalized custody balance and the deposit
// id counter.
func (g *GatewayLedger) RestoreCustody(asset common.Address, balance *big.Int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.custody[asset] = new(big.Int).Set(balance)
}

// RestoreCounter sets the gateway deposit id counter.
func (g *GatewayLedger) RestoreCounter(depositCounter uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.depositCounter = depositCounter
}

// RestoreRequest re-books a payout request in its persisted state.
func (g *GatewayLedger) RestoreRequest(req *WithdrawalRequest) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests[req.ID] = req.clone()
}

// RestoreDepositID re-marks a consumed gateway deposit id.
func (g *GatewayLedger) RestoreDepositID(id common.Hash) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.depositGuard.Restore(id)
}

// RestoreRequestID re-marks a consumed payout request id.
func (g *GatewayLedger) RestoreRequestID(id common.Hash) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requestGuard.Restore(id)
}

// RestoreVaultPosition rebuilds a tracked gateway vault position.
func (g *GatewayLedger) RestoreVaultPosition(vault, underlying common.Address, shares *big.Int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.vaults.restore(vault, underlying, shares)
}

// DepositCounter returns the number of gateway deposit ids derived so far.
func (g *GatewayLedger) DepositCounter() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.depositCounter
}
