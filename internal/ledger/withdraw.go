package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// validateRequestTarget checks the fields shared by every request creation
// path. It reads only; callers commit nothing before it passes.
func (l *Ledger) validateRequestTarget(owner common.Address, receiver []byte, destNetwork uint32, destAsset common.Address) error {
	if owner == (common.Address{}) {
		return ErrZeroAddress
	}
	if len(receiver) == 0 {
		return ErrEmptyReceiver
	}
	if !l.destinationAllowed(destNetwork, destAsset) {
		return ErrDestinationNotAllowed
	}
	return nil
}

// lockAndBook locks shares against the owner and records the pending
// request. Callers hold the mutex and have fully validated the request.
func (l *Ledger) lockAndBook(id common.Hash, owner common.Address, receiver []byte, destNetwork uint32, destAsset common.Address, amount, lockShares *big.Int) *WithdrawalRequest {
	l.locked[owner] = new(big.Int).Add(l.lockedOf(owner), lockShares)
	req := &WithdrawalRequest{
		ID:           id,
		Owner:        owner,
		Receiver:     append([]byte(nil), receiver...),
		DestNetwork:  destNetwork,
		DestAsset:    destAsset,
		Amount:       new(big.Int).Set(amount),
		LockedShares: new(big.Int).Set(lockShares),
		Status:       RequestStatusPending,
	}
	l.requests[id] = req
	return req.clone()
}

// RequestWithdrawal creates a pending withdrawal targeting an exact
// normalized amount. The share lock is the ceiling conversion of that amount
// at the current price; maxShares is the caller's slippage cap.
func (l *Ledger) RequestWithdrawal(owner common.Address, receiver []byte, destNetwork uint32, destAsset common.Address, amount, maxShares *big.Int) (*WithdrawalRequest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.paused() {
		return nil, ErrPaused
	}
	return l.requestByAmount(owner, receiver, destNetwork, destAsset, amount, maxShares)
}

func (l *Ledger) requestByAmount(owner common.Address, receiver []byte, destNetwork uint32, destAsset common.Address, amount, maxShares *big.Int) (*WithdrawalRequest, error) {
	if err := l.validateRequestTarget(owner, receiver, destNetwork, destAsset); err != nil {
		return nil, err
	}
	lockShares, err := PreviewLock(amount, l.supply, l.managed)
	if err != nil {
		return nil, err
	}
	if maxShares != nil && maxShares.Sign() > 0 && lockShares.Cmp(maxShares) > 0 {
		return nil, ErrSharesExceedMax
	}
	if l.unlockedOf(owner).Cmp(lockShares) < 0 {
		return nil, ErrInsufficientUnlockedShares
	}
	return l.lockAndBook(l.nextLocalID("request"), owner, receiver, destNetwork, destAsset, amount, lockShares), nil
}

// RequestRedeem creates a pending withdrawal denominated in exact shares.
// The payout amount is the floor conversion at the current price;
// minAmount is the caller's floor on that conversion.
func (l *Ledger) RequestRedeem(owner common.Address, receiver []byte, destNetwork uint32, destAsset common.Address, shares, minAmount *big.Int) (*WithdrawalRequest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.paused() {
		return nil, ErrPaused
	}
	if err := l.validateRequestTarget(owner, receiver, destNetwork, destAsset); err != nil {
		return nil, err
	}
	amount, err := ConvertToAssetsFloor(shares, l.supply, l.managed)
	if err != nil {
		return nil, err
	}
	if minAmount != nil && amount.Cmp(minAmount) < 0 {
		return nil, ErrAmountBelowMin
	}
	if l.unlockedOf(owner).Cmp(shares) < 0 {
		return nil, ErrInsufficientUnlockedShares
	}
	return l.lockAndBook(l.nextLocalID("request"), owner, receiver, destNetwork, destAsset, amount, shares), nil
}

// RequestWithdrawalFor is the controller path: a trusted caller creates a
// withdrawal on behalf of another owner, gated by the owner's strictly
// increasing nonce. A mismatched nonce rejects with no state change and the
// nonce is not consumed.
func (l *Ledger) RequestWithdrawalFor(owner common.Address, nonce uint64, receiver []byte, destNetwork uint32, destAsset common.Address, amount, maxShares *big.Int) (*WithdrawalRequest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.paused() {
		return nil, ErrPaused
	}
	if nonce != l.nonces[owner] {
		return nil, ErrNonceMismatch
	}
	req, err := l.requestByAmount(owner, receiver, destNetwork, destAsset, amount, maxShares)
	if err != nil {
		return nil, err
	}
	l.nonces[owner] = nonce + 1
	return req, nil
}

// RecordRemoteRequest applies a withdrawal request that originated on
// another network, identified by a cross-network request id consumed exactly
// once. The owner is the origin account's pseudo-identity. A duplicate id is
// rejected with no effect; a validation failure leaves the id unconsumed so
// a corrected retry with the same id succeeds.
func (l *Ledger) RecordRemoteRequest(requestID common.Hash, originNetwork uint32, originAccount string, receiver []byte, destNetwork uint32, destAsset common.Address, amount, maxShares *big.Int) (*WithdrawalRequest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.paused() {
		return nil, ErrPaused
	}
	if requestID == (common.Hash{}) {
		return nil, ErrInvalidAccount
	}
	if l.requestGuard.Consumed(requestID) {
		return nil, ErrReplay
	}
	if originNetwork == 0 {
		return nil, ErrInvalidNetwork
	}
	if originAccount == "" {
		return nil, ErrInvalidAccount
	}
	// Pure derivation first; the registry is only written at the commit
	// point so a rejected request leaves no identity behind.
	owner, _ := derivePseudoAddress(fmt.Sprintf("%s%d:%s", accountDomainPrefix, originNetwork, originAccount))
	if err := l.validateRequestTarget(owner, receiver, destNetwork, destAsset); err != nil {
		return nil, err
	}
	lockShares, err := PreviewLock(amount, l.supply, l.managed)
	if err != nil {
		return nil, err
	}
	if maxShares != nil && maxShares.Sign() > 0 && lockShares.Cmp(maxShares) > 0 {
		return nil, ErrSharesExceedMax
	}
	if l.unlockedOf(owner).Cmp(lockShares) < 0 {
		return nil, ErrInsufficientUnlockedShares
	}

	// Commit point: identity registration, id marking and the lock happen
	// together.
	if _, _, err := l.identities.RegisterOrLookup(originNetwork, originAccount); err != nil {
		return nil, err
	}
	if err := l.requestGuard.Consume(requestID); err != nil {
		return nil, err
	}
	return l.lockAndBook(requestID, owner, receiver, destNetwork, destAsset, amount, lockShares), nil
}

// CompleteRequest settles a pending request: unlocks the reserved shares,
// burns them from the owner and decrements managed assets by the stored
// amount. Insufficient managed assets are a hard stop, never auto-adjusted.
// Completion stays available while the ledger is paused so committed
// obligations can unwind during an incident.
func (l *Ledger) CompleteRequest(id common.Hash) (*WithdrawalRequest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	req, ok := l.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	if req.Status != RequestStatusPending {
		return nil, ErrRequestNotPending
	}
	if l.managed.Cmp(req.Amount) < 0 {
		return nil, ErrManagedAssetsUnderflow
	}

	req.Status = RequestStatusCompleted
	l.locked[req.Owner] = new(big.Int).Sub(l.lockedOf(req.Owner), req.LockedShares)
	l.debitBalance(req.Owner, req.LockedShares)
	l.supply.Sub(l.supply, req.LockedShares)
	l.managed.Sub(l.managed, req.Amount)
	return req.clone(), nil
}

// CancelRequest voids a pending request: the locked shares return to the
// owner's transferable balance; supply and managed assets are untouched.
// Like completion, cancellation is not blocked by the pause flag.
func (l *Ledger) CancelRequest(id common.Hash) (*WithdrawalRequest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	req, ok := l.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	if req.Status != RequestStatusPending {
		return nil, ErrRequestNotPending
	}

	req.Status = RequestStatusCanceled
	l.locked[req.Owner] = new(big.Int).Sub(l.lockedOf(req.Owner), req.LockedShares)
	return req.clone(), nil
}
