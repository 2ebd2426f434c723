package ledger

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupPricedVault deposits 1000 and reports +500 profit so the price sits
// at exactly 1.5.
func setupPricedVault(t *testing.T) *testEnv {
	t.Helper()
	env := newTestLedger(t)
	env.depositUSDC(t, alice, 1000)
	_, err := env.ledger.ReportProfit(wad(500))
	require.NoError(t, err)
	return env
}

// Scenario: at price 1.5, targeting a 100 payout locks ceil(66.66..) shares,
// and completion burns that exact lock and exactly 100 managed assets.
func TestWithdrawalByAmountLifecycle(t *testing.T) {
	env := setupPricedVault(t)

	req, err := env.ledger.RequestWithdrawal(alice, []byte("cosmos1alice"), remoteNetwork, env.vasset, wad(100), nil)
	require.NoError(t, err)

	expectedLock, _ := new(big.Int).SetString("66666666666666666667", 10)
	assert.Equal(t, expectedLock, req.LockedShares)
	assert.Equal(t, RequestStatusPending, req.Status)
	assert.Equal(t, expectedLock, env.ledger.LockedOf(alice))

	supplyBefore := env.ledger.Snapshot().Supply
	managedBefore := env.ledger.Snapshot().Managed

	done, err := env.ledger.CompleteRequest(req.ID)
	require.NoError(t, err)
	assert.Equal(t, RequestStatusCompleted, done.Status)

	snap := env.ledger.Snapshot()
	assert.Equal(t, new(big.Int).Sub(supplyBefore, expectedLock), snap.Supply)
	assert.Equal(t, new(big.Int).Sub(managedBefore, wad(100)), snap.Managed)
	assert.Zero(t, env.ledger.LockedOf(alice).Sign())

	// Terminal: neither transition can run again.
	_, err = env.ledger.CompleteRequest(req.ID)
	assert.ErrorIs(t, err, ErrRequestNotPending)
	_, err = env.ledger.CancelRequest(req.ID)
	assert.ErrorIs(t, err, ErrRequestNotPending)
}

// Scenario: canceling restores the owner's lock and leaves supply and
// managed assets unchanged.
func TestWithdrawalCancel(t *testing.T) {
	env := setupPricedVault(t)
	before := env.ledger.Snapshot()

	req, err := env.ledger.RequestWithdrawal(alice, []byte("cosmos1alice"), remoteNetwork, env.vasset, wad(100), nil)
	require.NoError(t, err)
	require.True(t, env.ledger.LockedOf(alice).Sign() > 0)

	canceled, err := env.ledger.CancelRequest(req.ID)
	require.NoError(t, err)
	assert.Equal(t, RequestStatusCanceled, canceled.Status)
	assert.Zero(t, env.ledger.LockedOf(alice).Sign())

	after := env.ledger.Snapshot()
	assert.Equal(t, before.Supply, after.Supply)
	assert.Equal(t, before.Managed, after.Managed)
}

func TestWithdrawalSlippageCap(t *testing.T) {
	env := setupPricedVault(t)

	tooTight := wad(66) // needs 66.66..67
	_, err := env.ledger.RequestWithdrawal(alice, []byte("r"), remoteNetwork, env.vasset, wad(100), tooTight)
	assert.ErrorIs(t, err, ErrSharesExceedMax)
	assert.Zero(t, env.ledger.LockedOf(alice).Sign())

	_, err = env.ledger.RequestWithdrawal(alice, []byte("r"), remoteNetwork, env.vasset, wad(100), wad(67))
	assert.NoError(t, err)
}

func TestRedeemByShares(t *testing.T) {
	env := setupPricedVault(t)

	// 200 shares at price 1.5 pay exactly 300.
	req, err := env.ledger.RequestRedeem(alice, []byte("r"), remoteNetwork, env.vasset, wad(200), wad(300))
	require.NoError(t, err)
	assert.Equal(t, wad(300), req.Amount)
	assert.Equal(t, wad(200), req.LockedShares)

	// A floor above the conversion rejects with nothing locked.
	_, err = env.ledger.RequestRedeem(alice, []byte("r"), remoteNetwork, env.vasset, wad(100), wad(151))
	assert.ErrorIs(t, err, ErrAmountBelowMin)
}

func TestControllerPathNonce(t *testing.T) {
	env := setupPricedVault(t)

	// Wrong nonce: rejected, not consumed.
	_, err := env.ledger.RequestWithdrawalFor(alice, 3, []byte("r"), remoteNetwork, env.vasset, wad(10), nil)
	assert.ErrorIs(t, err, ErrNonceMismatch)
	assert.Equal(t, uint64(0), env.ledger.NonceOf(alice))

	_, err = env.ledger.RequestWithdrawalFor(alice, 0, []byte("r"), remoteNetwork, env.vasset, wad(10), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), env.ledger.NonceOf(alice))

	// A failed creation after the nonce check must not consume the nonce.
	_, err = env.ledger.RequestWithdrawalFor(alice, 1, []byte("r"), remoteNetwork, env.vasset, wad(10), big.NewInt(1))
	assert.ErrorIs(t, err, ErrSharesExceedMax)
	assert.Equal(t, uint64(1), env.ledger.NonceOf(alice))

	_, err = env.ledger.RequestWithdrawalFor(alice, 1, []byte("r"), remoteNetwork, env.vasset, wad(10), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), env.ledger.NonceOf(alice))
}

// Scenario: a remote request replayed with the same cross-network id after
// success is rejected with no effect.
func TestRemoteRequestReplay(t *testing.T) {
	env := setupPricedVault(t)
	id := common.HexToHash("0xe1")

	// Seed the remote owner with shares.
	dep, err := env.ledger.RecordRemoteDeposit(common.HexToHash("0xd9"), remoteNetwork, "cosmos1alice", "uusdc", wad(150))
	require.NoError(t, err)

	req, err := env.ledger.RecordRemoteRequest(id, remoteNetwork, "cosmos1alice", []byte("cosmos1alice"), remoteNetwork, env.vasset, wad(30), nil)
	require.NoError(t, err)
	assert.Equal(t, id, req.ID)
	assert.Equal(t, dep.Receiver, req.Owner)

	lockedAfterFirst := env.ledger.LockedOf(dep.Receiver)
	_, err = env.ledger.RecordRemoteRequest(id, remoteNetwork, "cosmos1alice", []byte("cosmos1alice"), remoteNetwork, env.vasset, wad(30), nil)
	assert.ErrorIs(t, err, ErrReplay)
	assert.Equal(t, lockedAfterFirst, env.ledger.LockedOf(dep.Receiver))
}

func TestRemoteRequestFailedValidationKeepsIDUsable(t *testing.T) {
	env := setupPricedVault(t)
	id := common.HexToHash("0xe2")

	// Owner has no shares yet: rejected, id unconsumed.
	_, err := env.ledger.RecordRemoteRequest(id, remoteNetwork, "cosmos1bob", []byte("r"), remoteNetwork, env.vasset, wad(30), nil)
	assert.ErrorIs(t, err, ErrInsufficientUnlockedShares)

	// Corrected retry with the same id succeeds once the owner is funded.
	_, err = env.ledger.RecordRemoteDeposit(common.HexToHash("0xdc"), remoteNetwork, "cosmos1bob", "uusdc", wad(100))
	require.NoError(t, err)
	_, err = env.ledger.RecordRemoteRequest(id, remoteNetwork, "cosmos1bob", []byte("r"), remoteNetwork, env.vasset, wad(30), nil)
	assert.NoError(t, err)
}

func TestRemoteRequestRejectionRegistersNoIdentity(t *testing.T) {
	env := setupPricedVault(t)

	_, err := env.ledger.RecordRemoteRequest(common.HexToHash("0xe3"), remoteNetwork, "cosmos1carol", []byte("r"), remoteNetwork, env.vasset, wad(5), nil)
	assert.ErrorIs(t, err, ErrInsufficientUnlockedShares)

	// Registering afterwards reports a fresh identity.
	_, created, err := env.ledger.RegisterPseudoIdentity(remoteNetwork, "cosmos1carol")
	require.NoError(t, err)
	assert.True(t, created)
}

func TestCompleteManagedUnderflowIsHardStop(t *testing.T) {
	env := setupPricedVault(t)

	req, err := env.ledger.RequestWithdrawal(alice, []byte("r"), remoteNetwork, env.vasset, wad(100), nil)
	require.NoError(t, err)

	// A reported loss drains managed assets below the request amount.
	require.NoError(t, env.ledger.ReportLoss(wad(1450)))

	_, err = env.ledger.CompleteRequest(req.ID)
	assert.ErrorIs(t, err, ErrManagedAssetsUnderflow)

	// Nothing changed: the request is still pending and the lock holds.
	still, err := env.ledger.Request(req.ID)
	require.NoError(t, err)
	assert.Equal(t, RequestStatusPending, still.Status)
	assert.Equal(t, req.LockedShares, env.ledger.LockedOf(alice))
}

func TestRequestValidation(t *testing.T) {
	env := setupPricedVault(t)

	_, err := env.ledger.RequestWithdrawal(alice, nil, remoteNetwork, env.vasset, wad(10), nil)
	assert.ErrorIs(t, err, ErrEmptyReceiver)

	_, err = env.ledger.RequestWithdrawal(alice, []byte("r"), 99, env.vasset, wad(10), nil)
	assert.ErrorIs(t, err, ErrDestinationNotAllowed)

	_, err = env.ledger.RequestWithdrawal(common.Address{}, []byte("r"), remoteNetwork, env.vasset, wad(10), nil)
	assert.ErrorIs(t, err, ErrZeroAddress)

	_, err = env.ledger.CompleteRequest(common.HexToHash("0xff"))
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestPendingRequestsDoNotBlockOthers(t *testing.T) {
	env := setupPricedVault(t)

	_, err := env.ledger.RequestWithdrawal(alice, []byte("r"), remoteNetwork, env.vasset, wad(100), nil)
	require.NoError(t, err)

	// An unrelated deposit and a second request both proceed.
	env.depositUSDC(t, bob, 100)
	second, err := env.ledger.RequestWithdrawal(bob, []byte("r"), remoteNetwork, env.vasset, wad(10), nil)
	require.NoError(t, err)

	_, err = env.ledger.CancelRequest(second.ID)
	assert.NoError(t, err)
}
