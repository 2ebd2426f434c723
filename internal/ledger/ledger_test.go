package ledger

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	usdc     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	bob      = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	identity = common.HexToAddress("0x00000000000000000000000000000000000000c1")
)

const remoteNetwork = uint32(7)

type stubPauser struct{ paused bool }

func (p *stubPauser) IsPaused() bool { return p.paused }

type stubTransport struct {
	ins, outs int
	failIn    bool
	failOut   bool
}

func (t *stubTransport) TransferIn(_ context.Context, _ common.Address, _ []byte, _ *big.Int) error {
	if t.failIn {
		return errors.New("transport: transfer in failed")
	}
	t.ins++
	return nil
}

func (t *stubTransport) TransferOut(_ context.Context, _ common.Address, _ []byte, _ *big.Int) error {
	if t.failOut {
		return errors.New("transport: transfer out failed")
	}
	t.outs++
	return nil
}

type testEnv struct {
	ledger    *Ledger
	pauser    *stubPauser
	transport *stubTransport
	vasset    common.Address
}

func newTestLedger(t *testing.T) *testEnv {
	t.Helper()
	pauser := &stubPauser{}
	transport := &stubTransport{}
	l := NewLedger(1, identity, pauser, transport, nil, nil)

	require.NoError(t, l.SetAllowedAsset(usdc, 6, true))
	require.NoError(t, l.SetDestinationNetwork(remoteNetwork, true))

	vasset, err := DeriveVirtualAsset(remoteNetwork, "uusdc")
	require.NoError(t, err)
	require.NoError(t, l.SetDestinationAsset(remoteNetwork, vasset, true))

	return &testEnv{ledger: l, pauser: pauser, transport: transport, vasset: vasset}
}

func (e *testEnv) depositUSDC(t *testing.T, receiver common.Address, units int64) *DepositResult {
	t.Helper()
	out, err := e.ledger.Deposit(context.Background(), receiver, usdc, big.NewInt(units*1_000000))
	require.NoError(t, err)
	return out
}

// Scenario: 1000 units of a 6-decimal asset bootstrap the vault at a price
// of exactly one.
func TestDepositBootstrap(t *testing.T) {
	env := newTestLedger(t)

	out := env.depositUSDC(t, alice, 1000)
	assert.Equal(t, wad(1000), out.NormalizedAmount)
	assert.Equal(t, wad(1000), out.SharesMinted)
	assert.Equal(t, wad(1), out.PricePerShare)
	assert.Equal(t, 1, env.transport.ins)

	snap := env.ledger.Snapshot()
	assert.Equal(t, wad(1000), snap.Supply)
	assert.Equal(t, wad(1000), snap.Managed)
	assert.Equal(t, wad(1000), env.ledger.BalanceOf(alice))
}

func TestDepositValidation(t *testing.T) {
	env := newTestLedger(t)
	ctx := context.Background()

	_, err := env.ledger.Deposit(ctx, alice, usdc, big.NewInt(0))
	assert.ErrorIs(t, err, ErrZeroAmount)

	_, err = env.ledger.Deposit(ctx, common.Address{}, usdc, big.NewInt(1))
	assert.ErrorIs(t, err, ErrZeroAddress)

	_, err = env.ledger.Deposit(ctx, alice, bob, big.NewInt(1))
	assert.ErrorIs(t, err, ErrAssetNotAllowed)

	// A failed transport commits nothing.
	env.transport.failIn = true
	_, err = env.ledger.Deposit(ctx, alice, usdc, big.NewInt(1_000000))
	require.Error(t, err)
	assert.Zero(t, env.ledger.Snapshot().Supply.Sign())
}

// Scenario: after a +500 profit on a 1000/1000 vault the price is 1.5, and a
// 300 deposit mints exactly 200 shares.
func TestProfitMovesPrice(t *testing.T) {
	env := newTestLedger(t)
	env.depositUSDC(t, alice, 1000)

	_, err := env.ledger.ReportProfit(wad(500))
	require.NoError(t, err)

	snap := env.ledger.Snapshot()
	expected, _ := new(big.Int).SetString("1500000000000000000", 10)
	assert.Equal(t, expected, snap.PricePerShare)

	out := env.depositUSDC(t, bob, 300)
	assert.Equal(t, wad(200), out.SharesMinted)
}

func TestProfitMintsFeeShares(t *testing.T) {
	env := newTestLedger(t)
	env.depositUSDC(t, alice, 1000)
	require.NoError(t, env.ledger.SetFeeConfig(1000, feeRecipient))

	report, err := env.ledger.ReportProfit(wad(500))
	require.NoError(t, err)

	expectedShares, _ := new(big.Int).SetString("33333333333333333333", 10)
	assert.Equal(t, expectedShares, report.FeeShares)
	assert.Equal(t, wad(50), report.FeeAmount)
	assert.Equal(t, expectedShares, env.ledger.BalanceOf(feeRecipient))

	// Fee shares dilute: managed is untouched, supply grew.
	snap := env.ledger.Snapshot()
	assert.Equal(t, wad(1500), snap.Managed)
	assert.Equal(t, new(big.Int).Add(wad(1000), expectedShares), snap.Supply)

	// The mark pins to the pre-dilution price of 1.5; minting the fee
	// shares then drags the live price below it.
	preDilution, _ := new(big.Int).SetString("1500000000000000000", 10)
	assert.Equal(t, preDilution, snap.HighWaterMark)
	assert.Equal(t, report.HighWaterMark, snap.HighWaterMark)
	assert.Equal(t, -1, snap.PricePerShare.Cmp(snap.HighWaterMark))
}

func TestFeeRateCap(t *testing.T) {
	env := newTestLedger(t)
	assert.ErrorIs(t, env.ledger.SetFeeConfig(MaxFeeBps+1, feeRecipient), ErrFeeRateTooHigh)
}

func TestReportLoss(t *testing.T) {
	env := newTestLedger(t)
	env.depositUSDC(t, alice, 1000)

	require.NoError(t, env.ledger.ReportLoss(wad(400)))
	assert.Equal(t, wad(600), env.ledger.Snapshot().Managed)

	assert.ErrorIs(t, env.ledger.ReportLoss(wad(601)), ErrManagedAssetsUnderflow)
	assert.ErrorIs(t, env.ledger.ReportLoss(new(big.Int)), ErrZeroAmount)
}

func TestRemoteDepositMintsToPseudoIdentity(t *testing.T) {
	env := newTestLedger(t)
	id := common.HexToHash("0xd1")

	out, err := env.ledger.RecordRemoteDeposit(id, remoteNetwork, "cosmos1alice", "uusdc", wad(1000))
	require.NoError(t, err)
	assert.True(t, out.NewIdentity)
	assert.Equal(t, env.vasset, out.Asset)
	assert.Equal(t, wad(1000), out.SharesMinted)
	assert.Equal(t, wad(1000), env.ledger.BalanceOf(out.Receiver))

	origin, ok := env.ledger.LookupOrigin(out.Receiver)
	assert.True(t, ok)
	assert.NotEqual(t, common.Hash{}, origin)
}

// Scenario: a duplicate deposit id is rejected with no effect, and a failed
// validation leaves the id unconsumed so a corrected retry succeeds.
func TestRemoteDepositReplayProtection(t *testing.T) {
	env := newTestLedger(t)
	id := common.HexToHash("0xd2")

	// First attempt fails validation: zero amount. The id must survive.
	_, err := env.ledger.RecordRemoteDeposit(id, remoteNetwork, "cosmos1alice", "uusdc", new(big.Int))
	assert.ErrorIs(t, err, ErrZeroAmount)

	out, err := env.ledger.RecordRemoteDeposit(id, remoteNetwork, "cosmos1alice", "uusdc", wad(10))
	require.NoError(t, err)

	// Replay after success changes nothing.
	_, err = env.ledger.RecordRemoteDeposit(id, remoteNetwork, "cosmos1alice", "uusdc", wad(10))
	assert.ErrorIs(t, err, ErrReplay)
	assert.Equal(t, wad(10), env.ledger.BalanceOf(out.Receiver))
	assert.Equal(t, wad(10), env.ledger.Snapshot().Supply)
}

func TestRemoteDepositRequiresAllowlistedAsset(t *testing.T) {
	env := newTestLedger(t)
	_, err := env.ledger.RecordRemoteDeposit(common.HexToHash("0xd3"), remoteNetwork, "cosmos1alice", "unknown", wad(10))
	assert.ErrorIs(t, err, ErrDestinationNotAllowed)
}

func TestTransferRespectsLocks(t *testing.T) {
	env := newTestLedger(t)
	env.depositUSDC(t, alice, 1000)

	_, err := env.ledger.RequestWithdrawal(alice, []byte("addr"), remoteNetwork, env.vasset, wad(600), nil)
	require.NoError(t, err)

	// 600 of 1000 shares are locked; moving 500 must fail, 400 succeeds.
	err = env.ledger.Transfer(alice, bob, wad(500))
	assert.ErrorIs(t, err, ErrInsufficientUnlockedShares)

	require.NoError(t, env.ledger.Transfer(alice, bob, wad(400)))
	assert.Equal(t, wad(400), env.ledger.BalanceOf(bob))
	assert.Equal(t, wad(600), env.ledger.BalanceOf(alice))
}

func TestPauseBlocksMutationsButNotFinalization(t *testing.T) {
	env := newTestLedger(t)
	env.depositUSDC(t, alice, 1000)
	req, err := env.ledger.RequestWithdrawal(alice, []byte("addr"), remoteNetwork, env.vasset, wad(100), nil)
	require.NoError(t, err)

	env.pauser.paused = true

	_, err = env.ledger.Deposit(context.Background(), alice, usdc, big.NewInt(1_000000))
	assert.ErrorIs(t, err, ErrPaused)
	_, err = env.ledger.RequestWithdrawal(alice, []byte("addr"), remoteNetwork, env.vasset, wad(1), nil)
	assert.ErrorIs(t, err, ErrPaused)
	assert.ErrorIs(t, env.ledger.Transfer(alice, bob, wad(1)), ErrPaused)
	_, err = env.ledger.ReportProfit(wad(1))
	assert.ErrorIs(t, err, ErrPaused)

	// Finalization and cancellation stay available during an incident.
	_, err = env.ledger.CancelRequest(req.ID)
	assert.NoError(t, err)
}

func TestOutboundTransfer(t *testing.T) {
	env := newTestLedger(t)
	env.depositUSDC(t, alice, 1000)

	out, err := env.ledger.ExecuteOutboundTransfer(context.Background(), usdc, remoteNetwork, []byte("gateway"), big.NewInt(500_000000))
	require.NoError(t, err)
	assert.NotEqual(t, common.Hash{}, out.OperationID)
	assert.Equal(t, 1, env.transport.outs)

	// Managed assets do not move with custody.
	assert.Equal(t, wad(1000), env.ledger.Snapshot().Managed)

	// Each execution derives a fresh id.
	out2, err := env.ledger.ExecuteOutboundTransfer(context.Background(), usdc, remoteNetwork, []byte("gateway"), big.NewInt(1_000000))
	require.NoError(t, err)
	assert.NotEqual(t, out.OperationID, out2.OperationID)
}

func TestOutboundTransferValidation(t *testing.T) {
	env := newTestLedger(t)
	ctx := context.Background()

	_, err := env.ledger.ExecuteOutboundTransfer(ctx, usdc, 99, []byte("gateway"), big.NewInt(1))
	assert.ErrorIs(t, err, ErrDestinationNotAllowed)

	_, err = env.ledger.ExecuteOutboundTransfer(ctx, usdc, remoteNetwork, nil, big.NewInt(1))
	assert.ErrorIs(t, err, ErrEmptyReceiver)

	env.transport.failOut = true
	_, err = env.ledger.ExecuteOutboundTransfer(ctx, usdc, remoteNetwork, []byte("gateway"), big.NewInt(1))
	require.Error(t, err)
}

func TestAssetDecimalsAreImmutable(t *testing.T) {
	env := newTestLedger(t)
	assert.ErrorIs(t, env.ledger.SetAllowedAsset(usdc, 8, true), ErrDecimalsImmutable)
	// Flipping the allowed flag with unchanged decimals is fine.
	assert.NoError(t, env.ledger.SetAllowedAsset(usdc, 6, false))
}

func TestDestinationAssetRequiresNetworkEntry(t *testing.T) {
	env := newTestLedger(t)
	err := env.ledger.SetDestinationAsset(42, env.vasset, true)
	assert.ErrorIs(t, err, ErrDestinationNotAllowed)
}
