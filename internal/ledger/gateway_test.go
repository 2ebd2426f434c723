package ledger

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T) (*GatewayLedger, *stubPauser, *stubTransport) {
	t.Helper()
	pauser := &stubPauser{}
	transport := &stubTransport{}
	g := NewGatewayLedger(remoteNetwork, identity, pauser, transport, nil, nil)
	require.NoError(t, g.SetAllowedAsset(usdc, 6, true))
	return g, pauser, transport
}

func TestGatewayRecordDeposit(t *testing.T) {
	g, _, transport := newTestGateway(t)

	out, err := g.RecordDeposit(context.Background(), "cosmos1alice", usdc, big.NewInt(1000_000000))
	require.NoError(t, err)
	assert.NotEqual(t, common.Hash{}, out.DepositID)
	assert.Equal(t, wad(1000), out.NormalizedAmount)
	assert.Equal(t, wad(1000), g.CustodyOf(usdc))
	assert.Equal(t, 1, transport.ins)

	// Consecutive deposits derive distinct ids.
	out2, err := g.RecordDeposit(context.Background(), "cosmos1alice", usdc, big.NewInt(1_000000))
	require.NoError(t, err)
	assert.NotEqual(t, out.DepositID, out2.DepositID)
}

func TestGatewayDepositValidation(t *testing.T) {
	g, _, transport := newTestGateway(t)
	ctx := context.Background()

	_, err := g.RecordDeposit(ctx, "", usdc, big.NewInt(1))
	assert.ErrorIs(t, err, ErrInvalidAccount)

	_, err = g.RecordDeposit(ctx, "cosmos1alice", bob, big.NewInt(1))
	assert.ErrorIs(t, err, ErrAssetNotAllowed)

	transport.failIn = true
	_, err = g.RecordDeposit(ctx, "cosmos1alice", usdc, big.NewInt(1_000000))
	require.Error(t, err)
	assert.Zero(t, g.CustodyOf(usdc).Sign())
}

func TestGatewayPayoutLifecycle(t *testing.T) {
	g, _, transport := newTestGateway(t)
	ctx := context.Background()
	_, err := g.RecordDeposit(ctx, "cosmos1alice", usdc, big.NewInt(1000_000000))
	require.NoError(t, err)

	id := common.HexToHash("0xa1")
	amount, _ := new(big.Int).SetString("66666666666666666667", 10) // 66.66..
	req, err := g.RecordPayoutRequest(id, []byte("cosmos1alice"), usdc, amount)
	require.NoError(t, err)
	assert.Equal(t, RequestStatusPending, req.Status)

	// Replay of the same cross-network id is rejected.
	_, err = g.RecordPayoutRequest(id, []byte("cosmos1alice"), usdc, amount)
	assert.ErrorIs(t, err, ErrReplay)

	out, err := g.CompletePayout(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, RequestStatusCompleted, out.Request.Status)
	// Truncated to the 6-decimal native scale, never rounded up.
	assert.Equal(t, big.NewInt(66_666666), out.NativeAmount)
	assert.Equal(t, 1, transport.outs)
	assert.Equal(t, new(big.Int).Sub(wad(1000), amount), g.CustodyOf(usdc))

	_, err = g.CompletePayout(ctx, id)
	assert.ErrorIs(t, err, ErrRequestNotPending)
}

func TestGatewayPayoutCancel(t *testing.T) {
	g, _, _ := newTestGateway(t)
	ctx := context.Background()
	_, err := g.RecordDeposit(ctx, "cosmos1alice", usdc, big.NewInt(10_000000))
	require.NoError(t, err)

	id := common.HexToHash("0xa2")
	_, err = g.RecordPayoutRequest(id, []byte("r"), usdc, wad(5))
	require.NoError(t, err)

	canceled, err := g.CancelPayout(id)
	require.NoError(t, err)
	assert.Equal(t, RequestStatusCanceled, canceled.Status)
	assert.Equal(t, wad(10), g.CustodyOf(usdc))

	_, err = g.CompletePayout(ctx, id)
	assert.ErrorIs(t, err, ErrRequestNotPending)
}

func TestGatewayCustodyUnderflowIsHardStop(t *testing.T) {
	g, _, _ := newTestGateway(t)
	ctx := context.Background()
	_, err := g.RecordDeposit(ctx, "cosmos1alice", usdc, big.NewInt(10_000000))
	require.NoError(t, err)

	id := common.HexToHash("0xa3")
	_, err = g.RecordPayoutRequest(id, []byte("r"), usdc, wad(50))
	require.NoError(t, err)

	_, err = g.CompletePayout(ctx, id)
	assert.ErrorIs(t, err, ErrCustodyUnderflow)

	// The request is still pending and can settle after custody is topped up.
	_, err = g.RecordDeposit(ctx, "cosmos1bob", usdc, big.NewInt(100_000000))
	require.NoError(t, err)
	_, err = g.CompletePayout(ctx, id)
	assert.NoError(t, err)
}

func TestGatewayFailedValidationKeepsIDUsable(t *testing.T) {
	g, _, _ := newTestGateway(t)
	id := common.HexToHash("0xa4")

	_, err := g.RecordPayoutRequest(id, []byte("r"), usdc, new(big.Int))
	assert.ErrorIs(t, err, ErrZeroAmount)

	_, err = g.RecordPayoutRequest(id, []byte("r"), usdc, wad(1))
	assert.NoError(t, err)
}

func TestGatewayPauseSemantics(t *testing.T) {
	g, pauser, _ := newTestGateway(t)
	ctx := context.Background()
	_, err := g.RecordDeposit(ctx, "cosmos1alice", usdc, big.NewInt(10_000000))
	require.NoError(t, err)
	id := common.HexToHash("0xa5")
	_, err = g.RecordPayoutRequest(id, []byte("r"), usdc, wad(5))
	require.NoError(t, err)

	pauser.paused = true

	_, err = g.RecordDeposit(ctx, "cosmos1alice", usdc, big.NewInt(1_000000))
	assert.ErrorIs(t, err, ErrPaused)
	_, err = g.RecordPayoutRequest(common.HexToHash("0xa6"), []byte("r"), usdc, wad(1))
	assert.ErrorIs(t, err, ErrPaused)

	// Settlement of the committed obligation still runs.
	_, err = g.CompletePayout(ctx, id)
	assert.NoError(t, err)
}
