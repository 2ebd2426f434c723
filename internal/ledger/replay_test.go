package ledger

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayGuardConsumesOnce(t *testing.T) {
	g := NewReplayGuard()
	id := common.HexToHash("0x01")

	assert.False(t, g.Consumed(id))
	require.NoError(t, g.Consume(id))
	assert.True(t, g.Consumed(id))

	assert.ErrorIs(t, g.Consume(id), ErrReplay)
	assert.True(t, g.Consumed(id))
}

func TestReplayGuardNamespacesAreIndependent(t *testing.T) {
	deposits := NewReplayGuard()
	requests := NewReplayGuard()
	id := common.HexToHash("0x02")

	require.NoError(t, deposits.Consume(id))
	assert.NoError(t, requests.Consume(id))
}

func TestReplayGuardRestore(t *testing.T) {
	g := NewReplayGuard()
	id := common.HexToHash("0x03")
	g.Restore(id)
	assert.ErrorIs(t, g.Consume(id), ErrReplay)
}
