package models

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"
)

func parseSchema(t *testing.T, model any) *schema.Schema {
	t.Helper()
	s, err := schema.Parse(model, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)
	return s
}

// One aggregate row per ledger role: a combined home+gateway deployment
// writes two distinct rows, so the gateway's zeroed supply never overwrites
// the home vault's totals and the home side never resets the gateway's
// deposit counter.
func TestVaultStateKeyedByRole(t *testing.T) {
	s := parseSchema(t, &VaultState{})
	assert.Equal(t, []string{"role"}, s.PrimaryFieldDBNames)
}

// Replay keys are scoped per ledger role. A deposit id recorded by the
// gateway must still insert cleanly on the home side when the relayer
// delivers it, and restore must not pre-seed one ledger's guard with the
// other's ids.
func TestReplayKeyScopedByRole(t *testing.T) {
	s := parseSchema(t, &ReplayKey{})
	assert.ElementsMatch(t, []string{"role", "namespace", "key"}, s.PrimaryFieldDBNames)
}
