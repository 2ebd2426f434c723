package ledger

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterOrLookupIsIdempotent(t *testing.T) {
	r := NewPseudoIdentityRegistry()

	first, created, err := r.RegisterOrLookup(7, "cosmos1qypqxpq9qcrsszg2pvxq6rs0zqg3yyc5lzv7xu")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, common.Address{}, first)

	second, created, err := r.RegisterOrLookup(7, "cosmos1qypqxpq9qcrsszg2pvxq6rs0zqg3yyc5lzv7xu")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first, second)
}

func TestRegisterOrLookupDistinguishesInputs(t *testing.T) {
	r := NewPseudoIdentityRegistry()

	a, _, err := r.RegisterOrLookup(7, "alice")
	require.NoError(t, err)
	b, _, err := r.RegisterOrLookup(8, "alice")
	require.NoError(t, err)
	c, _, err := r.RegisterOrLookup(7, "alicf")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestRegisterOrLookupValidatesInputs(t *testing.T) {
	r := NewPseudoIdentityRegistry()

	_, _, err := r.RegisterOrLookup(0, "alice")
	assert.ErrorIs(t, err, ErrInvalidNetwork)

	_, _, err = r.RegisterOrLookup(7, "")
	assert.ErrorIs(t, err, ErrInvalidAccount)
}

func TestLookupOriginRoundTrip(t *testing.T) {
	r := NewPseudoIdentityRegistry()

	addr, _, err := r.RegisterOrLookup(7, "alice")
	require.NoError(t, err)

	origin, ok := r.LookupOrigin(addr)
	require.True(t, ok)
	assert.NotEqual(t, common.Hash{}, origin)

	_, ok = r.LookupOrigin(common.HexToAddress("0xdead"))
	assert.False(t, ok)
}

func TestDeriveVirtualAssetIsPureAndDeterministic(t *testing.T) {
	a, err := DeriveVirtualAsset(7, "uusdc")
	require.NoError(t, err)
	b, err := DeriveVirtualAsset(7, "uusdc")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := DeriveVirtualAsset(8, "uusdc")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	_, err = DeriveVirtualAsset(0, "uusdc")
	assert.ErrorIs(t, err, ErrInvalidNetwork)
	_, err = DeriveVirtualAsset(7, "")
	assert.ErrorIs(t, err, ErrInvalidAccount)
}

func TestVirtualAssetDomainSeparation(t *testing.T) {
	// The asset derivation must never collide with the account derivation
	// for the same raw string.
	asset, err := DeriveVirtualAsset(7, "alice")
	require.NoError(t, err)

	r := NewPseudoIdentityRegistry()
	account, _, err := r.RegisterOrLookup(7, "alice")
	require.NoError(t, err)

	assert.NotEqual(t, asset, account)
}
