package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Domain-separation prefixes for deterministic identifier derivation.
const (
	accountDomainPrefix = "hako:"
	assetDomainPrefix   = "hako:asset:"
)

// PseudoIdentityRegistry deterministically derives and idempotently registers
// a local address for accounts native to networks whose identifiers have no
// local representation. The mapping is bidirectional and first-writer-wins:
// once an origin hash is bound to a local address, every later registration
// of the same (network, account) pair returns the same address.
type PseudoIdentityRegistry struct {
	byOrigin map[common.Hash]common.Address
	byLocal  map[common.Address]common.Hash
}

// NewPseudoIdentityRegistry returns an empty registry.
func NewPseudoIdentityRegistry() *PseudoIdentityRegistry {
	return &PseudoIdentityRegistry{
		byOrigin: make(map[common.Hash]common.Address),
		byLocal:  make(map[common.Address]common.Hash),
	}
}

// derivePseudoAddress hashes the domain-separated preimage and takes the low
// 20 bytes as the candidate address. The zero address is reserved, so a
// candidate that collides with it is re-derived from the preimage with a
// literal ":1" suffix.
func derivePseudoAddress(preimage string) (common.Address, common.Hash) {
	hash := crypto.Keccak256Hash([]byte(preimage))
	addr := common.BytesToAddress(hash.Bytes()[12:])
	if addr == (common.Address{}) {
		retry := crypto.Keccak256Hash([]byte(preimage + ":1"))
		addr = common.BytesToAddress(retry.Bytes()[12:])
	}
	return addr, hash
}

// RegisterOrLookup derives the local address for an origin account and
// registers it on first use. Registration is idempotent: a pair already
// registered returns its existing address and changes nothing.
func (r *PseudoIdentityRegistry) RegisterOrLookup(originNetwork uint32, originAccount string) (common.Address, bool, error) {
	if originNetwork == 0 {
		return common.Address{}, false, ErrInvalidNetwork
	}
	if originAccount == "" {
		return common.Address{}, false, ErrInvalidAccount
	}

	addr, originHash := derivePseudoAddress(fmt.Sprintf("%s%d:%s", accountDomainPrefix, originNetwork, originAccount))
	if existing, ok := r.byOrigin[originHash]; ok {
		return existing, false, nil
	}

	r.byOrigin[originHash] = addr
	r.byLocal[addr] = originHash
	return addr, true, nil
}

// LookupOrigin returns the origin hash a local address was derived from.
func (r *PseudoIdentityRegistry) LookupOrigin(local common.Address) (common.Hash, bool) {
	h, ok := r.byLocal[local]
	return h, ok
}

// Restore re-binds an origin hash to a local address during rehydration.
func (r *PseudoIdentityRegistry) Restore(originHash common.Hash, local common.Address) {
	r.byOrigin[originHash] = local
	r.byLocal[local] = originHash
}

// DeriveVirtualAsset names a destination-chain asset that has no native
// local representation. The derivation is pure: no registry state is read or
// written, so home and gateway ledgers agree on the identifier without
// coordination.
func DeriveVirtualAsset(destinationNetwork uint32, assetID string) (common.Address, error) {
	if destinationNetwork == 0 {
		return common.Address{}, ErrInvalidNetwork
	}
	if assetID == "" {
		return common.Address{}, ErrInvalidAccount
	}
	addr, _ := derivePseudoAddress(fmt.Sprintf("%s%d:%s", assetDomainPrefix, destinationNetwork, assetID))
	return addr, nil
}
