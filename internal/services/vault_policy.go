package services

import "github.com/ethereum/go-ethereum/common"

// StaticVaultPolicy is a configuration-backed allowlist of external yield
// vaults. Unparseable entries are dropped.
type StaticVaultPolicy struct {
	allowed map[common.Address]bool
}

func NewStaticVaultPolicy(vaults []string) *StaticVaultPolicy {
	allowed := make(map[common.Address]bool, len(vaults))
	for _, v := range vaults {
		if common.IsHexAddress(v) {
			allowed[common.HexToAddress(v)] = true
		}
	}
	return &StaticVaultPolicy{allowed: allowed}
}

func (p *StaticVaultPolicy) IsVaultAllowed(vault common.Address) bool {
	return p.allowed[vault]
}
