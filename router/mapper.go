package router

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/exp/maps"
)

// AssetMapper links (remote chain id, remote asset address) pairs to local
// asset addresses. Many remote addresses may map to one local asset, but a
// remote address maps to at most one local asset per chain.
type AssetMapper struct {
	auth Authority

	mu sync.RWMutex
	m  map[uint64]map[common.Address]common.Address
}

func NewAssetMapper(auth Authority) *AssetMapper {
	return &AssetMapper{
		auth: auth,
		m:    make(map[uint64]map[common.Address]common.Address),
	}
}

func (am *AssetMapper) SetMapping(identity common.Address, remoteChainID uint64, remoteAsset, localAsset common.Address) error {
	if !am.auth.HasCapability(identity, CapabilityConfigure) {
		return ErrUnauthorized
	}
	am.mu.Lock()
	defer am.mu.Unlock()
	if am.m[remoteChainID] == nil {
		am.m[remoteChainID] = make(map[common.Address]common.Address)
	}
	am.m[remoteChainID][remoteAsset] = localAsset
	return nil
}

// ResolveLocal is a pure lookup; no validation beyond existence.
func (am *AssetMapper) ResolveLocal(remoteChainID uint64, remoteAsset common.Address) (common.Address, bool) {
	am.mu.RLock()
	defer am.mu.RUnlock()
	local, ok := am.m[remoteChainID][remoteAsset]
	return local, ok
}

// Chains returns the remote chain ids with at least one configured mapping.
func (am *AssetMapper) Chains() []uint64 {
	am.mu.RLock()
	defer am.mu.RUnlock()
	return maps.Keys(am.m)
}
