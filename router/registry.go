package router

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

// AssetRegistry maps a local asset to its pricing configuration. Mutation is
// capability-gated; Configure is an idempotent upsert and Remove notifies the
// adapter so it can drop its own per-asset state.
type AssetRegistry struct {
	lggr logger.Logger
	auth Authority

	mu      sync.RWMutex
	configs map[common.Address]AssetConfig
}

func NewAssetRegistry(lggr logger.Logger, auth Authority) *AssetRegistry {
	return &AssetRegistry{
		lggr:    logger.Named(lggr, "AssetRegistry"),
		auth:    auth,
		configs: make(map[common.Address]AssetConfig),
	}
}

func (r *AssetRegistry) Configure(identity, asset common.Address, adapter PriceAdapter, feedID common.Hash, heartbeat time.Duration, inUSD bool) error {
	if !r.auth.HasCapability(identity, CapabilityConfigure) {
		return ErrUnauthorized
	}
	if adapter == nil {
		return fmt.Errorf("nil adapter for asset %s", asset.Hex())
	}
	if heartbeat == 0 {
		heartbeat = DefaultHeartbeat
	}
	r.mu.Lock()
	r.configs[asset] = AssetConfig{
		Adapter:   adapter,
		FeedID:    feedID,
		Heartbeat: heartbeat,
		InUSD:     inUSD,
	}
	r.mu.Unlock()
	r.lggr.Infow("Configured asset", "asset", asset.Hex(), "feedID", feedID.Hex(), "heartbeat", heartbeat, "inUSD", inUSD)
	return nil
}

// Remove deletes the asset's config and issues the removal notification to
// its adapter. The notification happens outside the registry lock; the
// adapter owns its own state and must not call back into the registry.
func (r *AssetRegistry) Remove(identity, asset common.Address) error {
	if !r.auth.HasCapability(identity, CapabilityConfigure) {
		return ErrUnauthorized
	}
	r.mu.Lock()
	cfg, ok := r.configs[asset]
	if !ok {
		r.mu.Unlock()
		return ErrAssetNotSupported
	}
	delete(r.configs, asset)
	r.mu.Unlock()

	cfg.Adapter.RemoveAsset(asset)
	r.lggr.Infow("Removed asset", "asset", asset.Hex())
	return nil
}

func (r *AssetRegistry) Get(asset common.Address) (AssetConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[asset]
	return cfg, ok
}

func (r *AssetRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.configs)
}
