package router

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
	"github.com/smartcontractkit/chainlink-common/pkg/services"
)

// Opts configures a Router.
type Opts struct {
	Logger logger.Logger
	// LocalChainID identifies the chain this router serves; inbound batches
	// claiming to originate here are rejected
	LocalChainID uint64
	// MaxReports bounds inbound batch size; zero selects DefaultMaxReports
	MaxReports int
	Authority  Authority
	// Vaults resolves vault addresses for snapshotting. Optional if Snapshot
	// is never called.
	Vaults VaultOpener
}

func (o *Opts) verifyConfig() error {
	var errs []error
	if o.Logger == nil {
		errs = append(errs, errors.New("logger is required"))
	}
	if o.LocalChainID == 0 {
		errs = append(errs, errors.New("local chain id is required"))
	}
	if o.Authority == nil {
		errs = append(errs, errors.New("authority is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid router configuration: %v", errs)
	}
	return nil
}

// Router owns the asset registry, cross-chain mapping and report store, and
// exposes the full query and configuration surface behind one facade.
type Router struct {
	services.Service

	lggr logger.Logger

	registry    *AssetRegistry
	mapper      *AssetMapper
	resolver    *Resolver
	snapshotter *Snapshotter
	store       *ReportStore
	ingester    *Ingester
}

func NewRouter(opts Opts) (*Router, error) {
	if err := opts.verifyConfig(); err != nil {
		return nil, err
	}
	lggr := logger.Named(opts.Logger, "SharePriceRouter")
	metrics := newRouterMetrics()

	registry := NewAssetRegistry(lggr, opts.Authority)
	mapper := NewAssetMapper(opts.Authority)
	resolver := NewResolver(lggr, registry, metrics)
	store := NewReportStore()

	r := &Router{
		lggr:        lggr,
		registry:    registry,
		mapper:      mapper,
		resolver:    resolver,
		snapshotter: NewSnapshotter(lggr, opts.LocalChainID, resolver, opts.Vaults),
		store:       store,
		ingester:    NewIngester(lggr, opts.LocalChainID, opts.MaxReports, opts.Authority, mapper, store, metrics),
	}

	svc, _ := services.Config{
		Name:  "SharePriceRouter",
		Start: func(ctx context.Context) error { return nil },
		Close: func() error { return nil },
	}.NewServiceEngine(lggr)
	r.Service = svc

	return r, nil
}

// Configure upserts the pricing configuration for a local asset.
func (r *Router) Configure(identity, asset common.Address, adapter PriceAdapter, feedID common.Hash, heartbeat time.Duration, inUSD bool) error {
	return r.registry.Configure(identity, asset, adapter, feedID, heartbeat, inUSD)
}

// RemoveAsset drops an asset's configuration and notifies its adapter.
func (r *Router) RemoveAsset(identity, asset common.Address) error {
	return r.registry.Remove(identity, asset)
}

// SetAssetMapping links a remote asset address to a local one.
func (r *Router) SetAssetMapping(identity common.Address, remoteChainID uint64, remoteAsset, localAsset common.Address) error {
	return r.mapper.SetMapping(identity, remoteChainID, remoteAsset, localAsset)
}

// Resolve returns the asset's current local price.
func (r *Router) Resolve(ctx context.Context, asset common.Address, inUSD bool) (PriceResult, error) {
	return r.resolver.Resolve(ctx, asset, inUSD)
}

// Snapshot produces outbound reports for a batch of local vaults.
func (r *Router) Snapshot(ctx context.Context, vaults []common.Address, rewardsDelegate common.Address) ([]VaultReport, error) {
	return r.snapshotter.Snapshot(ctx, vaults, rewardsDelegate)
}

// Ingest submits an inbound cross-chain report batch.
func (r *Router) Ingest(ctx context.Context, identity common.Address, sourceChainID uint64, reports []VaultReport) error {
	return r.ingester.Ingest(ctx, identity, sourceChainID, reports)
}

// GetLatestReport returns the stored record for a (chainID, vault) key.
func (r *Router) GetLatestReport(chainID uint64, vault common.Address) (StoredSharePrice, bool) {
	return r.store.Latest(chainID, vault)
}

// LatestSharePrice returns the freshest stored share price for a vault across
// all source chains: price, decimals and producer timestamp.
func (r *Router) LatestSharePrice(vault common.Address) (price *big.Int, decimals uint8, lastUpdate uint64, ok bool) {
	rec, ok := r.store.LatestAny(vault)
	if !ok {
		return nil, 0, 0, false
	}
	return rec.SharePrice, rec.AssetDecimals, rec.LastUpdate, true
}
