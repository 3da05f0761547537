package router

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

// Resolver answers local price queries by orchestrating the configured
// adapter. It decides which denomination to ask for first and whether to
// retry in the opposite one; the conversion itself is the adapter's job.
type Resolver struct {
	lggr     logger.Logger
	registry *AssetRegistry
	metrics  *routerMetrics
}

func NewResolver(lggr logger.Logger, registry *AssetRegistry, metrics *routerMetrics) *Resolver {
	return &Resolver{
		lggr:     logger.Named(lggr, "Resolver"),
		registry: registry,
		metrics:  metrics,
	}
}

// Resolve returns the asset's current price, preferring the requested
// denomination. On an adapter-reported pricing failure it retries once in the
// opposite denomination; if that also fails, the first errored result is
// returned verbatim. A price wider than 240 bits is a pricing error, never a
// truncation.
func (r *Resolver) Resolve(ctx context.Context, asset common.Address, preferInUSD bool) (PriceResult, error) {
	cfg, ok := r.registry.Get(asset)
	if !ok {
		return PriceResult{}, AssetNotConfiguredError{Asset: asset}
	}

	res, err := cfg.Adapter.GetPrice(ctx, asset, preferInUSD)
	if err != nil {
		return PriceResult{}, err
	}
	res = clampOverflow(res)
	if !res.HadError {
		return res, nil
	}

	// Many feeds price in only one quote currency; retrying in the opposite
	// denomination lets the adapter convert through its native quote.
	fallback, err := cfg.Adapter.GetPrice(ctx, asset, !preferInUSD)
	if err != nil {
		return PriceResult{}, err
	}
	fallback = clampOverflow(fallback)
	if fallback.HadError {
		r.lggr.Debugw("No price available in either denomination", "asset", asset.Hex(), "preferInUSD", preferInUSD)
		return res, nil
	}
	r.metrics.fallbackCount.Inc()
	r.lggr.Debugw("Resolved price via denomination fallback", "asset", asset.Hex(), "requestedUSD", preferInUSD, "answeredUSD", fallback.InUSD)
	return fallback, nil
}

func clampOverflow(res PriceResult) PriceResult {
	if res.HadError {
		return res
	}
	if res.Price == nil || res.Price.Sign() <= 0 || res.Price.Cmp(MaxPrice) > 0 {
		res.Price = nil
		res.HadError = true
	}
	return res
}
