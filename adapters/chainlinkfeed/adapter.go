// Package chainlinkfeed prices assets from Chainlink AggregatorV3 feeds.
//
// Source failure (stale round, bound violation, RPC read failure) is
// signalled through PriceResult.HadError so the router's denomination
// fallback can compose with it; Go errors are reserved for exceptional
// conditions such as context cancellation.
package chainlinkfeed

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"

	"github.com/vaultmesh/share-price-router/router"
)

const aggregatorABIJSON = `[
	{"inputs":[],"name":"latestRoundData","outputs":[
		{"name":"roundId","type":"uint80"},
		{"name":"answer","type":"int256"},
		{"name":"startedAt","type":"uint256"},
		{"name":"updatedAt","type":"uint256"},
		{"name":"answeredInRound","type":"uint80"}
	],"stateMutability":"view","type":"function"}
]`

var aggregatorABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(aggregatorABIJSON))
	if err != nil {
		panic(err)
	}
	return parsed
}()

// FeedConfig describes one aggregator feed.
type FeedConfig struct {
	Aggregator common.Address
	// Decimals the aggregator reports answers in
	Decimals uint8
	// Heartbeat is the maximum round age before the feed is stale
	Heartbeat time.Duration
	// InUSD is the feed's quote denomination: true for USD, false for the
	// chain's native gas token
	InUSD bool
	// Optional answer bounds; nil disables the check
	MinAnswer, MaxAnswer *big.Int
}

func (c FeedConfig) verify() error {
	if c.Aggregator == (common.Address{}) {
		return fmt.Errorf("aggregator address is required")
	}
	if c.Heartbeat <= 0 {
		return fmt.Errorf("heartbeat must be positive")
	}
	return nil
}

type Opts struct {
	Logger logger.Logger
	Caller ethereum.ContractCaller
	// NativeUSDFeed prices the native gas token in USD, enabling conversion
	// between the two denominations. Optional; without it a request for the
	// non-feed denomination is a pricing error.
	NativeUSDFeed *FeedConfig
}

// Adapter is a router.PriceAdapter backed by Chainlink aggregators. Per-asset
// feed bookkeeping is owned here; the registry notifies removal through
// RemoveAsset.
type Adapter struct {
	lggr      logger.Logger
	caller    ethereum.ContractCaller
	nativeUSD *FeedConfig
	nowFn     func() time.Time

	mu    sync.RWMutex
	feeds map[common.Address]FeedConfig
}

var _ router.PriceAdapter = (*Adapter)(nil)

func NewAdapter(opts Opts) (*Adapter, error) {
	if opts.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if opts.Caller == nil {
		return nil, fmt.Errorf("contract caller is required")
	}
	if opts.NativeUSDFeed != nil {
		if err := opts.NativeUSDFeed.verify(); err != nil {
			return nil, fmt.Errorf("invalid native/USD feed: %w", err)
		}
	}
	return &Adapter{
		lggr:      logger.Named(opts.Logger, "ChainlinkFeedAdapter"),
		caller:    opts.Caller,
		nativeUSD: opts.NativeUSDFeed,
		nowFn:     time.Now,
		feeds:     make(map[common.Address]FeedConfig),
	}, nil
}

func (a *Adapter) AddAsset(asset common.Address, cfg FeedConfig) error {
	if err := cfg.verify(); err != nil {
		return fmt.Errorf("invalid feed config for asset %s: %w", asset.Hex(), err)
	}
	a.mu.Lock()
	a.feeds[asset] = cfg
	a.mu.Unlock()
	a.lggr.Infow("Added feed", "asset", asset.Hex(), "aggregator", cfg.Aggregator.Hex(), "inUSD", cfg.InUSD)
	return nil
}

func (a *Adapter) RemoveAsset(asset common.Address) {
	a.mu.Lock()
	delete(a.feeds, asset)
	a.mu.Unlock()
	a.lggr.Infow("Removed feed", "asset", asset.Hex())
}

func (a *Adapter) GetPrice(ctx context.Context, asset common.Address, inUSD bool) (router.PriceResult, error) {
	a.mu.RLock()
	cfg, ok := a.feeds[asset]
	a.mu.RUnlock()
	if !ok {
		return router.PriceResult{HadError: true, InUSD: inUSD}, nil
	}

	price, ok, err := a.readFeed(ctx, cfg)
	if err != nil {
		return router.PriceResult{}, err
	}
	if !ok {
		return router.PriceResult{HadError: true, InUSD: inUSD}, nil
	}

	if cfg.InUSD != inUSD {
		price, ok, err = a.convertDenomination(ctx, price, inUSD)
		if err != nil {
			return router.PriceResult{}, err
		}
		if !ok {
			return router.PriceResult{HadError: true, InUSD: inUSD}, nil
		}
	}

	out := price.Mul(decimal.New(1, router.PriceDecimals)).BigInt()
	if out.Sign() <= 0 {
		return router.PriceResult{HadError: true, InUSD: inUSD}, nil
	}
	return router.PriceResult{Price: out, InUSD: inUSD}, nil
}

// convertDenomination crosses a price through the native/USD feed: multiply
// to go native→USD, divide to go USD→native.
func (a *Adapter) convertDenomination(ctx context.Context, price decimal.Decimal, wantUSD bool) (decimal.Decimal, bool, error) {
	if a.nativeUSD == nil {
		return decimal.Zero, false, nil
	}
	nativeUSD, ok, err := a.readFeed(ctx, *a.nativeUSD)
	if err != nil || !ok {
		return decimal.Zero, false, err
	}
	if nativeUSD.IsZero() {
		return decimal.Zero, false, nil
	}
	if wantUSD {
		return price.Mul(nativeUSD), true, nil
	}
	return price.Div(nativeUSD), true, nil
}

// readFeed returns the feed's latest answer as a unit price (decimals
// stripped), or ok=false when the feed is stale, out of bounds or unreadable.
func (a *Adapter) readFeed(ctx context.Context, cfg FeedConfig) (decimal.Decimal, bool, error) {
	data, err := aggregatorABI.Pack("latestRoundData")
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to pack latestRoundData: %w", err)
	}
	agg := cfg.Aggregator
	out, err := a.caller.CallContract(ctx, ethereum.CallMsg{To: &agg, Data: data}, nil)
	if err != nil {
		if ctx.Err() != nil {
			return decimal.Zero, false, context.Cause(ctx)
		}
		a.lggr.Warnw("Feed read failed", "aggregator", agg.Hex(), "err", err)
		return decimal.Zero, false, nil
	}
	vals, err := aggregatorABI.Unpack("latestRoundData", out)
	if err != nil {
		a.lggr.Warnw("Feed returned undecodable data", "aggregator", agg.Hex(), "err", err)
		return decimal.Zero, false, nil
	}
	answer := *abi.ConvertType(vals[1], new(*big.Int)).(**big.Int)
	updatedAt := *abi.ConvertType(vals[3], new(*big.Int)).(**big.Int)

	if answer == nil || answer.Sign() <= 0 {
		return decimal.Zero, false, nil
	}
	if cfg.MinAnswer != nil && answer.Cmp(cfg.MinAnswer) < 0 {
		a.lggr.Warnw("Feed answer below minimum", "aggregator", agg.Hex(), "answer", answer)
		return decimal.Zero, false, nil
	}
	if cfg.MaxAnswer != nil && answer.Cmp(cfg.MaxAnswer) > 0 {
		a.lggr.Warnw("Feed answer above maximum", "aggregator", agg.Hex(), "answer", answer)
		return decimal.Zero, false, nil
	}
	age := a.nowFn().Sub(time.Unix(updatedAt.Int64(), 0))
	if age > cfg.Heartbeat {
		a.lggr.Warnw("Feed is stale", "aggregator", agg.Hex(), "age", age, "heartbeat", cfg.Heartbeat)
		return decimal.Zero, false, nil
	}

	return decimal.NewFromBigInt(answer, -int32(cfg.Decimals)), true, nil
}
