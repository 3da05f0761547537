package router

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

func newTestResolver(t *testing.T, asset common.Address, adapter PriceAdapter) *Resolver {
	t.Helper()
	lggr := logger.Test(t)
	registry := NewAssetRegistry(lggr, openAuthority{})
	if adapter != nil {
		require.NoError(t, registry.Configure(addr(1), asset, adapter, common.Hash{}, time.Hour, true))
	}
	return NewResolver(lggr, registry, newTestMetrics())
}

func Test_Resolver_Resolve(t *testing.T) {
	ctx := t.Context()
	asset := addr(0xaa)

	t.Run("unconfigured asset", func(t *testing.T) {
		r := newTestResolver(t, asset, nil)
		_, err := r.Resolve(ctx, asset, true)
		assert.ErrorIs(t, err, ErrAssetNotConfigured)

		var notConfigured AssetNotConfiguredError
		require.ErrorAs(t, err, &notConfigured)
		assert.Equal(t, asset, notConfigured.Asset)
	})

	t.Run("healthy adapter answers in the requested denomination", func(t *testing.T) {
		adapter := newFakeAdapter()
		adapter.results[true] = PriceResult{Price: big.NewInt(123456), InUSD: true}
		r := newTestResolver(t, asset, adapter)

		res, err := r.Resolve(ctx, asset, true)
		require.NoError(t, err)
		assert.False(t, res.HadError)
		assert.True(t, res.InUSD)
		assert.Equal(t, int64(123456), res.Price.Int64())
		assert.Equal(t, []bool{true}, adapter.calls)
	})

	t.Run("falls back to the opposite denomination on pricing failure", func(t *testing.T) {
		adapter := newFakeAdapter()
		adapter.results[true] = PriceResult{HadError: true, InUSD: true}
		adapter.results[false] = PriceResult{Price: big.NewInt(777), InUSD: false}
		r := newTestResolver(t, asset, adapter)

		res, err := r.Resolve(ctx, asset, true)
		require.NoError(t, err)
		assert.False(t, res.HadError)
		assert.False(t, res.InUSD)
		assert.Equal(t, int64(777), res.Price.Int64())
		assert.Equal(t, []bool{true, false}, adapter.calls)
	})

	t.Run("returns the first errored result when both denominations fail", func(t *testing.T) {
		adapter := newFakeAdapter()
		adapter.results[true] = PriceResult{HadError: true, InUSD: true}
		adapter.results[false] = PriceResult{HadError: true, InUSD: false}
		r := newTestResolver(t, asset, adapter)

		res, err := r.Resolve(ctx, asset, true)
		require.NoError(t, err)
		assert.True(t, res.HadError)
		assert.True(t, res.InUSD)
	})

	t.Run("overflow beyond 240 bits is a pricing error, not a truncation", func(t *testing.T) {
		tooWide := new(big.Int).Add(MaxPrice, big.NewInt(1))
		adapter := newFakeAdapter()
		adapter.results[true] = PriceResult{Price: tooWide, InUSD: true}
		adapter.results[false] = PriceResult{HadError: true, InUSD: false}
		r := newTestResolver(t, asset, adapter)

		res, err := r.Resolve(ctx, asset, true)
		require.NoError(t, err)
		assert.True(t, res.HadError)
		assert.Nil(t, res.Price)
	})

	t.Run("overflow in the preferred denomination still allows fallback", func(t *testing.T) {
		tooWide := new(big.Int).Lsh(big.NewInt(1), 241)
		adapter := newFakeAdapter()
		adapter.results[true] = PriceResult{Price: tooWide, InUSD: true}
		adapter.results[false] = PriceResult{Price: big.NewInt(5), InUSD: false}
		r := newTestResolver(t, asset, adapter)

		res, err := r.Resolve(ctx, asset, true)
		require.NoError(t, err)
		assert.False(t, res.HadError)
		assert.Equal(t, int64(5), res.Price.Int64())
	})

	t.Run("exceptional adapter errors propagate", func(t *testing.T) {
		boom := errors.New("rpc connection refused")
		adapter := newFakeAdapter()
		adapter.errs[true] = boom
		r := newTestResolver(t, asset, adapter)

		_, err := r.Resolve(ctx, asset, true)
		assert.ErrorIs(t, err, boom)
	})
}
