package router

import (
	"math/big"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(chainID uint64, vault byte, lastUpdate uint64, price int64) StoredSharePrice {
	return StoredSharePrice{
		ChainID:      chainID,
		VaultAddress: addr(vault),
		SharePrice:   big.NewInt(price),
		LastUpdate:   lastUpdate,
	}
}

func Test_ReportStore_Put(t *testing.T) {
	t.Run("first record for a key is always written", func(t *testing.T) {
		s := NewReportStore()
		assert.True(t, s.Put(rec(10, 1, 100, 42)))

		got, ok := s.Latest(10, addr(1))
		require.True(t, ok)
		assert.Equal(t, uint64(100), got.LastUpdate)
	})

	t.Run("strictly fresher record replaces, stale is dropped, either order", func(t *testing.T) {
		older := rec(10, 1, 50, 1)
		newer := rec(10, 1, 100, 2)

		for _, order := range [][]StoredSharePrice{{older, newer}, {newer, older}} {
			s := NewReportStore()
			s.Put(order[0])
			s.Put(order[1])

			got, ok := s.Latest(10, addr(1))
			require.True(t, ok)
			assert.Equal(t, uint64(100), got.LastUpdate)
			assert.Equal(t, int64(2), got.SharePrice.Int64())
		}
	})

	t.Run("equal timestamp keeps first writer", func(t *testing.T) {
		s := NewReportStore()
		first := rec(10, 1, 100, 1)
		second := rec(10, 1, 100, 2)
		assert.True(t, s.Put(first))
		assert.False(t, s.Put(second))

		got, _ := s.Latest(10, addr(1))
		assert.Equal(t, int64(1), got.SharePrice.Int64())
	})

	t.Run("keys are scoped per chain and vault", func(t *testing.T) {
		s := NewReportStore()
		s.Put(rec(10, 1, 100, 1))
		s.Put(rec(137, 1, 50, 2))
		s.Put(rec(10, 2, 70, 3))

		assert.Equal(t, 3, s.Len())
		got, ok := s.Latest(137, addr(1))
		require.True(t, ok)
		assert.Equal(t, int64(2), got.SharePrice.Int64())
	})
}

func Test_ReportStore_LatestAny(t *testing.T) {
	s := NewReportStore()
	_, ok := s.LatestAny(addr(1))
	assert.False(t, ok)

	s.Put(rec(10, 1, 100, 1))
	s.Put(rec(137, 1, 200, 2))
	s.Put(rec(42161, 1, 150, 3))

	got, ok := s.LatestAny(addr(1))
	require.True(t, ok)
	assert.Equal(t, uint64(137), got.ChainID)
	assert.Equal(t, uint64(200), got.LastUpdate)

	// stale put for a different chain must not displace the global best
	s.Put(rec(8453, 1, 120, 4))
	got, _ = s.LatestAny(addr(1))
	assert.Equal(t, uint64(137), got.ChainID)
}

// Regardless of submission order, the stored record for a key converges on
// the highest timestamp seen.
func Test_ReportStore_FreshnessConvergence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("stored record has max LastUpdate", prop.ForAll(
		func(updates []uint64) bool {
			if len(updates) == 0 {
				return true
			}
			s := NewReportStore()
			var maxSeen uint64
			for _, u := range updates {
				s.Put(rec(10, 1, u, int64(u)))
				if u > maxSeen {
					maxSeen = u
				}
			}
			got, ok := s.Latest(10, addr(1))
			return ok && got.LastUpdate == maxSeen
		},
		gen.SliceOf(gen.UInt64()),
	))

	properties.TestingRun(t)
}
