package router

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// openAuthority grants every capability to every identity.
type openAuthority struct{}

func (openAuthority) HasCapability(common.Address, Capability) bool { return true }

// denyAuthority grants nothing.
type denyAuthority struct{}

func (denyAuthority) HasCapability(common.Address, Capability) bool { return false }

// fakeAdapter answers with a canned PriceResult per requested denomination
// and records removal notifications.
type fakeAdapter struct {
	mu      sync.Mutex
	results map[bool]PriceResult
	errs    map[bool]error
	removed []common.Address
	calls   []bool
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		results: make(map[bool]PriceResult),
		errs:    make(map[bool]error),
	}
}

func (a *fakeAdapter) GetPrice(_ context.Context, _ common.Address, inUSD bool) (PriceResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, inUSD)
	if err := a.errs[inUSD]; err != nil {
		return PriceResult{}, err
	}
	res, ok := a.results[inUSD]
	if !ok {
		return PriceResult{HadError: true, InUSD: inUSD}, nil
	}
	return res, nil
}

func (a *fakeAdapter) RemoveAsset(asset common.Address) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.removed = append(a.removed, asset)
}

type fakeVault struct {
	asset    common.Address
	decimals uint8
	rate     *big.Int
	err      error
}

func (v *fakeVault) Asset(context.Context) (common.Address, error) {
	if v.err != nil {
		return common.Address{}, v.err
	}
	return v.asset, nil
}

func (v *fakeVault) Decimals(context.Context) (uint8, error) {
	if v.err != nil {
		return 0, v.err
	}
	return v.decimals, nil
}

func (v *fakeVault) ConvertToAssets(_ context.Context, shares *big.Int) (*big.Int, error) {
	if v.err != nil {
		return nil, v.err
	}
	// rate is assets-per-one-share; scale linearly with the requested shares
	one := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(v.decimals)), nil)
	out := new(big.Int).Mul(v.rate, shares)
	return out.Quo(out, one), nil
}

type fakeVaultOpener struct {
	vaults map[common.Address]Vault
}

func (o *fakeVaultOpener) OpenVault(addr common.Address) (Vault, error) {
	v, ok := o.vaults[addr]
	if !ok {
		return nil, fmt.Errorf("unknown vault %s", addr.Hex())
	}
	return v, nil
}

func addr(b byte) common.Address {
	var a common.Address
	a[19] = b
	return a
}

func validReport(chainID uint64, vault byte, asset common.Address, lastUpdate uint64) VaultReport {
	return VaultReport{
		ChainID:       chainID,
		VaultAddress:  addr(vault),
		Asset:         asset,
		AssetDecimals: 6,
		SharePrice:    big.NewInt(1_050_000),
		LastUpdate:    lastUpdate,
	}
}
