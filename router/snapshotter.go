package router

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

// PriceDecimals is the fixed-point base resolver prices are scaled to.
const PriceDecimals = 18

// Snapshotter packages local vault share prices into VaultReports for
// outbound delivery. A single failing vault fails the whole snapshot: a batch
// is either fully trustworthy or not produced at all, mirroring the
// all-or-nothing semantics on the ingestion side.
type Snapshotter struct {
	lggr         logger.Logger
	localChainID uint64
	resolver     *Resolver
	vaults       VaultOpener

	nowFn func() time.Time
}

func NewSnapshotter(lggr logger.Logger, localChainID uint64, resolver *Resolver, vaults VaultOpener) *Snapshotter {
	return &Snapshotter{
		lggr:         logger.Named(lggr, "Snapshotter"),
		localChainID: localChainID,
		resolver:     resolver,
		vaults:       vaults,
		nowFn:        time.Now,
	}
}

// Snapshot reads each vault's share-to-asset rate, resolves the underlying
// asset's USD price and produces one report per vault. Reported share prices
// are scaled to the underlying asset's decimals.
func (s *Snapshotter) Snapshot(ctx context.Context, vaults []common.Address, rewardsDelegate common.Address) ([]VaultReport, error) {
	now := uint64(s.nowFn().Unix())
	reports := make([]VaultReport, 0, len(vaults))
	for _, addr := range vaults {
		rep, err := s.snapshotOne(ctx, addr, rewardsDelegate, now)
		if err != nil {
			return nil, fmt.Errorf("snapshot failed for vault %s: %w", addr.Hex(), err)
		}
		reports = append(reports, rep)
	}
	s.lggr.Debugw("Produced snapshot", "vaults", len(vaults), "chainID", s.localChainID)
	return reports, nil
}

func (s *Snapshotter) snapshotOne(ctx context.Context, addr, rewardsDelegate common.Address, now uint64) (VaultReport, error) {
	vault, err := s.vaults.OpenVault(addr)
	if err != nil {
		return VaultReport{}, fmt.Errorf("%w: %w", ErrVaultReadFailed, err)
	}
	asset, err := vault.Asset(ctx)
	if err != nil {
		return VaultReport{}, fmt.Errorf("%w: reading asset: %w", ErrVaultReadFailed, err)
	}
	decimals, err := vault.Decimals(ctx)
	if err != nil {
		return VaultReport{}, fmt.Errorf("%w: reading decimals: %w", ErrVaultReadFailed, err)
	}
	oneShare := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	rate, err := vault.ConvertToAssets(ctx, oneShare)
	if err != nil {
		return VaultReport{}, fmt.Errorf("%w: converting shares: %w", ErrVaultReadFailed, err)
	}

	res, err := s.resolver.Resolve(ctx, asset, true)
	if err != nil {
		return VaultReport{}, err
	}
	if res.HadError {
		return VaultReport{}, fmt.Errorf("%w: asset %s", ErrNoValidPrice, asset.Hex())
	}

	// rate is assets-per-share in asset decimals, price is per asset unit in
	// the canonical base, so the product scaled back down stays in asset
	// decimals.
	sharePrice := decimal.NewFromBigInt(rate, 0).
		Mul(decimal.NewFromBigInt(res.Price, 0)).
		Div(decimal.New(1, PriceDecimals)).
		BigInt()
	if sharePrice.Sign() <= 0 || sharePrice.Cmp(MaxPrice) > 0 {
		return VaultReport{}, fmt.Errorf("%w: computed share price out of range for vault %s", ErrNoValidPrice, addr.Hex())
	}

	return VaultReport{
		ChainID:         s.localChainID,
		VaultAddress:    addr,
		Asset:           asset,
		AssetDecimals:   decimals,
		SharePrice:      sharePrice,
		LastUpdate:      now,
		RewardsDelegate: rewardsDelegate,
	}, nil
}
