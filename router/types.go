package router

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// DefaultHeartbeat is substituted when an asset is configured with a zero
	// heartbeat.
	DefaultHeartbeat = 24 * time.Hour

	// DefaultMaxReports bounds the size of a single inbound report batch.
	DefaultMaxReports = 10
)

// MaxPrice is the largest representable price (240 bits). Anything wider is
// treated as a pricing error, never truncated.
var MaxPrice = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 240), big.NewInt(1))

var (
	ErrUnauthorized      = errors.New("caller lacks required capability")
	ErrInvalidChainID    = errors.New("invalid chain id")
	ErrExceedsMaxReports = errors.New("report batch exceeds maximum size")
	ErrZeroAddress       = errors.New("zero vault address")
	ErrNoValidPrice      = errors.New("report has no valid price")
	ErrAssetNotConfigured = errors.New("asset not configured")
	ErrAssetNotSupported  = errors.New("asset not supported")
	ErrVaultReadFailed    = errors.New("vault read failed")
)

// AssetNotConfiguredError identifies which asset in a batch had no cross-chain
// mapping. It unwraps to ErrAssetNotConfigured.
type AssetNotConfiguredError struct {
	Asset common.Address
}

func (e AssetNotConfiguredError) Error() string {
	return fmt.Sprintf("asset not configured: %s", e.Asset.Hex())
}

func (e AssetNotConfiguredError) Unwrap() error { return ErrAssetNotConfigured }

// VaultReport is one observation of a vault's share price at a point in time.
// It may originate locally (Snapshotter) or arrive from a remote chain.
type VaultReport struct {
	// ChainID of the chain where the vault and price were observed
	ChainID uint64
	// VaultAddress of the vault contract being priced
	VaultAddress common.Address
	// Asset is the vault's underlying asset, in the producer chain's address
	// space when received cross-chain
	Asset common.Address
	// AssetDecimals is the decimal precision of SharePrice
	AssetDecimals uint8
	// SharePrice of one share, scaled to AssetDecimals. Must be > 0 to be
	// considered valid.
	SharePrice *big.Int
	// LastUpdate is the producer-chain unix timestamp the price was produced
	LastUpdate uint64
	// RewardsDelegate is carried through opaquely for downstream consumers
	RewardsDelegate common.Address
}

// StoredSharePrice is the latest accepted record for a (chainID, vault) key.
// It is replaced atomically, and only by a strictly fresher report.
type StoredSharePrice struct {
	ChainID         uint64
	VaultAddress    common.Address
	RemoteAsset     common.Address
	LocalAsset      common.Address
	AssetDecimals   uint8
	SharePrice      *big.Int
	LastUpdate      uint64
	RewardsDelegate common.Address
}

// PriceResult is the typed outcome of a price request. Pricing failure
// (staleness, bound violation, read failure) is signalled via HadError rather
// than a Go error so it composes with denomination fallback.
type PriceResult struct {
	Price    *big.Int
	HadError bool
	// InUSD reports the denomination actually answered, which may differ from
	// the one requested if fallback occurred
	InUSD bool
}

// PriceAdapter translates one external price source into PriceResults.
//
// GetPrice returns a non-nil error only for exceptional conditions (e.g.
// context cancellation); ordinary source failure is HadError=true.
// RemoveAsset is the registry's removal notification so the adapter can drop
// its own bookkeeping.
type PriceAdapter interface {
	GetPrice(ctx context.Context, asset common.Address, inUSD bool) (PriceResult, error)
	RemoveAsset(asset common.Address)
}

// Vault is the ERC4626 collaborator surface read during snapshotting.
type Vault interface {
	Asset(ctx context.Context) (common.Address, error)
	Decimals(ctx context.Context) (uint8, error)
	// ConvertToAssets returns the amount of underlying asset that the given
	// amount of shares converts to at the current exchange rate
	ConvertToAssets(ctx context.Context, shares *big.Int) (*big.Int, error)
}

// VaultOpener resolves a vault address to a readable Vault.
type VaultOpener interface {
	OpenVault(addr common.Address) (Vault, error)
}

// AssetConfig holds the local pricing configuration for one asset.
type AssetConfig struct {
	Adapter   PriceAdapter
	FeedID    common.Hash
	Heartbeat time.Duration
	// InUSD is the preferred denomination for this asset
	InUSD bool
}
