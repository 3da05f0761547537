package router

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
	"github.com/smartcontractkit/chainlink-common/pkg/services/servicetest"
)

func Test_Router_VerifyConfig(t *testing.T) {
	_, err := NewRouter(Opts{})
	assert.Error(t, err)

	_, err = NewRouter(Opts{Logger: logger.Test(t), LocalChainID: localChainID})
	assert.Error(t, err)

	r, err := NewRouter(Opts{Logger: logger.Test(t), LocalChainID: localChainID, Authority: openAuthority{}})
	require.NoError(t, err)
	servicetest.Run(t, r)
}

// Round trip: configure an asset with a healthy adapter, resolve it, snapshot
// a vault over it, ingest the snapshot on a second router as if it had
// crossed chains, and read it back.
func Test_Router_RoundTrip(t *testing.T) {
	ctx := t.Context()
	configurer := addr(0x01)
	submitter := addr(0x51)
	asset := addr(0xaa)
	vaultAddr := addr(0x11)

	adapter := usdAdapter(2, PriceDecimals)
	opener := &fakeVaultOpener{vaults: map[common.Address]Vault{
		vaultAddr: &fakeVault{asset: asset, decimals: 6, rate: big.NewInt(1_050_000)},
	}}

	source, err := NewRouter(Opts{Logger: logger.Test(t), LocalChainID: remoteChainID, Authority: openAuthority{}, Vaults: opener})
	require.NoError(t, err)
	require.NoError(t, source.Configure(configurer, asset, adapter, common.HexToHash("0x01"), time.Hour, true))

	res, err := source.Resolve(ctx, asset, true)
	require.NoError(t, err)
	assert.False(t, res.HadError)
	assert.True(t, res.InUSD)
	assert.Equal(t, adapter.results[true].Price, res.Price)

	reports, err := source.Snapshot(ctx, []common.Address{vaultAddr}, addr(0xdd))
	require.NoError(t, err)
	require.Len(t, reports, 1)

	dest, err := NewRouter(Opts{Logger: logger.Test(t), LocalChainID: localChainID, Authority: openAuthority{}})
	require.NoError(t, err)
	require.NoError(t, dest.SetAssetMapping(configurer, remoteChainID, asset, addr(0xab)))
	require.NoError(t, dest.Ingest(ctx, submitter, remoteChainID, reports))

	rec, ok := dest.GetLatestReport(remoteChainID, vaultAddr)
	require.True(t, ok)
	assert.Equal(t, reports[0].SharePrice, rec.SharePrice)
	assert.Equal(t, addr(0xab), rec.LocalAsset)

	price, decimals, lastUpdate, ok := dest.LatestSharePrice(vaultAddr)
	require.True(t, ok)
	assert.Equal(t, reports[0].SharePrice, price)
	assert.Equal(t, uint8(6), decimals)
	assert.Equal(t, reports[0].LastUpdate, lastUpdate)
}
