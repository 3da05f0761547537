package erc4626

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultmesh/share-price-router/router"
)

var (
	vaultAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")
	assetAddr = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

// fakeCaller answers ERC4626 view calls for one vault.
type fakeCaller struct {
	err error
}

func (c *fakeCaller) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	method, err := vaultABI.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "asset":
		return method.Outputs.Pack(assetAddr)
	case "decimals":
		return method.Outputs.Pack(uint8(6))
	case "convertToAssets":
		args, err := method.Inputs.Unpack(call.Data[4:])
		if err != nil {
			return nil, err
		}
		shares := args[0].(*big.Int)
		// 1.05 assets per share
		out := new(big.Int).Mul(shares, big.NewInt(105))
		return method.Outputs.Pack(out.Quo(out, big.NewInt(100)))
	}
	return nil, errors.New("unexpected method")
}

func Test_Opener(t *testing.T) {
	_, err := NewOpener(nil)
	assert.Error(t, err)

	opener, err := NewOpener(&fakeCaller{})
	require.NoError(t, err)

	_, err = opener.OpenVault(common.Address{})
	assert.ErrorIs(t, err, router.ErrZeroAddress)

	v, err := opener.OpenVault(vaultAddr)
	require.NoError(t, err)
	require.NotNil(t, v)
}

func Test_Vault_Reads(t *testing.T) {
	ctx := t.Context()
	opener, err := NewOpener(&fakeCaller{})
	require.NoError(t, err)
	v, err := opener.OpenVault(vaultAddr)
	require.NoError(t, err)

	asset, err := v.Asset(ctx)
	require.NoError(t, err)
	assert.Equal(t, assetAddr, asset)

	decimals, err := v.Decimals(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), decimals)

	rate, err := v.ConvertToAssets(ctx, big.NewInt(1_000_000))
	require.NoError(t, err)
	assert.Equal(t, int64(1_050_000), rate.Int64())
}

func Test_Vault_ReadFailure(t *testing.T) {
	opener, err := NewOpener(&fakeCaller{err: errors.New("execution reverted")})
	require.NoError(t, err)
	v, err := opener.OpenVault(vaultAddr)
	require.NoError(t, err)

	_, err = v.Asset(t.Context())
	assert.Error(t, err)
}
