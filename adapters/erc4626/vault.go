// Package erc4626 reads ERC4626 vaults over an Ethereum contract caller so
// the snapshotter can price live vaults.
package erc4626

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/vaultmesh/share-price-router/router"
)

const vaultABIJSON = `[
	{"inputs":[],"name":"asset","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"shares","type":"uint256"}],"name":"convertToAssets","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

var vaultABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(vaultABIJSON))
	if err != nil {
		panic(err)
	}
	return parsed
}()

// Opener resolves vault addresses to readable ERC4626 vaults.
type Opener struct {
	caller ethereum.ContractCaller
}

var _ router.VaultOpener = (*Opener)(nil)

func NewOpener(caller ethereum.ContractCaller) (*Opener, error) {
	if caller == nil {
		return nil, fmt.Errorf("contract caller is required")
	}
	return &Opener{caller: caller}, nil
}

func (o *Opener) OpenVault(addr common.Address) (router.Vault, error) {
	if addr == (common.Address{}) {
		return nil, router.ErrZeroAddress
	}
	return &vault{addr: addr, caller: o.caller}, nil
}

type vault struct {
	addr   common.Address
	caller ethereum.ContractCaller
}

func (v *vault) Asset(ctx context.Context) (common.Address, error) {
	out, err := v.call(ctx, "asset")
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

func (v *vault) Decimals(ctx context.Context) (uint8, error) {
	out, err := v.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}

func (v *vault) ConvertToAssets(ctx context.Context, shares *big.Int) (*big.Int, error) {
	out, err := v.call(ctx, "convertToAssets", shares)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (v *vault) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := vaultABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	ret, err := v.caller.CallContract(ctx, ethereum.CallMsg{To: &v.addr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s call to vault %s failed: %w", method, v.addr.Hex(), err)
	}
	out, err := vaultABI.Unpack(method, ret)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s return from vault %s: %w", method, v.addr.Hex(), err)
	}
	return out, nil
}
