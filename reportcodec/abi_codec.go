package reportcodec

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/vaultmesh/share-price-router/router"
)

// ABIReportCodec packs a batch as (uint64 sourceChainId, VaultReport[]) using
// standard ABI tuple encoding so EVM-side endpoints can decode it with
// abi.decode.
type ABIReportCodec struct{}

var _ Codec = ABIReportCodec{}

type abiReport struct {
	ChainId         uint64         `abi:"chainId"`
	VaultAddress    common.Address `abi:"vaultAddress"`
	Asset           common.Address `abi:"asset"`
	AssetDecimals   uint8          `abi:"assetDecimals"`
	SharePrice      *big.Int       `abi:"sharePrice"`
	LastUpdate      uint64         `abi:"lastUpdate"`
	RewardsDelegate common.Address `abi:"rewardsDelegate"`
}

var batchArguments = func() abi.Arguments {
	uint64Ty, err := abi.NewType("uint64", "", nil)
	if err != nil {
		panic(err)
	}
	reportsTy, err := abi.NewType("tuple[]", "", []abi.ArgumentMarshaling{
		{Name: "chainId", Type: "uint64"},
		{Name: "vaultAddress", Type: "address"},
		{Name: "asset", Type: "address"},
		{Name: "assetDecimals", Type: "uint8"},
		{Name: "sharePrice", Type: "uint256"},
		{Name: "lastUpdate", Type: "uint64"},
		{Name: "rewardsDelegate", Type: "address"},
	})
	if err != nil {
		panic(err)
	}
	return abi.Arguments{
		{Name: "sourceChainId", Type: uint64Ty},
		{Name: "reports", Type: reportsTy},
	}
}()

func (cdc ABIReportCodec) Encode(b Batch) ([]byte, error) {
	if err := verifyBatch(b); err != nil {
		return nil, err
	}
	reports := make([]abiReport, len(b.Reports))
	for i, rep := range b.Reports {
		reports[i] = abiReport{
			ChainId:         rep.ChainID,
			VaultAddress:    rep.VaultAddress,
			Asset:           rep.Asset,
			AssetDecimals:   rep.AssetDecimals,
			SharePrice:      rep.SharePrice,
			LastUpdate:      rep.LastUpdate,
			RewardsDelegate: rep.RewardsDelegate,
		}
	}
	payload, err := batchArguments.Pack(b.SourceChainID, reports)
	if err != nil {
		return nil, fmt.Errorf("failed to abi-encode report batch: %w", err)
	}
	return payload, nil
}

func (cdc ABIReportCodec) Decode(data []byte) (Batch, error) {
	vals, err := batchArguments.Unpack(data)
	if err != nil {
		return Batch{}, fmt.Errorf("failed to abi-decode report batch: %w", err)
	}
	sourceChainID := *abi.ConvertType(vals[0], new(uint64)).(*uint64)
	raw := *abi.ConvertType(vals[1], new([]abiReport)).(*[]abiReport)

	reports := make([]router.VaultReport, len(raw))
	for i, rep := range raw {
		reports[i] = router.VaultReport{
			ChainID:         rep.ChainId,
			VaultAddress:    rep.VaultAddress,
			Asset:           rep.Asset,
			AssetDecimals:   rep.AssetDecimals,
			SharePrice:      rep.SharePrice,
			LastUpdate:      rep.LastUpdate,
			RewardsDelegate: rep.RewardsDelegate,
		}
	}
	return Batch{SourceChainID: sourceChainID, Reports: reports}, nil
}
