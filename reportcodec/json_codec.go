package reportcodec

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/vaultmesh/share-price-router/router"
)

// JSONReportCodec is a chain-agnostic reference implementation. Share prices
// are hex-quantity strings so arbitrary-width values survive the round trip.
type JSONReportCodec struct{}

var _ Codec = JSONReportCodec{}

type jsonReport struct {
	ChainID         uint64         `json:"chainId"`
	VaultAddress    common.Address `json:"vaultAddress"`
	Asset           common.Address `json:"asset"`
	AssetDecimals   uint8          `json:"assetDecimals"`
	SharePrice      *hexutil.Big   `json:"sharePrice"`
	LastUpdate      uint64         `json:"lastUpdate"`
	RewardsDelegate common.Address `json:"rewardsDelegate"`
}

type jsonBatch struct {
	SourceChainID uint64       `json:"sourceChainId"`
	Reports       []jsonReport `json:"reports"`
}

func (cdc JSONReportCodec) Encode(b Batch) ([]byte, error) {
	if err := verifyBatch(b); err != nil {
		return nil, err
	}
	enc := jsonBatch{
		SourceChainID: b.SourceChainID,
		Reports:       make([]jsonReport, len(b.Reports)),
	}
	for i, rep := range b.Reports {
		enc.Reports[i] = jsonReport{
			ChainID:         rep.ChainID,
			VaultAddress:    rep.VaultAddress,
			Asset:           rep.Asset,
			AssetDecimals:   rep.AssetDecimals,
			SharePrice:      (*hexutil.Big)(rep.SharePrice),
			LastUpdate:      rep.LastUpdate,
			RewardsDelegate: rep.RewardsDelegate,
		}
	}
	return json.Marshal(enc)
}

func (cdc JSONReportCodec) Decode(data []byte) (Batch, error) {
	dec := jsonBatch{}
	if err := json.Unmarshal(data, &dec); err != nil {
		return Batch{}, fmt.Errorf("failed to decode report batch: expected JSON (got: %s); %w", data, err)
	}
	b := Batch{
		SourceChainID: dec.SourceChainID,
		Reports:       make([]router.VaultReport, len(dec.Reports)),
	}
	for i, rep := range dec.Reports {
		if rep.SharePrice == nil {
			return Batch{}, fmt.Errorf("report %d: %w", i, ErrNilSharePrice)
		}
		b.Reports[i] = router.VaultReport{
			ChainID:         rep.ChainID,
			VaultAddress:    rep.VaultAddress,
			Asset:           rep.Asset,
			AssetDecimals:   rep.AssetDecimals,
			SharePrice:      rep.SharePrice.ToInt(),
			LastUpdate:      rep.LastUpdate,
			RewardsDelegate: rep.RewardsDelegate,
		}
	}
	return b, nil
}
