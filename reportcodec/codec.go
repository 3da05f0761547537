// Package reportcodec serializes vault report batches for cross-chain
// transports. The ABI codec is the canonical bridge payload format; the JSON
// codec is chain-agnostic and useful for diagnostics and off-chain consumers.
package reportcodec

import (
	"errors"

	"github.com/vaultmesh/share-price-router/router"
)

// Batch is one transport submission: every report in it must share the
// producer chain id carried in SourceChainID.
type Batch struct {
	SourceChainID uint64
	Reports       []router.VaultReport
}

type Codec interface {
	Encode(b Batch) ([]byte, error)
	Decode(data []byte) (Batch, error)
}

var (
	ErrEmptyBatch   = errors.New("empty report batch")
	ErrNilSharePrice = errors.New("report has nil share price")
)

func verifyBatch(b Batch) error {
	if len(b.Reports) == 0 {
		return ErrEmptyBatch
	}
	for _, rep := range b.Reports {
		if rep.SharePrice == nil || rep.SharePrice.Sign() < 0 {
			return ErrNilSharePrice
		}
	}
	return nil
}
