package natsbridge

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/ethereum/go-ethereum/common"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
	"github.com/smartcontractkit/chainlink-common/pkg/services"

	"github.com/vaultmesh/share-price-router/reportcodec"
)

// Transmitter drives the outbound path: snapshot local vaults, encode the
// batch, publish it for a destination chain. Identical payloads hash to the
// same dedupe key so transport-level retries collapse server-side.
type Transmitter struct {
	services.Service

	lggr          logger.Logger
	sourceChainID uint64
	snapshotter   Snapshotter
	codec         reportcodec.Codec
	client        Client

	hashPool sync.Pool
}

func NewTransmitter(opts TransmitterOpts) (*Transmitter, error) {
	if err := opts.verifyConfig(); err != nil {
		return nil, err
	}
	t := &Transmitter{
		lggr:          opts.Logger,
		sourceChainID: opts.SourceChainID,
		snapshotter:   opts.Snapshotter,
		codec:         opts.Codec,
		client:        opts.Client,
	}
	t.hashPool.New = func() interface{} {
		return xxhash.New()
	}

	svc, _ := services.Config{
		Name:  "BridgeTransmitter",
		Start: func(ctx context.Context) error { return nil },
		Close: func() error { return nil },
		NewSubServices: func(lggr logger.Logger) []services.Service {
			return []services.Service{t.client}
		},
	}.NewServiceEngine(opts.Logger)
	t.Service = svc

	return t, nil
}

// Transmit snapshots vaults and publishes the encoded batch for destChainID.
func (t *Transmitter) Transmit(ctx context.Context, destChainID uint64, vaults []common.Address, rewardsDelegate common.Address) error {
	reports, err := t.snapshotter.Snapshot(ctx, vaults, rewardsDelegate)
	if err != nil {
		return fmt.Errorf("failed to snapshot vaults: %w", err)
	}
	payload, err := t.codec.Encode(reportcodec.Batch{
		SourceChainID: t.sourceChainID,
		Reports:       reports,
	})
	if err != nil {
		return fmt.Errorf("failed to encode report batch: %w", err)
	}

	dedupeKey := t.dedupeKey(payload)
	if err := t.client.Transmit(ctx, payload, dedupeKey, destChainID); err != nil {
		t.lggr.Errorw("Failed to transmit report batch",
			"error", err,
			"destChainID", destChainID,
			"vaults", len(vaults),
		)
		return err
	}

	t.lggr.Debugw("Transmitted report batch",
		"destChainID", destChainID,
		"vaults", len(vaults),
		"dedupeKey", dedupeKey,
	)
	return nil
}

func (t *Transmitter) dedupeKey(payload []byte) string {
	h := t.hashPool.Get().(*xxhash.Digest)
	defer t.hashPool.Put(h)
	h.Reset()
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
