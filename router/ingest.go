package router

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

// Ingester is the gate transport adapters call to submit a batch of inbound
// VaultReports. Each call is a stateless pass over the batch against current
// config: the entire batch is validated before any write, so a single bad
// entry cannot leave the store partially updated.
type Ingester struct {
	lggr         logger.Logger
	localChainID uint64
	maxReports   int
	auth         Authority
	mapper       *AssetMapper
	store        *ReportStore
	metrics      *routerMetrics
}

func NewIngester(lggr logger.Logger, localChainID uint64, maxReports int, auth Authority, mapper *AssetMapper, store *ReportStore, metrics *routerMetrics) *Ingester {
	if maxReports <= 0 {
		maxReports = DefaultMaxReports
	}
	return &Ingester{
		lggr:         logger.Named(lggr, "Ingester"),
		localChainID: localChainID,
		maxReports:   maxReports,
		auth:         auth,
		mapper:       mapper,
		store:        store,
		metrics:      metrics,
	}
}

// Ingest validates and commits one inbound batch. Validation failures reject
// the whole batch with no state mutation. Reports that validate but are not
// fresher than the stored record are dropped silently at commit; cross-chain
// messages arrive out of order and are retried, so that is not an error.
//
// Every report's own ChainID field must equal the transport-supplied
// sourceChainID. The transport parameter is the single scoping signal for
// storage keys; a disagreeing report is a producer bug and rejects the batch.
func (ing *Ingester) Ingest(ctx context.Context, identity common.Address, sourceChainID uint64, reports []VaultReport) error {
	if !ing.auth.HasCapability(identity, CapabilitySubmitReports) {
		ing.metrics.batchesRejected.WithLabelValues("unauthorized").Inc()
		return ErrUnauthorized
	}
	if sourceChainID == ing.localChainID {
		ing.metrics.batchesRejected.WithLabelValues("invalid_chain_id").Inc()
		return fmt.Errorf("%w: source chain id %d equals local chain id", ErrInvalidChainID, sourceChainID)
	}
	if len(reports) > ing.maxReports {
		ing.metrics.batchesRejected.WithLabelValues("exceeds_max_reports").Inc()
		return fmt.Errorf("%w: got %d, max %d", ErrExceedsMaxReports, len(reports), ing.maxReports)
	}

	// Validate everything before the first write.
	localAssets := make([]common.Address, len(reports))
	for i, rep := range reports {
		if rep.VaultAddress == (common.Address{}) {
			ing.metrics.batchesRejected.WithLabelValues("zero_address").Inc()
			return fmt.Errorf("%w: report %d", ErrZeroAddress, i)
		}
		if rep.SharePrice == nil || rep.SharePrice.Sign() <= 0 {
			ing.metrics.batchesRejected.WithLabelValues("no_valid_price").Inc()
			return fmt.Errorf("%w: report %d for vault %s", ErrNoValidPrice, i, rep.VaultAddress.Hex())
		}
		if rep.ChainID != sourceChainID {
			ing.metrics.batchesRejected.WithLabelValues("invalid_chain_id").Inc()
			return fmt.Errorf("%w: report %d declares chain id %d, transport delivered from %d", ErrInvalidChainID, i, rep.ChainID, sourceChainID)
		}
		local, ok := ing.mapper.ResolveLocal(sourceChainID, rep.Asset)
		if !ok {
			ing.metrics.batchesRejected.WithLabelValues("asset_not_configured").Inc()
			return AssetNotConfiguredError{Asset: rep.Asset}
		}
		localAssets[i] = local
	}

	var accepted, stale int
	for i, rep := range reports {
		ok := ing.store.Put(StoredSharePrice{
			ChainID:         sourceChainID,
			VaultAddress:    rep.VaultAddress,
			RemoteAsset:     rep.Asset,
			LocalAsset:      localAssets[i],
			AssetDecimals:   rep.AssetDecimals,
			SharePrice:      new(big.Int).Set(rep.SharePrice),
			LastUpdate:      rep.LastUpdate,
			RewardsDelegate: rep.RewardsDelegate,
		})
		if ok {
			accepted++
		} else {
			stale++
		}
	}
	ing.metrics.reportsAccepted.Add(float64(accepted))
	ing.metrics.staleDropped.Add(float64(stale))
	ing.lggr.Debugw("Ingested report batch", "sourceChainID", sourceChainID, "reports", len(reports), "accepted", accepted, "staleDropped", stale)
	return nil
}
