package natsbridge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
	"github.com/smartcontractkit/chainlink-common/pkg/services"

	"github.com/vaultmesh/share-price-router/reportcodec"
)

var (
	ErrUnknownSender       = errors.New("sender not on allow-list")
	ErrSenderChainMismatch = errors.New("batch source chain does not match sender authorization")
)

// Receiver terminates the inbound path: it subscribes on the local chain's
// subject, maps the sender's transport identity to its submitter identity
// and authorized source chain, decodes the payload and hands the batch to the
// router. Rejected batches are dropped here; redelivery is the sender's
// problem, not ours.
type Receiver struct {
	services.Service

	lggr         logger.Logger
	localChainID uint64
	codec        reportcodec.Codec
	ingester     Ingester
	senders      map[string]Sender
	conn         *nats.Conn

	sub *nats.Subscription
}

func NewReceiver(opts ReceiverOpts) (*Receiver, error) {
	if err := opts.verifyConfig(); err != nil {
		return nil, err
	}
	r := &Receiver{
		lggr:         opts.Logger,
		localChainID: opts.LocalChainID,
		codec:        opts.Codec,
		ingester:     opts.Ingester,
		senders:      opts.Senders,
		conn:         opts.Conn,
	}

	svc, _ := services.Config{
		Name:  "BridgeReceiver",
		Start: r.start,
		Close: r.close,
	}.NewServiceEngine(opts.Logger)
	r.Service = svc

	return r, nil
}

func (r *Receiver) start(ctx context.Context) error {
	if r.conn == nil {
		return errors.New("NATS connection is required to start the receiver")
	}
	subject := fmt.Sprintf("%s.%d.*", SubjectPrefix, r.localChainID)
	sub, err := r.conn.Subscribe(subject, func(msg *nats.Msg) {
		senderKey := senderKeyFromSubject(msg.Subject)
		if err := r.HandleMessage(context.Background(), senderKey, msg.Data); err != nil {
			r.lggr.Warnw("Dropped inbound report batch", "subject", msg.Subject, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe on %s: %w", subject, err)
	}
	r.sub = sub
	r.lggr.Infow("Bridge receiver subscribed", "subject", subject)
	return nil
}

func (r *Receiver) close() error {
	if r.sub != nil {
		return r.sub.Unsubscribe()
	}
	return nil
}

// HandleMessage validates and ingests one inbound payload from the sender
// identified by senderKey (pubkey hex). The transport allow-list is enforced
// here; everything report-level is the router's job.
func (r *Receiver) HandleMessage(ctx context.Context, senderKey string, payload []byte) error {
	sender, ok := r.senders[senderKey]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSender, senderKey)
	}

	batch, err := r.codec.Decode(payload)
	if err != nil {
		return fmt.Errorf("failed to decode report batch from %s: %w", senderKey, err)
	}
	if batch.SourceChainID != sender.SourceChainID {
		return fmt.Errorf("%w: batch claims %d, sender authorized for %d", ErrSenderChainMismatch, batch.SourceChainID, sender.SourceChainID)
	}

	if err := r.ingester.Ingest(ctx, sender.Identity, batch.SourceChainID, batch.Reports); err != nil {
		return fmt.Errorf("router rejected batch from %s: %w", senderKey, err)
	}
	r.lggr.Debugw("Ingested inbound report batch", "sender", senderKey, "sourceChainID", batch.SourceChainID, "reports", len(batch.Reports))
	return nil
}

// senderKeyFromSubject extracts the trailing pubkey-hex token. The server's
// per-user publish permissions guarantee it matches the connection identity.
func senderKeyFromSubject(subject string) string {
	parts := strings.Split(subject, ".")
	return parts[len(parts)-1]
}
