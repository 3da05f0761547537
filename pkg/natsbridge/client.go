// Package natsbridge moves encoded vault report batches between chains over
// NATS JetStream with ed25519 mutual TLS. The sending side is Client +
// Transmitter; the receiving side is Server + Receiver.
package natsbridge

import (
	"context"
	"crypto"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
	"github.com/smartcontractkit/chainlink-common/pkg/services"

	"github.com/vaultmesh/share-price-router/pkg/mtls"
)

type Client interface {
	services.Service
	// Transmit publishes one encoded batch for the destination chain.
	// dedupeKey suppresses JetStream redelivery of retried payloads.
	Transmit(ctx context.Context, payload []byte, dedupeKey string, destChainID uint64) error
}

var _ Client = (*client)(nil)

type client struct {
	services.Service

	lggr         logger.Logger
	clientSigner crypto.Signer
	serverPubKey ed25519.PublicKey
	serverURLs   []string

	conn *nats.Conn
	js   nats.JetStreamContext
}

func NewClient(opts ClientOpts) (Client, error) {
	if err := opts.verifyConfig(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	c := &client{
		lggr:         opts.Logger,
		clientSigner: opts.ClientSigner,
		serverPubKey: opts.ServerPubKey,
		serverURLs:   opts.ServerURLs,
	}

	svc, _ := services.Config{
		Name:  "BridgeClient",
		Start: c.start,
		Close: c.close,
	}.NewServiceEngine(opts.Logger)
	c.Service = svc

	return c, nil
}

func (c *client) connect() (*nats.Conn, error) {
	tlsCfg, err := mtls.NewTLSConfig(c.clientSigner, []ed25519.PublicKey{c.serverPubKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create client mTLS config: %w", err)
	}
	options := []nats.Option{
		nats.ReconnectWait(1 * time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.PingInterval(1 * time.Second),
		nats.Timeout(5 * time.Second),
		nats.TLSHandshakeFirst(),
		nats.Secure(tlsCfg),
		nats.Name(c.senderPubKeyHex()),
		nats.ConnectHandler(func(nc *nats.Conn) {
			c.lggr.Infow("Bridge client connection established", "server_id", nc.ConnectedServerId(), "server_url", nc.ConnectedUrl())
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.lggr.Infow("Bridge client reconnected", "server_id", nc.ConnectedServerId(), "server_url", nc.ConnectedUrl(), "total_reconnects", nc.Reconnects)
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			c.lggr.Errorw("Bridge client disconnected with error", "server_id", nc.ConnectedServerId(), "server_url", nc.ConnectedUrl(), "error", err)
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			c.lggr.Warnw("Bridge client closed", "server_id", nc.ConnectedServerId(), "server_url", nc.ConnectedUrl())
		}),
	}

	nc, err := nats.Connect(strings.Join(c.serverURLs, ","), options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create NATS connection: %w", err)
	}

	c.js, err = nc.JetStream(
		nats.PublishAsyncMaxPending(1024),
		nats.PublishAsyncTimeout(200*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	return nc, nil
}

func (c *client) start(context.Context) error {
	nc, err := c.connect()
	if err != nil {
		return err
	}
	c.conn = nc
	return nil
}

func (c *client) close() error {
	if c.conn != nil {
		return c.conn.Drain()
	}
	return nil
}

func (c *client) Transmit(ctx context.Context, payload []byte, dedupeKey string, destChainID uint64) error {
	subject := fmt.Sprintf("%s.%d.%s", SubjectPrefix, destChainID, c.senderPubKeyHex())

	ack, err := c.js.PublishAsync(subject, payload,
		nats.MsgId(dedupeKey),
		nats.StallWait(200*time.Millisecond),
		nats.MsgTTL(24*time.Hour),
	)
	if err != nil {
		return fmt.Errorf("failed to publish report batch: %w", err)
	}
	select {
	case <-ack.Ok():
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-time.After(1 * time.Second):
		return fmt.Errorf("report batch publish timed out")
	}
}

func (c *client) Name() string {
	if c.lggr == nil {
		return "BridgeClient"
	}
	return c.lggr.Name()
}

func (c *client) Healthy() error {
	switch {
	case c.conn == nil:
		return errors.New("NATS connection is nil")
	case !c.conn.IsConnected():
		return fmt.Errorf("NATS connection is %s", c.conn.Status())
	default:
		return nil
	}
}

func (c *client) Ready() error {
	if c.conn == nil || !c.conn.IsConnected() {
		return errors.New("NATS connection is not ready")
	}
	return nil
}

func (c *client) HealthReport() map[string]error {
	return map[string]error{c.Name(): c.Healthy()}
}

func (c *client) senderPubKeyHex() string {
	return hex.EncodeToString(c.clientSigner.Public().(ed25519.PublicKey))
}
