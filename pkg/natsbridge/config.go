package natsbridge

import (
	"context"
	"crypto"
	"crypto/ed25519"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nats-io/nats.go"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"

	"github.com/vaultmesh/share-price-router/reportcodec"
	"github.com/vaultmesh/share-price-router/router"
)

// SubjectPrefix roots every bridge subject. Full form:
// shareprice.<destinationChainID>.<senderPubKeyHex>
const SubjectPrefix = "shareprice"

type ClientOpts struct {
	Logger       logger.Logger
	ClientSigner crypto.Signer
	ServerPubKey ed25519.PublicKey
	ServerURLs   []string
}

func (c *ClientOpts) verifyConfig() error {
	var errs []error
	if c.Logger == nil {
		errs = append(errs, fmt.Errorf("logger is required for bridge client"))
	}
	if c.ClientSigner == nil {
		errs = append(errs, fmt.Errorf("client signer is required for bridge client"))
	}
	if len(c.ServerPubKey) == 0 {
		errs = append(errs, fmt.Errorf("server public key is required for bridge client"))
	}
	if len(c.ServerURLs) == 0 {
		errs = append(errs, fmt.Errorf("at least one server URL is required for bridge client"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid bridge client configuration: %v", errs)
	}
	return nil
}

type ServerOpts struct {
	Logger logger.Logger

	// ServerPrivKey proves the server's identity to connecting senders
	ServerPrivKey ed25519.PrivateKey

	// AllowedSenderPubKeys is the transport-level allow-list; only these keys
	// can connect and publish
	AllowedSenderPubKeys []ed25519.PublicKey

	// AdminPubKeys identify receiving-side operators which may provision
	// streams and subscribe anywhere. Optional.
	AdminPubKeys []ed25519.PublicKey

	Host string
	Port int

	// StoreDir holds JetStream state for dedupe windows. Empty means the
	// server's default temp directory.
	StoreDir string
}

func (s *ServerOpts) verifyConfig() error {
	var errs []error
	if s.Logger == nil {
		errs = append(errs, fmt.Errorf("logger is required for bridge server"))
	}
	if s.ServerPrivKey == nil {
		errs = append(errs, fmt.Errorf("server private key is required for bridge server"))
	}
	if len(s.AllowedSenderPubKeys) == 0 {
		errs = append(errs, fmt.Errorf("at least one allowed sender public key is required for bridge server"))
	}
	if s.Host == "" {
		errs = append(errs, fmt.Errorf("host must not be empty"))
	}
	if s.Port <= 0 {
		errs = append(errs, fmt.Errorf("port must be > 0"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid bridge server configuration: %v", errs)
	}
	return nil
}

// Snapshotter is the outbound report producer the transmitter drives.
type Snapshotter interface {
	Snapshot(ctx context.Context, vaults []common.Address, rewardsDelegate common.Address) ([]router.VaultReport, error)
}

type TransmitterOpts struct {
	Logger logger.Logger
	// SourceChainID stamps outbound batches with the producer chain
	SourceChainID uint64
	Snapshotter   Snapshotter
	Codec         reportcodec.Codec
	Client        Client
}

func (t *TransmitterOpts) verifyConfig() error {
	var errs []error
	if t.Logger == nil {
		errs = append(errs, fmt.Errorf("logger is required for transmitter"))
	}
	if t.SourceChainID == 0 {
		errs = append(errs, fmt.Errorf("source chain id is required for transmitter"))
	}
	if t.Snapshotter == nil {
		errs = append(errs, fmt.Errorf("snapshotter is required for transmitter"))
	}
	if t.Codec == nil {
		errs = append(errs, fmt.Errorf("codec is required for transmitter"))
	}
	if t.Client == nil {
		errs = append(errs, fmt.Errorf("client is required for transmitter"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid transmitter configuration: %v", errs)
	}
	return nil
}

// Sender identifies one authorized remote producer: the submitter identity it
// acts as and the only source chain it may deliver for.
type Sender struct {
	Identity      common.Address
	SourceChainID uint64
}

// Ingester is the router surface the receiver feeds.
type Ingester interface {
	Ingest(ctx context.Context, identity common.Address, sourceChainID uint64, reports []router.VaultReport) error
}

type ReceiverOpts struct {
	Logger logger.Logger
	// LocalChainID selects the inbound subject to subscribe on
	LocalChainID uint64
	Codec        reportcodec.Codec
	Ingester     Ingester
	// Senders maps sender pubkey hex to their authorization; unknown senders
	// are dropped
	Senders map[string]Sender
	// Conn is the NATS connection to subscribe on. Required for Start;
	// HandleMessage works without it.
	Conn *nats.Conn
}

func (r *ReceiverOpts) verifyConfig() error {
	var errs []error
	if r.Logger == nil {
		errs = append(errs, fmt.Errorf("logger is required for receiver"))
	}
	if r.LocalChainID == 0 {
		errs = append(errs, fmt.Errorf("local chain id is required for receiver"))
	}
	if r.Codec == nil {
		errs = append(errs, fmt.Errorf("codec is required for receiver"))
	}
	if r.Ingester == nil {
		errs = append(errs, fmt.Errorf("ingester is required for receiver"))
	}
	if len(r.Senders) == 0 {
		errs = append(errs, fmt.Errorf("at least one authorized sender is required for receiver"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid receiver configuration: %v", errs)
	}
	return nil
}
