package natsbridge

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"time"

	natssrv "github.com/nats-io/nats-server/v2/server"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
	"github.com/smartcontractkit/chainlink-common/pkg/services"

	"github.com/vaultmesh/share-price-router/pkg/mtls"
)

// Server is an embedded NATS server terminating the bridge's mTLS. Each
// allowed sender is mapped to a user that may publish only on its own
// subject, so a sender cannot impersonate another even at the transport
// layer.
type Server interface {
	services.Service

	// URL returns the connect URL(s) to hand to bridge clients.
	URL() []string
}

var _ Server = (*serverImpl)(nil)

type serverImpl struct {
	services.Service

	lggr logger.Logger
	opts ServerOpts
	srv  *natssrv.Server
	urls []string
}

func NewServer(opts ServerOpts) (Server, error) {
	if err := opts.verifyConfig(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	s := &serverImpl{
		lggr: opts.Logger,
		opts: opts,
	}

	svc, err := services.Config{
		Name:  "BridgeServer",
		Start: s.start,
		Close: s.close,
	}.NewServiceEngine(s.lggr)
	if err != nil {
		return nil, fmt.Errorf("failed to create BridgeServer service engine: %w", err)
	}
	s.Service = svc

	return s, nil
}

func (s *serverImpl) start(ctx context.Context) error {
	allowedPeers := make([]ed25519.PublicKey, 0, len(s.opts.AllowedSenderPubKeys)+len(s.opts.AdminPubKeys))
	allowedPeers = append(allowedPeers, s.opts.AllowedSenderPubKeys...)
	allowedPeers = append(allowedPeers, s.opts.AdminPubKeys...)
	serverTLSConfig, err := mtls.NewTLSConfig(s.opts.ServerPrivKey, allowedPeers)
	if err != nil {
		return fmt.Errorf("failed to create server TLS config: %w", err)
	}

	// TLSMap ties each connection to the certificate identity; the username
	// matches the subject of the minimal cert built by pkg/mtls. Each sender
	// may publish only on subjects carrying its own pubkey.
	var users []*natssrv.User
	for _, senderPub := range s.opts.AllowedSenderPubKeys {
		senderHex := hex.EncodeToString(senderPub)
		users = append(users, &natssrv.User{
			Username: fmt.Sprintf("CN=%s,OU=%s,O=VaultMesh Share Price Router", senderHex[:32], senderHex),
			Permissions: &natssrv.Permissions{
				Publish: &natssrv.SubjectPermission{
					Allow: []string{fmt.Sprintf("%s.*.%s", SubjectPrefix, senderHex)},
				},
				// _INBOX is needed for JetStream publish acks
				Subscribe: &natssrv.SubjectPermission{
					Allow: []string{SubjectPrefix + ".>", "_INBOX.>"},
				},
			},
		})
	}
	// Admins run the receiving side: they provision streams and consume
	// inbound subjects.
	for _, adminPub := range s.opts.AdminPubKeys {
		adminHex := hex.EncodeToString(adminPub)
		users = append(users, &natssrv.User{
			Username: fmt.Sprintf("CN=%s,OU=%s,O=VaultMesh Share Price Router", adminHex[:32], adminHex),
			Permissions: &natssrv.Permissions{
				Publish:   &natssrv.SubjectPermission{Allow: []string{">"}},
				Subscribe: &natssrv.SubjectPermission{Allow: []string{">"}},
			},
		})
	}

	natsOpts := &natssrv.Options{
		Host:              s.opts.Host,
		Port:              s.opts.Port,
		NoSigs:            true,
		Logtime:           true,
		TLSConfig:         serverTLSConfig,
		TLSHandshakeFirst: true,
		AllowNonTLS:       false,
		TLSMap:            true,
		MaxConn:           1000,
		MaxSubs:           100,
		MaxPayload:        512 * 1024,
		MaxPending:        2 * 1024 * 1024,
		WriteDeadline:     1 * time.Second,
		AuthTimeout:       2.0,
		TLSTimeout:        2.0,
		PingInterval:      2 * time.Second,
		MaxPingsOut:       3,
		Users:             users,
		JetStream:         true,
		StoreDir:          s.opts.StoreDir,
	}

	ns, err := natssrv.NewServer(natsOpts)
	if err != nil {
		return fmt.Errorf("failed to create embedded NATS server: %w", err)
	}
	go ns.Start()

	s.srv = ns
	s.urls = []string{fmt.Sprintf("tls://%s:%d", s.opts.Host, s.opts.Port)}

	s.lggr.Infow("Bridge server is starting", "host", s.opts.Host, "port", s.opts.Port)
	return nil
}

func (s *serverImpl) close() error {
	if s.srv == nil {
		return nil
	}
	s.lggr.Infow("Shutting down bridge server", "host", s.opts.Host, "port", s.opts.Port)
	s.srv.Shutdown()
	return nil
}

func (s *serverImpl) Healthy() error {
	if s.srv == nil {
		return fmt.Errorf("NATS server is nil")
	}
	return nil
}

func (s *serverImpl) Ready() error {
	if s.srv == nil {
		return fmt.Errorf("NATS server is nil")
	}
	if !s.srv.ReadyForConnections(0 * time.Second) {
		return fmt.Errorf("NATS server is not ready for connections")
	}
	return nil
}

func (s *serverImpl) HealthReport() map[string]error {
	return map[string]error{s.Name(): s.Healthy()}
}

func (s *serverImpl) Name() string {
	if s.lggr == nil {
		return "BridgeServer"
	}
	return s.lggr.Name()
}

func (s *serverImpl) URL() []string {
	return s.urls
}
