// Demo of the full bridge path: an embedded server with a receiver on the
// destination chain, and a client + transmitter publishing snapshots from the
// source chain. Keys are generated under ./keys on first run and reused after.
package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"log"
	"math/big"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nats-io/nats.go"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"

	"github.com/vaultmesh/share-price-router/pkg/mtls"
	"github.com/vaultmesh/share-price-router/pkg/natsbridge"
	"github.com/vaultmesh/share-price-router/reportcodec"
	"github.com/vaultmesh/share-price-router/router"
)

const (
	sourceChainID uint64 = 137
	destChainID   uint64 = 8453
)

func loadOrGenerateKeys(keysDir, prefix string) (ed25519.PublicKey, ed25519.PrivateKey) {
	pubPath := filepath.Join(keysDir, prefix+".pub")
	privPath := filepath.Join(keysDir, prefix+".priv")

	pubHex, pubErr := os.ReadFile(pubPath)
	privHex, privErr := os.ReadFile(privPath)
	if pubErr == nil && privErr == nil {
		pub, err := hex.DecodeString(string(pubHex))
		if err != nil {
			log.Fatalf("Error decoding %s public key: %v", prefix, err)
		}
		priv, err := hex.DecodeString(string(privHex))
		if err != nil {
			log.Fatalf("Error decoding %s private key: %v", prefix, err)
		}
		return ed25519.PublicKey(pub), ed25519.PrivateKey(priv)
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		log.Fatalf("Error generating %s keys: %v", prefix, err)
	}
	if err := os.MkdirAll(keysDir, 0755); err != nil {
		log.Fatalf("Error creating keys dir: %v", err)
	}
	if err := os.WriteFile(pubPath, []byte(hex.EncodeToString(pub)), 0644); err != nil {
		log.Fatalf("Error saving %s public key: %v", prefix, err)
	}
	if err := os.WriteFile(privPath, []byte(hex.EncodeToString(priv)), 0600); err != nil {
		log.Fatalf("Error saving %s private key: %v", prefix, err)
	}
	return pub, priv
}

// staticSnapshotter stands in for a router wired to live vaults.
type staticSnapshotter struct{}

func (staticSnapshotter) Snapshot(_ context.Context, vaults []common.Address, rewardsDelegate common.Address) ([]router.VaultReport, error) {
	reports := make([]router.VaultReport, 0, len(vaults))
	for _, v := range vaults {
		reports = append(reports, router.VaultReport{
			ChainID:         sourceChainID,
			VaultAddress:    v,
			Asset:           common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
			AssetDecimals:   6,
			SharePrice:      big.NewInt(1_050_000),
			LastUpdate:      uint64(time.Now().Unix()),
			RewardsDelegate: rewardsDelegate,
		})
	}
	return reports, nil
}

// logIngester prints inbound batches instead of feeding a router.
type logIngester struct{}

func (logIngester) Ingest(_ context.Context, identity common.Address, chainID uint64, reports []router.VaultReport) error {
	for _, rep := range reports {
		log.Printf("Ingested report: identity=%s chain=%d vault=%s sharePrice=%s",
			identity, chainID, rep.VaultAddress, rep.SharePrice)
	}
	return nil
}

func main() {
	ctx := context.Background()
	lggr, err := logger.New()
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}

	_, serverPriv := loadOrGenerateKeys("keys", "server")
	serverPub := serverPriv.Public().(ed25519.PublicKey)
	senderPub, senderPriv := loadOrGenerateKeys("keys", "sender")
	receiverPub, receiverPriv := loadOrGenerateKeys("keys", "receiver")

	srv, err := natsbridge.NewServer(natsbridge.ServerOpts{
		Logger:               logger.Named(lggr, "BridgeServer"),
		ServerPrivKey:        serverPriv,
		AllowedSenderPubKeys: []ed25519.PublicKey{senderPub},
		AdminPubKeys:         []ed25519.PublicKey{receiverPub},
		Host:                 "127.0.0.1",
		Port:                 4222,
	})
	if err != nil {
		log.Fatalf("Error creating bridge server: %v", err)
	}
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("Error starting bridge server: %v", err)
	}
	defer srv.Close()
	time.Sleep(500 * time.Millisecond)

	// Receiver connects with its own identity and subscribes for destChainID.
	recvTLS, err := mtls.NewTLSConfig(receiverPriv, []ed25519.PublicKey{serverPub})
	if err != nil {
		log.Fatalf("Error creating receiver TLS config: %v", err)
	}
	recvConn, err := nats.Connect(srv.URL()[0], nats.Secure(recvTLS), nats.TLSHandshakeFirst())
	if err != nil {
		log.Fatalf("Error connecting receiver: %v", err)
	}
	defer recvConn.Close()

	// The destination-side operator owns the stream; its duplicate window
	// backs the transmitter's dedupe keys.
	js, err := recvConn.JetStream()
	if err != nil {
		log.Fatalf("Error creating JetStream context: %v", err)
	}
	if _, err := js.AddStream(&nats.StreamConfig{
		Name:       "SHAREPRICE",
		Subjects:   []string{natsbridge.SubjectPrefix + ".>"},
		MaxAge:     24 * time.Hour,
		Duplicates: 2 * time.Minute,
	}); err != nil && err != nats.ErrStreamNameAlreadyInUse {
		log.Fatalf("Error creating stream: %v", err)
	}

	receiver, err := natsbridge.NewReceiver(natsbridge.ReceiverOpts{
		Logger:       logger.Named(lggr, "BridgeReceiver"),
		LocalChainID: destChainID,
		Codec:        reportcodec.JSONReportCodec{},
		Ingester:     logIngester{},
		Senders: map[string]natsbridge.Sender{
			hex.EncodeToString(senderPub): {
				Identity:      common.HexToAddress("0x5100000000000000000000000000000000000000"),
				SourceChainID: sourceChainID,
			},
		},
		Conn: recvConn,
	})
	if err != nil {
		log.Fatalf("Error creating receiver: %v", err)
	}
	if err := receiver.Start(ctx); err != nil {
		log.Fatalf("Error starting receiver: %v", err)
	}
	defer receiver.Close()

	client, err := natsbridge.NewClient(natsbridge.ClientOpts{
		Logger:       logger.Named(lggr, "BridgeClient"),
		ClientSigner: senderPriv,
		ServerPubKey: serverPub,
		ServerURLs:   srv.URL(),
	})
	if err != nil {
		log.Fatalf("Error creating bridge client: %v", err)
	}

	transmitter, err := natsbridge.NewTransmitter(natsbridge.TransmitterOpts{
		Logger:        logger.Named(lggr, "BridgeTransmitter"),
		SourceChainID: sourceChainID,
		Snapshotter:   staticSnapshotter{},
		Codec:         reportcodec.JSONReportCodec{},
		Client:        client,
	})
	if err != nil {
		log.Fatalf("Error creating transmitter: %v", err)
	}
	if err := transmitter.Start(ctx); err != nil {
		log.Fatalf("Error starting transmitter: %v", err)
	}
	defer transmitter.Close()

	vaults := []common.Address{common.HexToAddress("0x1100000000000000000000000000000000000000")}
	if err := transmitter.Transmit(ctx, destChainID, vaults, common.Address{}); err != nil {
		log.Fatalf("Error transmitting snapshot: %v", err)
	}
	log.Printf("Snapshot transmitted for chain %d, waiting for delivery (Ctrl+C to exit)", destChainID)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}
