// Package mtls builds mutual TLS 1.3 configs from raw ed25519 identities.
// Certificates are minimal self-signed wrappers; peers are authenticated by
// pinning their ed25519 public key against an allow-list, so the same
// identities work for the NATS bridge and for gRPC transports.
package mtls

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/subtle"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"google.golang.org/grpc/credentials"
)

const certOrganization = "VaultMesh Share Price Router"

// StaticSizedPublicKey is an ed25519 public key usable as a map key.
type StaticSizedPublicKey [ed25519.PublicKeySize]byte

func (p StaticSizedPublicKey) String() string {
	return hex.EncodeToString(p[:])
}

// NewTransportCredentials wraps a pinned-key TLS config for gRPC transports.
func NewTransportCredentials(signer crypto.Signer, allowedPeers []ed25519.PublicKey) (credentials.TransportCredentials, error) {
	c, err := NewTLSConfig(signer, allowedPeers)
	if err != nil {
		return nil, err
	}
	return credentials.NewTLS(c), nil
}

// NewTLSConfig builds a mutual TLS 1.3 config that presents a minimal
// self-signed certificate for signer's key and accepts only peers whose
// certificate key is in allowedPeers.
//
// Standard x509 chain verification is disabled; VerifyPeerCertificate does
// the only check that matters here, the key pin.
func NewTLSConfig(signer crypto.Signer, allowedPeers []ed25519.PublicKey) (*tls.Config, error) {
	if signer == nil {
		return nil, errors.New("signer is required")
	}
	peers, err := NewAllowedKeys(allowedPeers...)
	if err != nil {
		return nil, err
	}
	cert, err := newMinimalX509Cert(signer)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates:          []tls.Certificate{cert},
		InsecureSkipVerify:    true, //nolint:gosec
		MinVersion:            tls.VersionTLS13,
		MaxVersion:            tls.VersionTLS13,
		ClientAuth:            tls.RequireAnyClientCert,
		VerifyPeerCertificate: peers.VerifyPeerCertificate(),
	}, nil
}

// newMinimalX509Cert wraps an ed25519 key in a certificate that would not be
// considered valid outside this protocol. The subject carries the full pubkey
// hex so servers can map connections back to identities.
func newMinimalX509Cert(signer crypto.Signer) (tls.Certificate, error) {
	pubKey, ok := signer.Public().(ed25519.PublicKey)
	if !ok {
		return tls.Certificate{}, fmt.Errorf("invalid public key type %T", signer.Public())
	}
	pubKeyHex := hex.EncodeToString(pubKey)

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate serial number: %w", err)
	}

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			CommonName:         pubKeyHex[:32],
			Organization:       []string{certOrganization},
			OrganizationalUnit: []string{pubKeyHex},
		},
		NotBefore:             time.Now(),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}
	encodedCert, err := x509.CreateCertificate(rand.Reader, &template, &template, signer.Public(), signer)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.Certificate{
		Certificate:                  [][]byte{encodedCert},
		PrivateKey:                   signer,
		SupportedSignatureAlgorithms: []tls.SignatureScheme{tls.Ed25519},
	}, nil
}

// AllowedKeys is a mutable pin set; Replace supports key rotation at runtime.
type AllowedKeys struct {
	mu   sync.RWMutex
	keys []ed25519.PublicKey
}

func NewAllowedKeys(keys ...ed25519.PublicKey) (*AllowedKeys, error) {
	if len(keys) == 0 {
		return nil, errors.New("no public keys provided")
	}
	for _, key := range keys {
		if len(key) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("invalid key length: %d, expected: %d", len(key), ed25519.PublicKeySize)
		}
	}
	return &AllowedKeys{keys: keys}, nil
}

// VerifyPeerCertificate checks the peer certificate's key against the pin
// set. It is the sole authentication step in this protocol.
func (a *AllowedKeys) VerifyPeerCertificate() func(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) != 1 {
			return fmt.Errorf("required exactly one peer certificate, got %d", len(rawCerts))
		}
		cert, err := x509.ParseCertificate(rawCerts[0])
		if err != nil {
			return err
		}
		pk, err := pubKeyFromCert(cert)
		if err != nil {
			return err
		}
		if !a.contains(pk) {
			return fmt.Errorf("unknown public key on cert %x", pk)
		}
		return nil
	}
}

// Replace swaps the pin set for a new one.
func (a *AllowedKeys) Replace(keys *AllowedKeys) {
	keys.mu.RLock()
	newKeys := make([]ed25519.PublicKey, len(keys.keys))
	copy(newKeys, keys.keys)
	keys.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = newKeys
}

func (a *AllowedKeys) contains(pub ed25519.PublicKey) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, k := range a.keys {
		if subtle.ConstantTimeCompare(pub, k) == 1 {
			return true
		}
	}
	return false
}

// PubKeyFromCert extracts the pinned identity from a peer certificate.
func PubKeyFromCert(cert *x509.Certificate) (StaticSizedPublicKey, error) {
	pub, err := pubKeyFromCert(cert)
	if err != nil {
		return StaticSizedPublicKey{}, err
	}
	var out StaticSizedPublicKey
	copy(out[:], pub)
	return out, nil
}

func pubKeyFromCert(cert *x509.Certificate) (ed25519.PublicKey, error) {
	if cert.PublicKeyAlgorithm != x509.Ed25519 {
		return nil, errors.New("requires an ed25519 public key")
	}
	pub, ok := cert.PublicKey.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key")
	}
	return pub, nil
}
