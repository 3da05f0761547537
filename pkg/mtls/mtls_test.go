package mtls

import (
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func Test_NewTransportCredentials(t *testing.T) {
	creds, err := NewTransportCredentials(nil, nil)
	require.Error(t, err)
	assert.Nil(t, creds)

	spub, spriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	creds, err = NewTransportCredentials(spriv, []ed25519.PublicKey{spub})
	require.NoError(t, err)
	assert.Equal(t, "tls", creds.Info().SecurityProtocol)
}

func Test_NewTLSConfig(t *testing.T) {
	_, cpriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	spub, spriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	tlsCfg, err := NewTLSConfig(cpriv, []ed25519.PublicKey{spub})
	require.NoError(t, err)
	require.Len(t, tlsCfg.Certificates, 1)

	assert.True(t, tlsCfg.InsecureSkipVerify)
	assert.Equal(t, uint16(tls.VersionTLS13), tlsCfg.MinVersion)
	assert.Equal(t, uint16(tls.VersionTLS13), tlsCfg.MaxVersion)

	// a certificate for a pinned key verifies
	scert, err := newMinimalX509Cert(spriv)
	require.NoError(t, err)
	require.NoError(t, tlsCfg.VerifyPeerCertificate(scert.Certificate, [][]*x509.Certificate{}))

	// a certificate for an unknown key does not
	_, unknownPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	unknownCert, err := newMinimalX509Cert(unknownPriv)
	require.NoError(t, err)
	require.Error(t, tlsCfg.VerifyPeerCertificate(unknownCert.Certificate, [][]*x509.Certificate{}))
}

func Test_PubKeyFromCert(t *testing.T) {
	randReader := rand.New(rand.NewSource(42)) //nolint:gosec

	pub, priv, err := ed25519.GenerateKey(randReader)
	require.NoError(t, err)

	template := x509.Certificate{SerialNumber: big.NewInt(0)}
	encodedCert, err := x509.CreateCertificate(randReader, &template, &template, priv.Public(), priv)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(encodedCert)
	require.NoError(t, err)

	actual, err := PubKeyFromCert(cert)
	require.NoError(t, err)
	assert.ElementsMatch(t, pub, actual)
}

func Test_PubKeyFromCert_MustBeEd25519KeyError(t *testing.T) {
	randReader := rand.New(rand.NewSource(42)) //nolint:gosec

	priv, err := rsa.GenerateKey(randReader, 2048)
	require.NoError(t, err)

	template := x509.Certificate{SerialNumber: big.NewInt(0)}
	encodedCert, err := x509.CreateCertificate(randReader, &template, &template, priv.Public(), priv)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(encodedCert)
	require.NoError(t, err)

	_, err = PubKeyFromCert(cert)
	require.EqualError(t, err, "requires an ed25519 public key")
}

func Test_AllowedKeys(t *testing.T) {
	cpub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	other, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	_, err = NewAllowedKeys()
	require.Error(t, err)

	_, err = NewAllowedKeys(ed25519.PublicKey{0x01})
	require.Error(t, err)

	keys, err := NewAllowedKeys(cpub)
	require.NoError(t, err)
	assert.True(t, keys.contains(cpub))
	assert.False(t, keys.contains(other))

	rotated, err := NewAllowedKeys(other)
	require.NoError(t, err)
	keys.Replace(rotated)
	assert.False(t, keys.contains(cpub))
	assert.True(t, keys.contains(other))
}
