// Package crypto generates the ephemeral certificates used by the test
// servers. The client side of the shim ships no certificate; everything
// here exists so a cooperating QUIC endpoint can complete the handshake.
package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"time"
)

// GenerateServerCertificate creates a self-signed ECDSA certificate for
// the given hosts, valid immediately and long enough for any test run.
func GenerateServerCertificate(hosts ...string) (tls.Certificate, error) {
	var out tls.Certificate

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return out, fmt.Errorf("ecdsa.GenerateKey: %s", err)
	}

	commonName, err := generateRandomString(8)
	if err != nil {
		return out, fmt.Errorf("generating random common name: %s", err)
	}

	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return out, fmt.Errorf("generating serial: %s", err)
	}

	tmpl := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return out, fmt.Errorf("x509.CreateCertificate: %s", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return out, fmt.Errorf("unable to marshal ECDSA private key: %v", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	out, err = tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return out, fmt.Errorf("tls.X509KeyPair: %s", err)
	}

	return out, nil
}

// generateRandomString generates a random base64 URL-encoded string of the
// specified length.
func generateRandomString(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes)[:length], nil
}
