package crypto

import (
	"crypto/x509"
	"testing"
)

func TestGenerateServerCertificate(t *testing.T) {
	t.Parallel()

	cert, err := GenerateServerCertificate("localhost", "127.0.0.1")
	if err != nil {
		t.Fatalf("GenerateServerCertificate() error = %v", err)
	}

	if len(cert.Certificate) != 1 {
		t.Fatalf("certificate chain length = %d, want 1", len(cert.Certificate))
	}

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		t.Fatalf("x509.ParseCertificate() error = %v", err)
	}

	if err := leaf.VerifyHostname("localhost"); err != nil {
		t.Errorf("VerifyHostname(localhost): %v", err)
	}
	if err := leaf.VerifyHostname("127.0.0.1"); err != nil {
		t.Errorf("VerifyHostname(127.0.0.1): %v", err)
	}
}

func TestGenerateServerCertificate_Distinct(t *testing.T) {
	t.Parallel()

	a, err := GenerateServerCertificate("localhost")
	if err != nil {
		t.Fatal(err)
	}
	b, err := GenerateServerCertificate("localhost")
	if err != nil {
		t.Fatal(err)
	}

	if string(a.Certificate[0]) == string(b.Certificate[0]) {
		t.Error("two generated certificates are identical")
	}
}
