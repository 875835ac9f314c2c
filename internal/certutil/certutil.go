// Package certutil generates and inspects the self-signed TLS leaf
// certificates zrcd uses for its QUIC data-plane listener. There is no CA
// in this model: the operator pins the device's certificate by exact DER
// bytes at session-init time (see internal/zrctransport), so a
// certificate chain would add complexity without adding trust.
package certutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"time"
)

// DefaultValidFor is how long a generated self-signed leaf is valid. zrcd
// regenerates its leaf on every restart rather than persisting it, so this
// mainly bounds how long a single long-running process's certificate is
// good for.
const DefaultValidFor = 24 * time.Hour

// LeafOptions configures self-signed leaf certificate generation.
type LeafOptions struct {
	CommonName  string
	ValidFor    time.Duration
	DNSNames    []string
	IPAddresses []net.IP
}

// DefaultLeafOptions returns default options for a device's QUIC listener
// leaf certificate.
func DefaultLeafOptions(commonName string) LeafOptions {
	return LeafOptions{
		CommonName:  commonName,
		ValidFor:    DefaultValidFor,
		DNSNames:    []string{commonName, "localhost"},
		IPAddresses: []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")},
	}
}

// Leaf is a generated self-signed certificate and its ECDSA private key.
type Leaf struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
	CertPEM     []byte
	KeyPEM      []byte
	DER         []byte
}

// Fingerprint returns the SHA256 fingerprint of the certificate, for
// display to a human comparing it against what session-init reported.
func (l *Leaf) Fingerprint() string {
	return Fingerprint(l.Certificate)
}

// TLSCertificate returns a tls.Certificate suitable for
// tls.Config.Certificates.
func (l *Leaf) TLSCertificate() (tls.Certificate, error) {
	return tls.X509KeyPair(l.CertPEM, l.KeyPEM)
}

// GenerateLeaf generates a self-signed ECDSA P-256 leaf certificate. It is
// never signed by a CA; the pinning model (spec.md §4.7) authenticates the
// device by exact certificate bytes, not by chain of trust.
func GenerateLeaf(opts LeafOptions) (*Leaf, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("certutil: generate private key: %w", err)
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("certutil: generate serial number: %w", err)
	}

	now := time.Now()
	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			CommonName: opts.CommonName,
		},
		NotBefore:             now,
		NotAfter:              now.Add(opts.ValidFor),
		BasicConstraintsValid: true,
		DNSNames:              opts.DNSNames,
		IPAddresses:           opts.IPAddresses,
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, fmt.Errorf("certutil: create certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("certutil: parse certificate: %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})

	keyDER, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("certutil: marshal private key: %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	return &Leaf{
		Certificate: cert,
		PrivateKey:  privateKey,
		CertPEM:     certPEM,
		KeyPEM:      keyPEM,
		DER:         certDER,
	}, nil
}

// Fingerprint calculates the SHA256 fingerprint of a certificate.
func Fingerprint(cert *x509.Certificate) string {
	hash := sha256.Sum256(cert.Raw)
	return "sha256:" + hex.EncodeToString(hash[:])
}

// ParseDER parses a raw certificate DER blob, the form the device reports
// to the operator during session-init and the operator later pins against
// in VerifyPeerCertificate.
func ParseDER(der []byte) (*x509.Certificate, error) {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("certutil: parse DER certificate: %w", err)
	}
	return cert, nil
}

// ValidateECCertificate validates that a DER-encoded certificate uses an
// ECDSA public key. zrcd never generates anything else, but operators may
// load a cert from disk for testing.
func ValidateECCertificate(der []byte) error {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return fmt.Errorf("certutil: parse certificate: %w", err)
	}
	switch cert.PublicKeyAlgorithm {
	case x509.ECDSA:
		return nil
	case x509.RSA:
		return fmt.Errorf("certutil: RSA certificates are not supported; use EC (ECDSA) certificates")
	case x509.Ed25519:
		return fmt.Errorf("certutil: Ed25519 certificates are not supported; use EC (ECDSA) certificates")
	default:
		return fmt.Errorf("certutil: unsupported certificate algorithm: %v", cert.PublicKeyAlgorithm)
	}
}

// IsExpired reports whether a certificate's validity period has ended.
func IsExpired(cert *x509.Certificate) bool {
	return time.Now().After(cert.NotAfter)
}
