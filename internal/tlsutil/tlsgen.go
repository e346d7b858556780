// Package tlsutil generates and loads the self-signed CA and leaf
// certificate the TLS listener (C3) presents to peers, and builds the
// resulting tls.Config.
package tlsutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

// Bundle holds the four PEM files written under the tls directory.
type Bundle struct {
	CACert  []byte
	CAKey   []byte
	Cert    []byte
	Key     []byte
}

const fakeDomainSuffix = ".windsend.local"

// EnsureBundle loads cert.pem/key.pem/ca_cert.pem/ca_key.pem from dir,
// generating a fresh self-signed CA and a leaf certificate signed by it
// on first run (§4.3). fakeDomain should be a per-install random label
// so the leaf SAN set is not identical across installs.
func EnsureBundle(dir, fakeDomain string) (*Bundle, error) {
	paths := map[string]string{
		"cert":   filepath.Join(dir, "cert.pem"),
		"key":    filepath.Join(dir, "key.pem"),
		"cacert": filepath.Join(dir, "ca_cert.pem"),
		"cakey":  filepath.Join(dir, "ca_key.pem"),
	}

	if allExist(paths) {
		b := &Bundle{}
		var err error
		if b.Cert, err = os.ReadFile(paths["cert"]); err != nil {
			return nil, err
		}
		if b.Key, err = os.ReadFile(paths["key"]); err != nil {
			return nil, err
		}
		if b.CACert, err = os.ReadFile(paths["cacert"]); err != nil {
			return nil, err
		}
		if b.CAKey, err = os.ReadFile(paths["cakey"]); err != nil {
			return nil, err
		}
		return b, nil
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create tls directory: %w", err)
	}

	b, err := generateBundle(fakeDomain)
	if err != nil {
		return nil, err
	}
	writes := map[string][]byte{
		paths["cacert"]: b.CACert,
		paths["cakey"]:  b.CAKey,
		paths["cert"]:   b.Cert,
		paths["key"]:    b.Key,
	}
	for path, data := range writes {
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
	}
	return b, nil
}

func allExist(paths map[string]string) bool {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

func generateBundle(fakeDomain string) (*Bundle, error) {
	caKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generate CA key: %w", err)
	}
	caSerial, err := randSerial()
	if err != nil {
		return nil, err
	}
	caTemplate := x509.Certificate{
		SerialNumber:          caSerial,
		Subject:               pkix.Name{CommonName: "WindSend-S Local CA"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(10 * 365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, &caTemplate, &caTemplate, &caKey.PublicKey, caKey)
	if err != nil {
		return nil, fmt.Errorf("create CA certificate: %w", err)
	}

	leafKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generate leaf key: %w", err)
	}
	leafSerial, err := randSerial()
	if err != nil {
		return nil, err
	}
	if fakeDomain == "" {
		fakeDomain = "host" + fakeDomainSuffix
	}
	caCert, err := x509.ParseCertificate(caDER)
	if err != nil {
		return nil, err
	}
	leafTemplate := x509.Certificate{
		SerialNumber: leafSerial,
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost", fakeDomain},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")},
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, &leafTemplate, caCert, &leafKey.PublicKey, caKey)
	if err != nil {
		return nil, fmt.Errorf("create leaf certificate: %w", err)
	}

	return &Bundle{
		CACert: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: caDER}),
		CAKey:  pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(caKey)}),
		Cert:   pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: leafDER}),
		Key:    pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(leafKey)}),
	}, nil
}

func randSerial() (*big.Int, error) {
	return rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
}

// ServerTLSConfig builds the listener's tls.Config from the bundle.
func (b *Bundle) ServerTLSConfig() (*tls.Config, error) {
	cert, err := tls.X509KeyPair(b.Cert, b.Key)
	if err != nil {
		return nil, fmt.Errorf("load leaf keypair: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
