// Package tls provides mutual TLS configuration for the binsight services:
// the analyzer's API endpoint and its outbound call to the delegated
// scorer. All configurations require TLS 1.3 and verify both peers against
// a shared CA.
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// Config holds TLS certificate file paths for client or server configuration.
type Config struct {
	Enabled  bool
	CertFile string
	KeyFile  string
	CAFile   string
}

// Validate checks TLS configuration for security issues.
// Returns error if TLS is enabled but certificate files are missing or inaccessible.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.CertFile == "" || c.KeyFile == "" || c.CAFile == "" {
		return errors.New("tls enabled but cert/key/ca files not specified")
	}

	for _, path := range []string{c.CertFile, c.KeyFile, c.CAFile} {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("tls file %q: %w", path, err)
		}
	}

	return nil
}

// NewServerTLSConfig creates a server TLS configuration with mutual
// authentication. Client certificates are required and verified against the
// CA certificate in caFile. All files are PEM format.
func NewServerTLSConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	if err := validateCertFiles(certFile, keyFile, caFile); err != nil {
		return nil, err
	}

	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read CA certificate: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, errors.New("failed to parse CA certificate")
	}

	return &tls.Config{
		ClientCAs:  caCertPool,
		ClientAuth: tls.RequireAndVerifyClientCert,
		MinVersion: tls.VersionTLS13,
		CipherSuites: []uint16{
			tls.TLS_AES_128_GCM_SHA256,
			tls.TLS_AES_256_GCM_SHA384,
			tls.TLS_CHACHA20_POLY1305_SHA256,
		},
	}, nil
}

// NewClientTLSConfig creates a client TLS configuration with mutual
// authentication. The client certificate in certFile/keyFile is presented
// to the server, whose certificate is verified against the CA in caFile.
// All files are PEM format.
func NewClientTLSConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	if err := validateCertFiles(certFile, keyFile, caFile); err != nil {
		return nil, err
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load client certificate: %w", err)
	}

	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read CA certificate: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, errors.New("failed to parse CA certificate")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      caCertPool,
		MinVersion:   tls.VersionTLS13,
		CipherSuites: []uint16{
			tls.TLS_AES_128_GCM_SHA256,
			tls.TLS_AES_256_GCM_SHA384,
			tls.TLS_CHACHA20_POLY1305_SHA256,
		},
	}, nil
}

func validateCertFiles(certFile, keyFile, caFile string) error {
	if certFile == "" {
		return errors.New("certificate file path cannot be empty")
	}
	if keyFile == "" {
		return errors.New("key file path cannot be empty")
	}
	if caFile == "" {
		return errors.New("CA certificate file path cannot be empty")
	}

	for _, path := range []string{certFile, keyFile, caFile} {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("certificate file %q: %w", path, err)
		}
	}

	return nil
}
