package client

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"

	"github.com/otherjamesbrown/reelkit/config"
)

// LoadClientTLSConfig builds the mTLS config shared by the gRPC and HTTP
// transports. It returns nil when TLS is disabled.
func LoadClientTLSConfig(cfg *config.TLSConfig) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	cfg.ResolvePaths()

	cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load client cert: %w", err)
	}

	tlsConfig := &tls.Config{
		Certificates:       []tls.Certificate{cert},
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.SkipVerify,
	}
	if cfg.CACert == "" || cfg.SkipVerify {
		return tlsConfig, nil
	}

	pem, err := os.ReadFile(cfg.CACert)
	if err != nil {
		return nil, fmt.Errorf("read CA cert: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("parse CA cert: invalid PEM")
	}
	tlsConfig.RootCAs = pool
	return tlsConfig, nil
}

// CheckCertsExist reports the first missing certificate file, so callers can
// fail with a clear message before dialing.
func CheckCertsExist(cfg *config.TLSConfig) error {
	cfg.ResolvePaths()

	files := []struct{ name, path string }{
		{"CA certificate", cfg.CACert},
		{"Client certificate", cfg.ClientCert},
		{"Client key", cfg.ClientKey},
	}
	for _, f := range files {
		if f.path == "" {
			return fmt.Errorf("%s not configured", f.name)
		}
		if _, err := os.Stat(f.path); os.IsNotExist(err) {
			return fmt.Errorf("%s not found: %s", f.name, f.path)
		}
	}
	return nil
}

// httpTransport returns a transport using tlsConfig, or the default transport when nil.
func httpTransport(tlsConfig *tls.Config) http.RoundTripper {
	if tlsConfig == nil {
		return http.DefaultTransport
	}
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.TLSClientConfig = tlsConfig
	return t
}
