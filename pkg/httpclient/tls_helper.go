package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"os"

	cerr "github.com/cockroachdb/errors"
)

// SecureTLSConfig verifies certificates, optionally against an extra CA.
func SecureTLSConfig(caCertPath string) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if caCertPath != "" {
		caCert, err := os.ReadFile(caCertPath)
		if err != nil {
			return nil, cerr.Wrapf(err, "failed to read CA certificate from %s", caCertPath)
		}
		pool, err := x509.SystemCertPool()
		if err != nil {
			pool = x509.NewCertPool()
		}
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, cerr.Newf("failed to parse CA certificate from %s", caCertPath)
		}
		tlsConfig.RootCAs = pool
	}

	return tlsConfig, nil
}

// InsecureTLSConfig accepts any certificate.
func InsecureTLSConfig() *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: true, //nolint:gosec // opt-in via siem.insecure_tls
		MinVersion:         tls.VersionTLS12,
	}
}
