// Package mtls builds HTTP clients that present a client certificate,
// as required by the bank's open API.
package mtls

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"time"
)

// NewHTTPClient returns an *http.Client with the given client certificate
// loaded. When certPath is empty a plain client with the timeout is
// returned (sandbox environments do not require mTLS).
func NewHTTPClient(certPath, keyPath string, timeout time.Duration) (*http.Client, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if certPath == "" {
		return &http.Client{Timeout: timeout}, nil
	}
	if keyPath == "" {
		keyPath = certPath
	}

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("load client certificate: %w", err)
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		},
	}
	return &http.Client{Transport: transport, Timeout: timeout}, nil
}
