package tlsutil

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

const (
	defaultMaxIdleConns    = 100
	defaultIdleConnTimeout = 90 * time.Second
)

// Options shapes the outbound HTTP clients handed to providers, MCP
// proxies, and agent tools.
type Options struct {
	// Timeout bounds the whole request. Zero leaves the client
	// unbounded, callers then rely on context deadlines.
	Timeout time.Duration
	// MaxIdleConns caps the pooled connections, zero uses 100.
	MaxIdleConns int
	// IdleConnTimeout recycles idle connections, zero uses 90s.
	IdleConnTimeout time.Duration
}

// TLSConfig returns the client TLS settings used for every outbound
// connection: TLS 1.2 minimum and AEAD cipher suites only.
func TLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
		},
	}
}

// NewClient builds an outbound HTTP client with the service TLS settings
// and connection pooling applied.
func NewClient(opts Options) *http.Client {
	maxIdle := opts.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = defaultMaxIdleConns
	}
	idleTimeout := opts.IdleConnTimeout
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleConnTimeout
	}
	return &http.Client{
		Timeout: opts.Timeout,
		Transport: &http.Transport{
			TLSClientConfig: TLSConfig(),
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          maxIdle,
			IdleConnTimeout:       idleTimeout,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: time.Second,
		},
	}
}
