// Package pool builds the dedicated HTTP client the scraper stage shares
// across every source fetch, adapted from ProxyHawk's
// internal/pool.ConnectionPool. Unlike the checker stage, which needs a
// fresh per-proxy transport for every candidate, the scraper talks to a
// comparatively small set of source URLs and benefits from one
// connection-pooled client reused by every concurrent fetch (spec §4.5 and
// §5: "a dedicated HTTP client with its own connection pool", not governed
// by the checker's semaphore).
package pool

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// Config tunes the shared client's underlying transport.
type Config struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
	KeepAliveTimeout    time.Duration `yaml:"keep_alive_timeout"`
	TLSHandshakeTimeout time.Duration `yaml:"tls_handshake_timeout"`
	DisableCompression  bool          `yaml:"disable_compression"`
}

// DefaultConfig returns sensible pooling defaults for a fan-out of dozens
// of concurrent source fetches.
func DefaultConfig() Config {
	return Config{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     0,
		IdleConnTimeout:     90 * time.Second,
		KeepAliveTimeout:    30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

// NewSourceClient builds the single HTTP client every scraper fetch
// shares, bounded only by sourceTimeout per request (not by the checker's
// semaphore, which governs C6 exclusively).
func NewSourceClient(config Config, sourceTimeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   sourceTimeout,
		KeepAlive: config.KeepAliveTimeout,
	}

	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		MaxConnsPerHost:     config.MaxConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
		TLSHandshakeTimeout: config.TLSHandshakeTimeout,
		DisableCompression:  config.DisableCompression,
		TLSClientConfig:     &tls.Config{},
		ForceAttemptHTTP2:   true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   sourceTimeout,
	}
}
