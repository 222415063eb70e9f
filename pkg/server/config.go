package server

import (
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config holds configuration for the HTTP/websocket server.
type Config struct {
	// Address is the address to listen on (e.g. ":8080").
	// Default: ":8080".
	Address string

	// ReadBufferSize is the websocket read buffer size. Default: 4096.
	ReadBufferSize int

	// WriteBufferSize is the websocket write buffer size. Default: 4096.
	WriteBufferSize int

	// CheckOrigin validates the websocket request origin.
	// Default: SameOriginCheck.
	CheckOrigin func(r *http.Request) bool

	// ReadTimeout is the maximum time to wait for a client message.
	// Default: 60 seconds.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait when sending a message.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// IdleTimeout detaches sessions with no client activity.
	// Default: 5 minutes.
	IdleTimeout time.Duration

	// MaxMessageSize is the maximum incoming websocket message size.
	// Default: 64KB.
	MaxMessageSize int64

	// MaxEventQueue is the size of the per-session event buffer.
	// Default: 256.
	MaxEventQueue int

	// MaxSessions caps concurrent sessions. 0 means no limit. Default: 0.
	MaxSessions int

	// SessionTTL is how long a detached session's snapshot stays
	// resumable. Default: 30 minutes.
	SessionTTL time.Duration

	// CleanupInterval is the interval of the idle-eviction loop.
	// Default: 30 seconds.
	CleanupInterval time.Duration

	// ShutdownTimeout bounds graceful shutdown. Default: 30 seconds.
	ShutdownTimeout time.Duration

	// Registry receives the server metrics.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:         ":8080",
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     SameOriginCheck,
		ReadTimeout:     60 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     5 * time.Minute,
		MaxMessageSize:  64 * 1024,
		MaxEventQueue:   256,
		MaxSessions:     0,
		SessionTTL:      30 * time.Minute,
		CleanupInterval: 30 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		Registry:        prometheus.DefaultRegisterer,
	}
}

// Clone returns a copy of the config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// WithAddress sets the listen address and returns the config for chaining.
func (c *Config) WithAddress(addr string) *Config {
	c.Address = addr
	return c
}

// WithMaxSessions sets the session cap and returns the config for chaining.
func (c *Config) WithMaxSessions(n int) *Config {
	c.MaxSessions = n
	return c
}

// WithRegistry sets the metrics registry and returns the config for
// chaining.
func (c *Config) WithRegistry(reg prometheus.Registerer) *Config {
	c.Registry = reg
	return c
}

// SameOriginCheck validates that the websocket request origin matches the
// host. This is the secure default for CheckOrigin.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if r.Host == "" {
		return false
	}
	return originURL.Host == r.Host
}
