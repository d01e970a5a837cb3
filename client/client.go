// Package client talks to the reel render service over gRPC or HTTP.
// It handles connection management, retry logic, and health checking.
package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"

	"github.com/otherjamesbrown/reelkit/config"
	"github.com/otherjamesbrown/reelkit/pkg/buildinfo"
)

// Default connection settings.
const (
	DefaultConnectTimeout    = 10 * time.Second
	DefaultKeepaliveTime     = 5 * time.Minute // Must be >= the server's keepalive MinTime.
	DefaultKeepaliveTimeout  = 20 * time.Second
	DefaultMaxRetries        = 3
	DefaultInitialBackoff    = 100 * time.Millisecond
	DefaultMaxBackoff        = 5 * time.Second
	DefaultBackoffMultiplier = 2.0
)

// GRPCClient manages the connection to the render service.
type GRPCClient struct {
	conn       *grpc.ClientConn
	serverAddr string
	options    *ClientOptions

	// mu protects conn, connected and the API key.
	mu        sync.RWMutex
	connected bool
}

// ClientOptions configures the GRPCClient behavior.
type ClientOptions struct {
	// ConnectTimeout is the maximum time to wait for the connection to become ready.
	ConnectTimeout time.Duration

	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration

	// Retry controls WithRetry and Reconnect.
	Retry RetryPolicy

	// Insecure disables TLS (for development only).
	Insecure bool

	Debug bool

	// APIKey is sent as a bearer token on every call when set.
	APIKey string

	// TLSConfig is used when Insecure is false.
	TLSConfig *tls.Config

	// DialOptions are appended to the built options. Tests use this for in-memory dialers.
	DialOptions []grpc.DialOption
}

// DefaultOptions returns ClientOptions with default values.
func DefaultOptions() *ClientOptions {
	return &ClientOptions{
		ConnectTimeout:   DefaultConnectTimeout,
		KeepaliveTime:    DefaultKeepaliveTime,
		KeepaliveTimeout: DefaultKeepaliveTimeout,
		Retry:            DefaultRetryPolicy(),
		Insecure:         true, // Default to insecure for local development.
	}
}

// NewGRPCClient creates a new GRPCClient with the given options.
// Call Connect() to establish the connection.
func NewGRPCClient(serverAddr string, opts *ClientOptions) *GRPCClient {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &GRPCClient{
		serverAddr: serverAddr,
		options:    opts,
	}
}

// Connect establishes the connection and waits until it is ready or
// ConnectTimeout elapses.
func (c *GRPCClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected && c.conn != nil {
		return nil
	}

	conn, err := grpc.NewClient(c.serverAddr, c.buildDialOptions()...)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", c.serverAddr, err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, c.options.ConnectTimeout)
	defer cancel()

	// Surface an unreachable server here instead of as a hang on the first call.
	if err := waitReady(connectCtx, conn); err != nil {
		_ = conn.Close()
		return fmt.Errorf("connecting to %s: %w", c.serverAddr, err)
	}

	c.conn = conn
	c.connected = true
	return nil
}

func waitReady(ctx context.Context, conn *grpc.ClientConn) error {
	conn.Connect()
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return fmt.Errorf("connection has been shut down")
		}
		if !conn.WaitForStateChange(ctx, state) {
			return fmt.Errorf("connection not ready (state %v): %w", state, ctx.Err())
		}
	}
}

func (c *GRPCClient) buildDialOptions() []grpc.DialOption {
	opts := []grpc.DialOption{
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                c.options.KeepaliveTime,
			Timeout:             c.options.KeepaliveTimeout,
			PermitWithoutStream: true,
		}),
		grpc.WithUserAgent(buildinfo.UserAgent()),
	}

	if !c.options.Insecure && c.options.TLSConfig != nil {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(c.options.TLSConfig)))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	return append(opts, c.options.DialOptions...)
}

// Close closes the connection. It's safe to call Close multiple times.
func (c *GRPCClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	c.connected = false

	if err != nil {
		return fmt.Errorf("closing connection: %w", err)
	}
	return nil
}

// IsConnected returns true if the client has an active connection.
func (c *GRPCClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.conn != nil
}

// GetConnection returns the underlying gRPC connection, or nil.
func (c *GRPCClient) GetConnection() *grpc.ClientConn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

func (c *GRPCClient) connection() (*grpc.ClientConn, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected || c.conn == nil {
		return nil, fmt.Errorf("not connected to render service")
	}
	return c.conn, nil
}

// Reconnect closes the existing connection and establishes a new one,
// backing off between attempts.
func (c *GRPCClient) Reconnect(ctx context.Context) error {
	_ = c.Close()
	return c.options.Retry.Do(ctx, func() error { return c.Connect(ctx) }, nil)
}

// WithRetry executes fn, retrying any error with exponential backoff.
func (c *GRPCClient) WithRetry(ctx context.Context, fn func() error) error {
	return c.options.Retry.Do(ctx, fn, nil)
}

// ServerAddress returns the configured server address.
func (c *GRPCClient) ServerAddress() string {
	return c.serverAddr
}

// SetAPIKey updates the bearer token sent with each call.
func (c *GRPCClient) SetAPIKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.options.APIKey = key
}

// outgoing attaches the API key and request ID to ctx.
func (c *GRPCClient) outgoing(ctx context.Context, requestID string) context.Context {
	c.mu.RLock()
	key := c.options.APIKey
	c.mu.RUnlock()

	var pairs []string
	if key != "" {
		pairs = append(pairs, "authorization", "Bearer "+key)
	}
	if requestID != "" {
		pairs = append(pairs, "x-request-id", requestID)
	}
	if len(pairs) == 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, pairs...)
}

// ConnectionState returns a human-readable connection state string.
func (c *GRPCClient) ConnectionState() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected || c.conn == nil {
		return "disconnected"
	}

	switch c.conn.GetState() {
	case connectivity.Idle:
		return "idle"
	case connectivity.Connecting:
		return "connecting"
	case connectivity.Ready:
		return "ready"
	case connectivity.TransientFailure:
		return "transient_failure"
	case connectivity.Shutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// ConnectFromConfig creates and connects a GRPCClient using CLIConfig.
// This is the canonical way to create a connected client from CLI commands.
func ConnectFromConfig(ctx context.Context, cfg *config.CLIConfig, apiKey string) (*GRPCClient, error) {
	opts := DefaultOptions()
	opts.Insecure = cfg.Insecure
	opts.Debug = cfg.Debug
	opts.APIKey = apiKey

	if !cfg.Insecure && cfg.TLS.Enabled {
		tlsConfig, err := LoadClientTLSConfig(&cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("loading TLS config: %w", err)
		}
		opts.TLSConfig = tlsConfig
	}

	c := NewGRPCClient(cfg.RenderAddress, opts)
	if err := c.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connecting to render service: %w", err)
	}
	return c, nil
}
