// Package db provides the PostgreSQL connection pool and schema migrations
// of the reelkit project store.
package db

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds PostgreSQL connection configuration.
type Config struct {
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultConfig returns a Config for a local development database. The CLI
// holds few connections, so the pool is small.
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            5432,
		Database:        "reelkit",
		User:            "reelkit",
		SSLMode:         "disable",
		MaxConns:        4,
		MinConns:        0,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 5 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// ConfigFromEnv creates a Config from REELKIT_DB_* environment variables:
// HOST, PORT, NAME, USER, PASSWORD, SSLMODE and MAX_CONNS.
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()
	cfg.Apply(
		os.Getenv("REELKIT_DB_HOST"),
		atoi(os.Getenv("REELKIT_DB_PORT")),
		os.Getenv("REELKIT_DB_NAME"),
		os.Getenv("REELKIT_DB_USER"),
		os.Getenv("REELKIT_DB_PASSWORD"),
		os.Getenv("REELKIT_DB_SSLMODE"),
	)
	if v := atoi(os.Getenv("REELKIT_DB_MAX_CONNS")); v > 0 {
		cfg.MaxConns = int32(v)
	}
	return cfg
}

// Apply overrides the connection fields that are set.
func (c *Config) Apply(host string, port int, database, user, password, sslmode string) {
	if host != "" {
		c.Host = host
	}
	if port > 0 {
		c.Port = port
	}
	if database != "" {
		c.Database = database
	}
	if user != "" {
		c.User = user
	}
	if password != "" {
		c.Password = password
	}
	if sslmode != "" {
		c.SSLMode = sslmode
	}
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// ConnectionString builds a PostgreSQL URL from the config.
func (c *Config) ConnectionString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Database,
	}
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	q.Set("connect_timeout", strconv.Itoa(int(c.ConnectTimeout.Seconds())))
	u.RawQuery = q.Encode()
	return u.String()
}

// Validate checks if the config has required fields set.
func (c *Config) Validate() error {
	switch {
	case c.Host == "":
		return fmt.Errorf("database host is required")
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("invalid database port: %d", c.Port)
	case c.Database == "":
		return fmt.Errorf("database name is required")
	case c.User == "":
		return fmt.Errorf("database user is required")
	case c.MaxConns < c.MinConns:
		return fmt.Errorf("max connections (%d) must be >= min connections (%d)", c.MaxConns, c.MinConns)
	}
	return nil
}

// Connect creates a connection pool and verifies it with a ping.
// The caller is responsible for calling pool.Close() when done.
func Connect(ctx context.Context, cfg *Config) (*pgxpool.Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// ConnectWithRetry calls Connect up to maxAttempts times.
func ConnectWithRetry(ctx context.Context, cfg *Config, maxAttempts int, retryDelay time.Duration) (*pgxpool.Pool, error) {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		pool, err := Connect(ctx, cfg)
		if err == nil {
			return pool, nil
		}
		lastErr = err
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return nil, fmt.Errorf("failed to connect after %d attempts: %w", maxAttempts, lastErr)
}

// HealthStatus is the result of Check.
type HealthStatus struct {
	Healthy       bool
	Latency       time.Duration
	TotalConns    int32
	IdleConns     int32
	AcquiredConns int32
	Error         error
}

// Check pings the database and reports pool statistics.
func Check(ctx context.Context, pool *pgxpool.Pool) *HealthStatus {
	status := &HealthStatus{}
	if pool == nil {
		status.Error = fmt.Errorf("pool is nil")
		return status
	}

	start := time.Now()
	err := pool.Ping(ctx)
	status.Latency = time.Since(start)
	if err != nil {
		status.Error = fmt.Errorf("ping failed: %w", err)
		return status
	}

	stats := pool.Stat()
	status.Healthy = true
	status.TotalConns = stats.TotalConns()
	status.IdleConns = stats.IdleConns()
	status.AcquiredConns = stats.AcquiredConns()
	return status
}
