// Package config provides CLI configuration management for the reelkit command-line tool.
// It supports loading configuration from YAML files, environment variables, and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// OutputFormat defines the supported output formats for CLI results.
type OutputFormat string

const (
	// OutputFormatText is human-readable plain text output.
	OutputFormatText OutputFormat = "text"
	// OutputFormatJSON is JSON-formatted output for machine processing.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatYAML is YAML-formatted output for machine processing.
	OutputFormatYAML OutputFormat = "yaml"
)

// Transport selects how export documents reach the render service.
type Transport string

const (
	TransportGRPC Transport = "grpc"
	TransportHTTP Transport = "http"
)

// Default configuration values.
const (
	DefaultRenderAddress = "localhost:50061"
	DefaultRenderURL     = "http://localhost:8080"
	DefaultTimeout       = 2 * time.Minute
	DefaultOutputFormat  = OutputFormatText
	DefaultTransport     = TransportGRPC
	DefaultConfigDir     = ".reelkit"
	DefaultConfigFile    = "config.yaml"

	DefaultMaxHeight  = 600
	DefaultMaxWidth   = 800
	DefaultEpsilon    = 0.1
	DefaultChunkDelay = 400 * time.Millisecond
	DefaultTitleDelay = 200 * time.Millisecond
	DefaultSRTMode    = "standard"
	DefaultPreset     = "1:1"
)

// TLSConfig holds client TLS settings for the render connection.
type TLSConfig struct {
	// Enabled indicates whether TLS should be used for connections.
	Enabled bool `yaml:"enabled"`

	// CACert is the path to the CA certificate for verifying the server.
	CACert string `yaml:"ca_cert"`

	// ClientCert is the path to the client certificate for mTLS authentication.
	ClientCert string `yaml:"client_cert"`

	// ClientKey is the path to the client private key for mTLS authentication.
	ClientKey string `yaml:"client_key"`

	// CertDir is a directory containing ca.crt, client.crt, and client.key files.
	// If set, it provides default paths for CACert, ClientCert, and ClientKey.
	CertDir string `yaml:"cert_dir"`

	// SkipVerify disables server certificate verification (insecure, for testing only).
	SkipVerify bool `yaml:"skip_verify"`
}

// ResolvePaths expands ~ in paths and sets defaults from CertDir if configured.
func (c *TLSConfig) ResolvePaths() {
	if c.CertDir != "" {
		c.CertDir = expandPath(c.CertDir)
		if c.CACert == "" {
			c.CACert = filepath.Join(c.CertDir, "ca.crt")
		}
		if c.ClientCert == "" {
			c.ClientCert = filepath.Join(c.CertDir, "client.crt")
		}
		if c.ClientKey == "" {
			c.ClientKey = filepath.Join(c.CertDir, "client.key")
		}
		return
	}
	c.CACert = expandPath(c.CACert)
	c.ClientCert = expandPath(c.ClientCert)
	c.ClientKey = expandPath(c.ClientKey)
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// EditorConfig tunes the editor core.
type EditorConfig struct {
	// MaxHeight and MaxWidth cap the rendered preview box in pixels.
	MaxHeight float64 `yaml:"max_height"`
	MaxWidth  float64 `yaml:"max_width"`

	// Epsilon is the highlight lookup tolerance in seconds.
	Epsilon float64 `yaml:"epsilon"`

	ChunkDelay time.Duration `yaml:"-"`
	TitleDelay time.Duration `yaml:"-"`

	// MaxChunkChars and MaxChunkWords bound a subtitle chunk; MaxGap (seconds)
	// of silence starts a new one.
	MaxChunkChars int     `yaml:"max_chunk_chars,omitempty"`
	MaxChunkWords int     `yaml:"max_chunk_words,omitempty"`
	MaxGap        float64 `yaml:"max_gap,omitempty"`

	// SRTMode is "standard" or "legacy-hundredths".
	SRTMode       string `yaml:"srt_mode"`
	DefaultPreset string `yaml:"default_preset"`
}

// DatabaseConfig holds the project store connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	Database string `yaml:"database,omitempty"`
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`
	SSLMode  string `yaml:"sslmode,omitempty"`
}

// IsConfigured returns true if the project store is configured.
func (c *DatabaseConfig) IsConfigured() bool {
	return c != nil && c.Host != "" && c.Database != "" && c.User != ""
}

// RedisConfig holds the event bus connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// IsConfigured returns true if an event bus address is set.
func (c *RedisConfig) IsConfigured() bool {
	return c != nil && c.Addr != ""
}

// AuditConfig holds the command audit log database settings.
type AuditConfig struct {
	// Host is the database server hostname.
	Host string `yaml:"host,omitempty"`

	// Port is the database server port (default: 5432).
	Port int `yaml:"port,omitempty"`

	Database string `yaml:"database,omitempty"`
	User     string `yaml:"user,omitempty"`

	// SSLMode is the SSL connection mode (disable, require, verify-ca, verify-full).
	SSLMode string `yaml:"sslmode,omitempty"`

	// SSLRootCert is the path to the SSL root certificate file.
	// Defaults to ~/.postgresql/root.crt if not specified and sslmode requires verification.
	SSLRootCert string `yaml:"sslrootcert,omitempty"`

	// Agent identifies the operator in the audit log.
	Agent string `yaml:"agent,omitempty"`
}

// ConnectionString returns the PostgreSQL connection string for the audit log.
// Returns empty string if auditing is not configured.
func (c *AuditConfig) ConnectionString() string {
	if !c.IsConfigured() {
		return ""
	}

	port := c.Port
	if port == 0 {
		port = 5432
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "require"
	}

	connStr := fmt.Sprintf("host=%s port=%d dbname=%s user=%s sslmode=%s",
		c.Host, port, c.Database, c.User, sslmode)

	if sslmode == "verify-ca" || sslmode == "verify-full" {
		sslrootcert := c.SSLRootCert
		if sslrootcert == "" {
			if home, err := os.UserHomeDir(); err == nil {
				defaultCert := filepath.Join(home, ".postgresql", "root.crt")
				if _, err := os.Stat(defaultCert); err == nil {
					sslrootcert = defaultCert
				}
			}
		}
		if sslrootcert != "" {
			connStr += fmt.Sprintf(" sslrootcert=%s", sslrootcert)
		}
	}
	return connStr
}

// IsConfigured returns true if auditing is configured with required fields.
func (c *AuditConfig) IsConfigured() bool {
	return c != nil && c.Host != "" && c.Database != "" && c.User != ""
}

// GetAgent returns the agent name, defaulting to the login user.
func (c *AuditConfig) GetAgent() string {
	if c != nil && c.Agent != "" {
		return c.Agent
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "reelkit"
}

// CLIConfig holds the CLI configuration settings.
type CLIConfig struct {
	// RenderAddress is the gRPC address of the render service (host:port).
	RenderAddress string `yaml:"render_address"`

	// RenderURL is the base URL of the HTTP render endpoint.
	RenderURL string `yaml:"render_url,omitempty"`

	// Transport picks grpc or http for submissions.
	Transport Transport `yaml:"transport"`

	// Timeout is the default timeout for render and storage requests.
	Timeout time.Duration `yaml:"timeout"`

	// OutputFormat specifies the default output format for commands.
	OutputFormat OutputFormat `yaml:"output_format"`

	// Debug enables verbose debug logging.
	Debug bool `yaml:"debug,omitempty"`

	// Insecure disables TLS verification (for development only).
	Insecure bool `yaml:"insecure,omitempty"`

	Editor   EditorConfig    `yaml:"editor"`
	Database *DatabaseConfig `yaml:"database,omitempty"`
	Redis    *RedisConfig    `yaml:"redis,omitempty"`
	Audit    *AuditConfig    `yaml:"audit,omitempty"`

	// TLS contains the TLS/mTLS configuration settings.
	TLS TLSConfig `yaml:"tls"`
}

// DefaultEditorConfig returns the editor defaults.
func DefaultEditorConfig() EditorConfig {
	return EditorConfig{
		MaxHeight:     DefaultMaxHeight,
		MaxWidth:      DefaultMaxWidth,
		Epsilon:       DefaultEpsilon,
		ChunkDelay:    DefaultChunkDelay,
		TitleDelay:    DefaultTitleDelay,
		SRTMode:       DefaultSRTMode,
		DefaultPreset: DefaultPreset,
	}
}

// DefaultConfig returns a CLIConfig with default values.
func DefaultConfig() *CLIConfig {
	return &CLIConfig{
		RenderAddress: DefaultRenderAddress,
		RenderURL:     DefaultRenderURL,
		Transport:     DefaultTransport,
		Timeout:       DefaultTimeout,
		OutputFormat:  DefaultOutputFormat,
		Editor:        DefaultEditorConfig(),
	}
}

// ConfigDir returns the configuration directory path.
// Uses $REELKIT_CONFIG_DIR if set, otherwise ~/.reelkit
func ConfigDir() (string, error) {
	if dir := os.Getenv("REELKIT_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, DefaultConfigDir), nil
}

// ConfigPath returns the full path to the configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// LoadConfig loads the CLI configuration from file and environment variables.
// Configuration is loaded in this order (later sources override earlier):
// 1. Default values
// 2. Config file (~/.reelkit/config.yaml or $REELKIT_CONFIG_DIR/config.yaml)
// 3. Environment variables (REELKIT_*)
func LoadConfig() (*CLIConfig, error) {
	cfg := DefaultConfig()

	configPath, err := ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("getting config path: %w", err)
	}
	if _, err := os.Stat(configPath); err == nil {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// editorFile is EditorConfig with durations as strings.
type editorFile struct {
	EditorConfig `yaml:",inline"`
	ChunkDelay   string `yaml:"chunk_delay,omitempty"`
	TitleDelay   string `yaml:"title_delay,omitempty"`
}

// configFile is CLIConfig with durations as strings.
type configFile struct {
	RenderAddress string          `yaml:"render_address"`
	RenderURL     string          `yaml:"render_url,omitempty"`
	Transport     Transport       `yaml:"transport,omitempty"`
	Timeout       string          `yaml:"timeout"`
	OutputFormat  OutputFormat    `yaml:"output_format"`
	Debug         bool            `yaml:"debug,omitempty"`
	Insecure      bool            `yaml:"insecure,omitempty"`
	Editor        *editorFile     `yaml:"editor,omitempty"`
	Database      *DatabaseConfig `yaml:"database,omitempty"`
	Redis         *RedisConfig    `yaml:"redis,omitempty"`
	Audit         *AuditConfig    `yaml:"audit,omitempty"`
	TLS           TLSConfig       `yaml:"tls,omitempty"`
}

func loadFromFile(cfg *CLIConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fileCfg configFile
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if fileCfg.RenderAddress != "" {
		cfg.RenderAddress = fileCfg.RenderAddress
	}
	if fileCfg.RenderURL != "" {
		cfg.RenderURL = fileCfg.RenderURL
	}
	if fileCfg.Transport != "" {
		cfg.Transport = fileCfg.Transport
	}
	if fileCfg.Timeout != "" {
		timeout, err := time.ParseDuration(fileCfg.Timeout)
		if err != nil {
			return fmt.Errorf("parsing timeout: %w", err)
		}
		cfg.Timeout = timeout
	}
	if fileCfg.OutputFormat != "" {
		cfg.OutputFormat = fileCfg.OutputFormat
	}
	if fileCfg.Editor != nil {
		if err := mergeEditor(&cfg.Editor, fileCfg.Editor); err != nil {
			return err
		}
	}
	if fileCfg.Database != nil {
		cfg.Database = fileCfg.Database
	}
	if fileCfg.Redis != nil {
		cfg.Redis = fileCfg.Redis
	}
	if fileCfg.Audit != nil {
		cfg.Audit = fileCfg.Audit
	}
	cfg.Debug = fileCfg.Debug
	cfg.Insecure = fileCfg.Insecure
	cfg.TLS = fileCfg.TLS

	return nil
}

func mergeEditor(dst *EditorConfig, src *editorFile) error {
	if src.MaxHeight > 0 {
		dst.MaxHeight = src.MaxHeight
	}
	if src.MaxWidth > 0 {
		dst.MaxWidth = src.MaxWidth
	}
	if src.Epsilon > 0 {
		dst.Epsilon = src.Epsilon
	}
	if src.MaxChunkChars > 0 {
		dst.MaxChunkChars = src.MaxChunkChars
	}
	if src.MaxChunkWords > 0 {
		dst.MaxChunkWords = src.MaxChunkWords
	}
	if src.MaxGap > 0 {
		dst.MaxGap = src.MaxGap
	}
	if src.SRTMode != "" {
		dst.SRTMode = src.SRTMode
	}
	if src.DefaultPreset != "" {
		dst.DefaultPreset = src.DefaultPreset
	}
	if src.ChunkDelay != "" {
		d, err := time.ParseDuration(src.ChunkDelay)
		if err != nil {
			return fmt.Errorf("parsing editor.chunk_delay: %w", err)
		}
		dst.ChunkDelay = d
	}
	if src.TitleDelay != "" {
		d, err := time.ParseDuration(src.TitleDelay)
		if err != nil {
			return fmt.Errorf("parsing editor.title_delay: %w", err)
		}
		dst.TitleDelay = d
	}
	return nil
}

func envBool(key string) bool {
	v := os.Getenv(key)
	return v == "true" || v == "1"
}

// loadFromEnv overlays environment variables onto the configuration.
func loadFromEnv(cfg *CLIConfig) {
	if v := os.Getenv("REELKIT_RENDER_ADDRESS"); v != "" {
		cfg.RenderAddress = v
	}
	if v := os.Getenv("REELKIT_RENDER_URL"); v != "" {
		cfg.RenderURL = v
	}
	if v := os.Getenv("REELKIT_TRANSPORT"); v != "" {
		cfg.Transport = Transport(v)
	}
	if v := os.Getenv("REELKIT_TIMEOUT"); v != "" {
		if timeout, err := time.ParseDuration(v); err == nil {
			cfg.Timeout = timeout
		}
	}
	if v := os.Getenv("REELKIT_OUTPUT_FORMAT"); v != "" {
		cfg.OutputFormat = OutputFormat(v)
	}
	if envBool("REELKIT_DEBUG") {
		cfg.Debug = true
	}
	if envBool("REELKIT_INSECURE") {
		cfg.Insecure = true
	}

	if v := os.Getenv("REELKIT_SRT_MODE"); v != "" {
		cfg.Editor.SRTMode = v
	}
	if v := os.Getenv("REELKIT_DEFAULT_PRESET"); v != "" {
		cfg.Editor.DefaultPreset = v
	}
	if v := os.Getenv("REELKIT_EPSILON"); v != "" {
		if eps, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Editor.Epsilon = eps
		}
	}
	if v := os.Getenv("REELKIT_CHUNK_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Editor.ChunkDelay = d
		}
	}

	if envBool("REELKIT_TLS_ENABLED") {
		cfg.TLS.Enabled = true
	}
	if v := os.Getenv("REELKIT_TLS_CA_CERT"); v != "" {
		cfg.TLS.CACert = v
	}
	if v := os.Getenv("REELKIT_TLS_CLIENT_CERT"); v != "" {
		cfg.TLS.ClientCert = v
	}
	if v := os.Getenv("REELKIT_TLS_CLIENT_KEY"); v != "" {
		cfg.TLS.ClientKey = v
	}
	if v := os.Getenv("REELKIT_TLS_CERT_DIR"); v != "" {
		cfg.TLS.CertDir = v
	}
	if envBool("REELKIT_TLS_SKIP_VERIFY") {
		cfg.TLS.SkipVerify = true
	}

	loadDatabaseFromEnv(cfg)
	if v := os.Getenv("REELKIT_REDIS_ADDR"); v != "" {
		if cfg.Redis == nil {
			cfg.Redis = &RedisConfig{}
		}
		cfg.Redis.Addr = v
		cfg.Redis.Password = os.Getenv("REELKIT_REDIS_PASSWORD")
	}
	loadAuditFromEnv(cfg)
}

func loadDatabaseFromEnv(cfg *CLIConfig) {
	host := os.Getenv("REELKIT_DB_HOST")
	name := os.Getenv("REELKIT_DB_NAME")
	user := os.Getenv("REELKIT_DB_USER")
	if host == "" && name == "" && user == "" {
		return
	}
	if cfg.Database == nil {
		cfg.Database = &DatabaseConfig{}
	}
	if host != "" {
		cfg.Database.Host = host
	}
	if name != "" {
		cfg.Database.Database = name
	}
	if user != "" {
		cfg.Database.User = user
	}
	if v := os.Getenv("REELKIT_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("REELKIT_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("REELKIT_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
}

func loadAuditFromEnv(cfg *CLIConfig) {
	host := os.Getenv("REELKIT_AUDIT_HOST")
	database := os.Getenv("REELKIT_AUDIT_DATABASE")
	user := os.Getenv("REELKIT_AUDIT_USER")
	if host == "" && database == "" && user == "" {
		return
	}
	if cfg.Audit == nil {
		cfg.Audit = &AuditConfig{}
	}
	if host != "" {
		cfg.Audit.Host = host
	}
	if database != "" {
		cfg.Audit.Database = database
	}
	if user != "" {
		cfg.Audit.User = user
	}
	if v := os.Getenv("REELKIT_AUDIT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Audit.Port = port
		}
	}
	if v := os.Getenv("REELKIT_AUDIT_SSLMODE"); v != "" {
		cfg.Audit.SSLMode = v
	}
	if v := os.Getenv("REELKIT_AUDIT_AGENT"); v != "" {
		cfg.Audit.Agent = v
	}
}

// Validate checks that the configuration is valid.
func (c *CLIConfig) Validate() error {
	switch c.Transport {
	case TransportGRPC:
		if c.RenderAddress == "" {
			return fmt.Errorf("render_address is required for grpc transport")
		}
	case TransportHTTP:
		if c.RenderURL == "" {
			return fmt.Errorf("render_url is required for http transport")
		}
	default:
		return fmt.Errorf("invalid transport: %q (must be grpc or http)", c.Transport)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if !c.OutputFormat.IsValid() {
		return fmt.Errorf("invalid output_format: %q (must be text, json, or yaml)", c.OutputFormat)
	}
	if c.Editor.MaxHeight <= 0 {
		return fmt.Errorf("editor.max_height must be positive")
	}
	if c.Editor.Epsilon < 0 {
		return fmt.Errorf("editor.epsilon must not be negative")
	}
	switch c.Editor.SRTMode {
	case "standard", "legacy-hundredths":
	default:
		return fmt.Errorf("invalid editor.srt_mode: %q (must be standard or legacy-hundredths)", c.Editor.SRTMode)
	}
	return nil
}

// IsValid checks if the output format is valid.
func (f OutputFormat) IsValid() bool {
	switch f {
	case OutputFormatText, OutputFormatJSON, OutputFormatYAML:
		return true
	default:
		return false
	}
}

// String returns the string representation of the output format.
func (f OutputFormat) String() string {
	return string(f)
}

// SaveConfig saves the configuration to the config file.
func SaveConfig(cfg *CLIConfig) error {
	configDir, err := ConfigDir()
	if err != nil {
		return fmt.Errorf("getting config directory: %w", err)
	}
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	configPath := filepath.Join(configDir, DefaultConfigFile)

	fileCfg := configFile{
		RenderAddress: cfg.RenderAddress,
		RenderURL:     cfg.RenderURL,
		Transport:     cfg.Transport,
		Timeout:       cfg.Timeout.String(),
		OutputFormat:  cfg.OutputFormat,
		Debug:         cfg.Debug,
		Insecure:      cfg.Insecure,
		Editor: &editorFile{
			EditorConfig: cfg.Editor,
			ChunkDelay:   cfg.Editor.ChunkDelay.String(),
			TitleDelay:   cfg.Editor.TitleDelay.String(),
		},
		Database: cfg.Database,
		Redis:    cfg.Redis,
		Audit:    cfg.Audit,
		TLS:      cfg.TLS,
	}

	data, err := yaml.Marshal(&fileCfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}
