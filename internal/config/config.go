// ABOUTME: Configuration loading and parsing for greet-react
// ABOUTME: Supports YAML or TOML files with ${VAR} expansion, an env overlay, and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultHTTPAddr        = ":3000"
	DefaultDatabasePath    = "./greet-react.db"
	DefaultShutdownTimeout = 15 * time.Second
	DefaultDispatchTimeout = 10 * time.Second
	DefaultMaxConcurrent   = 32
	DefaultDedupeTTL       = 10 * time.Minute
	DefaultDedupeMaxSize   = 10000
	DefaultServiceName     = "greet-react"
)

// DefaultScopes are the bot scopes requested by the install flow.
var DefaultScopes = []string{
	"channels:history",
	"commands",
	"groups:history",
	"im:history",
	"reactions:write",
}

// Config represents the complete greet-react configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Slack     SlackConfig     `yaml:"slack" toml:"slack"`
	Dispatch  DispatchConfig  `yaml:"dispatch" toml:"dispatch"`
	Dedupe    DedupeConfig    `yaml:"dedupe" toml:"dedupe"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing" toml:"tracing"`
}

// ServerConfig holds the HTTP listener configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
	// PublicURL is the externally reachable base URL, used to build the
	// OAuth redirect when slack.redirect_url is not set.
	PublicURL string `yaml:"public_url" toml:"public_url"`

	ShutdownTimeout    time.Duration `yaml:"-" toml:"-"`
	ShutdownTimeoutRaw string        `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	Funnel    bool   `yaml:"funnel" toml:"funnel"` // public HTTPS on :443 so Slack can reach the webhooks
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// SlackConfig holds Slack app credentials
type SlackConfig struct {
	SigningSecret string   `yaml:"signing_secret" toml:"signing_secret"`
	ClientID      string   `yaml:"client_id" toml:"client_id"`
	ClientSecret  string   `yaml:"client_secret" toml:"client_secret"`
	RedirectURL   string   `yaml:"redirect_url" toml:"redirect_url"`
	StateSecret   string   `yaml:"state_secret" toml:"state_secret"` // signs OAuth state; defaults to client_secret
	Scopes        []string `yaml:"scopes" toml:"scopes"`
	APIURL        string   `yaml:"api_url" toml:"api_url"` // Web API base URL override, mostly for testing
}

// OAuthEnabled reports whether the install flow can run.
func (s SlackConfig) OAuthEnabled() bool {
	return s.ClientID != "" && s.ClientSecret != ""
}

// DispatchConfig bounds outbound reaction calls
type DispatchConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" toml:"max_concurrent"`

	// Timeout bounds one reactions.add call. Unset means
	// DefaultDispatchTimeout; an explicit "0s" means no timeout.
	Timeout    time.Duration `yaml:"-" toml:"-"`
	TimeoutRaw string        `yaml:"timeout" toml:"timeout"`
}

// DedupeConfig sizes the event redelivery cache
type DedupeConfig struct {
	MaxSize int `yaml:"max_size" toml:"max_size"`

	TTL    time.Duration `yaml:"-" toml:"-"`
	TTLRaw string        `yaml:"ttl" toml:"ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// TracingConfig holds OpenTelemetry export configuration
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled" toml:"enabled"`
	Endpoint    string  `yaml:"endpoint" toml:"endpoint"` // host:port of an OTLP/HTTP collector
	Insecure    bool    `yaml:"insecure" toml:"insecure"`
	ServiceName string  `yaml:"service_name" toml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio" toml:"sample_ratio"`
}

// envOverlay lists the environment variables that override file values.
type envOverlay struct {
	SigningSecret string `env:"SLACK_SIGNING_SECRET"`
	ClientID      string `env:"SLACK_CLIENT_ID"`
	ClientSecret  string `env:"SLACK_CLIENT_SECRET"`
	Port          string `env:"PORT"`
	DatabasePath  string `env:"GREET_REACT_DB_PATH"`
	LogLevel      string `env:"GREET_REACT_LOG_LEVEL"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded first, then the
// overlay variables (SLACK_SIGNING_SECRET, PORT, ...) are applied on top.
func Load(path string) (*Config, error) {
	return load(path, (*Config).Validate)
}

// LoadLocal is Load for commands that only touch the local database. It skips
// the listener and Slack credential checks.
func LoadLocal(path string) (*Config, error) {
	return load(path, (*Config).ValidateLocal)
}

func load(path string, validate func(*Config) error) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	return finish(&cfg, validate)
}

// FromEnv builds a Config from defaults and environment variables alone.
func FromEnv() (*Config, error) {
	return finish(&Config{}, (*Config).Validate)
}

// FromEnvLocal is FromEnv with the checks of LoadLocal.
func FromEnvLocal() (*Config, error) {
	return finish(&Config{}, (*Config).ValidateLocal)
}

func finish(cfg *Config, validate func(*Config) error) (*Config, error) {
	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.ApplyDefaults()

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func applyEnv(cfg *Config) error {
	var overlay envOverlay
	if err := env.Parse(&overlay); err != nil {
		return err
	}

	setIf(&cfg.Slack.SigningSecret, overlay.SigningSecret)
	setIf(&cfg.Slack.ClientID, overlay.ClientID)
	setIf(&cfg.Slack.ClientSecret, overlay.ClientSecret)
	setIf(&cfg.Database.Path, overlay.DatabasePath)
	setIf(&cfg.Logging.Level, overlay.LogLevel)
	if overlay.Port != "" {
		cfg.Server.HTTPAddr = ":" + strings.TrimPrefix(overlay.Port, ":")
	}
	return nil
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// ApplyDefaults fills every unset optional field.
func (c *Config) ApplyDefaults() {
	if c.Server.HTTPAddr == "" && !c.Tailscale.Enabled {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath
	}
	if len(c.Slack.Scopes) == 0 {
		c.Slack.Scopes = append([]string(nil), DefaultScopes...)
	}
	if c.Slack.StateSecret == "" {
		c.Slack.StateSecret = c.Slack.ClientSecret
	}
	// An explicit "0s" disables the per-request timeout.
	if c.Dispatch.Timeout == 0 && c.Dispatch.TimeoutRaw == "" {
		c.Dispatch.Timeout = DefaultDispatchTimeout
	}
	if c.Dispatch.MaxConcurrent == 0 {
		c.Dispatch.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.Dedupe.TTL == 0 {
		c.Dedupe.TTL = DefaultDedupeTTL
	}
	if c.Dedupe.MaxSize == 0 {
		c.Dedupe.MaxSize = DefaultDedupeMaxSize
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = DefaultServiceName
	}
	if c.Tracing.SampleRatio == 0 {
		c.Tracing.SampleRatio = 1
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if err := c.ValidateLocal(); err != nil {
		return err
	}

	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	if c.Tailscale.Funnel && !c.Tailscale.Enabled {
		return fmt.Errorf("tailscale.funnel requires tailscale.enabled")
	}

	if c.Slack.SigningSecret == "" {
		return fmt.Errorf("slack.signing_secret is required (or set SLACK_SIGNING_SECRET)")
	}
	if (c.Slack.ClientID == "") != (c.Slack.ClientSecret == "") {
		return fmt.Errorf("slack.client_id and slack.client_secret must be set together")
	}
	if c.Slack.APIURL != "" && !strings.HasSuffix(c.Slack.APIURL, "/") {
		return fmt.Errorf("slack.api_url must end with a slash")
	}

	if c.Dispatch.MaxConcurrent < 0 {
		return fmt.Errorf("dispatch.max_concurrent must not be negative")
	}
	if c.Dispatch.Timeout < 0 {
		return fmt.Errorf("dispatch.timeout must not be negative")
	}
	if c.Dedupe.MaxSize < 0 {
		return fmt.Errorf("dedupe.max_size must not be negative")
	}

	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1")
	}

	return nil
}

// ValidateLocal checks the fields needed to open the database and log.
func (c *Config) ValidateLocal() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not text or json", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"server.shutdown_timeout", cfg.Server.ShutdownTimeoutRaw, &cfg.Server.ShutdownTimeout},
		{"dispatch.timeout", cfg.Dispatch.TimeoutRaw, &cfg.Dispatch.Timeout},
		{"dedupe.ttl", cfg.Dedupe.TTLRaw, &cfg.Dedupe.TTL},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

// ResolvePath picks the config file to load: the explicit flag value, then
// $GREET_REACT_CONFIG, then $XDG_CONFIG_HOME/greet-react/config.yaml if it
// exists. An empty result means run from the environment alone.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if p := os.Getenv("GREET_REACT_CONFIG"); p != "" {
		return p
	}

	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	p := filepath.Join(dir, "greet-react", "config.yaml")
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}
