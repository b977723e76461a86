// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion and overlay, defaults, and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every overlay variable so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SLACK_SIGNING_SECRET", "SLACK_CLIENT_ID", "SLACK_CLIENT_SECRET",
		"PORT", "GREET_REACT_DB_PATH", "GREET_REACT_LOG_LEVEL", "GREET_REACT_CONFIG",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "config.yaml", `
server:
  http_addr: "0.0.0.0:8080"
  public_url: "https://react.example.com"
  shutdown_timeout: "5s"

database:
  path: "./test.db"

slack:
  signing_secret: "shh"
  client_id: "123.456"
  client_secret: "client-secret"
  scopes:
    - "reactions:write"

dispatch:
  timeout: "3s"
  max_concurrent: 4

dedupe:
  ttl: "2m"
  max_size: 500

logging:
  level: "debug"
  format: "json"

tracing:
  enabled: true
  endpoint: "localhost:4318"
  insecure: true
  sample_ratio: 0.5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:8080")
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want %v", cfg.Server.ShutdownTimeout, 5*time.Second)
	}
	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./test.db")
	}
	if cfg.Slack.SigningSecret != "shh" {
		t.Errorf("Slack.SigningSecret = %q, want %q", cfg.Slack.SigningSecret, "shh")
	}
	if !cfg.Slack.OAuthEnabled() {
		t.Error("Slack.OAuthEnabled() = false, want true")
	}
	if cfg.Slack.StateSecret != "client-secret" {
		t.Errorf("Slack.StateSecret = %q, want it to default to client_secret", cfg.Slack.StateSecret)
	}
	if len(cfg.Slack.Scopes) != 1 || cfg.Slack.Scopes[0] != "reactions:write" {
		t.Errorf("Slack.Scopes = %v, want [reactions:write]", cfg.Slack.Scopes)
	}
	if cfg.Dispatch.Timeout != 3*time.Second {
		t.Errorf("Dispatch.Timeout = %v, want %v", cfg.Dispatch.Timeout, 3*time.Second)
	}
	if cfg.Dispatch.MaxConcurrent != 4 {
		t.Errorf("Dispatch.MaxConcurrent = %d, want 4", cfg.Dispatch.MaxConcurrent)
	}
	if cfg.Dedupe.TTL != 2*time.Minute {
		t.Errorf("Dedupe.TTL = %v, want %v", cfg.Dedupe.TTL, 2*time.Minute)
	}
	if cfg.Dedupe.MaxSize != 500 {
		t.Errorf("Dedupe.MaxSize = %d, want 500", cfg.Dedupe.MaxSize)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want debug/json", cfg.Logging)
	}
	if !cfg.Tracing.Enabled || cfg.Tracing.SampleRatio != 0.5 {
		t.Errorf("Tracing = %+v, want enabled with ratio 0.5", cfg.Tracing)
	}
}

func TestLoad_TOML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "config.toml", `
[server]
http_addr = ":9000"

[database]
path = "/var/lib/greet-react/data.db"

[slack]
signing_secret = "shh"

[dispatch]
timeout = "1500ms"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != ":9000" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, ":9000")
	}
	if cfg.Database.Path != "/var/lib/greet-react/data.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Dispatch.Timeout != 1500*time.Millisecond {
		t.Errorf("Dispatch.Timeout = %v, want 1.5s", cfg.Dispatch.Timeout)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "config.yaml", `
slack:
  signing_secret: "shh"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, DefaultHTTPAddr)
	}
	if cfg.Database.Path != DefaultDatabasePath {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, DefaultDatabasePath)
	}
	if cfg.Dispatch.Timeout != DefaultDispatchTimeout {
		t.Errorf("Dispatch.Timeout = %v, want %v", cfg.Dispatch.Timeout, DefaultDispatchTimeout)
	}
	if cfg.Dispatch.MaxConcurrent != DefaultMaxConcurrent {
		t.Errorf("Dispatch.MaxConcurrent = %d, want %d", cfg.Dispatch.MaxConcurrent, DefaultMaxConcurrent)
	}
	if cfg.Dedupe.TTL != DefaultDedupeTTL || cfg.Dedupe.MaxSize != DefaultDedupeMaxSize {
		t.Errorf("Dedupe = %+v, want defaults", cfg.Dedupe)
	}
	if strings.Join(cfg.Slack.Scopes, ",") != "channels:history,commands,groups:history,im:history,reactions:write" {
		t.Errorf("Slack.Scopes = %v", cfg.Slack.Scopes)
	}
	if cfg.Slack.OAuthEnabled() {
		t.Error("Slack.OAuthEnabled() = true without client credentials")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v, want info/text", cfg.Logging)
	}
	if cfg.Tracing.Enabled {
		t.Error("Tracing.Enabled should default to false")
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEST_SIGNING_SECRET", "expanded-secret")
	path := writeConfig(t, "config.yaml", `
slack:
  signing_secret: "${TEST_SIGNING_SECRET}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Slack.SigningSecret != "expanded-secret" {
		t.Errorf("Slack.SigningSecret = %q, want %q", cfg.Slack.SigningSecret, "expanded-secret")
	}
}

func TestLoad_EnvOverlay(t *testing.T) {
	clearEnv(t)
	t.Setenv("SLACK_SIGNING_SECRET", "from-env")
	t.Setenv("SLACK_CLIENT_ID", "id-env")
	t.Setenv("SLACK_CLIENT_SECRET", "secret-env")
	t.Setenv("PORT", "8123")
	t.Setenv("GREET_REACT_DB_PATH", "/tmp/env.db")

	path := writeConfig(t, "config.yaml", `
server:
  http_addr: ":3000"
database:
  path: "./file.db"
slack:
  signing_secret: "from-file"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Slack.SigningSecret != "from-env" {
		t.Errorf("Slack.SigningSecret = %q, want env value", cfg.Slack.SigningSecret)
	}
	if cfg.Slack.ClientID != "id-env" || cfg.Slack.ClientSecret != "secret-env" {
		t.Errorf("Slack client credentials = %q/%q, want env values", cfg.Slack.ClientID, cfg.Slack.ClientSecret)
	}
	if cfg.Server.HTTPAddr != ":8123" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, ":8123")
	}
	if cfg.Database.Path != "/tmp/env.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/env.db")
	}
}

func TestFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("SLACK_SIGNING_SECRET", "from-env")
	t.Setenv("PORT", "4000")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	if cfg.Server.HTTPAddr != ":4000" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, ":4000")
	}
	if cfg.Slack.SigningSecret != "from-env" {
		t.Errorf("Slack.SigningSecret = %q", cfg.Slack.SigningSecret)
	}
}

func TestFromEnv_MissingSigningSecret(t *testing.T) {
	clearEnv(t)

	_, err := FromEnv()
	if err == nil {
		t.Fatal("FromEnv() expected error without a signing secret")
	}
	if !strings.Contains(err.Error(), "signing_secret") {
		t.Errorf("error = %v, want mention of signing_secret", err)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for nonexistent file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "config.yaml", "slack:\n  signing_secret: [unclosed\n")

	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for invalid YAML")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "config.yaml", `
slack:
  signing_secret: "shh"
dispatch:
  timeout: "soon"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "dispatch.timeout") {
		t.Errorf("error = %v, want it to name dispatch.timeout", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{
			Slack: SlackConfig{SigningSecret: "shh"},
		}
		cfg.ApplyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "missing signing secret",
			mutate:  func(c *Config) { c.Slack.SigningSecret = "" },
			wantErr: "slack.signing_secret",
		},
		{
			name:    "client id without secret",
			mutate:  func(c *Config) { c.Slack.ClientID = "123" },
			wantErr: "client_id and slack.client_secret",
		},
		{
			name:    "missing http addr",
			mutate:  func(c *Config) { c.Server.HTTPAddr = "" },
			wantErr: "server.http_addr",
		},
		{
			name: "tailscale without http addr",
			mutate: func(c *Config) {
				c.Server.HTTPAddr = ""
				c.Tailscale.Enabled = true
				c.Tailscale.Hostname = "greet-react"
			},
		},
		{
			name:    "tailscale without hostname",
			mutate:  func(c *Config) { c.Tailscale.Enabled = true },
			wantErr: "tailscale.hostname",
		},
		{
			name:    "funnel without tailscale",
			mutate:  func(c *Config) { c.Tailscale.Funnel = true },
			wantErr: "tailscale.funnel",
		},
		{
			name:    "api url without slash",
			mutate:  func(c *Config) { c.Slack.APIURL = "http://localhost:9999/api" },
			wantErr: "slack.api_url",
		},
		{
			name:    "negative concurrency",
			mutate:  func(c *Config) { c.Dispatch.MaxConcurrent = -1 },
			wantErr: "dispatch.max_concurrent",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "loud" },
			wantErr: "logging.level",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
		{
			name:    "sample ratio out of range",
			mutate:  func(c *Config) { c.Tracing.SampleRatio = 2 },
			wantErr: "tracing.sample_ratio",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestResolvePath(t *testing.T) {
	clearEnv(t)
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	if got := ResolvePath("/explicit.yaml"); got != "/explicit.yaml" {
		t.Errorf("ResolvePath(flag) = %q, want flag value", got)
	}

	if got := ResolvePath(""); got != "" {
		t.Errorf("ResolvePath() = %q, want empty when nothing exists", got)
	}

	defaultPath := filepath.Join(xdg, "greet-react", "config.yaml")
	if err := os.MkdirAll(filepath.Dir(defaultPath), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(defaultPath, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	if got := ResolvePath(""); got != defaultPath {
		t.Errorf("ResolvePath() = %q, want %q", got, defaultPath)
	}

	t.Setenv("GREET_REACT_CONFIG", "/from/env.yaml")
	if got := ResolvePath(""); got != "/from/env.yaml" {
		t.Errorf("ResolvePath() = %q, want env value", got)
	}
}

func TestLoad_DispatchTimeout(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name string
		raw  string
		want time.Duration
	}{
		{name: "unset uses default", raw: "", want: DefaultDispatchTimeout},
		{name: "explicit value", raw: `"3s"`, want: 3 * time.Second},
		{name: "explicit zero disables", raw: `"0s"`, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := "slack:\n  signing_secret: \"shh\"\n"
			if tt.raw != "" {
				content += "dispatch:\n  timeout: " + tt.raw + "\n"
			}
			cfg, err := Load(writeConfig(t, "config.yaml", content))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.Dispatch.Timeout != tt.want {
				t.Errorf("Dispatch.Timeout = %v, want %v", cfg.Dispatch.Timeout, tt.want)
			}
		})
	}
}

func TestLoadLocal_SkipsSlackChecks(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "config.yaml", `
database:
  path: "/var/lib/greet-react/rules.db"
`)

	if _, err := Load(path); err == nil {
		t.Fatal("Load() expected error without a signing secret")
	}

	cfg, err := LoadLocal(path)
	if err != nil {
		t.Fatalf("LoadLocal() error = %v", err)
	}
	if cfg.Database.Path != "/var/lib/greet-react/rules.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
}

func TestLoadLocal_StillChecksLogging(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "config.yaml", "logging:\n  level: loud\n")

	_, err := LoadLocal(path)
	if err == nil || !strings.Contains(err.Error(), "logging.level") {
		t.Errorf("LoadLocal() error = %v, want logging.level failure", err)
	}
}

func TestFromEnvLocal(t *testing.T) {
	clearEnv(t)
	t.Setenv("GREET_REACT_DB_PATH", "/tmp/rules.db")

	cfg, err := FromEnvLocal()
	if err != nil {
		t.Fatalf("FromEnvLocal() error = %v", err)
	}
	if cfg.Database.Path != "/tmp/rules.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/rules.db")
	}
}
