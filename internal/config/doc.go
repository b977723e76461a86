// ABOUTME: Package config loads greet-react configuration
// ABOUTME: YAML or TOML files, ${VAR} expansion, an environment overlay, defaults, and validation

// Package config handles configuration loading for greet-react.
//
// # Configuration File
//
// The file is chosen in this order:
//
//  1. The --config flag
//  2. GREET_REACT_CONFIG environment variable
//  3. $XDG_CONFIG_HOME/greet-react/config.yaml (~/.config when unset)
//
// With no file at all the service runs from the environment alone (FromEnv).
// Files ending in .toml are parsed as TOML; anything else as YAML.
//
// # Environment Variables
//
// Values can reference environment variables:
//
//	slack:
//	  signing_secret: "${SLACK_SIGNING_SECRET}"
//
// These variables also override the file directly when set:
//
//	SLACK_SIGNING_SECRET   slack.signing_secret
//	SLACK_CLIENT_ID        slack.client_id
//	SLACK_CLIENT_SECRET    slack.client_secret
//	PORT                   server.http_addr (as ":$PORT")
//	GREET_REACT_DB_PATH    database.path
//	GREET_REACT_LOG_LEVEL  logging.level
//
// # Example
//
//	server:
//	  http_addr: ":3000"
//	  public_url: "https://react.example.com"
//	  shutdown_timeout: "15s"
//
//	database:
//	  path: "./greet-react.db"
//
//	slack:
//	  signing_secret: "${SLACK_SIGNING_SECRET}"
//	  client_id: "${SLACK_CLIENT_ID}"
//	  client_secret: "${SLACK_CLIENT_SECRET}"
//
//	dispatch:
//	  timeout: "10s"
//	  max_concurrent: 32
//
//	dedupe:
//	  ttl: "10m"
//	  max_size: 10000
//
//	tailscale:
//	  enabled: true
//	  hostname: "greet-react"
//	  funnel: true
//
//	tracing:
//	  enabled: true
//	  endpoint: "localhost:4318"
//	  insecure: true
//
// Durations use time.ParseDuration syntax. The OAuth install flow is enabled
// only when both client_id and client_secret are set.
package config
