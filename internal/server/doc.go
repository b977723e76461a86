// ABOUTME: Package server exposes greet-react over HTTP
// ABOUTME: Slack Events API, slash commands, the OAuth install flow, and health endpoints

// Package server is the HTTP transport for greet-react.
//
// # Endpoints
//
//	POST /slack/events          Events API (signed): url_verification, message,
//	                            app_uninstalled, tokens_revoked
//	POST /slack/commands        Slash commands (signed): /stalk, /watch, /unfollow, /unwatch
//	GET  /                      "Add to Slack" landing page
//	GET  /slack/install         Redirect to Slack's authorize page
//	GET  /slack/oauth/callback  Exchange the code and store the bot token
//	GET  /health                Liveness
//	GET  /ready                 Readiness (store ping)
//
// Every Slack request is checked against the app's signing secret and rejected
// when the timestamp is more than five minutes old. Events are acknowledged as
// soon as they are handed to the reactor; reactions are added in the
// background. Redelivered envelopes are dropped by event_id.
//
// # Listeners
//
// By default the server listens on server.http_addr. With tailscale.enabled it
// joins the tailnet instead, and tailscale.funnel publishes it on :443 so Slack
// can reach it without a separate tunnel.
package server
