// ABOUTME: Package slackclient owns outbound Slack Web API clients
// ABOUTME: It caches one client per installed team and classifies reactions.add errors

// Package slackclient resolves and caches per-team Slack clients.
//
// Clients are built lazily from the bot token stored at install time and kept
// until Invalidate is called (reinstall, uninstall, or token revocation).
// Errors from reactions.add are mapped onto the reactor contract:
// already_reacted becomes reactor.ErrAlreadyReacted and every other Slack error
// becomes an *APIError carrying the Slack error code.
package slackclient
