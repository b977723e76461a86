// ABOUTME: Package command implements the watch and unwatch administrative operations
// ABOUTME: It turns slash-command text into validated subscription store mutations

// Package command parses administrative input and mutates the subscription store.
//
// # Operations
//
// Watch binds a set of emoji to a (team, channel, user) triple, unioning into any
// existing rule. Unwatch removes the triple entirely. Both resolve the target from a
// Slack mention (<@U123> or <@U123|alice>).
//
// # Errors
//
// Malformed input yields a *ValidationError whose message is safe to show to the
// person who typed the command. Any other error came from the store; Handle logs it
// and answers with a generic failure reply.
package command
