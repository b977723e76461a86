// ABOUTME: Package reactor matches inbound messages to watch rules and adds reactions
// ABOUTME: It holds the matcher, the concurrent dispatcher, and the event ingress entry point

// Package reactor turns message events into emoji reactions.
//
// The flow is Ingress -> Matcher -> Dispatcher. Ingress filters out messages that
// can never match (bots, edits, joins), resolves a Slack client for the team, and
// asks the Matcher for the emoji bound to the message author. The Dispatcher then
// issues one reactions.add call per emoji, concurrently and independently.
//
// # Outcomes
//
// Every reaction attempt is classified:
//
//   - OutcomeAdded: Slack accepted the reaction.
//   - OutcomeBenignDuplicate: the reaction was already present. Treated as success.
//   - OutcomeFailed: anything else. Logged with the Slack error code and never retried.
//
// A failure on one emoji never prevents the others from being attempted.
//
// # Lifecycle
//
// DispatchAsync runs work on the Dispatcher's own context so that HTTP handlers
// can acknowledge Slack immediately. On shutdown call Wait to drain in-flight
// work, then Close to abandon whatever is left.
package reactor
