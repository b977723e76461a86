// ABOUTME: Package dedupe suppresses duplicate deliveries of Slack events
// ABOUTME: Slack retries unacknowledged events, so the same envelope can arrive more than once

// Package dedupe provides a bounded TTL cache for at-least-once event delivery.
//
// Slack's Events API redelivers an event when the first attempt times out or
// fails, tagging retries with X-Slack-Retry-Num. The HTTP transport marks each
// envelope's event_id with CheckAndMark and drops envelopes it has already
// seen. Keys live for the TTL; the oldest are evicted once the cache is full.
//
//	cache := dedupe.New(10*time.Minute, 10000)
//	defer cache.Close()
//
//	if cache.CheckAndMark(dedupe.EventKey(teamID, eventID)) {
//	    return // duplicate
//	}
package dedupe
