// ABOUTME: Ingress is the entry point for message events delivered by the Events API
// ABOUTME: It filters messages, resolves the team's client, matches rules, and starts dispatch

package reactor

import (
	"context"
	"errors"
	"log/slog"
)

// MessageEvent is the subset of a Slack message event the pipeline needs.
type MessageEvent struct {
	TeamID    string
	ChannelID string
	UserID    string
	Timestamp string
	SubType   string
	BotID     string
}

// Disposition describes what Ingress did with an event.
type Disposition int

const (
	// DispositionIgnored: the message can never match (bot, edit, missing author).
	DispositionIgnored Disposition = iota
	// DispositionNoClient: the team has no usable client.
	DispositionNoClient
	// DispositionNoRule: no rule for the author.
	DispositionNoRule
	// DispositionDispatched: reactions were handed to the dispatcher.
	DispositionDispatched
)

func (d Disposition) String() string {
	switch d {
	case DispositionIgnored:
		return "ignored"
	case DispositionNoClient:
		return "no_client"
	case DispositionNoRule:
		return "no_rule"
	case DispositionDispatched:
		return "dispatched"
	default:
		return "unknown"
	}
}

// reactableSubtypes are message subtypes authored by a person.
var reactableSubtypes = map[string]bool{
	"":                 true,
	"thread_broadcast": true,
	"file_share":       true,
	"me_message":       true,
}

// Ingress connects message events to the matcher and dispatcher.
type Ingress struct {
	registry   ClientRegistry
	matcher    *Matcher
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewIngress creates an Ingress.
func NewIngress(registry ClientRegistry, matcher *Matcher, dispatcher *Dispatcher, logger *slog.Logger) *Ingress {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingress{
		registry:   registry,
		matcher:    matcher,
		dispatcher: dispatcher,
		logger:     logger.With("component", "ingress"),
	}
}

// HandleMessage processes one message event. Reactions are dispatched in the
// background; the call returns as soon as work is handed off. It never writes
// to the subscription store.
func (in *Ingress) HandleMessage(ctx context.Context, ev MessageEvent) Disposition {
	if !reactable(ev) {
		return DispositionIgnored
	}

	client, err := in.registry.ClientFor(ctx, ev.TeamID)
	if err != nil {
		if errors.Is(err, ErrClientUnavailable) {
			in.logger.Warn("no authorization found for team, was the app installed?", "team_id", ev.TeamID)
		} else {
			in.logger.Error("failed to resolve slack client", "team_id", ev.TeamID, "error", err)
		}
		return DispositionNoClient
	}

	set := in.matcher.Match(ctx, ev.TeamID, ev.ChannelID, ev.UserID)
	if set.Len() == 0 {
		return DispositionNoRule
	}

	if !in.dispatcher.DispatchAsync(ctx, client, ev.ChannelID, ev.Timestamp, set) {
		in.logger.Warn("dispatcher closed, dropping reactions",
			"team_id", ev.TeamID,
			"channel_id", ev.ChannelID,
			"ts", ev.Timestamp,
		)
		return DispositionIgnored
	}
	return DispositionDispatched
}

func reactable(ev MessageEvent) bool {
	if ev.UserID == "" || ev.ChannelID == "" || ev.Timestamp == "" || ev.TeamID == "" {
		return false
	}
	if ev.BotID != "" {
		return false
	}
	return reactableSubtypes[ev.SubType]
}
