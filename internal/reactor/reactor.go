// ABOUTME: Collaborator interfaces consumed by the reactor pipeline
// ABOUTME: Defines the reaction client, the per-team client registry, and the rule reader

package reactor

import (
	"context"

	"github.com/2389/greet-react/internal/store"
)

// ReactionClient adds a reaction to a message. Implementations return
// ErrAlreadyReacted when the reaction is already present.
type ReactionClient interface {
	AddReaction(ctx context.Context, channelID, emoji, timestamp string) error
}

// ClientRegistry resolves the authenticated client for a team. It returns
// ErrClientUnavailable when the team has not installed the app.
type ClientRegistry interface {
	ClientFor(ctx context.Context, teamID string) (ReactionClient, error)
}

// RuleReader is the read side of the subscription store.
type RuleReader interface {
	GetRules(ctx context.Context, teamID, channelID, userID string) (store.EmojiSet, error)
}
