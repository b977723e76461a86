// ABOUTME: Store interfaces and data types for greet-react persistence
// ABOUTME: Defines the subscription (watch rule) store and the per-team installation store

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Installation holds the bot credentials granted when a team installs the app
type Installation struct {
	TeamID      string
	TeamName    string
	BotUserID   string
	BotToken    string
	Scope       string
	InstalledAt time.Time
}

// SubscriptionStore persists watch rules. The unit of storage and of atomic
// update is the whole team document (see Rules).
type SubscriptionStore interface {
	// GetRules returns the emoji set for (team, channel, user). A missing
	// team, channel or user yields an empty set and no error.
	GetRules(ctx context.Context, teamID, channelID, userID string) (EmojiSet, error)

	// AddEmojis unions emojis into the rule for (team, channel, user).
	AddEmojis(ctx context.Context, teamID, channelID, userID string, emojis EmojiSet) error

	// RemoveRule deletes the rule for (team, channel, user). Removing a rule
	// that does not exist succeeds without writing.
	RemoveRule(ctx context.Context, teamID, channelID, userID string) error

	// TeamRules returns a copy of the whole document for a team.
	TeamRules(ctx context.Context, teamID string) (Rules, error)
}

// InstallationStore persists per-team bot credentials
type InstallationStore interface {
	SaveInstallation(ctx context.Context, inst *Installation) error
	GetInstallation(ctx context.Context, teamID string) (*Installation, error)
	DeleteInstallation(ctx context.Context, teamID string) error
}

// Store is everything the server needs from persistence
type Store interface {
	SubscriptionStore
	InstallationStore

	// Ping checks the backing database is reachable
	Ping(ctx context.Context) error

	// Close releases any resources held by the store
	Close() error
}
