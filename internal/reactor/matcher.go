// ABOUTME: Matcher looks up the emoji bound to a message author
// ABOUTME: Lookup failures are logged and treated as no rule

package reactor

import (
	"context"
	"log/slog"

	"github.com/2389/greet-react/internal/store"
)

// Matcher finds the rule, if any, for a (team, channel, author) triple.
type Matcher struct {
	rules  RuleReader
	logger *slog.Logger
}

// NewMatcher creates a Matcher reading from rules.
func NewMatcher(rules RuleReader, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{
		rules:  rules,
		logger: logger.With("component", "matcher"),
	}
}

// Match returns the emoji bound to author in channel, or an empty set.
func (m *Matcher) Match(ctx context.Context, teamID, channelID, authorID string) store.EmojiSet {
	set, err := m.rules.GetRules(ctx, teamID, channelID, authorID)
	if err != nil {
		m.logger.Error("failed to load rules",
			"team_id", teamID,
			"channel_id", channelID,
			"user_id", authorID,
			"error", err,
		)
		return nil
	}
	return set
}
