// ABOUTME: Processor executes watch and unwatch commands against the subscription store
// ABOUTME: Handle is the entry point used by the slash-command transport

package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/2389/greet-react/internal/store"
)

// Slash command names routed by Handle.
const (
	CommandStalk    = "/stalk"
	CommandWatch    = "/watch"
	CommandUnfollow = "/unfollow"
	CommandUnwatch  = "/unwatch"
)

const (
	usageReply   = "Usage: `/watch @user :emoji: [:emoji: ...]` or `/unwatch @user`"
	failureReply = "Something went wrong! Please try again."
)

// RuleWriter is the subset of the subscription store the processor mutates.
type RuleWriter interface {
	AddEmojis(ctx context.Context, teamID, channelID, userID string, emojis store.EmojiSet) error
	RemoveRule(ctx context.Context, teamID, channelID, userID string) error
}

// Command is one administrative invocation as delivered by the transport.
type Command struct {
	TeamID    string
	ChannelID string
	UserID    string // who typed the command
	Name      string // e.g. "/watch"
	Text      string // raw argument text
}

// Processor validates administrative commands and applies them to the store.
type Processor struct {
	rules  RuleWriter
	logger *slog.Logger
}

// NewProcessor creates a Processor writing to rules.
func NewProcessor(rules RuleWriter, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		rules:  rules,
		logger: logger.With("component", "command"),
	}
}

// Watch binds tokens to the mentioned user in channel. The emoji are unioned
// into any rule that already exists for that user.
func (p *Processor) Watch(ctx context.Context, teamID, channelID, rawMention string, tokens []string) (string, error) {
	userID, err := ParseMention(rawMention)
	if err != nil {
		return "", err
	}
	names, err := NormalizeEmojis(tokens)
	if err != nil {
		return "", err
	}

	if err := p.rules.AddEmojis(ctx, teamID, channelID, userID, store.NewEmojiSet(names...)); err != nil {
		return "", fmt.Errorf("watching %s in %s/%s: %w", userID, teamID, channelID, err)
	}

	p.logger.Info("rule added",
		"team_id", teamID,
		"channel_id", channelID,
		"user_id", userID,
		"emojis", names,
	)
	return fmt.Sprintf("Got it! I will react to <@%s>'s next messages in this channel with %s.", userID, formatEmojis(names)), nil
}

// Unwatch deletes the rule for the mentioned user in channel. Removing a rule
// that does not exist succeeds.
func (p *Processor) Unwatch(ctx context.Context, teamID, channelID, rawMention string, extra []string) (string, error) {
	if len(extra) > 0 {
		return "", invalid("Unwatch takes only a user, like `/unwatch @someone`.")
	}
	userID, err := ParseMention(rawMention)
	if err != nil {
		return "", err
	}

	if err := p.rules.RemoveRule(ctx, teamID, channelID, userID); err != nil {
		return "", fmt.Errorf("unwatching %s in %s/%s: %w", userID, teamID, channelID, err)
	}

	p.logger.Info("rule removed",
		"team_id", teamID,
		"channel_id", channelID,
		"user_id", userID,
	)
	return fmt.Sprintf("Got it! I just unfollowed <@%s>.", userID), nil
}

// Handle routes a slash command and always returns text for the invoking user.
// Validation problems are echoed back; store failures are logged and reported
// generically.
func (p *Processor) Handle(ctx context.Context, cmd Command) string {
	args := strings.Fields(cmd.Text)

	var (
		reply string
		err   error
	)
	switch cmd.Name {
	case CommandStalk, CommandWatch:
		if len(args) < 2 {
			return "Arguments should be @user <emojis>. " + usageReply
		}
		reply, err = p.Watch(ctx, cmd.TeamID, cmd.ChannelID, args[0], args[1:])
	case CommandUnfollow, CommandUnwatch:
		if len(args) == 0 {
			return "Arguments should be @user. " + usageReply
		}
		reply, err = p.Unwatch(ctx, cmd.TeamID, cmd.ChannelID, args[0], args[1:])
	default:
		p.logger.Warn("unsupported command", "command", cmd.Name, "team_id", cmd.TeamID)
		return usageReply
	}

	if err != nil {
		if IsValidationError(err) {
			return err.Error()
		}
		p.logger.Error("command failed",
			"command", cmd.Name,
			"team_id", cmd.TeamID,
			"channel_id", cmd.ChannelID,
			"invoked_by", cmd.UserID,
			"error", err,
		)
		return failureReply
	}
	return reply
}

func formatEmojis(names []string) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = ":" + n + ":"
	}
	return strings.Join(parts, " ")
}
