// ABOUTME: Client adapts slack-go's Web API client to the reactor.ReactionClient contract
// ABOUTME: Maps already_reacted to a benign sentinel and other failures to APIError

package slackclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/2389/greet-react/internal/reactor"
)

const codeAlreadyReacted = "already_reacted"

// APIError is a reactions.add failure reported by Slack.
type APIError struct {
	code string
	err  error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("slack api: %s", e.code)
}

// Code returns the Slack error code, e.g. "channel_not_found".
func (e *APIError) Code() string {
	return e.code
}

func (e *APIError) Unwrap() error {
	return e.err
}

// Client issues reactions on behalf of one team's bot user.
type Client struct {
	api *slack.Client
}

// NewClient wraps an authenticated slack-go client.
func NewClient(api *slack.Client) *Client {
	return &Client{api: api}
}

// AddReaction adds emoji to the message at (channelID, timestamp).
func (c *Client) AddReaction(ctx context.Context, channelID, emoji, timestamp string) error {
	err := c.api.AddReactionContext(ctx, emoji, slack.NewRefToMessage(channelID, timestamp))
	return classify(err)
}

// classify maps a slack-go error onto the reactor error contract.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var rateLimited *slack.RateLimitedError
	if errors.As(err, &rateLimited) {
		return &APIError{code: "ratelimited", err: err}
	}

	code := ""
	var resp slack.SlackErrorResponse
	if errors.As(err, &resp) {
		code = resp.Err
	} else {
		code = err.Error()
	}

	if code == codeAlreadyReacted {
		return fmt.Errorf("%w: %v", reactor.ErrAlreadyReacted, err)
	}
	return &APIError{code: code, err: err}
}
