// ABOUTME: Error values shared by the reactor pipeline and its Slack client
// ABOUTME: DispatchError wraps a failed reaction attempt with its target

package reactor

import (
	"errors"
	"fmt"
)

var (
	// ErrClientUnavailable means no authenticated client exists for a team.
	ErrClientUnavailable = errors.New("no slack client available for team")

	// ErrAlreadyReacted is returned by a ReactionClient when the reaction is
	// already on the message.
	ErrAlreadyReacted = errors.New("already reacted")

	// ErrDispatchFailure matches every *DispatchError.
	ErrDispatchFailure = errors.New("reaction dispatch failed")
)

// DispatchError records a single reaction attempt that Slack rejected.
type DispatchError struct {
	Emoji     string
	ChannelID string
	Timestamp string
	Err       error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("adding :%s: to %s/%s: %v", e.Emoji, e.ChannelID, e.Timestamp, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrDispatchFailure) match any DispatchError.
func (e *DispatchError) Is(target error) bool {
	return target == ErrDispatchFailure
}

// coder is implemented by client errors that carry a platform error code.
type coder interface {
	Code() string
}

// ErrorCode returns the platform error code carried by err, or "" if none.
func ErrorCode(err error) string {
	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return ""
}
