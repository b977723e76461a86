// ABOUTME: Test doubles for the reaction client and client registry
// ABOUTME: The fake client records every call and can fail or block per emoji

package reactor

import (
	"context"
	"sync"
	"sync/atomic"
)

type reactionCall struct {
	ChannelID string
	Emoji     string
	Timestamp string
}

type codedError struct {
	code string
}

func (e *codedError) Error() string { return e.code }
func (e *codedError) Code() string  { return e.code }

type fakeClient struct {
	mu     sync.Mutex
	calls  []reactionCall
	errs   map[string]error // per emoji
	block  bool             // wait for ctx to end
	panics map[string]bool

	active    atomic.Int32
	maxActive atomic.Int32
	release   chan struct{}
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		errs:   make(map[string]error),
		panics: make(map[string]bool),
	}
}

func (f *fakeClient) AddReaction(ctx context.Context, channelID, emoji, timestamp string) error {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		cur := f.maxActive.Load()
		if n <= cur || f.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, reactionCall{ChannelID: channelID, Emoji: emoji, Timestamp: timestamp})
	err := f.errs[emoji]
	shouldPanic := f.panics[emoji]
	release := f.release
	f.mu.Unlock()

	if shouldPanic {
		panic("boom")
	}
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeClient) Calls() []reactionCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]reactionCall, len(f.calls))
	copy(out, f.calls)
	return out
}

type fakeRegistry struct {
	clients map[string]ReactionClient
	err     error
}

func (r *fakeRegistry) ClientFor(ctx context.Context, teamID string) (ReactionClient, error) {
	if r.err != nil {
		return nil, r.err
	}
	c, ok := r.clients[teamID]
	if !ok {
		return nil, ErrClientUnavailable
	}
	return c, nil
}
