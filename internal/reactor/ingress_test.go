// ABOUTME: Tests for the message ingress pipeline
// ABOUTME: Covers filtering, missing clients, rule misses, and the watch-then-react flow

package reactor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/greet-react/internal/command"
	"github.com/2389/greet-react/internal/store"
)

type ingressFixture struct {
	store      *store.MockStore
	client     *fakeClient
	registry   *fakeRegistry
	dispatcher *Dispatcher
	ingress    *Ingress
}

func newIngressFixture(t *testing.T) *ingressFixture {
	t.Helper()
	f := &ingressFixture{
		store:  store.NewMockStore(),
		client: newFakeClient(),
	}
	f.registry = &fakeRegistry{clients: map[string]ReactionClient{"T1": f.client}}
	f.dispatcher = NewDispatcher()
	f.ingress = NewIngress(f.registry, NewMatcher(f.store, nil), f.dispatcher, nil)
	t.Cleanup(f.dispatcher.Close)
	return f
}

func (f *ingressFixture) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.dispatcher.Wait(ctx))
}

func TestIngress_Filtering(t *testing.T) {
	base := MessageEvent{TeamID: "T1", ChannelID: "C1", UserID: "U1", Timestamp: "1.0"}

	tests := []struct {
		name   string
		mutate func(*MessageEvent)
		want   Disposition
	}{
		{name: "plain message", mutate: func(*MessageEvent) {}, want: DispositionDispatched},
		{name: "thread broadcast", mutate: func(e *MessageEvent) { e.SubType = "thread_broadcast" }, want: DispositionDispatched},
		{name: "file share", mutate: func(e *MessageEvent) { e.SubType = "file_share" }, want: DispositionDispatched},
		{name: "edited", mutate: func(e *MessageEvent) { e.SubType = "message_changed" }, want: DispositionIgnored},
		{name: "deleted", mutate: func(e *MessageEvent) { e.SubType = "message_deleted" }, want: DispositionIgnored},
		{name: "channel join", mutate: func(e *MessageEvent) { e.SubType = "channel_join" }, want: DispositionIgnored},
		{name: "bot message", mutate: func(e *MessageEvent) { e.BotID = "B1" }, want: DispositionIgnored},
		{name: "no author", mutate: func(e *MessageEvent) { e.UserID = "" }, want: DispositionIgnored},
		{name: "no timestamp", mutate: func(e *MessageEvent) { e.Timestamp = "" }, want: DispositionIgnored},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIngressFixture(t)
			require.NoError(t, f.store.AddEmojis(context.Background(), "T1", "C1", "U1", store.NewEmojiSet("fire")))

			ev := base
			tt.mutate(&ev)
			assert.Equal(t, tt.want, f.ingress.HandleMessage(context.Background(), ev))
		})
	}
}

func TestIngress_NoClient(t *testing.T) {
	f := newIngressFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.AddEmojis(ctx, "T2", "C1", "U1", store.NewEmojiSet("fire")))

	got := f.ingress.HandleMessage(ctx, MessageEvent{TeamID: "T2", ChannelID: "C1", UserID: "U1", Timestamp: "1.0"})
	assert.Equal(t, DispositionNoClient, got)

	f.registry.err = errors.New("database is locked")
	got = f.ingress.HandleMessage(ctx, MessageEvent{TeamID: "T1", ChannelID: "C1", UserID: "U1", Timestamp: "1.0"})
	assert.Equal(t, DispositionNoClient, got)

	f.drain(t)
	assert.Empty(t, f.client.Calls())
}

func TestIngress_NeverMutatesStore(t *testing.T) {
	f := newIngressFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.AddEmojis(ctx, "T1", "C1", "U1", store.NewEmojiSet("fire")))
	before, err := f.store.TeamRules(ctx, "T1")
	require.NoError(t, err)

	f.ingress.HandleMessage(ctx, MessageEvent{TeamID: "T1", ChannelID: "C1", UserID: "U1", Timestamp: "1.0"})
	f.ingress.HandleMessage(ctx, MessageEvent{TeamID: "T1", ChannelID: "C9", UserID: "U7", Timestamp: "2.0"})
	f.drain(t)

	after, err := f.store.TeamRules(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestIngress_WatchThenReact(t *testing.T) {
	f := newIngressFixture(t)
	ctx := context.Background()
	proc := command.NewProcessor(f.store, nil)

	reply, err := proc.Watch(ctx, "T1", "C1", "<@U9>", []string{"fire", "100"})
	require.NoError(t, err)
	assert.Contains(t, reply, "Got it!")

	got := f.ingress.HandleMessage(ctx, MessageEvent{TeamID: "T1", ChannelID: "C1", UserID: "U9", Timestamp: "123.45"})
	assert.Equal(t, DispositionDispatched, got)

	got = f.ingress.HandleMessage(ctx, MessageEvent{TeamID: "T1", ChannelID: "C1", UserID: "U8", Timestamp: "123.46"})
	assert.Equal(t, DispositionNoRule, got)

	f.drain(t)
	assert.ElementsMatch(t, []reactionCall{
		{ChannelID: "C1", Emoji: "fire", Timestamp: "123.45"},
		{ChannelID: "C1", Emoji: "100", Timestamp: "123.45"},
	}, f.client.Calls())
}

func TestIngress_RedeliveryRepeatsAttempts(t *testing.T) {
	f := newIngressFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.AddEmojis(ctx, "T1", "C1", "U1", store.NewEmojiSet("fire")))
	f.client.errs["fire"] = ErrAlreadyReacted

	ev := MessageEvent{TeamID: "T1", ChannelID: "C1", UserID: "U1", Timestamp: "1.0"}
	assert.Equal(t, DispositionDispatched, f.ingress.HandleMessage(ctx, ev))
	assert.Equal(t, DispositionDispatched, f.ingress.HandleMessage(ctx, ev))
	f.drain(t)

	assert.Len(t, f.client.Calls(), 2)
}

func TestIngress_ClosedDispatcher(t *testing.T) {
	f := newIngressFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.AddEmojis(ctx, "T1", "C1", "U1", store.NewEmojiSet("fire")))
	f.dispatcher.Close()

	got := f.ingress.HandleMessage(ctx, MessageEvent{TeamID: "T1", ChannelID: "C1", UserID: "U1", Timestamp: "1.0"})
	assert.Equal(t, DispositionIgnored, got)
}
