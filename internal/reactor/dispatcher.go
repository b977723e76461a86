// ABOUTME: Dispatcher issues one reaction request per emoji, concurrently and independently
// ABOUTME: Outcomes are classified as added, benign duplicate, or failed; nothing is retried

package reactor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/2389/greet-react/internal/store"
)

const (
	// DefaultTimeout bounds a single reactions.add call.
	DefaultTimeout = 10 * time.Second

	tracerName = "github.com/2389/greet-react/internal/reactor"
)

// Outcome classifies a single reaction attempt.
type Outcome int

const (
	OutcomeAdded Outcome = iota
	OutcomeBenignDuplicate
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAdded:
		return "added"
	case OutcomeBenignDuplicate:
		return "already_reacted"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Attempt is the result of one reactions.add call.
type Attempt struct {
	Emoji    string
	Outcome  Outcome
	Err      error // set only when Outcome is OutcomeFailed
	Duration time.Duration
}

// Result collects every attempt made for one matched message.
type Result struct {
	DispatchID string
	ChannelID  string
	Timestamp  string
	Attempts   []Attempt
}

// Failures returns the attempts that ended in OutcomeFailed.
func (r Result) Failures() []Attempt {
	var out []Attempt
	for _, a := range r.Attempts {
		if a.Outcome == OutcomeFailed {
			out = append(out, a)
		}
	}
	return out
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout sets the per-request timeout. Zero or negative disables it.
func WithTimeout(d time.Duration) Option {
	return func(dp *Dispatcher) {
		dp.timeout = d
	}
}

// WithMaxConcurrent bounds the number of reactions.add calls in flight across
// all dispatches. Zero or negative means unbounded.
func WithMaxConcurrent(n int) Option {
	return func(dp *Dispatcher) {
		if n > 0 {
			dp.sem = make(chan struct{}, n)
		} else {
			dp.sem = nil
		}
	}
}

// WithLogger sets the dispatcher's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(dp *Dispatcher) {
		if logger != nil {
			dp.logger = logger
		}
	}
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(dp *Dispatcher) {
		if tp != nil {
			dp.tracer = tp.Tracer(tracerName)
		}
	}
}

// Dispatcher fans a matched emoji set out into reaction requests.
type Dispatcher struct {
	timeout time.Duration
	sem     chan struct{}
	logger  *slog.Logger
	tracer  trace.Tracer

	// lifecycle context for DispatchAsync work
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(opts ...Option) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		timeout: DefaultTimeout,
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "dispatcher")
	return d
}

// Dispatch adds every emoji in set to the message and blocks until all
// attempts finish. Attempts run concurrently; one failing does not stop the
// others.
func (d *Dispatcher) Dispatch(ctx context.Context, client ReactionClient, channelID, timestamp string, set store.EmojiSet) Result {
	result := Result{
		DispatchID: uuid.NewString(),
		ChannelID:  channelID,
		Timestamp:  timestamp,
		Attempts:   make([]Attempt, len(set)),
	}
	if len(set) == 0 {
		return result
	}

	ctx, span := d.tracer.Start(ctx, "reactor.dispatch", trace.WithAttributes(
		attribute.String("dispatch.id", result.DispatchID),
		attribute.String("slack.channel_id", channelID),
		attribute.String("slack.message_ts", timestamp),
		attribute.Int("dispatch.emoji_count", len(set)),
	))
	defer span.End()

	logger := d.logger.With(
		"dispatch_id", result.DispatchID,
		"channel_id", channelID,
		"ts", timestamp,
	)

	var wg sync.WaitGroup
	for i, emoji := range set {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result.Attempts[i] = d.attempt(ctx, client, channelID, emoji, timestamp)
		}()
	}
	wg.Wait()

	failed := 0
	for _, a := range result.Attempts {
		span.AddEvent("reaction", trace.WithAttributes(
			attribute.String("emoji", a.Emoji),
			attribute.String("outcome", a.Outcome.String()),
		))
		switch a.Outcome {
		case OutcomeFailed:
			failed++
			logger.Warn("reaction failed",
				"emoji", a.Emoji,
				"code", ErrorCode(a.Err),
				"error", a.Err,
			)
		case OutcomeBenignDuplicate:
			logger.Debug("reaction already present", "emoji", a.Emoji)
		default:
			logger.Debug("reaction added", "emoji", a.Emoji, "duration", a.Duration)
		}
	}
	if failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d of %d reactions failed", failed, len(set)))
	}
	return result
}

// attempt makes exactly one reactions.add call and classifies the outcome.
func (d *Dispatcher) attempt(ctx context.Context, client ReactionClient, channelID, emoji, timestamp string) (a Attempt) {
	a.Emoji = emoji
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			a.Outcome = OutcomeFailed
			a.Err = &DispatchError{Emoji: emoji, ChannelID: channelID, Timestamp: timestamp, Err: fmt.Errorf("panic: %v", r)}
		}
		a.Duration = time.Since(start)
	}()

	if d.sem != nil {
		select {
		case d.sem <- struct{}{}:
			defer func() { <-d.sem }()
		case <-ctx.Done():
			a.Outcome = OutcomeFailed
			a.Err = &DispatchError{Emoji: emoji, ChannelID: channelID, Timestamp: timestamp, Err: ctx.Err()}
			return a
		}
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	err := client.AddReaction(ctx, channelID, emoji, timestamp)
	switch {
	case err == nil:
		a.Outcome = OutcomeAdded
	case errors.Is(err, ErrAlreadyReacted):
		a.Outcome = OutcomeBenignDuplicate
	default:
		a.Outcome = OutcomeFailed
		a.Err = &DispatchError{Emoji: emoji, ChannelID: channelID, Timestamp: timestamp, Err: err}
	}
	return a
}

// DispatchAsync runs Dispatch in the background on the dispatcher's lifecycle
// context and returns immediately. The trace context of ctx is carried over but
// its cancellation is not. It reports false if the dispatcher is closed.
func (d *Dispatcher) DispatchAsync(ctx context.Context, client ReactionClient, channelID, timestamp string, set store.EmojiSet) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	d.inflight.Add(1)
	d.mu.Unlock()

	bg := trace.ContextWithSpanContext(d.ctx, trace.SpanContextFromContext(ctx))
	go func() {
		defer d.inflight.Done()
		d.Dispatch(bg, client, channelID, timestamp, set)
	}()
	return true
}

// Wait blocks until all background dispatches finish or ctx is done. No new
// background work is accepted once Wait is called.
func (d *Dispatcher) Wait(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work and cancels anything still in flight.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.cancel()
}
