// ABOUTME: Registry lazily builds and caches one Slack client per installed team
// ABOUTME: Backed by the installation store; entries are dropped on reinstall or uninstall

package slackclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/slack-go/slack"

	"github.com/2389/greet-react/internal/reactor"
	"github.com/2389/greet-react/internal/store"
)

// InstallationReader is the subset of the installation store the registry needs.
type InstallationReader interface {
	GetInstallation(ctx context.Context, teamID string) (*store.Installation, error)
}

// Option configures a Registry.
type Option func(*Registry)

// WithAPIURL points clients at a different Web API base URL. The URL must end in "/".
func WithAPIURL(url string) Option {
	return func(r *Registry) {
		r.apiURL = url
	}
}

// WithHTTPClient sets the HTTP client used for Web API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Registry) {
		r.httpClient = c
	}
}

// WithLogger sets the registry's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Registry is a keyed lazy cache of per-team clients.
type Registry struct {
	installs   InstallationReader
	apiURL     string
	httpClient *http.Client
	logger     *slog.Logger

	mu      sync.RWMutex
	clients map[string]*Client
	// generations counts Invalidate calls per team. A load only populates
	// the cache if no Invalidate happened while it read the installation.
	generations map[string]uint64
}

var _ reactor.ClientRegistry = (*Registry)(nil)

// maxLoadAttempts bounds how often ClientFor reloads an installation that
// keeps being invalidated under it.
const maxLoadAttempts = 3

// NewRegistry creates a Registry reading credentials from installs.
func NewRegistry(installs InstallationReader, opts ...Option) *Registry {
	r := &Registry{
		installs:    installs,
		logger:      slog.Default(),
		clients:     make(map[string]*Client),
		generations: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "slackclient")
	return r
}

// ClientFor returns the cached client for teamID, building it from the stored
// installation on first use. It returns reactor.ErrClientUnavailable when the
// team has no installation.
func (r *Registry) ClientFor(ctx context.Context, teamID string) (reactor.ReactionClient, error) {
	var c *Client
	for range maxLoadAttempts {
		r.mu.RLock()
		cached, ok := r.clients[teamID]
		gen := r.generations[teamID]
		r.mu.RUnlock()
		if ok {
			return cached, nil
		}

		var err error
		c, err = r.load(ctx, teamID)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		if r.generations[teamID] == gen {
			// Another caller may have raced us here.
			if cached, ok := r.clients[teamID]; ok {
				r.mu.Unlock()
				return cached, nil
			}
			r.clients[teamID] = c
			r.mu.Unlock()
			r.logger.Debug("slack client created", "team_id", teamID)
			return c, nil
		}
		r.mu.Unlock()
		r.logger.Debug("installation changed during load, reloading", "team_id", teamID)
	}

	// Still churning: serve the latest load without caching it.
	return c, nil
}

// load builds a client from the team's stored installation.
func (r *Registry) load(ctx context.Context, teamID string) (*Client, error) {
	inst, err := r.installs.GetInstallation(ctx, teamID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("team %s: %w", teamID, reactor.ErrClientUnavailable)
	}
	if err != nil {
		return nil, fmt.Errorf("loading installation for %s: %w", teamID, err)
	}
	if inst.BotToken == "" {
		return nil, fmt.Errorf("team %s has no bot token: %w", teamID, reactor.ErrClientUnavailable)
	}
	return NewClient(slack.New(inst.BotToken, r.slackOptions()...)), nil
}

// Invalidate drops the cached client for teamID and discards any load still
// reading the old installation. The next ClientFor call reloads it.
func (r *Registry) Invalidate(teamID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generations[teamID]++
	if _, ok := r.clients[teamID]; ok {
		delete(r.clients, teamID)
		r.logger.Debug("slack client invalidated", "team_id", teamID)
	}
}

// Len returns the number of cached clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

func (r *Registry) slackOptions() []slack.Option {
	var opts []slack.Option
	if r.apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(r.apiURL))
	}
	if r.httpClient != nil {
		opts = append(opts, slack.OptionHTTPClient(r.httpClient))
	}
	return opts
}
