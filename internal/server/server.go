// ABOUTME: Server wires the Slack webhooks to the reactor pipeline and owns the process lifecycle
// ABOUTME: Listens on TCP or a Tailscale node (optionally via Funnel) and shuts down in order

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/greet-react/internal/command"
	"github.com/2389/greet-react/internal/config"
	"github.com/2389/greet-react/internal/dedupe"
	"github.com/2389/greet-react/internal/reactor"
	"github.com/2389/greet-react/internal/slackclient"
	"github.com/2389/greet-react/internal/store"
)

// maxBodyBytes caps webhook payloads. Slack events are a few kilobytes.
const maxBodyBytes = 1 << 20

// Server serves the Slack Events API, slash commands, and the install flow.
type Server struct {
	config      *config.Config
	store       store.Store
	registry    *slackclient.Registry
	processor   *command.Processor
	dispatcher  *reactor.Dispatcher
	ingress     *reactor.Ingress
	dedupe      *dedupe.Cache
	httpClient  *http.Client
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger

	// publicURL is the externally reachable base URL, refined once the
	// tailscale node reports its DNS name.
	publicURL string
}

// Option configures a Server.
type Option func(*Server)

// WithHTTPClient sets the HTTP client used for every outbound Slack call.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Server) {
		s.httpClient = c
	}
}

// initStore opens the SQLite store at the configured path.
func initStore(cfg *config.Config) (store.Store, error) {
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New creates a Server backed by the configured SQLite database.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}
	srv, err := NewWithStore(cfg, s, logger, opts...)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return srv, nil
}

// NewWithStore creates a Server on an already opened store. The Server takes
// ownership of st and closes it on Shutdown.
func NewWithStore(cfg *config.Config, st store.Store, logger *slog.Logger, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if st == nil {
		return nil, errors.New("store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:     cfg,
		store:      st,
		httpClient: http.DefaultClient,
		logger:     logger.With("component", "server"),
		publicURL:  determinePublicURL(cfg),
	}
	for _, opt := range opts {
		opt(s)
	}

	regOpts := []slackclient.Option{
		slackclient.WithHTTPClient(s.httpClient),
		slackclient.WithLogger(logger),
	}
	if cfg.Slack.APIURL != "" {
		regOpts = append(regOpts, slackclient.WithAPIURL(cfg.Slack.APIURL))
	}
	s.registry = slackclient.NewRegistry(st, regOpts...)

	s.processor = command.NewProcessor(st, logger)
	s.dispatcher = reactor.NewDispatcher(
		reactor.WithTimeout(cfg.Dispatch.Timeout),
		reactor.WithMaxConcurrent(cfg.Dispatch.MaxConcurrent),
		reactor.WithLogger(logger),
	)
	s.ingress = reactor.NewIngress(s.registry, reactor.NewMatcher(st, logger), s.dispatcher, logger)
	s.dedupe = dedupe.New(cfg.Dedupe.TTL, cfg.Dedupe.MaxSize)

	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)

	mux.HandleFunc("POST /slack/events", s.handleEvents)
	mux.HandleFunc("POST /slack/commands", s.handleCommands)

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /slack/install", s.handleInstall)
	mux.HandleFunc("GET /slack/oauth/callback", s.handleOAuthCallback)

	return s.withRequestID(mux)
}

type requestIDKey struct{}

// withRequestID tags every request with an ID echoed in X-Request-ID.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requestLogger(r *http.Request) *slog.Logger {
	if id, ok := r.Context().Value(requestIDKey{}).(string); ok {
		return s.logger.With("request_id", id)
	}
	return s.logger
}

// determinePublicURL resolves the externally reachable base URL.
func determinePublicURL(cfg *config.Config) string {
	if cfg.Server.PublicURL != "" {
		return strings.TrimSuffix(cfg.Server.PublicURL, "/")
	}
	if cfg.Tailscale.Enabled {
		if cfg.Tailscale.Funnel {
			return "https://" + cfg.Tailscale.Hostname
		}
		return "http://" + cfg.Tailscale.Hostname
	}
	return ""
}

// setupTCPListener creates the standard TCP listener.
func (s *Server) setupTCPListener() (net.Listener, error) {
	s.logger.Debug("binding HTTP listener", "http_addr", s.config.Server.HTTPAddr)

	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// setupListener creates the listener based on configuration (Tailscale or TCP).
func (s *Server) setupListener(ctx context.Context) (net.Listener, error) {
	if s.config.Tailscale.Enabled {
		if s.config.Server.HTTPAddr != "" {
			s.logger.Warn("server.http_addr is ignored when tailscale is enabled", "http_addr", s.config.Server.HTTPAddr)
		}
		return s.setupTailscaleListener(ctx)
	}
	return s.setupTCPListener()
}

// Run serves until ctx is canceled or the listener fails, then shuts down.
// Returns nil on graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.setupListener(ctx)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String(), "public_url", s.publicURL)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := s.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown runs Shutdown on a fresh context since the run context is
// already canceled.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()
	return s.Shutdown(ctx)
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "greet-react", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// setupTailscaleListener joins the tailnet and listens on :80, or on :443
// through Funnel so Slack can reach the webhooks from the internet.
func (s *Server) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := s.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	s.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	s.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := s.tsnetServer.Up(ctx)
	if err != nil {
		_ = s.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	s.useTailscaleStatus(tsCfg, status)

	var ln net.Listener
	if tsCfg.Funnel {
		s.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err = s.tsnetServer.ListenFunnel("tcp", ":443")
	} else {
		ln, err = s.tsnetServer.Listen("tcp", ":80")
	}
	if err != nil {
		_ = s.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale: %w", err)
	}
	return ln, nil
}

// useTailscaleStatus logs the node identity and adopts its DNS name as the
// public URL when none was configured.
func (s *Server) useTailscaleStatus(tsCfg config.TailscaleConfig, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		s.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = strings.TrimSuffix(status.Self.DNSName, ".")
	}
	s.logger.Info("tailscale node ready", "hostname", tsCfg.Hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)

	if dnsName == "" || s.config.Server.PublicURL != "" {
		return
	}
	scheme := "http://"
	if tsCfg.Funnel {
		scheme = "https://"
	}
	s.publicURL = scheme + dnsName
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops accepting requests, drains in-flight reactions until ctx
// expires, then releases every resource.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", s.httpServer.Shutdown(ctx))

	if err := s.dispatcher.Wait(ctx); err != nil {
		s.logger.Warn("abandoning in-flight reactions", "error", err)
	}
	s.dispatcher.Close()

	if s.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", s.tsnetServer.Close())
	}
	s.dedupe.Close()
	errs = appendCloseError(errs, "store close", s.store.Close())

	return errors.Join(errs...)
}
