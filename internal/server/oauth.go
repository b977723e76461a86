// ABOUTME: "Add to Slack" install flow: landing page, authorize redirect, and OAuth callback
// ABOUTME: State is a short-lived HS256 JWT; the bot token is stored per team on success

package server

import (
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/slack-go/slack"

	"github.com/2389/greet-react/internal/store"
)

const (
	authorizeURL  = "https://slack.com/oauth/v2/authorize"
	stateIssuer   = "greet-react"
	stateLifetime = 10 * time.Minute

	installedPage = `<p>Greet and React was successfully installed on your team.</p>`
	failedPage    = `<p>Greet and React failed to install</p> <pre>%s</pre>`
)

// issueState mints the OAuth state parameter.
func (s *Server) issueState(now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    stateIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(stateLifetime)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Slack.StateSecret))
}

// verifyState checks a state parameter minted by issueState.
func (s *Server) verifyState(state string) error {
	if state == "" {
		return errors.New("missing state")
	}
	_, err := jwt.ParseWithClaims(state, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return []byte(s.config.Slack.StateSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(stateIssuer),
		jwt.WithExpirationRequired(),
	)
	return err
}

func (s *Server) redirectURI() string {
	if s.config.Slack.RedirectURL != "" {
		return s.config.Slack.RedirectURL
	}
	if s.publicURL != "" {
		return s.publicURL + "/slack/oauth/callback"
	}
	return ""
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if !s.config.Slack.OAuthEnabled() {
		_, _ = w.Write([]byte("<p>Greet and React is running.</p>"))
		return
	}
	_, _ = w.Write([]byte(`<a href="/slack/install"><img alt="Add to Slack" height="40" width="139" ` +
		`src="https://platform.slack-edge.com/img/add_to_slack.png" ` +
		`srcset="https://platform.slack-edge.com/img/add_to_slack.png 1x, https://platform.slack-edge.com/img/add_to_slack@2x.png 2x"></a>`))
}

func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request) {
	if !s.config.Slack.OAuthEnabled() {
		http.NotFound(w, r)
		return
	}

	state, err := s.issueState(time.Now())
	if err != nil {
		s.requestLogger(r).Error("failed to sign oauth state", "error", err)
		http.Error(w, "Something went wrong!", http.StatusInternalServerError)
		return
	}

	q := url.Values{}
	q.Set("client_id", s.config.Slack.ClientID)
	q.Set("scope", strings.Join(s.config.Slack.Scopes, ","))
	q.Set("state", state)
	if uri := s.redirectURI(); uri != "" {
		q.Set("redirect_uri", uri)
	}
	http.Redirect(w, r, authorizeURL+"?"+q.Encode(), http.StatusFound)
}

func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	logger := s.requestLogger(r)
	if !s.config.Slack.OAuthEnabled() {
		http.NotFound(w, r)
		return
	}

	q := r.URL.Query()
	if denied := q.Get("error"); denied != "" {
		logger.Info("install declined", "error", denied)
		s.installFailed(w, http.StatusBadRequest, denied)
		return
	}
	if err := s.verifyState(q.Get("state")); err != nil {
		logger.Warn("invalid oauth state", "error", err)
		s.installFailed(w, http.StatusBadRequest, "invalid or expired state")
		return
	}
	code := q.Get("code")
	if code == "" {
		s.installFailed(w, http.StatusBadRequest, "missing code")
		return
	}

	resp, err := slack.GetOAuthV2ResponseContext(r.Context(), s.httpClient,
		s.config.Slack.ClientID, s.config.Slack.ClientSecret, code, s.redirectURI())
	if err != nil {
		logger.Error("oauth exchange failed", "error", err)
		s.installFailed(w, http.StatusBadGateway, err.Error())
		return
	}
	if resp.Team.ID == "" || resp.AccessToken == "" {
		logger.Error("oauth response missing team or bot token")
		s.installFailed(w, http.StatusBadGateway, "incomplete response from Slack")
		return
	}

	inst := &store.Installation{
		TeamID:    resp.Team.ID,
		TeamName:  resp.Team.Name,
		BotUserID: resp.BotUserID,
		BotToken:  resp.AccessToken,
		Scope:     resp.Scope,
	}
	if err := s.store.SaveInstallation(r.Context(), inst); err != nil {
		logger.Error("failed to save installation", "team_id", inst.TeamID, "error", err)
		s.installFailed(w, http.StatusInternalServerError, "could not save installation")
		return
	}
	s.registry.Invalidate(inst.TeamID)

	logger.Info("app installed", "team_id", inst.TeamID, "team_name", inst.TeamName, "scope", inst.Scope)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(installedPage))
}

func (s *Server) installFailed(w http.ResponseWriter, status int, reason string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, failedPage, html.EscapeString(reason))
}
