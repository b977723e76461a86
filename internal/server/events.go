// ABOUTME: HTTP handler for the Slack Events API
// ABOUTME: Verifies signatures, answers URL verification, drops redeliveries, and routes events

package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/2389/greet-react/internal/dedupe"
	"github.com/2389/greet-react/internal/reactor"
	"github.com/2389/greet-react/internal/store"
)

var tracer = otel.Tracer("github.com/2389/greet-react/internal/server")

// verifyRequest checks Slack's request signature over body.
func (s *Server) verifyRequest(header http.Header, body []byte) error {
	sv, err := slack.NewSecretsVerifier(header, s.config.Slack.SigningSecret)
	if err != nil {
		return err
	}
	if _, err := sv.Write(body); err != nil {
		return err
	}
	return sv.Ensure()
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	logger := s.requestLogger(r)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
		return
	}

	if err := s.verifyRequest(r.Header, body); err != nil {
		logger.Warn("rejected unverified events request", "error", err)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		logger.Warn("failed to parse event", "error", err)
		http.Error(w, "malformed event", http.StatusBadRequest)
		return
	}

	switch event.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			http.Error(w, "malformed challenge", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(challenge.Challenge))

	case slackevents.CallbackEvent:
		s.handleCallback(r, logger, event)
		w.WriteHeader(http.StatusOK)

	case slackevents.AppRateLimited:
		logger.Warn("slack is rate limiting event delivery", "team_id", event.TeamID)
		w.WriteHeader(http.StatusOK)

	default:
		logger.Debug("ignoring event envelope", "type", event.Type)
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) handleCallback(r *http.Request, logger *slog.Logger, event slackevents.EventsAPIEvent) {
	teamID := event.TeamID
	callback, _ := event.Data.(*slackevents.EventsAPICallbackEvent)

	eventID := ""
	if callback != nil {
		eventID = callback.EventID
	}
	logger = logger.With("team_id", teamID, "event_id", eventID, "event_type", event.InnerEvent.Type)

	if eventID != "" && s.dedupe.CheckAndMark(dedupe.EventKey(teamID, eventID)) {
		logger.Debug("dropping redelivered event", "retry_num", r.Header.Get("X-Slack-Retry-Num"))
		return
	}

	ctx, span := tracer.Start(r.Context(), "slack.event", trace.WithAttributes(
		attribute.String("slack.team_id", teamID),
		attribute.String("slack.event_id", eventID),
		attribute.String("slack.event_type", event.InnerEvent.Type),
	))
	defer span.End()

	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		disposition := s.ingress.HandleMessage(ctx, reactor.MessageEvent{
			TeamID:    teamID,
			ChannelID: ev.Channel,
			UserID:    ev.User,
			Timestamp: ev.TimeStamp,
			SubType:   ev.SubType,
			BotID:     ev.BotID,
		})
		span.SetAttributes(attribute.String("greet_react.disposition", disposition.String()))
		logger.Debug("message handled", "channel_id", ev.Channel, "user_id", ev.User, "disposition", disposition.String())

	case *slackevents.AppUninstalledEvent:
		s.uninstall(ctx, logger, teamID)

	case *slackevents.TokensRevokedEvent:
		if len(ev.Tokens.Bot) > 0 {
			s.uninstall(ctx, logger, teamID)
		}

	default:
		logger.Debug("ignoring event")
	}
}

// uninstall forgets the team's credentials. Watch rules are kept so a
// reinstall picks up where it left off.
func (s *Server) uninstall(ctx context.Context, logger *slog.Logger, teamID string) {
	s.registry.Invalidate(teamID)
	if err := s.store.DeleteInstallation(ctx, teamID); err != nil && !errors.Is(err, store.ErrNotFound) {
		logger.Error("failed to delete installation", "error", err)
		return
	}
	logger.Info("installation removed")
}
