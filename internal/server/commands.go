// ABOUTME: HTTP handler for Slack slash commands
// ABOUTME: Verifies the signature while parsing and replies ephemerally with the processor's text

package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/slack-go/slack"

	"github.com/2389/greet-react/internal/command"
)

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	logger := s.requestLogger(r)

	verifier, err := slack.NewSecretsVerifier(r.Header, s.config.Slack.SigningSecret)
	if err != nil {
		logger.Warn("rejected unverified command", "error", err)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}
	r.Body = io.NopCloser(io.TeeReader(http.MaxBytesReader(w, r.Body, maxBodyBytes), &verifier))

	cmd, err := slack.SlashCommandParse(r)
	if err != nil {
		http.Error(w, "malformed command", http.StatusBadRequest)
		return
	}
	if err := verifier.Ensure(); err != nil {
		logger.Warn("rejected unverified command", "error", err)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	if cmd.TeamID == "" || cmd.ChannelID == "" || cmd.Command == "" {
		http.Error(w, "Something went wrong!", http.StatusBadRequest)
		return
	}

	reply := s.processor.Handle(r.Context(), command.Command{
		TeamID:    cmd.TeamID,
		ChannelID: cmd.ChannelID,
		UserID:    cmd.UserID,
		Name:      cmd.Command,
		Text:      cmd.Text,
	})

	writeJSON(w, http.StatusOK, &slack.Msg{
		ResponseType: slack.ResponseTypeEphemeral,
		Text:         reply,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
