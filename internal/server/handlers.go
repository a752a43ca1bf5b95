package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/mfbot-download/internal/action"
	"github.com/leapstack-labs/mfbot-download/internal/chat"
	"github.com/leapstack-labs/mfbot-download/internal/intent"
	"github.com/leapstack-labs/mfbot-download/pkg/core"
	"github.com/slack-go/slack"
	"github.com/starfederation/datastar-go/datastar"
)

const (
	maxCommandBody   = 1 << 20
	defaultListLimit = 20
	maxListLimit     = 500

	replySlowDown = "You're sending commands too quickly. Try again in a few seconds."
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// handleSlashCommand answers immediately and runs the command in the
// background. Replies go to a new thread in the invoking channel.
func (s *Server) handleSlashCommand(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBody))
	if err != nil {
		http.Error(w, "failed to read request", http.StatusBadRequest)
		return
	}

	if s.signingSecret != "" {
		if err := verify(r.Header, body, s.signingSecret); err != nil {
			s.logger.Warn("rejected unsigned slash command", "error", err)
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}

	r.Body = io.NopCloser(bytes.NewReader(body))
	cmd, err := slack.SlashCommandParse(r)
	if err != nil {
		http.Error(w, "malformed slash command", http.StatusBadRequest)
		return
	}
	if cmd.ChannelID == "" {
		http.Error(w, "missing channel", http.StatusBadRequest)
		return
	}

	text := strings.TrimSpace(cmd.Text)
	thread := chat.Thread{Channel: cmd.ChannelID}
	s.logger.Info("slash command received", "user", cmd.UserID, "channel", cmd.ChannelID, "text", text)

	if !s.limits.Allow(cmd.TeamID + "/" + cmd.UserID) {
		s.logger.Warn("rate limited slash command", "user", cmd.UserID)
		writeSlackMessage(w, replySlowDown)
		return
	}

	var accepted bool
	if intent.IsHelp(text) {
		accepted = s.submit("how-to-download", func(ctx context.Context) error {
			return s.downloads.HowTo(ctx, thread, true)
		})
	} else {
		accepted = s.submit("download", func(ctx context.Context) error {
			d, err := s.downloads.Download(ctx, action.Command{Message: text, Thread: thread, CreateThread: true})
			if d != nil {
				s.events.Publish(d)
			}
			return err
		})
	}

	if !accepted {
		s.logger.Warn("worker pool saturated, rejecting command", "text", text)
		writeSlackMessage(w, action.ReplyBusy)
		return
	}
	writeSlackMessage(w, "On it: `"+text+"`")
}

func verify(header http.Header, body []byte, secret string) error {
	sv, err := slack.NewSecretsVerifier(header, secret)
	if err != nil {
		return err
	}
	if _, err := sv.Write(body); err != nil {
		return err
	}
	return sv.Ensure()
}

func writeSlackMessage(w http.ResponseWriter, text string) {
	writeJSON(w, http.StatusOK, slack.Msg{ResponseType: slack.ResponseTypeEphemeral, Text: text})
}

func (s *Server) handleListDownloads(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "download history is disabled", http.StatusNotFound)
		return
	}

	opts := core.ListOptions{
		Limit:  defaultListLimit,
		Status: core.DownloadStatus(r.URL.Query().Get("status")),
		Flow:   r.URL.Query().Get("flow"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		opts.Limit = min(n, maxListLimit)
	}

	downloads, err := s.store.ListDownloads(r.Context(), opts)
	if err != nil {
		s.logger.Error("failed to list downloads", "error", err)
		http.Error(w, "failed to list downloads", http.StatusInternalServerError)
		return
	}
	if downloads == nil {
		downloads = []*core.Download{}
	}
	writeJSON(w, http.StatusOK, downloads)
}

func (s *Server) handleGetDownload(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "download history is disabled", http.StatusNotFound)
		return
	}

	d, err := s.store.GetDownload(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, core.ErrDownloadNotFound) {
		http.Error(w, "download not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("failed to get download", "error", err)
		http.Error(w, "failed to get download", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleEvents streams finished downloads as Datastar signal patches. The
// first patch carries the recent history.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ch := s.events.Subscribe()
	defer s.events.Unsubscribe(ch)

	sse := datastar.NewSSE(w, r)

	recent := []*core.Download{}
	if s.store != nil {
		if list, err := s.store.ListDownloads(r.Context(), core.ListOptions{Limit: defaultListLimit}); err == nil && list != nil {
			recent = list
		}
	}
	if err := sse.MarshalAndPatchSignals(map[string]any{"downloads": recent}); err != nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case d, ok := <-ch:
			if !ok {
				return
			}
			if err := sse.MarshalAndPatchSignals(map[string]any{"download": d}); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
