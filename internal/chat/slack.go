package chat

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slack-go/slack"
)

// SlackConfig holds configuration for the Slack poster.
type SlackConfig struct {
	Token string
	// APIURL overrides https://slack.com/api/, mainly for tests.
	APIURL string
	Logger *slog.Logger
}

// Slack posts through the Slack Web API.
type Slack struct {
	client *slack.Client
	logger *slog.Logger
}

// NewSlack creates a Slack poster.
func NewSlack(cfg SlackConfig) (*Slack, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("slack token is required")
	}
	var opts []slack.Option
	if cfg.APIURL != "" {
		u := cfg.APIURL
		if !strings.HasSuffix(u, "/") {
			u += "/"
		}
		opts = append(opts, slack.OptionAPIURL(u))
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Slack{client: slack.New(cfg.Token, opts...), logger: logger}, nil
}

// Reply implements Poster.
func (s *Slack) Reply(ctx context.Context, t Thread, text string) error {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if t.TS != "" {
		opts = append(opts, slack.MsgOptionTS(t.TS))
	}
	if _, _, err := s.client.PostMessageContext(ctx, t.Channel, opts...); err != nil {
		return fmt.Errorf("failed to post to %s: %w", t, err)
	}
	s.logger.Debug("posted reply", "thread", t.String())
	return nil
}

// StartThread implements Poster.
func (s *Slack) StartThread(ctx context.Context, channel, text string) (Thread, error) {
	ch, ts, err := s.client.PostMessageContext(ctx, channel, slack.MsgOptionText(text, false))
	if err != nil {
		return Thread{}, fmt.Errorf("failed to start thread in %s: %w", channel, err)
	}
	if ch == "" {
		ch = channel
	}
	return Thread{Channel: ch, TS: ts}, nil
}

// Upload implements Poster.
func (s *Slack) Upload(ctx context.Context, t Thread, f File) error {
	summary, err := s.client.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
		Reader:          bytes.NewReader(f.Data),
		FileSize:        len(f.Data),
		Filename:        f.Name,
		Title:           f.Title,
		Channel:         t.Channel,
		ThreadTimestamp: t.TS,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to %s: %w", f.Name, t, err)
	}
	s.logger.Info("uploaded file", "thread", t.String(), "file", f.Name, "id", summary.ID, "bytes", len(f.Data))
	return nil
}

// Identity checks the token and returns the bot user and workspace it belongs to.
func (s *Slack) Identity(ctx context.Context) (user, team string, err error) {
	resp, err := s.client.AuthTestContext(ctx)
	if err != nil {
		return "", "", fmt.Errorf("slack auth test failed: %w", err)
	}
	return resp.User, resp.Team, nil
}
