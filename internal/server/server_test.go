package server

import (
	"bufio"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leapstack-labs/mfbot-download/internal/action"
	"github.com/leapstack-labs/mfbot-download/internal/chat"
	"github.com/leapstack-labs/mfbot-download/internal/state"
	"github.com/leapstack-labs/mfbot-download/internal/testutil"
	"github.com/leapstack-labs/mfbot-download/pkg/core"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "8f742231b10e8888abcd99yyyzzz85a5"

// fakeDownloads records commands. When gate is set, Download blocks on it.
type fakeDownloads struct {
	mu       sync.Mutex
	commands []action.Command
	howTos   []chat.Thread
	gate     chan struct{}
	started  chan struct{}
}

func (f *fakeDownloads) Download(_ context.Context, cmd action.Command) (*core.Download, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmd)
	return &core.Download{ID: fmt.Sprintf("dl-%d", len(f.commands)), Message: cmd.Message, Status: core.DownloadStatusCompleted}, nil
}

func (f *fakeDownloads) HowTo(_ context.Context, thread chat.Thread, createThread bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if createThread {
		f.howTos = append(f.howTos, thread)
	}
	return nil
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = testutil.NewTestLogger(t)
	}
	s, err := NewServer(cfg)
	require.NoError(t, err)
	return s
}

func slashForm(text string) string {
	v := url.Values{}
	v.Set("token", "legacy")
	v.Set("team_id", "T1")
	v.Set("channel_id", "C42")
	v.Set("user_id", "U7")
	v.Set("command", "/mfbot")
	v.Set("text", text)
	return v.Encode()
}

func signedRequest(t *testing.T, body, secret string, ts time.Time) *http.Request {
	t.Helper()
	stamp := strconv.FormatInt(ts.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte("v0:" + stamp + ":" + body))

	req := httptest.NewRequest(http.MethodPost, "/slack/commands", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Slack-Request-Timestamp", stamp)
	req.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
	return req
}

func decodeMsg(t *testing.T, rec *httptest.ResponseRecorder) slack.Msg {
	t.Helper()
	var msg slack.Msg
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msg))
	return msg
}

func TestNewServer_RequiresDownloads(t *testing.T) {
	_, err := NewServer(Config{})
	assert.Error(t, err)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, Config{Downloads: &fakeDownloads{}})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestSlashCommand_Download(t *testing.T) {
	fake := &fakeDownloads{}
	s := newTestServer(t, Config{Downloads: fake, SigningSecret: testSecret})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, signedRequest(t, slashForm("download latest model from HelloFlow"), testSecret, time.Now()))
	require.Equal(t, http.StatusOK, rec.Code)

	msg := decodeMsg(t, rec)
	assert.Equal(t, slack.ResponseTypeEphemeral, msg.ResponseType)
	assert.Contains(t, msg.Text, "download latest model from HelloFlow")

	require.NoError(t, s.Wait())
	require.Len(t, fake.commands, 1)
	assert.Equal(t, action.Command{
		Message:      "download latest model from HelloFlow",
		Thread:       chat.Thread{Channel: "C42"},
		CreateThread: true,
	}, fake.commands[0])
}

func TestSlashCommand_Help(t *testing.T) {
	for _, text := range []string{"", "help", "  HELP ", "how-to-download"} {
		t.Run(fmt.Sprintf("%q", text), func(t *testing.T) {
			fake := &fakeDownloads{}
			s := newTestServer(t, Config{Downloads: fake})

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/slack/commands", strings.NewReader(slashForm(text)))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			s.Handler().ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)

			require.NoError(t, s.Wait())
			assert.Equal(t, []chat.Thread{{Channel: "C42"}}, fake.howTos)
			assert.Empty(t, fake.commands)
		})
	}
}

func TestSlashCommand_Signature(t *testing.T) {
	body := slashForm("download model from HelloFlow/1")

	tests := []struct {
		name string
		req  *http.Request
	}{
		{name: "wrong secret", req: signedRequest(t, body, "not-the-secret", time.Now())},
		{name: "stale timestamp", req: signedRequest(t, body, testSecret, time.Now().Add(-time.Hour))},
		{name: "unsigned", req: func() *http.Request {
			r := httptest.NewRequest(http.MethodPost, "/slack/commands", strings.NewReader(body))
			r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			return r
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeDownloads{}
			s := newTestServer(t, Config{Downloads: fake, SigningSecret: testSecret})

			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, tt.req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			require.NoError(t, s.Wait())
			assert.Empty(t, fake.commands)
		})
	}
}

func TestSlashCommand_MissingChannel(t *testing.T) {
	s := newTestServer(t, Config{Downloads: &fakeDownloads{}})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/slack/commands", strings.NewReader("text=download+x+from+y%2F1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSlashCommand_BusyWhenPoolSaturated(t *testing.T) {
	fake := &fakeDownloads{gate: make(chan struct{}), started: make(chan struct{}, 1)}
	s := newTestServer(t, Config{Downloads: fake, Workers: 1})
	h := s.Handler()

	send := func(text string) slack.Msg {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/slack/commands", strings.NewReader(slashForm(text)))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		return decodeMsg(t, rec)
	}

	first := send("download a from F/1")
	assert.Contains(t, first.Text, "On it")
	<-fake.started

	second := send("download b from F/2")
	assert.Equal(t, action.ReplyBusy, second.Text)

	close(fake.gate)
	require.NoError(t, s.Wait())
	require.Len(t, fake.commands, 1)
	assert.Equal(t, "download a from F/1", fake.commands[0].Message)
}

func TestSlashCommand_RateLimited(t *testing.T) {
	fake := &fakeDownloads{}
	s := newTestServer(t, Config{Downloads: fake, RateLimit: 0.001, RateBurst: 2})
	h := s.Handler()

	send := func(form string) slack.Msg {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/slack/commands", strings.NewReader(form))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		return decodeMsg(t, rec)
	}

	assert.Contains(t, send(slashForm("download a from F/1")).Text, "On it")
	assert.Contains(t, send(slashForm("download b from F/2")).Text, "On it")
	assert.Equal(t, replySlowDown, send(slashForm("download c from F/3")).Text)

	other := strings.Replace(slashForm("download d from F/4"), "user_id=U7", "user_id=U8", 1)
	assert.Contains(t, send(other).Text, "On it", "limits are per user")

	require.NoError(t, s.Wait())
	assert.Len(t, fake.commands, 3)
}

func (u *userLimits) size() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.limiters)
}

func TestUserLimits_EvictsIdleUsers(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	u := newUserLimits(1, 1)
	u.now = func() time.Time { return now }
	u.lastSweep = now

	for i := range 50 {
		assert.True(t, u.Allow(fmt.Sprintf("T1/U%d", i)))
	}
	assert.False(t, u.Allow("T1/U0"))
	assert.Equal(t, 50, u.size())

	now = now.Add(limiterIdleTTL + limiterSweep)
	assert.True(t, u.Allow("T1/U0"))
	assert.Equal(t, 1, u.size(), "idle users are dropped")
}

func TestUserLimits_Disabled(t *testing.T) {
	var u *userLimits
	assert.Nil(t, newUserLimits(0, 5))
	for range 10 {
		assert.True(t, u.Allow("T1/U1"))
	}
}

func TestDownloadsEndpoints(t *testing.T) {
	ledger, err := state.OpenSQLiteStore(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })

	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, flow := range []string{"HelloFlow", "HelloFlow", "OtherFlow"} {
		require.NoError(t, ledger.CreateDownload(ctx, &core.Download{
			ID: fmt.Sprintf("d%d", i), Message: "m", Flow: flow,
			Status: core.DownloadStatusCompleted, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	s := newTestServer(t, Config{Downloads: &fakeDownloads{}, Store: ledger})
	h := s.Handler()

	get := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	rec := get("/downloads?flow=HelloFlow")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []core.Download
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list, 2)
	assert.Equal(t, "d1", list[0].ID)

	rec = get("/downloads?limit=1")
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "d2", list[0].ID)

	assert.Equal(t, http.StatusBadRequest, get("/downloads?limit=zero").Code)

	rec = get("/downloads/d0")
	require.Equal(t, http.StatusOK, rec.Code)
	var one core.Download
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&one))
	assert.Equal(t, "HelloFlow", one.Flow)

	assert.Equal(t, http.StatusNotFound, get("/downloads/nope").Code)
}

func TestDownloadsEndpoints_NoStore(t *testing.T) {
	s := newTestServer(t, Config{Downloads: &fakeDownloads{}})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/downloads", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// readEvent returns the data lines of the next server-sent event.
func readEvent(t *testing.T, sc *bufio.Scanner) string {
	t.Helper()
	var data []string
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			if len(data) > 0 {
				return strings.Join(data, "\n")
			}
			continue
		}
		if strings.HasPrefix(line, "data: ") {
			data = append(data, strings.TrimPrefix(line, "data: "))
		}
	}
	require.NoError(t, sc.Err())
	t.Fatal("event stream ended")
	return ""
}

func TestServe_EventsAndShutdown(t *testing.T) {
	fake := &fakeDownloads{}
	s := newTestServer(t, Config{Downloads: fake})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ServeListener(ctx, ln) }()

	baseURL := "http://" + ln.Addr().String()
	require.Eventually(t, func() bool {
		resp, err := http.Get(baseURL + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	streamCtx, stopStream := context.WithCancel(context.Background())
	defer stopStream()
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, baseURL+"/downloads/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	sc := bufio.NewScanner(resp.Body)
	assert.Contains(t, readEvent(t, sc), `"downloads":[]`)

	post, err := http.Post(baseURL+"/slack/commands", "application/x-www-form-urlencoded",
		strings.NewReader(slashForm("download model from HelloFlow/3")))
	require.NoError(t, err)
	_ = post.Body.Close()

	assert.Contains(t, readEvent(t, sc), `"id":"dl-1"`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

// drainingDownloads blocks each download on gate and reports the state of
// its context once released.
type drainingDownloads struct {
	started chan struct{}
	gate    chan struct{}
	ctxErr  chan error
}

func (d *drainingDownloads) Download(ctx context.Context, _ action.Command) (*core.Download, error) {
	d.started <- struct{}{}
	<-d.gate
	d.ctxErr <- ctx.Err()
	return &core.Download{ID: "dl-1", Status: core.DownloadStatusCompleted}, nil
}

func (d *drainingDownloads) HowTo(context.Context, chat.Thread, bool) error { return nil }

func TestServe_ShutdownDrainsRunningCommands(t *testing.T) {
	d := &drainingDownloads{started: make(chan struct{}, 1), gate: make(chan struct{}), ctxErr: make(chan error, 1)}
	s := newTestServer(t, Config{Downloads: d})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.ServeListener(ctx, ln) }()

	baseURL := "http://" + ln.Addr().String()
	require.Eventually(t, func() bool {
		resp, err := http.Get(baseURL + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	post, err := http.Post(baseURL+"/slack/commands", "application/x-www-form-urlencoded",
		strings.NewReader(slashForm("download model from HelloFlow/3")))
	require.NoError(t, err)
	_ = post.Body.Close()
	<-d.started

	cancel()
	select {
	case <-done:
		t.Fatal("server returned before the running command finished")
	case <-time.After(200 * time.Millisecond):
	}

	close(d.gate)
	assert.NoError(t, <-d.ctxErr, "running command must not be cancelled by shutdown")
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
