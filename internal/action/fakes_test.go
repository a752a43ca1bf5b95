package action

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"testing"

	"github.com/leapstack-labs/mfbot-download/internal/chat"
	"github.com/leapstack-labs/mfbot-download/internal/intent"
	"github.com/leapstack-labs/mfbot-download/internal/metaflow"
	"github.com/leapstack-labs/mfbot-download/internal/objstore"
	"github.com/leapstack-labs/mfbot-download/internal/state"
	"github.com/leapstack-labs/mfbot-download/internal/testutil"
	"github.com/leapstack-labs/mfbot-download/pkg/core"
	"github.com/stretchr/testify/require"
)

// recordingPoster keeps every reply and upload in order.
type recordingPoster struct {
	mu       sync.Mutex
	replies  []string
	threads  []chat.Thread
	uploads  []chat.File
	started  []string
	replyErr error
}

func (p *recordingPoster) Reply(_ context.Context, t chat.Thread, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.replyErr != nil {
		return p.replyErr
	}
	p.replies = append(p.replies, text)
	p.threads = append(p.threads, t)
	return nil
}

func (p *recordingPoster) StartThread(_ context.Context, channel, text string) (chat.Thread, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = append(p.started, text)
	return chat.Thread{Channel: channel, TS: fmt.Sprintf("100.%d", len(p.started))}, nil
}

func (p *recordingPoster) Upload(_ context.Context, _ chat.Thread, f chat.File) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.uploads = append(p.uploads, f)
	return nil
}

// fakeResolver answers from fixed values.
type fakeResolver struct {
	run        *metaflow.Run
	runErr     error
	location   string
	artErr     error
	gotRequest core.ArtifactRequest
}

func (f *fakeResolver) ResolveRun(_ context.Context, req core.ArtifactRequest) (*metaflow.Run, error) {
	f.gotRequest = req
	if f.runErr != nil {
		return nil, f.runErr
	}
	return f.run, nil
}

func (f *fakeResolver) ResolveArtifact(_ context.Context, _ *metaflow.Run, _ string) (string, error) {
	return f.location, f.artErr
}

// memStore is an objstore.Store over a map.
type memStore map[string][]byte

func (m memStore) Get(_ context.Context, u *url.URL) (*objstore.Object, error) {
	switch u.Host {
	case "forbidden":
		return nil, fmt.Errorf("s3://%s%s: %w", u.Host, u.Path, objstore.ErrAccessDenied)
	case "broken":
		return nil, errors.New("connection reset by peer")
	}
	b, ok := m[u.Host+u.Path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", u.Path, objstore.ErrNotFound)
	}
	return &objstore.Object{Body: io.NopCloser(bytes.NewReader(b)), Size: int64(len(b))}, nil
}

func newRouter(maxSize int64, objects memStore) *objstore.Router {
	r := objstore.NewRouter(objstore.RouterConfig{MaxSize: maxSize})
	r.Register("s3", objects)
	return r
}

func newParser(t *testing.T) *intent.Parser {
	t.Helper()
	p, err := intent.NewParser(intent.Config{Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)
	return p
}

func newLedger(t *testing.T) *state.SQLiteStore {
	t.Helper()
	s, err := state.OpenSQLiteStore(":memory:", testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func helloRun(number int64) *metaflow.Run {
	return &metaflow.Run{FlowID: "HelloFlow", RunNumber: number}
}
