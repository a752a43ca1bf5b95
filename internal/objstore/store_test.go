package objstore

import (
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/mfbot-download/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0750))
	require.NoError(t, os.WriteFile(p, []byte(content), 0600))
	return p
}

func TestRouter_FetchFile(t *testing.T) {
	dir := t.TempDir()
	abs := writeFile(t, dir, "data/model.pkl", "0123456789")

	r := NewRouter(RouterConfig{Logger: testutil.NewTestLogger(t)})
	r.Register("file", FileStore{Root: dir})
	ctx := context.Background()

	tests := []struct {
		name     string
		location string
	}{
		{name: "bare absolute path", location: abs},
		{name: "file url", location: "file://" + abs},
		{name: "relative to root", location: "data/model.pkl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := r.Fetch(ctx, tt.location)
			require.NoError(t, err)
			assert.Equal(t, "0123456789", string(data))
		})
	}
}

func TestRouter_Errors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "big.bin", strings.Repeat("x", 64))
	writeFile(t, dir, "small.bin", "tiny")

	r := NewRouter(RouterConfig{MaxSize: 16})
	r.Register("file", FileStore{Root: dir})
	ctx := context.Background()

	_, err := r.Fetch(ctx, "big.bin")
	assert.True(t, errors.Is(err, ErrTooLarge), "got %v", err)

	data, err := r.Fetch(ctx, "small.bin")
	require.NoError(t, err)
	assert.Equal(t, "tiny", string(data))

	_, err = r.Fetch(ctx, "missing.bin")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	_, err = r.Fetch(ctx, ".")
	assert.True(t, errors.Is(err, ErrNotFound), "directories are not objects")

	_, err = r.Fetch(ctx, "gs://bucket/key")
	assert.True(t, errors.Is(err, ErrUnsupportedScheme))

	_, err = r.Fetch(ctx, "")
	assert.Error(t, err)
}

// unsizedStore reports an unknown size so Fetch must count bytes itself.
type unsizedStore struct{ body string }

func (s unsizedStore) Get(context.Context, *url.URL) (*Object, error) {
	return &Object{Body: io.NopCloser(strings.NewReader(s.body)), Size: -1}, nil
}

func TestRouter_FetchUnknownSize(t *testing.T) {
	r := NewRouter(RouterConfig{MaxSize: 4})
	r.Register("mem", unsizedStore{body: "12345"})

	_, err := r.Fetch(context.Background(), "mem://x/y")
	assert.True(t, errors.Is(err, ErrTooLarge))

	r = NewRouter(RouterConfig{MaxSize: 5})
	r.Register("MEM", unsizedStore{body: "12345"})
	data, err := r.Fetch(context.Background(), "MEM://x/y")
	require.NoError(t, err)
	assert.Equal(t, "12345", string(data))
}

func TestRouter_Open(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "blob", "streamed")

	r := NewRouter(RouterConfig{MaxSize: 1})
	r.Register("file", FileStore{Root: dir})

	rc, err := r.Open(context.Background(), "blob")
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "streamed", string(data), "Open does not apply the size limit")
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "model.pkl", Filename("s3://bucket/path/to/model.pkl"))
	assert.Equal(t, "model.pkl", Filename("/tmp/model.pkl"))
	assert.Equal(t, "bucket", Filename("s3://bucket"))
	assert.Equal(t, "", Filename(""))
}
