// Package objstore fetches objects addressed by URL from S3 or the local
// filesystem.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strings"
)

var (
	// ErrAccessDenied is returned when the store refuses the request.
	ErrAccessDenied = errors.New("access denied")

	// ErrNotFound is returned when the object does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrTooLarge is returned when an object exceeds the size limit.
	ErrTooLarge = errors.New("object too large")

	// ErrUnsupportedScheme is returned for URLs no store is registered for.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
)

// Object is an open object. Size is -1 when the store does not know it.
type Object struct {
	Body io.ReadCloser
	Size int64
}

// Store opens objects of one URL scheme.
type Store interface {
	Get(ctx context.Context, u *url.URL) (*Object, error)
}

// Router dispatches object URLs to stores by scheme. Locations without a
// scheme are treated as file paths.
type Router struct {
	stores  map[string]Store
	maxSize int64
	logger  *slog.Logger
}

// RouterConfig holds configuration for a Router.
type RouterConfig struct {
	// MaxSize caps Fetch in bytes. Zero means no limit.
	MaxSize int64
	Logger  *slog.Logger
}

// NewRouter creates a router with no stores registered.
func NewRouter(cfg RouterConfig) *Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Router{
		stores:  make(map[string]Store),
		maxSize: cfg.MaxSize,
		logger:  logger,
	}
}

// Register binds a store to a URL scheme such as "s3" or "file".
func (r *Router) Register(scheme string, s Store) {
	r.stores[strings.ToLower(scheme)] = s
}

// MaxSize returns the Fetch limit in bytes.
func (r *Router) MaxSize() int64 {
	return r.maxSize
}

func (r *Router) resolve(location string) (Store, *url.URL, error) {
	u, err := parseLocation(location)
	if err != nil {
		return nil, nil, err
	}
	s, ok := r.stores[u.Scheme]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	return s, u, nil
}

// Open streams an object without a size limit.
func (r *Router) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	s, u, err := r.resolve(location)
	if err != nil {
		return nil, err
	}
	obj, err := s.Get(ctx, u)
	if err != nil {
		return nil, err
	}
	return obj.Body, nil
}

// Fetch reads a whole object, failing with ErrTooLarge above the size limit.
func (r *Router) Fetch(ctx context.Context, location string) ([]byte, error) {
	s, u, err := r.resolve(location)
	if err != nil {
		return nil, err
	}
	obj, err := s.Get(ctx, u)
	if err != nil {
		return nil, err
	}
	defer func() { _ = obj.Body.Close() }()

	if r.maxSize > 0 && obj.Size > r.maxSize {
		return nil, fmt.Errorf("%s is %d bytes, limit %d: %w", location, obj.Size, r.maxSize, ErrTooLarge)
	}

	body := io.Reader(obj.Body)
	if r.maxSize > 0 {
		body = io.LimitReader(obj.Body, r.maxSize+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", location, err)
	}
	if r.maxSize > 0 && int64(len(data)) > r.maxSize {
		return nil, fmt.Errorf("%s exceeds limit %d: %w", location, r.maxSize, ErrTooLarge)
	}

	r.logger.Debug("fetched object", "location", location, "bytes", len(data))
	return data, nil
}

// parseLocation accepts URLs and bare filesystem paths.
func parseLocation(location string) (*url.URL, error) {
	if location == "" {
		return nil, errors.New("empty object location")
	}
	if !strings.Contains(location, "://") {
		return &url.URL{Scheme: "file", Path: location}, nil
	}
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("invalid object location %q: %w", location, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	return u, nil
}

// Filename returns the last path element of a location.
func Filename(location string) string {
	u, err := parseLocation(location)
	if err != nil {
		return ""
	}
	p := u.Path
	if p == "" || p == "/" {
		return u.Host
	}
	return path.Base(p)
}
