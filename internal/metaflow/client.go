package metaflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	// DefaultTimeout is the default timeout for metadata requests.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the number of retries for 5xx responses and
	// transport errors.
	DefaultMaxRetries = 3

	retryBaseDelay = 200 * time.Millisecond

	// maxResponseSize bounds metadata response bodies.
	maxResponseSize = 32 * 1024 * 1024

	authHeader = "x-api-key"
)

// ClientConfig holds configuration for the metadata client.
type ClientConfig struct {
	URL        string
	AuthKey    string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the Metaflow metadata service.
type Client struct {
	base       *url.URL
	authKey    string
	http       *http.Client
	maxRetries uint64
	logger     *slog.Logger
}

// NewClient creates a metadata client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("metadata service URL is required")
	}
	base, err := url.Parse(strings.TrimSuffix(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid metadata service URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid metadata service URL %q: scheme must be http or https", cfg.URL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	retries := DefaultMaxRetries
	if cfg.MaxRetries > 0 {
		retries = cfg.MaxRetries
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		base:       base,
		authKey:    cfg.AuthKey,
		http:       hc,
		maxRetries: uint64(retries),
		logger:     logger,
	}, nil
}

// Ping checks that the metadata service is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.get(ctx, nil, "ping")
}

// URL returns the service base URL.
func (c *Client) URL() string {
	return c.base.String()
}

// Runs lists the runs of a flow.
func (c *Client) Runs(ctx context.Context, flow string) ([]Run, error) {
	var runs []Run
	err := c.get(ctx, &runs, "flows", flow, "runs")
	return runs, err
}

// Run fetches one run by id.
func (c *Client) Run(ctx context.Context, flow, runID string) (*Run, error) {
	var run Run
	if err := c.get(ctx, &run, "flows", flow, "runs", runID); err != nil {
		return nil, err
	}
	return &run, nil
}

// Tasks lists the tasks of a step.
func (c *Client) Tasks(ctx context.Context, flow, runID, step string) ([]Task, error) {
	var tasks []Task
	err := c.get(ctx, &tasks, "flows", flow, "runs", runID, "steps", step, "tasks")
	return tasks, err
}

// Artifacts lists the artifacts of a task, all attempts included.
func (c *Client) Artifacts(ctx context.Context, flow, runID, step, taskID string) ([]Artifact, error) {
	var arts []Artifact
	err := c.get(ctx, &arts, "flows", flow, "runs", runID, "steps", step, "tasks", taskID, "artifacts")
	return arts, err
}

// get issues a GET for the escaped path segments and decodes the JSON body into v.
func (c *Client) get(ctx context.Context, v any, segments ...string) error {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	path := "/" + strings.Join(escaped, "/")
	u := c.base.JoinPath(escaped...)

	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(retryBaseDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.do(ctx, u.String(), path, v)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode >= 500 {
			c.logger.Debug("retrying metadata request", "path", path, "status", apiErr.StatusCode)
			return retry.RetryableError(err)
		}
		return err
	})
}

// transient marks a connection failure as retryable unless ctx is done.
func transient(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return err
	}
	return retry.RetryableError(err)
}

func (c *Client) do(ctx context.Context, rawURL, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.authKey != "" {
		req.Header.Set(authHeader, c.authKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return transient(ctx, fmt.Errorf("metadata service %s: %w", path, err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return transient(ctx, fmt.Errorf("failed to read metadata response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &APIError{StatusCode: resp.StatusCode, Path: path, Body: strings.TrimSpace(string(body))}
	}

	if v == nil {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode metadata response %s: %w", path, err)
	}
	return nil
}
