package core

import (
	"context"
	"errors"
	"time"
)

// ErrDownloadNotFound is returned when a download record does not exist.
var ErrDownloadNotFound = errors.New("download not found")

// Store defines the interface for the download ledger.
type Store interface {
	CreateDownload(ctx context.Context, d *Download) error
	UpdateDownload(ctx context.Context, d *Download) error
	GetDownload(ctx context.Context, id string) (*Download, error)
	ListDownloads(ctx context.Context, opts ListOptions) ([]*Download, error)
	Close() error
}

// DownloadStatus represents the outcome of a download request.
type DownloadStatus string

// Download status constants.
const (
	DownloadStatusPending   DownloadStatus = "pending"
	DownloadStatusResolved  DownloadStatus = "resolved"
	DownloadStatusCompleted DownloadStatus = "completed"
	DownloadStatusRejected  DownloadStatus = "rejected"
	DownloadStatusFailed    DownloadStatus = "failed"
)

// Terminal reports whether no further transitions are expected.
func (s DownloadStatus) Terminal() bool {
	switch s {
	case DownloadStatusCompleted, DownloadStatusRejected, DownloadStatusFailed:
		return true
	default:
		return false
	}
}

// Download is one ledger entry: a chat message asking for an artifact and
// what became of it.
type Download struct {
	ID          string         `json:"id" yaml:"id"`
	Message     string         `json:"message" yaml:"message"`
	Thread      string         `json:"thread,omitempty" yaml:"thread,omitempty"`
	Flow        string         `json:"flow,omitempty" yaml:"flow,omitempty"`
	RunID       string         `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Artifact    string         `json:"artifact,omitempty" yaml:"artifact,omitempty"`
	Location    string         `json:"location,omitempty" yaml:"location,omitempty"`
	Status      DownloadStatus `json:"status" yaml:"status"`
	Bytes       int64          `json:"bytes" yaml:"bytes"`
	Error       string         `json:"error,omitempty" yaml:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at" yaml:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
}

// ListOptions filters ListDownloads. Zero values mean no filter.
type ListOptions struct {
	Limit  int
	Status DownloadStatus
	Flow   string
}
