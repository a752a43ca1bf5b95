// Package state keeps the download ledger in SQLite.
// Every download request is recorded with its outcome so operators can
// review what the bot fetched, for whom, and why requests failed.
package state

import (
	"github.com/leapstack-labs/mfbot-download/pkg/core"
)

// Type aliases so callers can stay within this package.
type (
	// Store is an alias for core.Store.
	Store = core.Store

	// Download is an alias for core.Download.
	Download = core.Download

	// DownloadStatus is an alias for core.DownloadStatus.
	DownloadStatus = core.DownloadStatus

	// ListOptions is an alias for core.ListOptions.
	ListOptions = core.ListOptions
)

// ErrNotFound is core.ErrDownloadNotFound.
var ErrNotFound = core.ErrDownloadNotFound

var _ core.Store = (*SQLiteStore)(nil)
