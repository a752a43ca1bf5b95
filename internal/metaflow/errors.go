package metaflow

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the metadata service answers 404.
	ErrNotFound = errors.New("not found")

	// ErrNoRuns is returned when no run satisfies the request.
	ErrNoRuns = errors.New("no matching runs")

	// ErrUndecodable is returned when an artifact value cannot be unpickled.
	ErrUndecodable = errors.New("undecodable artifact value")
)

// APIError is a non-2xx response from the metadata service.
type APIError struct {
	StatusCode int
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("metadata service %s: HTTP %d", e.Path, e.StatusCode)
	}
	return fmt.Sprintf("metadata service %s: HTTP %d: %s", e.Path, e.StatusCode, e.Body)
}

// ArtifactNotFoundError is returned when the end step has no artifact with
// the requested name.
type ArtifactNotFoundError struct {
	Pathspec string
	Name     string
}

func (e *ArtifactNotFoundError) Error() string {
	return fmt.Sprintf("Cannot resolve artifact named %s from %s", e.Name, e.Pathspec)
}

// InvalidPathError is returned when the artifact value is not an S3 URL.
type InvalidPathError struct {
	Pathspec string
	Name     string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("Path in the artifact named %s from %s is not a S3 path. S3 path required", e.Name, e.Pathspec)
}
