package metaflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"

	"github.com/leapstack-labs/mfbot-download/pkg/core"
)

// MetadataService is the subset of the metadata API the resolver uses.
type MetadataService interface {
	Runs(ctx context.Context, flow string) ([]Run, error)
	Run(ctx context.Context, flow, runID string) (*Run, error)
	Tasks(ctx context.Context, flow, runID, step string) ([]Task, error)
	Artifacts(ctx context.Context, flow, runID, step, taskID string) ([]Artifact, error)
}

// Resolver maps download requests to runs and artifact values.
type Resolver struct {
	meta   MetadataService
	blobs  BlobOpener
	logger *slog.Logger
}

// NewResolver creates a resolver. A nil logger discards output.
func NewResolver(meta MetadataService, blobs BlobOpener, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{meta: meta, blobs: blobs, logger: logger}
}

// ResolveRun returns the run a request refers to: the most recent successful
// run for latest requests, otherwise the run with the given id. It returns an
// error wrapping ErrNoRuns when there is none.
func (r *Resolver) ResolveRun(ctx context.Context, req core.ArtifactRequest) (*Run, error) {
	if !req.Latest {
		run, err := r.meta.Run(ctx, req.Flow, req.RunID)
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNoRuns, req.Pathspec())
		}
		if err != nil {
			return nil, err
		}
		return run, nil
	}
	return r.LatestSuccessfulRun(ctx, req.Flow)
}

// LatestSuccessfulRun scans runs newest first and returns the first whose
// end task recorded _success.
func (r *Resolver) LatestSuccessfulRun(ctx context.Context, flow string) (*Run, error) {
	runs, err := r.meta.Runs(ctx, flow)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: flow %s does not exist", ErrNoRuns, flow)
	}
	if err != nil {
		return nil, err
	}

	sort.SliceStable(runs, func(i, j int) bool { return runs[i].TSEpoch > runs[j].TSEpoch })

	for i := range runs {
		run := &runs[i]
		ok, err := r.Successful(ctx, run)
		if err != nil {
			return nil, err
		}
		if ok {
			r.logger.Debug("resolved latest successful run", "run", run.Pathspec())
			return run, nil
		}
	}
	return nil, fmt.Errorf("%w: no successful run of %s", ErrNoRuns, flow)
}

// Successful reports whether the run's end task recorded _success == True.
// Runs that never reached the end step are not successful.
func (r *Resolver) Successful(ctx context.Context, run *Run) (bool, error) {
	arts, err := r.endArtifacts(ctx, run)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	a, ok := arts[successArtifact]
	if !ok {
		return false, nil
	}
	v, err := loadValue(ctx, r.blobs, a)
	if err != nil {
		return false, err
	}
	success, _ := v.(bool)
	return success, nil
}

// ResolveArtifact returns the S3 URL stored in the named end-step artifact.
// Values that are not an s3://bucket/key URL yield *InvalidPathError.
func (r *Resolver) ResolveArtifact(ctx context.Context, run *Run, name string) (string, error) {
	arts, err := r.endArtifacts(ctx, run)
	if errors.Is(err, ErrNotFound) {
		return "", &ArtifactNotFoundError{Pathspec: run.Pathspec(), Name: name}
	}
	if err != nil {
		return "", err
	}

	a, ok := arts[name]
	if !ok {
		return "", &ArtifactNotFoundError{Pathspec: run.Pathspec(), Name: name}
	}

	v, err := loadValue(ctx, r.blobs, a)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok || !isS3URL(s) {
		return "", &InvalidPathError{Pathspec: run.Pathspec(), Name: name}
	}
	return s, nil
}

func isS3URL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.Scheme == "s3" && u.Host != "" && u.User == nil && u.Opaque == ""
}

// endArtifacts returns the latest-attempt artifacts of the run's end task.
func (r *Resolver) endArtifacts(ctx context.Context, run *Run) (map[string]Artifact, error) {
	tasks, err := r.meta.Tasks(ctx, run.FlowID, run.ID(), EndStep)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("%s/%s: %w", run.Pathspec(), EndStep, ErrNotFound)
	}

	arts, err := r.meta.Artifacts(ctx, run.FlowID, run.ID(), EndStep, tasks[0].ID())
	if err != nil {
		return nil, err
	}
	return latestAttempts(arts), nil
}
