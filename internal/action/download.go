package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/mfbot-download/internal/chat"
	"github.com/leapstack-labs/mfbot-download/internal/intent"
	"github.com/leapstack-labs/mfbot-download/internal/metaflow"
	"github.com/leapstack-labs/mfbot-download/internal/objstore"
	"github.com/leapstack-labs/mfbot-download/pkg/core"
)

// RequestParser turns a message into a download request.
type RequestParser interface {
	Parse(message string) (core.ArtifactRequest, error)
}

// ArtifactResolver locates runs and the S3 URL stored in an artifact.
type ArtifactResolver interface {
	ResolveRun(ctx context.Context, req core.ArtifactRequest) (*metaflow.Run, error)
	ResolveArtifact(ctx context.Context, run *metaflow.Run, name string) (string, error)
}

// Fetcher reads objects from storage.
type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
	MaxSize() int64
}

// Config holds the collaborators of a Downloader.
type Config struct {
	Parser   RequestParser
	Resolver ArtifactResolver
	Fetcher  Fetcher
	Poster   chat.Poster
	// Store records every request. Optional.
	Store  core.Store
	Logger *slog.Logger
}

// Downloader runs download commands.
type Downloader struct {
	parser   RequestParser
	resolver ArtifactResolver
	fetcher  Fetcher
	poster   chat.Poster
	store    core.Store
	logger   *slog.Logger
}

// NewDownloader validates the configuration and creates a Downloader.
func NewDownloader(cfg Config) (*Downloader, error) {
	switch {
	case cfg.Parser == nil:
		return nil, errors.New("downloader requires a parser")
	case cfg.Resolver == nil:
		return nil, errors.New("downloader requires a resolver")
	case cfg.Fetcher == nil:
		return nil, errors.New("downloader requires a fetcher")
	case cfg.Poster == nil:
		return nil, errors.New("downloader requires a chat poster")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Downloader{
		parser:   cfg.Parser,
		resolver: cfg.Resolver,
		fetcher:  cfg.Fetcher,
		poster:   cfg.Poster,
		store:    cfg.Store,
		logger:   logger,
	}, nil
}

// Command is one invocation of the download action.
type Command struct {
	Message string
	Thread  chat.Thread
	// CreateThread starts a new thread in Thread.Channel for the replies.
	CreateThread bool
}

// Download handles a download command end to end. The returned entry
// reflects the final ledger state. An error is returned only for failures
// the user could not act on; those are also answered with a generic apology.
func (d *Downloader) Download(ctx context.Context, cmd Command) (*core.Download, error) {
	thread, err := d.thread(ctx, cmd, "Looking into `"+cmd.Message+"`")
	if err != nil {
		return nil, err
	}

	entry := &core.Download{Message: cmd.Message, Thread: thread.String(), Status: core.DownloadStatusPending}
	if d.store != nil {
		if err := d.store.CreateDownload(ctx, entry); err != nil {
			d.logger.Warn("failed to record download", "error", err)
		}
	}

	log := d.logger.With("download_id", entry.ID, "thread", entry.Thread)
	log.Info("download requested", "message", cmd.Message)

	err = d.run(ctx, log, thread, cmd.Message, entry)
	if err != nil {
		log.Error("download failed", "error", err)
		entry.Error = err.Error()
		d.save(ctx, log, entry, core.DownloadStatusFailed)
		if replyErr := d.poster.Reply(ctx, thread, ReplyGeneric); replyErr != nil {
			log.Warn("failed to post reply", "error", replyErr)
		}
		return entry, err
	}
	return entry, nil
}

// run executes the pipeline. Outcomes with a dedicated reply are handled here
// and yield nil.
func (d *Downloader) run(ctx context.Context, log *slog.Logger, thread chat.Thread, message string, entry *core.Download) error {
	req, err := d.parser.Parse(message)
	switch {
	case errors.Is(err, intent.ErrNotUnderstood):
		return d.reject(ctx, log, thread, entry, err, notUnderstood())
	case errors.Is(err, intent.ErrIncomplete):
		return d.reject(ctx, log, thread, entry, err, ReplyNoRuns)
	case err != nil:
		return err
	}
	entry.Flow, entry.RunID, entry.Artifact = req.Flow, req.RunID, req.Artifact

	run, err := d.resolver.ResolveRun(ctx, req)
	if errors.Is(err, metaflow.ErrNoRuns) {
		return d.reject(ctx, log, thread, entry, err, ReplyNoRuns)
	}
	if err != nil {
		return fmt.Errorf("failed to resolve run for %s: %w", req.Pathspec(), err)
	}
	entry.RunID = run.ID()

	location, err := d.resolver.ResolveArtifact(ctx, run, req.Artifact)
	var (
		notFound *metaflow.ArtifactNotFoundError
		invalid  *metaflow.InvalidPathError
	)
	if errors.As(err, &notFound) || errors.As(err, &invalid) {
		return d.reject(ctx, log, thread, entry, err, err.Error())
	}
	if err != nil {
		return fmt.Errorf("failed to resolve artifact %s of %s: %w", req.Artifact, run.Pathspec(), err)
	}

	entry.Location = location
	d.save(ctx, log, entry, core.DownloadStatusResolved)
	log.Info("artifact resolved", "run", run.Pathspec(), "location", location)
	if err := d.poster.Reply(ctx, thread, ReplyFound); err != nil {
		return err
	}

	data, err := d.fetcher.Fetch(ctx, location)
	switch {
	case errors.Is(err, objstore.ErrAccessDenied), errors.Is(err, objstore.ErrNotFound):
		return d.fail(ctx, log, thread, entry, err, accessDenied(location))
	case errors.Is(err, objstore.ErrTooLarge):
		return d.fail(ctx, log, thread, entry, err, tooLarge(location, d.fetcher.MaxSize()))
	case err != nil:
		return fmt.Errorf("failed to fetch %s: %w", location, err)
	}
	entry.Bytes = int64(len(data))

	filename := objstore.Filename(location)
	if err := d.poster.Reply(ctx, thread, uploading(filename)); err != nil {
		return err
	}
	if err := d.poster.Upload(ctx, thread, chat.File{Name: filename, Title: req.Artifact, Data: data}); err != nil {
		return fmt.Errorf("failed to upload %s: %w", filename, err)
	}

	d.save(ctx, log, entry, core.DownloadStatusCompleted)
	log.Info("download completed", "bytes", entry.Bytes)
	return nil
}

// HowTo replies with usage help.
func (d *Downloader) HowTo(ctx context.Context, thread chat.Thread, createThread bool) error {
	t, err := d.thread(ctx, Command{Thread: thread, CreateThread: createThread}, "How to download artifacts")
	if err != nil {
		return err
	}
	if err := d.poster.Reply(ctx, t, intent.HowTo()); err != nil {
		d.logger.Error("failed to post how-to", "error", err)
		if replyErr := d.poster.Reply(ctx, t, ReplyHowToFailure); replyErr != nil {
			d.logger.Warn("failed to post reply", "error", replyErr)
		}
		return err
	}
	return nil
}

func (d *Downloader) thread(ctx context.Context, cmd Command, opening string) (chat.Thread, error) {
	if !cmd.CreateThread {
		return cmd.Thread, nil
	}
	t, err := d.poster.StartThread(ctx, cmd.Thread.Channel, opening)
	if err != nil {
		return chat.Thread{}, fmt.Errorf("failed to start thread: %w", err)
	}
	return t, nil
}

func (d *Downloader) reject(ctx context.Context, log *slog.Logger, thread chat.Thread, entry *core.Download, cause error, reply string) error {
	log.Info("download rejected", "reason", cause)
	entry.Error = cause.Error()
	d.save(ctx, log, entry, core.DownloadStatusRejected)
	return d.poster.Reply(ctx, thread, reply)
}

func (d *Downloader) fail(ctx context.Context, log *slog.Logger, thread chat.Thread, entry *core.Download, cause error, reply string) error {
	log.Warn("download failed", "reason", cause)
	entry.Error = cause.Error()
	d.save(ctx, log, entry, core.DownloadStatusFailed)
	return d.poster.Reply(ctx, thread, reply)
}

func (d *Downloader) save(ctx context.Context, log *slog.Logger, entry *core.Download, status core.DownloadStatus) {
	entry.Status = status
	if d.store == nil || entry.ID == "" {
		return
	}
	if err := d.store.UpdateDownload(ctx, entry); err != nil {
		log.Warn("failed to update download record", "status", status, "error", err)
	}
}
