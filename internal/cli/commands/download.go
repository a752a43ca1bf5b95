package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/mfbot-download/internal/action"
	"github.com/leapstack-labs/mfbot-download/internal/chat"
	"github.com/leapstack-labs/mfbot-download/internal/cli/output"
	"github.com/leapstack-labs/mfbot-download/pkg/core"
	"github.com/spf13/cobra"
)

// consoleChannel is the thread used when no chat is configured.
const consoleChannel = "console"

// DownloadOptions holds options for the download command.
type DownloadOptions struct {
	Message      string
	Thread       string
	CreateThread bool
	UploadDir    string
}

// NewDownloadCommand creates the download command.
func NewDownloadCommand() *cobra.Command {
	opts := &DownloadOptions{}

	cmd := &cobra.Command{
		Use:   "download [message]",
		Short: "Download an artifact as if asked in chat",
		Long: `Handle a download request exactly as the bot would in chat: parse the
message, resolve the run and artifact against the metadata service, fetch the
S3 object and upload it to the thread.

Without a Slack token, replies are printed and the file is saved to the
upload directory.`,
		Example: `  # Latest successful run
  mfbot-download download "download latest model from HelloFlow"

  # A specific run, posting into a Slack thread
  mfbot-download download -m "download model from HelloFlow/12" --thread C0123:1700000000.000100`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Message == "" {
				opts.Message = strings.Join(args, " ")
			}
			return runDownload(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Message, "message", "m", "", "Chat message to handle")
	cmd.Flags().StringVar(&opts.Thread, "thread", "", "Thread to reply in, CHANNEL or CHANNEL:TS")
	cmd.Flags().BoolVar(&opts.CreateThread, "create-thread", false, "Open a new thread in the channel first")
	cmd.Flags().StringVar(&opts.UploadDir, "upload-dir", "", "Where the console saves uploads (default: next to the state database)")

	return cmd
}

func runDownload(cmd *cobra.Command, opts *DownloadOptions) error {
	if strings.TrimSpace(opts.Message) == "" {
		return errors.New("a message is required\nHint: mfbot-download download \"download latest model from HelloFlow\"")
	}

	ctx := cmd.Context()
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	thread, err := resolveThread(cmdCtx, opts.Thread)
	if err != nil {
		return err
	}

	store, err := cmdCtx.OpenStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	poster, err := cmdCtx.NewPoster(cmd, opts.UploadDir)
	if err != nil {
		return err
	}
	d, err := cmdCtx.NewDownloader(ctx, poster, store)
	if err != nil {
		return err
	}

	spinner := r.NewSpinner("Handling " + opts.Message)
	if _, ok := poster.(*chat.Slack); ok {
		spinner.Start()
	}
	entry, err := d.Download(ctx, action.Command{
		Message:      opts.Message,
		Thread:       thread,
		CreateThread: opts.CreateThread,
	})
	spinner.Stop()

	if entry != nil {
		if renderErr := renderDownloadResult(r, entry); renderErr != nil && err == nil {
			err = renderErr
		}
	}
	return err
}

// resolveThread parses --thread, defaulting to the console channel when no
// chat is configured.
func resolveThread(cmdCtx *CommandContext, raw string) (chat.Thread, error) {
	if raw == "" {
		if cmdCtx.Cfg.Slack.Token != "" {
			return chat.Thread{}, errors.New("--thread is required when posting to Slack")
		}
		return chat.Thread{Channel: consoleChannel}, nil
	}
	return chat.ParseThread(raw)
}

func renderDownloadResult(r *output.Renderer, d *core.Download) error {
	if ok, err := r.Structured(d); ok {
		return err
	}

	switch d.Status {
	case core.DownloadStatusCompleted:
		r.Success(fmt.Sprintf("Uploaded %s from %s/%s (%d bytes)", d.Artifact, d.Flow, d.RunID, d.Bytes))
	case core.DownloadStatusRejected:
		r.Warning("Request rejected: " + d.Error)
	case core.DownloadStatusFailed:
		r.Error("Download failed: " + d.Error)
	default:
		r.Muted(fmt.Sprintf("Download %s is %s", d.ID, d.Status))
	}
	return nil
}

// NewHowToCommand creates the how-to-download command.
func NewHowToCommand() *cobra.Command {
	var threadFlag string
	var createThread bool

	cmd := &cobra.Command{
		Use:     "how-to-download",
		Aliases: []string{"help-download"},
		Short:   "Post the download usage text",
		Long:    `Post the usage text of the download command into a thread, as the bot does when asked for help.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)
			thread, err := resolveThread(cmdCtx, threadFlag)
			if err != nil {
				return err
			}
			poster, err := cmdCtx.NewPoster(cmd, "")
			if err != nil {
				return err
			}
			d, err := cmdCtx.NewDownloader(cmd.Context(), poster, nil)
			if err != nil {
				return err
			}
			return d.HowTo(cmd.Context(), thread, createThread)
		},
	}

	cmd.Flags().StringVar(&threadFlag, "thread", "", "Thread to reply in, CHANNEL or CHANNEL:TS")
	cmd.Flags().BoolVar(&createThread, "create-thread", false, "Open a new thread in the channel first")

	return cmd
}
