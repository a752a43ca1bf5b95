package commands

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/leapstack-labs/mfbot-download/internal/cli/output"
	"github.com/leapstack-labs/mfbot-download/pkg/core"
	"github.com/spf13/cobra"
)

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Limit  int
	Status string
	Flow   string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history [id]",
		Short: "Show past download requests",
		Long: `List the download ledger, newest first, or show one entry in full.

Every request handled by the bot is recorded with its outcome: completed,
rejected (the request could not be satisfied) or failed.`,
		Example: `  mfbot-download history
  mfbot-download history --status failed --limit 5
  mfbot-download history 3f0c2a -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, args, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Maximum number of entries")
	cmd.Flags().StringVar(&opts.Status, "status", "", "Only entries with this status")
	cmd.Flags().StringVar(&opts.Flow, "flow", "", "Only entries for this flow")

	_ = cmd.RegisterFlagCompletionFunc("status", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{
			string(core.DownloadStatusPending),
			string(core.DownloadStatusResolved),
			string(core.DownloadStatusCompleted),
			string(core.DownloadStatusRejected),
			string(core.DownloadStatusFailed),
		}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runHistory(cmd *cobra.Command, args []string, opts *HistoryOptions) error {
	if opts.Limit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}

	cmdCtx := NewCommandContext(cmd)
	store, err := cmdCtx.OpenStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	r := cmdCtx.Renderer
	ctx := cmd.Context()

	if len(args) == 1 {
		d, err := store.GetDownload(ctx, args[0])
		if err != nil {
			return err
		}
		return renderDownloadDetail(r, d)
	}

	downloads, err := store.ListDownloads(ctx, core.ListOptions{
		Limit:  opts.Limit,
		Status: core.DownloadStatus(opts.Status),
		Flow:   opts.Flow,
	})
	if err != nil {
		return err
	}
	return renderHistory(r, downloads)
}

func renderHistory(r *output.Renderer, downloads []*core.Download) error {
	if ok, err := r.Structured(downloads); ok {
		return err
	}

	rows := make([][]string, 0, len(downloads))
	for _, d := range downloads {
		rows = append(rows, []string{
			d.ID,
			d.CreatedAt.Local().Format(time.DateTime),
			d.Flow,
			d.RunID,
			d.Artifact,
			statusText(r, d.Status),
			formatBytes(d.Bytes),
		})
	}
	r.Table([]string{"ID", "Created", "Flow", "Run", "Artifact", "Status", "Size"}, rows)
	return nil
}

func renderDownloadDetail(r *output.Renderer, d *core.Download) error {
	if ok, err := r.Structured(d); ok {
		return err
	}

	r.Header(1, "Download "+d.ID)
	r.KeyValue("message", d.Message)
	r.KeyValue("status", statusText(r, d.Status))
	if d.Thread != "" {
		r.KeyValue("thread", d.Thread)
	}
	if d.Flow != "" {
		r.KeyValue("flow", d.Flow)
	}
	if d.RunID != "" {
		r.KeyValue("run", d.RunID)
	}
	if d.Artifact != "" {
		r.KeyValue("artifact", d.Artifact)
	}
	if d.Location != "" {
		r.KeyValue("location", d.Location)
	}
	if d.Bytes > 0 {
		r.KeyValue("size", formatBytes(d.Bytes))
	}
	if d.Error != "" {
		r.KeyValue("error", d.Error)
	}
	r.KeyValue("created", d.CreatedAt.Local().Format(time.DateTime))
	if d.CompletedAt != nil {
		r.KeyValue("completed", d.CompletedAt.Local().Format(time.DateTime))
	}
	return nil
}

func statusText(r *output.Renderer, s core.DownloadStatus) string {
	if r.EffectiveMode() != output.ModeText {
		return string(s)
	}
	styles := r.Styles()
	switch s {
	case core.DownloadStatusCompleted:
		return styles.StatusSuccess.Render(string(s))
	case core.DownloadStatusFailed:
		return styles.StatusFailed.Render(string(s))
	case core.DownloadStatusRejected:
		return styles.Warning.Render(string(s))
	default:
		return styles.StatusPending.Render(string(s))
	}
}

func formatBytes(n int64) string {
	if n <= 0 {
		return "-"
	}
	return humanize.IBytes(uint64(n))
}
