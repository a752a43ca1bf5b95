package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/mfbot-download/internal/server"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve Slack slash commands",
		Long: `Start the HTTP server that receives Slack slash commands and handles
download requests on a bounded worker pool.

Endpoints:
  POST /slack/commands     slash command intake (signature verified)
  GET  /healthz            liveness
  GET  /downloads          download ledger as JSON
  GET  /downloads/{id}     one ledger entry
  GET  /downloads/events   live ledger updates (server-sent events)`,
		Example: `  # Listen on the configured address
  mfbot-download serve

  # Custom address and pool size
  mfbot-download serve --addr :8080 --workers 8`,
		RunE: runServe,
	}

	// Read by the config loader as server.addr and server.workers.
	cmd.Flags().String("addr", "", "Listen address (default: :3000)")
	cmd.Flags().Int("workers", 0, "Concurrent download commands (default: 4)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	if cfg.Slack.Token != "" {
		if err := cfg.ValidateSlack(true); err != nil {
			return err
		}
	} else {
		r.Warning("No Slack token configured, replies are printed to the console")
	}
	if cfg.Slack.SigningSecret == "" {
		r.Warning("No signing secret configured, request signatures are not verified")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := cmdCtx.OpenStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	poster, err := cmdCtx.NewPoster(cmd, "")
	if err != nil {
		return err
	}
	d, err := cmdCtx.NewDownloader(ctx, poster, store)
	if err != nil {
		return err
	}

	srv, err := server.NewServer(server.Config{
		Downloads:      d,
		Store:          store,
		SigningSecret:  cfg.Slack.SigningSecret,
		Addr:           cfg.Server.Addr,
		Workers:        cfg.Server.Workers,
		CommandTimeout: cfg.Server.CommandTimeout,
		RateLimit:      cfg.Server.RateLimit,
		RateBurst:      cfg.Server.RateBurst,
		Logger:         cmdCtx.Logger,
	})
	if err != nil {
		return err
	}

	r.Success(fmt.Sprintf("Listening on %s", cfg.Server.Addr))
	r.Muted("Press Ctrl+C to stop")

	return serveUntilDone(ctx, srv)
}

// serveUntilDone runs the server and treats a cancelled context as a clean stop.
func serveUntilDone(ctx context.Context, srv *server.Server) error {
	if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
