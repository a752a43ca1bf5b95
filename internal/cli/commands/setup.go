package commands

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/leapstack-labs/mfbot-download/internal/action"
	"github.com/leapstack-labs/mfbot-download/internal/chat"
	"github.com/leapstack-labs/mfbot-download/internal/cli/config"
	"github.com/leapstack-labs/mfbot-download/internal/cli/output"
	"github.com/leapstack-labs/mfbot-download/internal/intent"
	"github.com/leapstack-labs/mfbot-download/internal/metaflow"
	"github.com/leapstack-labs/mfbot-download/internal/objstore"
	"github.com/leapstack-labs/mfbot-download/internal/state"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the loaded configuration.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// getConfig returns the current configuration, or defaults when none was
// loaded (commands executed on their own in tests).
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return config.Default()
}

// OpenStore opens and migrates the download ledger.
func (c *CommandContext) OpenStore() (*state.SQLiteStore, error) {
	store, err := state.OpenSQLiteStore(c.Cfg.StatePath, c.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	return store, nil
}

// NewParser compiles the download grammar.
func (c *CommandContext) NewParser() (*intent.Parser, error) {
	return intent.NewParser(intent.Config{Logger: c.Logger})
}

// NewClient creates the metadata service client.
func (c *CommandContext) NewClient() (*metaflow.Client, error) {
	return metaflow.NewClient(metaflow.ClientConfig{
		URL:        c.Cfg.Metadata.URL,
		AuthKey:    c.Cfg.Metadata.AuthKey,
		Timeout:    c.Cfg.Metadata.Timeout,
		MaxRetries: c.Cfg.Metadata.MaxRetries,
		Logger:     c.Logger,
	})
}

// NewStores creates the object store routers. blobs reads Metaflow datastore
// blobs from file and s3 locations; downloads only reads s3 so artifact
// values cannot point the bot at its own filesystem.
func (c *CommandContext) NewStores(ctx context.Context) (blobs, downloads *objstore.Router, err error) {
	s3, err := objstore.NewS3Store(ctx, objstore.S3Config{
		Region:    c.Cfg.Storage.Region,
		Endpoint:  c.Cfg.Storage.Endpoint,
		PathStyle: c.Cfg.Storage.PathStyle,
	})
	if err != nil {
		return nil, nil, err
	}

	blobs = objstore.NewRouter(objstore.RouterConfig{Logger: c.Logger})
	blobs.Register("file", objstore.FileStore{Root: c.Cfg.Storage.Root})
	blobs.Register("s3", s3)

	downloads = objstore.NewRouter(objstore.RouterConfig{
		MaxSize: c.Cfg.Storage.MaxSizeBytes(),
		Logger:  c.Logger,
	})
	downloads.Register("s3", s3)
	return blobs, downloads, nil
}

// NewPoster returns a Slack poster when a token is configured, otherwise a
// console poster that prints to cmd's output and saves uploads to dir.
func (c *CommandContext) NewPoster(cmd *cobra.Command, dir string) (chat.Poster, error) {
	if c.Cfg.Slack.Token == "" {
		if dir == "" {
			dir = filepath.Join(filepath.Dir(c.Cfg.StatePath), "downloads")
		}
		return chat.NewConsole(cmd.OutOrStdout(), dir), nil
	}
	return chat.NewSlack(chat.SlackConfig{
		Token:  c.Cfg.Slack.Token,
		APIURL: c.Cfg.Slack.APIURL,
		Logger: c.Logger,
	})
}

// NewDownloader wires the full download pipeline. store may be nil.
func (c *CommandContext) NewDownloader(ctx context.Context, poster chat.Poster, store *state.SQLiteStore) (*action.Downloader, error) {
	parser, err := c.NewParser()
	if err != nil {
		return nil, err
	}
	client, err := c.NewClient()
	if err != nil {
		return nil, err
	}
	blobs, downloads, err := c.NewStores(ctx)
	if err != nil {
		return nil, err
	}

	cfg := action.Config{
		Parser:   parser,
		Resolver: metaflow.NewResolver(client, blobs, c.Logger),
		Fetcher:  downloads,
		Poster:   poster,
		Logger:   c.Logger,
	}
	if store != nil {
		cfg.Store = store
	}
	return action.NewDownloader(cfg)
}
