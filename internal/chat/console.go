package chat

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Console prints replies to a writer and saves uploads to a directory.
// It stands in for a chat when the bot is driven from the command line.
type Console struct {
	mu  sync.Mutex
	out io.Writer
	dir string
	now func() time.Time
}

// NewConsole creates a console poster. Uploads land in dir, which is
// created on first use.
func NewConsole(out io.Writer, dir string) *Console {
	return &Console{out: out, dir: dir, now: time.Now}
}

// Reply implements Poster.
func (c *Console) Reply(_ context.Context, t Thread, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "[%s] %s\n", t, text)
	return err
}

// StartThread implements Poster. The thread TS is derived from the clock.
func (c *Console) StartThread(ctx context.Context, channel, text string) (Thread, error) {
	now := c.now()
	t := Thread{
		Channel: channel,
		TS:      strconv.FormatInt(now.Unix(), 10) + "." + fmt.Sprintf("%06d", now.Nanosecond()/1000),
	}
	return t, c.Reply(ctx, t, text)
}

// Upload implements Poster.
func (c *Console) Upload(_ context.Context, t Thread, f File) error {
	if err := os.MkdirAll(c.dir, 0750); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}
	p := filepath.Join(c.dir, filepath.Base(f.Name))
	if err := os.WriteFile(p, f.Data, 0600); err != nil {
		return fmt.Errorf("failed to save %s: %w", f.Name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "[%s] uploaded %q (%d bytes) to %s\n", t, f.Title, len(f.Data), p)
	return err
}
