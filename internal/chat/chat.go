// Package chat delivers bot replies and files to a conversation thread.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidThread is returned for malformed thread references.
var ErrInvalidThread = errors.New("invalid thread")

// Thread identifies a conversation: a channel and, optionally, the timestamp
// of the message the thread hangs off.
type Thread struct {
	Channel string
	TS      string
}

// ParseThread parses "CHANNEL:TS" or a bare "CHANNEL".
func ParseThread(s string) (Thread, error) {
	channel, ts, _ := strings.Cut(strings.TrimSpace(s), ":")
	if channel == "" {
		return Thread{}, fmt.Errorf("%w: %q", ErrInvalidThread, s)
	}
	return Thread{Channel: channel, TS: ts}, nil
}

func (t Thread) String() string {
	if t.TS == "" {
		return t.Channel
	}
	return t.Channel + ":" + t.TS
}

// File is an upload.
type File struct {
	Name  string
	Title string
	Data  []byte
}

// Poster sends messages and files to a chat.
type Poster interface {
	// Reply posts text into the thread, or top level when it has no TS.
	Reply(ctx context.Context, t Thread, text string) error
	// StartThread posts text at top level of the channel and returns the
	// thread rooted at that message.
	StartThread(ctx context.Context, channel, text string) (Thread, error)
	// Upload attaches a file to the thread.
	Upload(ctx context.Context, t Thread, f File) error
}
