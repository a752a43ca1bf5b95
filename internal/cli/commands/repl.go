package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/mfbot-download/internal/action"
	"github.com/leapstack-labs/mfbot-download/internal/chat"
	"github.com/leapstack-labs/mfbot-download/internal/cli/output"
	"github.com/leapstack-labs/mfbot-download/internal/intent"
	"github.com/leapstack-labs/mfbot-download/pkg/core"
	"github.com/spf13/cobra"
)

const replPrompt = "mfbot> "

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	var threadFlag, uploadDir string

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Chat with the bot interactively",
		Long: `Start an interactive session where every line is handled as a chat
message. Dot-commands inspect the grammar and the download history.

Type .help inside the session for the list of commands.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runREPL(cmd, threadFlag, uploadDir)
		},
	}

	cmd.Flags().StringVar(&threadFlag, "thread", "", "Thread to reply in, CHANNEL or CHANNEL:TS")
	cmd.Flags().StringVar(&uploadDir, "upload-dir", "", "Where the console saves uploads (default: next to the state database)")

	return cmd
}

// replSession handles the lines of one REPL session.
type replSession struct {
	out       io.Writer
	errOut    io.Writer
	r         *output.Renderer
	downloads *action.Downloader
	parser    *intent.Parser
	store     core.Store
	thread    chat.Thread
}

func runREPL(cmd *cobra.Command, threadFlag, uploadDir string) error {
	ctx := cmd.Context()
	cmdCtx := NewCommandContext(cmd)

	thread, err := resolveThread(cmdCtx, threadFlag)
	if err != nil {
		return err
	}
	store, err := cmdCtx.OpenStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	poster, err := cmdCtx.NewPoster(cmd, uploadDir)
	if err != nil {
		return err
	}
	d, err := cmdCtx.NewDownloader(ctx, poster, store)
	if err != nil {
		return err
	}
	parser, err := cmdCtx.NewParser()
	if err != nil {
		return err
	}

	session := &replSession{
		out:       cmd.OutOrStdout(),
		errOut:    cmd.ErrOrStderr(),
		r:         cmdCtx.Renderer,
		downloads: d,
		parser:    parser,
		store:     store,
		thread:    thread,
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     filepath.Join(filepath.Dir(cmdCtx.Cfg.StatePath), "repl_history"),
		AutoComplete:    newREPLCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintf(session.out, "mfbot-download REPL (thread: %s)\n", thread)
	_, _ = fmt.Fprintln(session.out, "Type a chat message, .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(session.out)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if session.handle(ctx, line) {
			break
		}
	}
	return nil
}

// handle processes one line and reports whether the session should end.
func (s *replSession) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	if strings.HasPrefix(line, ".") {
		return s.handleDotCommand(ctx, line)
	}

	if intent.IsHelp(line) {
		s.report(s.downloads.HowTo(ctx, s.thread, false))
		return false
	}

	entry, err := s.downloads.Download(ctx, action.Command{Message: line, Thread: s.thread})
	if entry != nil {
		s.report(renderDownloadResult(s.r, entry))
	}
	s.report(err)
	return false
}

func (s *replSession) handleDotCommand(ctx context.Context, line string) bool {
	command, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(command) {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(s.out)

	case ".howto":
		s.report(s.downloads.HowTo(ctx, s.thread, false))

	case ".parse":
		if rest == "" {
			_, _ = fmt.Fprintln(s.errOut, "Usage: .parse <message>")
			return false
		}
		s.report(renderParse(s.r, explain(s.parser, rest)))

	case ".rules":
		s.report(renderRules(s.r, s.parser))

	case ".history":
		limit := 10
		if rest != "" {
			n, err := strconv.Atoi(rest)
			if err != nil || n < 0 {
				_, _ = fmt.Fprintln(s.errOut, "Usage: .history [limit]")
				return false
			}
			limit = n
		}
		downloads, err := s.store.ListDownloads(ctx, core.ListOptions{Limit: limit})
		if err != nil {
			s.report(err)
			return false
		}
		s.report(renderHistory(s.r, downloads))

	case ".thread":
		if rest == "" {
			_, _ = fmt.Fprintf(s.out, "Current thread: %s\n", s.thread)
			return false
		}
		t, err := chat.ParseThread(rest)
		if err != nil {
			s.report(err)
			return false
		}
		s.thread = t
		_, _ = fmt.Fprintf(s.out, "Replying in %s\n", s.thread)

	default:
		_, _ = fmt.Fprintf(s.errOut, "Unknown command: %s (type .help for commands)\n", command)
	}
	return false
}

func (s *replSession) report(err error) {
	if err != nil {
		_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
	}
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help              Show this help message
  .howto             Post the download usage text
  .parse <message>   Show how a message is understood
  .rules             Show the compiled grammar
  .history [limit]   Show recent downloads
  .thread [CH[:TS]]  Show or change the reply thread
  .quit / .exit      Exit the REPL

Anything else is handled as a chat message, e.g.
  download latest model from HelloFlow
  download model from HelloFlow/12
`
	_, _ = fmt.Fprintln(w, help)
}

func newREPLCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("download", readline.PcItem("latest")),
		readline.PcItem("help"),
		readline.PcItem(".help"),
		readline.PcItem(".howto"),
		readline.PcItem(".parse", readline.PcItem("download")),
		readline.PcItem(".rules"),
		readline.PcItem(".history"),
		readline.PcItem(".thread"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}
