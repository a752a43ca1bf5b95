package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/leapstack-labs/mfbot-download/internal/cli"
	"github.com/leapstack-labs/mfbot-download/internal/cli/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// commandGroups orders the index by what an operator is trying to do.
// Commands missing from every group land under "Other".
var commandGroups = []struct {
	title string
	names []string
}{
	{"Chat commands", []string{"download", "how-to-download"}},
	{"Running the bot", []string{"serve", "doctor"}},
	{"Inspecting Metaflow", []string{"parse", "history", "repl"}},
}

func generateCLIDocs(outDir string) error {
	log.Printf("Generating CLI docs to %s", outDir)

	root := cli.NewRootCmd()
	cmds := documented(root)

	if err := writePage(outDir, "index.md", cliIndex(root, cmds)); err != nil {
		return err
	}
	for _, cmd := range cmds {
		if err := writePage(outDir, cmd.Name()+".md", commandPage(cmd)); err != nil {
			return err
		}
	}
	log.Printf("  Generated index.md and %d command pages", len(cmds))
	return nil
}

func documented(root *cobra.Command) []*cobra.Command {
	var out []*cobra.Command
	for _, cmd := range root.Commands() {
		if cmd.IsAvailableCommand() {
			out = append(out, cmd)
		}
	}
	return out
}

func writePage(outDir, name string, body []byte) error {
	if err := os.WriteFile(filepath.Join(outDir, name), body, 0600); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func cliIndex(root *cobra.Command, cmds []*cobra.Command) []byte {
	w := NewMarkdownWriter()
	w.Frontmatter("CLI Reference", "Command-line interface reference for mfbot-download")
	w.GeneratedMarker()

	w.Header(1, "CLI Reference")
	w.Paragraph("`mfbot-download serve` answers Slack slash commands. The other commands drive the same download pipeline, or inspect Metaflow, from a terminal.")

	byName := make(map[string]*cobra.Command, len(cmds))
	for _, cmd := range cmds {
		byName[cmd.Name()] = cmd
	}
	for _, g := range commandGroups {
		w.Header(2, g.title)
		w.Table([]string{"Command", "Description"}, commandRows(g.names, byName))
		for _, name := range g.names {
			delete(byName, name)
		}
	}
	if len(byName) > 0 {
		rest := make([]string, 0, len(byName))
		for name := range byName {
			rest = append(rest, name)
		}
		slices.Sort(rest)
		w.Header(2, "Other")
		w.Table([]string{"Command", "Description"}, commandRows(rest, byName))
	}

	w.Header(2, "Global Options")
	writeFlagsTable(w, root.PersistentFlags())

	w.Header(2, "Environment")
	w.Paragraph("Every config key can be set as `MFBOT_<KEY>` with dots replaced by a double underscore, for example `MFBOT_SERVER__ADDR`. These conventional variables are read as well and lose to their `MFBOT_` form:")
	env := config.NativeEnv()
	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}
	slices.Sort(names)
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{InlineCode(name), InlineCode(env[name])})
	}
	w.Table([]string{"Variable", "Config key"}, rows)

	return w.Bytes()
}

func commandRows(names []string, byName map[string]*cobra.Command) [][]string {
	var rows [][]string
	for _, name := range names {
		cmd, ok := byName[name]
		if !ok {
			continue
		}
		link := fmt.Sprintf("[%s](/cli/%s)", InlineCode(name), name)
		rows = append(rows, []string{link, cleanDescription(cmd.Short)})
	}
	return rows
}

func commandPage(cmd *cobra.Command) []byte {
	w := NewMarkdownWriter()
	w.Frontmatter(cmd.Name(), cleanDescription(cmd.Short))
	w.GeneratedMarker()

	w.Header(1, cmd.Name())
	if cmd.Long != "" {
		w.Paragraph(cmd.Long)
	} else {
		w.Paragraph(cmd.Short)
	}

	w.Header(2, "Usage")
	w.CodeBlock("bash", cmd.UseLine())
	if len(cmd.Aliases) > 0 {
		w.Paragraph("Also available as " + InlineCode(strings.Join(cmd.Aliases, "`, `")) + ".")
	}

	if cmd.HasAvailableLocalFlags() {
		w.Header(2, "Options")
		writeFlagsTable(w, cmd.LocalNonPersistentFlags())
	}

	if cmd.Example != "" {
		w.Header(2, "Examples")
		w.CodeBlock("bash", dedent(cmd.Example))
	}

	w.Paragraph("Global options are listed in the [CLI reference](/cli/).")
	return w.Bytes()
}

func writeFlagsTable(w *MarkdownWriter, flags *pflag.FlagSet) {
	var rows [][]string
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Hidden || f.Name == "help" {
			return
		}
		name := "--" + f.Name
		if f.Shorthand != "" {
			name = "-" + f.Shorthand + ", " + name
		}
		def := f.DefValue
		if def == "" || def == "[]" {
			def = "-"
		} else {
			def = InlineCode(def)
		}
		rows = append(rows, []string{InlineCode(name), f.Value.Type(), def, cleanDescription(f.Usage)})
	})
	if len(rows) == 0 {
		w.Paragraph("None.")
		return
	}
	w.Table([]string{"Flag", "Type", "Default", "Description"}, rows)
}

// dedent strips the two-space indent cobra examples are written with.
func dedent(example string) string {
	lines := strings.Split(strings.Trim(example, "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimPrefix(l, "  ")
	}
	return strings.Join(lines, "\n")
}
