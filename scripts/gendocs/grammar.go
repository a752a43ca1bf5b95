package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/mfbot-download/internal/intent"
)

// generateGrammarDocs writes grammar.md from the compiled download grammar.
func generateGrammarDocs(outDir string) error {
	log.Printf("Generating grammar docs to %s", outDir)

	parser, err := intent.NewParser(intent.Config{})
	if err != nil {
		return err
	}
	m := parser.Matcher()

	w := NewMarkdownWriter()
	w.Frontmatter("Chat Grammar", "Messages mfbot-download understands")
	w.GeneratedMarker()

	w.Header(1, "Chat Grammar")
	w.Paragraph("Messages are matched against these templates in order; the first match wins. " +
		"Matching ignores case and anything after the template.")

	rows := make([][]string, 0, len(m.Rules()))
	for i, rule := range m.Rules() {
		rows = append(rows, []string{fmt.Sprint(i + 1), InlineCode(rule.Template), strings.Join(rule.Slots, ", ")})
	}
	w.Table([]string{"#", "Template", "Slots"}, rows)

	w.Header(2, "Slots")
	vocab := m.Vocabulary()
	var slotRows [][]string
	for _, d := range vocab.Declarations() {
		slotRows = append(slotRows, []string{InlineCode(d.Name), d.Kind.String()})
	}
	w.Table([]string{"Slot", "Kind"}, slotRows)
	w.BulletList([]string{
		"free: letters, digits and `/ : , _ -`",
		"static: only the slot's own name, in any case",
		"numeric: digits only",
	})

	w.Header(2, "Help Text")
	w.Paragraph(intent.HowTo())

	return os.WriteFile(filepath.Join(outDir, "grammar.md"), w.Bytes(), 0600)
}
