package main

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/leapstack-labs/mfbot-download/internal/cli/output"
)

// MarkdownWriter builds a documentation page on top of the CLI's markdown
// renderer, so generated pages and command output share one table format.
type MarkdownWriter struct {
	buf bytes.Buffer
	r   *output.Renderer
}

// NewMarkdownWriter creates an empty page.
func NewMarkdownWriter() *MarkdownWriter {
	w := &MarkdownWriter{}
	w.r = output.NewRendererWithTTY(&w.buf, &w.buf, false, output.ModeMarkdown)
	return w
}

// Frontmatter writes the page's YAML frontmatter.
func (w *MarkdownWriter) Frontmatter(title, description string) {
	w.r.Printf("---\ntitle: %q\ndescription: %q\n---\n\n", title, description)
}

// GeneratedMarker notes that the page must not be edited by hand.
func (w *MarkdownWriter) GeneratedMarker() {
	w.r.Println("<!-- Generated by scripts/gendocs. DO NOT EDIT. -->")
	w.r.Println()
}

// Header writes a heading.
func (w *MarkdownWriter) Header(level int, text string) {
	w.r.Header(level, text)
}

// Paragraph writes text followed by a blank line.
func (w *MarkdownWriter) Paragraph(text string) {
	w.r.Println(strings.TrimSpace(text))
	w.r.Println()
}

// CodeBlock writes a fenced code block.
func (w *MarkdownWriter) CodeBlock(lang, code string) {
	w.r.Printf("```%s\n%s\n```\n\n", lang, strings.TrimRight(code, "\n"))
}

// Table writes a table followed by a blank line.
func (w *MarkdownWriter) Table(headers []string, rows [][]string) {
	w.r.Table(headers, rows)
	w.r.Println()
}

// BulletList writes one bullet per item.
func (w *MarkdownWriter) BulletList(items []string) {
	for _, item := range items {
		w.r.Printf("- %s\n", item)
	}
	w.r.Println()
}

// Bytes returns the page.
func (w *MarkdownWriter) Bytes() []byte {
	return w.buf.Bytes()
}

// InlineCode wraps s in backticks.
func InlineCode(s string) string {
	return fmt.Sprintf("`%s`", s)
}

// cleanDescription makes flag and command help fit in a table cell.
func cleanDescription(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
