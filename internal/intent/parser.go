package intent

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/mfbot-download/pkg/core"
	"github.com/leapstack-labs/mfbot-download/pkg/slots"
)

// Config holds configuration for the Parser.
type Config struct {
	// Vocabulary overrides DefaultVocabulary when non-nil.
	Vocabulary *slots.Vocabulary
	// Templates overrides the package Templates when non-empty.
	Templates []string
	Logger    *slog.Logger
}

// Parser resolves chat messages against the download grammar.
// It is safe for concurrent use.
type Parser struct {
	matcher *slots.Matcher
	logger  *slog.Logger
}

// NewParser compiles the grammar once. Templates without a recognised
// placeholder are logged and skipped.
func NewParser(cfg Config) (*Parser, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	vocab := DefaultVocabulary()
	if cfg.Vocabulary != nil {
		vocab = *cfg.Vocabulary
	}
	templates := Templates
	if len(cfg.Templates) > 0 {
		templates = cfg.Templates
	}

	m, err := slots.New(vocab, templates)
	if err != nil {
		return nil, fmt.Errorf("failed to compile download grammar: %w", err)
	}
	for _, tmpl := range m.Dropped() {
		logger.Warn("template has no recognised placeholder, skipping", "template", tmpl)
	}

	return &Parser{matcher: m, logger: logger}, nil
}

// Matcher exposes the compiled grammar for diagnostics.
func (p *Parser) Matcher() *slots.Matcher {
	return p.matcher
}

// Extract matches the message and returns the request slots with every key
// present. Slots the matched template does not carry are nil.
func (p *Parser) Extract(message string) (map[string]*string, bool) {
	fields, ok := p.matcher.Match(strings.TrimSpace(message))
	if !ok {
		return nil, false
	}
	return normalize(fields), true
}

// normalize keeps the request slots, using nil for absent ones.
func normalize(fields slots.Fields) map[string]*string {
	out := make(map[string]*string, len(requestSlots))
	for _, name := range requestSlots {
		out[name] = nil
		if v, ok := fields.Get(name); ok {
			out[name] = &v
		}
	}
	return out
}

// Parse turns a message into a download request. It returns ErrNotUnderstood
// when nothing matches and an error wrapping ErrIncomplete when the run or
// the artifact cannot be identified.
func (p *Parser) Parse(message string) (core.ArtifactRequest, error) {
	info, ok := p.Extract(message)
	if !ok {
		p.logger.Debug("no template matched", "message", message)
		return core.ArtifactRequest{}, ErrNotUnderstood
	}

	var missing []string
	if empty(info[SlotFlow]) {
		missing = append(missing, SlotFlow)
	}
	if empty(info[SlotArtifact]) {
		missing = append(missing, SlotArtifact)
	}
	if empty(info[SlotRunID]) && empty(info[SlotLatest]) {
		missing = append(missing, SlotRunID+" or "+SlotLatest)
	}
	if len(missing) > 0 {
		return core.ArtifactRequest{}, &MissingSlotsError{Missing: missing}
	}

	req := core.ArtifactRequest{
		Flow:     *info[SlotFlow],
		Artifact: *info[SlotArtifact],
	}
	// latest wins when a template carries both selectors
	if !empty(info[SlotLatest]) {
		req.Latest = true
	} else {
		req.RunID = *info[SlotRunID]
	}

	p.logger.Debug("parsed download request", "flow", req.Flow, "run", req.RunSelector(), "artifact", req.Artifact)
	return req, nil
}

func empty(s *string) bool {
	return s == nil || *s == ""
}
