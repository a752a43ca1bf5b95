package commands

import (
	"errors"
	"strings"

	"github.com/leapstack-labs/mfbot-download/internal/cli/output"
	"github.com/leapstack-labs/mfbot-download/internal/intent"
	"github.com/leapstack-labs/mfbot-download/pkg/core"
	"github.com/spf13/cobra"
)

// ParseOutput is the structured output of the parse command.
type ParseOutput struct {
	Message  string                `json:"message" yaml:"message"`
	Matched  bool                  `json:"matched" yaml:"matched"`
	Template string                `json:"template,omitempty" yaml:"template,omitempty"`
	Slots    map[string]*string    `json:"slots,omitempty" yaml:"slots,omitempty"`
	Request  *core.ArtifactRequest `json:"request,omitempty" yaml:"request,omitempty"`
	Error    string                `json:"error,omitempty" yaml:"error,omitempty"`
}

// RuleOutput describes one compiled grammar rule.
type RuleOutput struct {
	Template string   `json:"template" yaml:"template"`
	Pattern  string   `json:"pattern" yaml:"pattern"`
	Slots    []string `json:"slots" yaml:"slots"`
}

// NewParseCommand creates the parse command.
func NewParseCommand() *cobra.Command {
	var showRules bool

	cmd := &cobra.Command{
		Use:   "parse [message]",
		Short: "Show how a chat message is understood",
		Long: `Match a message against the download grammar and print the captured
slots and the resulting request, without contacting any service.

With --rules, print the compiled grammar instead.`,
		Example: `  mfbot-download parse "download latest model from HelloFlow"
  mfbot-download parse --rules -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			parser, err := cmdCtx.NewParser()
			if err != nil {
				return err
			}
			if showRules {
				return renderRules(cmdCtx.Renderer, parser)
			}
			if len(args) == 0 {
				return errors.New("a message is required")
			}
			return renderParse(cmdCtx.Renderer, explain(parser, strings.Join(args, " ")))
		},
	}

	cmd.Flags().BoolVar(&showRules, "rules", false, "Print the compiled grammar")

	return cmd
}

// explain runs a message through the grammar and the request checks.
func explain(parser *intent.Parser, message string) *ParseOutput {
	out := &ParseOutput{Message: message}

	rule, _, ok := parser.Matcher().MatchRule(strings.TrimSpace(message))
	if ok {
		out.Matched = true
		out.Template = rule.Template
		out.Slots, _ = parser.Extract(message)
	}

	req, err := parser.Parse(message)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Request = &req
	return out
}

func renderParse(r *output.Renderer, out *ParseOutput) error {
	if ok, err := r.Structured(out); ok {
		return err
	}

	if !out.Matched {
		r.Warning("No template matched")
		r.Println(intent.HowTo())
		return nil
	}

	r.Header(2, "Template")
	r.Println(out.Template)
	r.Println("")

	rows := make([][]string, 0, len(out.Slots))
	for _, name := range []string{intent.SlotFlow, intent.SlotRunID, intent.SlotLatest, intent.SlotArtifact} {
		value := "-"
		if v := out.Slots[name]; v != nil {
			value = *v
		}
		rows = append(rows, []string{name, value})
	}
	r.Table([]string{"Slot", "Value"}, rows)
	r.Println("")

	if out.Request == nil {
		r.Error(out.Error)
		return nil
	}
	r.Header(2, "Request")
	r.KeyValue("flow", out.Request.Flow)
	r.KeyValue("run", out.Request.RunSelector())
	r.KeyValue("artifact", out.Request.Artifact)
	return nil
}

func renderRules(r *output.Renderer, parser *intent.Parser) error {
	m := parser.Matcher()
	rules := make([]RuleOutput, 0, len(m.Rules()))
	for _, rule := range m.Rules() {
		rules = append(rules, RuleOutput{Template: rule.Template, Pattern: rule.Pattern(), Slots: rule.Slots})
	}
	if ok, err := r.Structured(rules); ok {
		return err
	}

	rows := make([][]string, 0, len(rules))
	for _, rule := range rules {
		rows = append(rows, []string{rule.Template, strings.Join(rule.Slots, ", "), rule.Pattern})
	}
	r.Table([]string{"Template", "Slots", "Pattern"}, rows)

	for _, tmpl := range m.Dropped() {
		r.Warning("dropped template without placeholders: " + tmpl)
	}
	return nil
}
