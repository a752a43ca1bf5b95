package slots

import (
	"regexp"
	"sort"
	"strings"
)

// Fields maps slot names to the text they captured.
type Fields map[string]string

// Get returns the value captured for name and whether the slot was present
// in the matched template.
func (f Fields) Get(name string) (string, bool) {
	v, ok := f[name]
	return v, ok
}

// Names returns the captured slot names, sorted.
func (f Fields) Names() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Rule is the compiled form of one template.
type Rule struct {
	// Template is the source sentence the rule was built from.
	Template string
	// Slots lists the declared placeholders in order of first appearance.
	Slots []string

	re      *regexp.Regexp
	indices map[string]int
}

// Pattern returns the regular expression the rule matches with.
func (r *Rule) Pattern() string {
	return r.re.String()
}

func (r *Rule) match(input string) (Fields, bool) {
	sub := r.re.FindStringSubmatch(input)
	if sub == nil {
		return nil, false
	}
	fields := make(Fields, len(r.Slots))
	for _, name := range r.Slots {
		fields[name] = sub[r.indices[name]]
	}
	return fields, true
}

// Option configures a Matcher.
type Option func(*options)

type options struct {
	strict bool
}

// WithStrict makes New fail when a template has no declared placeholder
// instead of dropping it.
func WithStrict() Option {
	return func(o *options) {
		o.strict = true
	}
}

// Matcher holds the compiled rules for a fixed list of templates.
type Matcher struct {
	vocab   Vocabulary
	rules   []*Rule
	dropped []string
}

// New validates the vocabulary and compiles every template. Only an invalid
// vocabulary (or, with WithStrict, a dropped template) is an error; a
// malformed template simply never matches.
func New(vocab Vocabulary, templates []string, opts ...Option) (*Matcher, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if err := vocab.Validate(); err != nil {
		return nil, err
	}

	kinds := make(map[string]Kind)
	for _, d := range vocab.Declarations() {
		kinds[d.Name] = d.Kind
	}

	m := &Matcher{vocab: vocab.clone()}
	for i, tmpl := range templates {
		rule, ok := compile(tmpl, kinds)
		if !ok {
			if o.strict {
				return nil, &DroppedTemplateError{Index: i, Template: tmpl}
			}
			m.dropped = append(m.dropped, tmpl)
			continue
		}
		m.rules = append(m.rules, rule)
	}

	return m, nil
}

// MustNew is like New but panics on error. Intended for package-level grammars.
func MustNew(vocab Vocabulary, templates []string, opts ...Option) *Matcher {
	m, err := New(vocab, templates, opts...)
	if err != nil {
		panic("slots: " + err.Error())
	}
	return m
}

// compile turns a template into a rule. It reports false when no declared
// placeholder was substituted.
func compile(tmpl string, kinds map[string]Kind) (*Rule, bool) {
	var (
		b     strings.Builder
		names []string
		seen  = make(map[string]bool)
	)

	b.WriteString("(?i)^")
	for _, seg := range Scan(tmpl) {
		if seg.Type == SegmentMarker {
			if kind, ok := kinds[seg.Value]; ok {
				b.WriteString(kind.capture(seg.Value))
				if !seen[seg.Value] {
					seen[seg.Value] = true
					names = append(names, seg.Value)
				}
				continue
			}
		}
		b.WriteString(regexp.QuoteMeta(seg.Raw))
	}

	if len(names) == 0 {
		return nil, false
	}

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, false
	}

	// SubexpIndex returns the leftmost group for a repeated name.
	indices := make(map[string]int, len(names))
	for _, name := range names {
		indices[name] = re.SubexpIndex(name)
	}

	return &Rule{Template: tmpl, Slots: names, re: re, indices: indices}, true
}

// Match tries every rule in construction order against a prefix of input
// and returns the fields of the first one that matches. The boolean is false
// when nothing matched.
func (m *Matcher) Match(input string) (Fields, bool) {
	_, fields, ok := m.MatchRule(input)
	return fields, ok
}

// MatchRule is like Match but also returns the winning rule.
func (m *Matcher) MatchRule(input string) (*Rule, Fields, bool) {
	for _, r := range m.rules {
		if fields, ok := r.match(input); ok {
			return r, fields, true
		}
	}
	return nil, nil, false
}

// Rules returns the compiled rules in construction order.
func (m *Matcher) Rules() []*Rule {
	out := make([]*Rule, len(m.rules))
	copy(out, m.rules)
	return out
}

// Dropped returns the templates that were left out because they contain no
// declared placeholder.
func (m *Matcher) Dropped() []string {
	out := make([]string, len(m.dropped))
	copy(out, m.dropped)
	return out
}

// Vocabulary returns the vocabulary the matcher was built with.
func (m *Matcher) Vocabulary() Vocabulary {
	return m.vocab.clone()
}
