package slots

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind identifies what a slot is allowed to capture.
type Kind int

// Kind constants.
const (
	KindFree    Kind = iota // [A-Za-z0-9/:,_-]+
	KindStatic              // the slot's own name, literally
	KindNumeric             // [0-9]+
)

func (k Kind) String() string {
	switch k {
	case KindFree:
		return "free"
	case KindStatic:
		return "static"
	case KindNumeric:
		return "numeric"
	default:
		return "unknown"
	}
}

// capture returns the named capture group for a slot of this kind.
func (k Kind) capture(name string) string {
	switch k {
	case KindStatic:
		return fmt.Sprintf("(?P<%s>%s)", name, regexp.QuoteMeta(name))
	case KindNumeric:
		return fmt.Sprintf("(?P<%s>[0-9]+)", name)
	default:
		return fmt.Sprintf("(?P<%s>[a-zA-Z0-9/:,_-]+)", name)
	}
}

// Declaration is a single slot name with its kind.
type Declaration struct {
	Name string
	Kind Kind
}

// Vocabulary declares the slot names a Matcher recognises, grouped by kind.
// A name must appear in exactly one list.
type Vocabulary struct {
	Free    []string
	Static  []string
	Numeric []string
}

// validName mirrors what the regexp package accepts as a capture group name.
var validName = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Declarations returns every declared slot in free, static, numeric order.
func (v Vocabulary) Declarations() []Declaration {
	decls := make([]Declaration, 0, len(v.Free)+len(v.Static)+len(v.Numeric))
	for _, name := range v.Free {
		decls = append(decls, Declaration{Name: name, Kind: KindFree})
	}
	for _, name := range v.Static {
		decls = append(decls, Declaration{Name: name, Kind: KindStatic})
	}
	for _, name := range v.Numeric {
		decls = append(decls, Declaration{Name: name, Kind: KindNumeric})
	}
	return decls
}

// Validate reports names that are not valid identifiers and names declared
// under more than one kind. Repeating a name within the same list is allowed.
func (v Vocabulary) Validate() error {
	seen := make(map[string]Kind)
	var errs ValidationErrors

	for _, d := range v.Declarations() {
		if !validName.MatchString(d.Name) {
			errs = append(errs, &InvalidNameError{Name: d.Name, Kind: d.Kind})
			continue
		}
		prev, ok := seen[d.Name]
		if !ok {
			seen[d.Name] = d.Kind
			continue
		}
		if prev != d.Kind {
			errs = append(errs, &ConflictError{Name: d.Name, Kinds: []Kind{prev, d.Kind}})
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Lookup returns the kind a name was declared with.
func (v Vocabulary) Lookup(name string) (Kind, bool) {
	for _, d := range v.Declarations() {
		if d.Name == name {
			return d.Kind, true
		}
	}
	return 0, false
}

// Names returns all declared names in declaration order, without duplicates.
func (v Vocabulary) Names() []string {
	seen := make(map[string]bool)
	var names []string
	for _, d := range v.Declarations() {
		if seen[d.Name] {
			continue
		}
		seen[d.Name] = true
		names = append(names, d.Name)
	}
	return names
}

func (v Vocabulary) clone() Vocabulary {
	return Vocabulary{
		Free:    append([]string(nil), v.Free...),
		Static:  append([]string(nil), v.Static...),
		Numeric: append([]string(nil), v.Numeric...),
	}
}

func (v Vocabulary) String() string {
	return fmt.Sprintf("free=[%s] static=[%s] numeric=[%s]",
		strings.Join(v.Free, ","), strings.Join(v.Static, ","), strings.Join(v.Numeric, ","))
}
