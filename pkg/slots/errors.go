package slots

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoPlaceholders is wrapped by DroppedTemplateError.
var ErrNoPlaceholders = errors.New("template has no declared placeholders")

// InvalidNameError reports a slot name that cannot be used as a capture group.
type InvalidNameError struct {
	Name string
	Kind Kind
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid %s slot name %q: must contain only letters, digits and underscores", e.Kind, e.Name)
}

// ConflictError reports a slot name declared under more than one kind.
type ConflictError struct {
	Name  string
	Kinds []Kind
}

func (e *ConflictError) Error() string {
	kinds := make([]string, len(e.Kinds))
	for i, k := range e.Kinds {
		kinds[i] = k.String()
	}
	return fmt.Sprintf("slot %q declared as more than one kind (%s)", e.Name, strings.Join(kinds, ", "))
}

// DroppedTemplateError is returned in strict mode for a template that would
// otherwise be silently left out of the rule set.
type DroppedTemplateError struct {
	Index    int
	Template string
}

func (e *DroppedTemplateError) Error() string {
	return fmt.Sprintf("template %d %q: %v", e.Index, e.Template, ErrNoPlaceholders)
}

func (e *DroppedTemplateError) Unwrap() error {
	return ErrNoPlaceholders
}

// ValidationErrors collects every problem found in a Vocabulary.
type ValidationErrors []error

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap lets errors.As reach the individual errors.
func (e ValidationErrors) Unwrap() []error {
	return e
}
