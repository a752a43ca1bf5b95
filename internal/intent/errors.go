package intent

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotUnderstood is returned when no template matches the message.
var ErrNotUnderstood = errors.New("message not understood")

// ErrIncomplete is returned when a template matched but the request cannot
// identify a run and an artifact.
var ErrIncomplete = errors.New("incomplete download request")

// MissingSlotsError lists the slots a matched message left empty.
type MissingSlotsError struct {
	Missing []string
}

func (e *MissingSlotsError) Error() string {
	return fmt.Sprintf("%s: missing %s", ErrIncomplete, strings.Join(e.Missing, ", "))
}

// Unwrap lets errors.Is match ErrIncomplete.
func (e *MissingSlotsError) Unwrap() error { return ErrIncomplete }
