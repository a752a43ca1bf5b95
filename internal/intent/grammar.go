// Package intent turns chat messages into artifact download requests.
package intent

import (
	"strings"

	"github.com/leapstack-labs/mfbot-download/pkg/slots"
)

// Templates is the download grammar, tried in order.
var Templates = []string{
	"download <latest> <artifactname> from <flow>",
	"download <artifactname> from <flow>/<runid>",
}

// Slot names the grammar reads back.
const (
	SlotFlow     = "flow"
	SlotRunID    = "runid"
	SlotLatest   = "latest"
	SlotArtifact = "artifactname"
)

// requestSlots are normalized in every extraction, present or not.
var requestSlots = []string{SlotFlow, SlotRunID, SlotLatest, SlotArtifact}

// DefaultVocabulary returns the slot lists shared by the bot's commands.
// runid is a free slot so run ids like "argo-helloflow-x7k2p" are accepted.
func DefaultVocabulary() slots.Vocabulary {
	return slots.Vocabulary{
		Free:    []string{"username", "flow", "runid", "tag", "start_date", "end_date", "pattern", "artifactname"},
		Static:  []string{"latest", "successful", "production"},
		Numeric: []string{"size"},
	}
}

// HowTo returns the usage text for the download command.
func HowTo() string {
	return "You can download an artifact stored on S3 using the `download` command\n" +
		"To download an artifact from the latest run of a flow: `download latest <artifactname> from HelloFlow`\n" +
		"To download an artifact from a specific run: `download <artifactname> from HelloFlow/12`\n\n" +
		"_<artifactname> can be any property set in the `end` step_"
}

// IsHelp reports whether text asks for the usage text rather than a download.
func IsHelp(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "", "help", "how-to-download", "how to download":
		return true
	}
	return false
}
