package core

import "fmt"

// ArtifactRequest is a parsed download command: which artifact to fetch and
// from which run of which flow. Exactly one of RunID and Latest selects the run.
type ArtifactRequest struct {
	Flow     string `json:"flow" yaml:"flow"`
	RunID    string `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Latest   bool   `json:"latest" yaml:"latest"`
	Artifact string `json:"artifact" yaml:"artifact"`
}

// Pathspec returns the Metaflow pathspec of the requested run, or just the
// flow name when the latest run is requested.
func (r ArtifactRequest) Pathspec() string {
	if r.Latest || r.RunID == "" {
		return r.Flow
	}
	return fmt.Sprintf("%s/%s", r.Flow, r.RunID)
}

// RunSelector describes how the run is chosen, for display.
func (r ArtifactRequest) RunSelector() string {
	if r.Latest {
		return "latest successful"
	}
	return r.RunID
}
