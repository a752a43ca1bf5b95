package metaflow

import (
	"fmt"
	"strconv"
	"time"
)

// EndStep is the step whose artifacts a run exposes.
const EndStep = "end"

// successArtifact is written by Metaflow when a task finishes cleanly.
const successArtifact = "_success"

// Run is a run record from the metadata service.
type Run struct {
	FlowID     string   `json:"flow_id"`
	RunNumber  int64    `json:"run_number"`
	RunName    *string  `json:"run_id"`
	UserName   string   `json:"user_name"`
	TSEpoch    int64    `json:"ts_epoch"`
	Tags       []string `json:"tags"`
	SystemTags []string `json:"system_tags"`
}

// ID returns the run id used in pathspecs: the run name when the scheduler
// assigned one, otherwise the run number.
func (r Run) ID() string {
	if r.RunName != nil && *r.RunName != "" {
		return *r.RunName
	}
	return strconv.FormatInt(r.RunNumber, 10)
}

// Pathspec returns "Flow/RunID".
func (r Run) Pathspec() string {
	return fmt.Sprintf("%s/%s", r.FlowID, r.ID())
}

// CreatedAt converts ts_epoch (milliseconds) to a time.
func (r Run) CreatedAt() time.Time {
	return time.UnixMilli(r.TSEpoch).UTC()
}

// Task is a task record from the metadata service.
type Task struct {
	FlowID    string  `json:"flow_id"`
	RunNumber int64   `json:"run_number"`
	StepName  string  `json:"step_name"`
	TaskID    int64   `json:"task_id"`
	TaskName  *string `json:"task_name"`
	TSEpoch   int64   `json:"ts_epoch"`
}

// ID returns the task id used in URLs.
func (t Task) ID() string {
	if t.TaskName != nil && *t.TaskName != "" {
		return *t.TaskName
	}
	return strconv.FormatInt(t.TaskID, 10)
}

// Artifact is an artifact record from the metadata service. Location points
// at the pickled value in the datastore.
type Artifact struct {
	FlowID      string `json:"flow_id"`
	RunNumber   int64  `json:"run_number"`
	StepName    string `json:"step_name"`
	TaskID      int64  `json:"task_id"`
	Name        string `json:"name"`
	Location    string `json:"location"`
	DSType      string `json:"ds_type"`
	SHA         string `json:"sha"`
	Type        string `json:"type"`
	ContentType string `json:"content_type"`
	AttemptID   int    `json:"attempt_id"`
	TSEpoch     int64  `json:"ts_epoch"`
}

// latestAttempts keeps, for every artifact name, the record of the highest attempt.
func latestAttempts(arts []Artifact) map[string]Artifact {
	out := make(map[string]Artifact, len(arts))
	for _, a := range arts {
		if prev, ok := out[a.Name]; ok && prev.AttemptID >= a.AttemptID {
			continue
		}
		out[a.Name] = a
	}
	return out
}
