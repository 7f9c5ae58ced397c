package transcript

import (
	"time"

	"github.com/google/uuid"
)

// Stage is a step in the per-item lifecycle.
type Stage string

const (
	StagePending    Stage = "PENDING"
	StageSanitized  Stage = "SANITIZED"
	StagePrompted   Stage = "PROMPTED"
	StageGenerating Stage = "GENERATING"
	StageStructured Stage = "STRUCTURED"
	StageFailed     Stage = "FAILED"
	StageRecorded   Stage = "RECORDED"
)

// Entry is one recorded item: its records, or a single error record when it failed.
type Entry struct {
	Key     string
	Pages   []string
	Records []Record
	Failed  bool
	Err     string
	Elapsed time.Duration
}

// RunState accumulates entries for one run. It does no I/O; persistence goes through a Flusher.
type RunState struct {
	RunID   string
	Started time.Time
	Entries []Entry
}

// NewRunState returns an empty accumulator with a fresh run id.
func NewRunState(started time.Time) *RunState {
	return &RunState{RunID: uuid.NewString(), Started: started}
}

// Append records one entry.
func (s *RunState) Append(e Entry) {
	s.Entries = append(s.Entries, e)
}

// Len is the number of recorded entries.
func (s *RunState) Len() int {
	return len(s.Entries)
}

// Records flattens all entries' records in recording order.
func (s *RunState) Records() []Record {
	var out []Record
	for _, e := range s.Entries {
		out = append(out, e.Records...)
	}
	return out
}

// FailedCount counts entries that ended in an error record.
func (s *RunState) FailedCount() int {
	n := 0
	for _, e := range s.Entries {
		if e.Failed {
			n++
		}
	}
	return n
}
