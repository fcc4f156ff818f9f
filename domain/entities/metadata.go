package entities

import (
	"time"
)

// RunMetadata contains execution metadata for one example run.
type RunMetadata struct {
	// StartTime is when the run started.
	StartTime time.Time `json:"start_time"`

	// EndTime is when the run completed.
	EndTime time.Time `json:"end_time"`

	// Script is the script the run executed, if any.
	Script string `json:"script,omitempty"`

	// Duration is the total execution time.
	Duration time.Duration `json:"duration_ns"`
}

// NewRunMetadata creates a new RunMetadata with the given start and end times.
func NewRunMetadata(start, end time.Time) *RunMetadata {
	return &RunMetadata{
		StartTime: start,
		EndTime:   end,
		Duration:  end.Sub(start),
	}
}

// WithScript sets the script and returns m.
func (m *RunMetadata) WithScript(script string) *RunMetadata {
	m.Script = script
	return m
}
