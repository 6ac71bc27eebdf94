package pipeline

import (
	"time"
	"uoa-collector/internal/runlog"
)

type SourceStatus string

const (
	SourceCompleted SourceStatus = "completed"
	SourceTimedOut  SourceStatus = "timed-out"
	SourceFailed    SourceStatus = "failed"
)

type SourceResult struct {
	Source string
	Status SourceStatus
	Rows   int
	// Removed is how many watermark lines were stripped.
	Removed int
	Err     error
}

type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	// RunEmpty means every source was skipped and nothing was written.
	RunEmpty  RunStatus = "empty"
	RunFailed RunStatus = "failed"
)

// Report summarizes one collection run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     RunStatus
	// Output is the path of the consolidated file, empty when nothing was written.
	Output  string
	Rows    int
	Sources []SourceResult
	Err     error
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (r Report) run() runlog.Run {
	sources := make([]runlog.SourceRun, len(r.Sources))
	for i, s := range r.Sources {
		sources[i] = runlog.SourceRun{
			Source: s.Source,
			Status: string(s.Status),
			Rows:   s.Rows,
			Error:  errString(s.Err),
		}
	}
	return runlog.Run{
		ID:         r.RunID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Status:     string(r.Status),
		Output:     r.Output,
		Rows:       r.Rows,
		Error:      errString(r.Err),
		Sources:    sources,
	}
}
