package telemetry

import (
	"errors"
	"strings"
	"sync"
)

type Level string

const (
	LevelBroken  Level = "broken"
	LevelWarning Level = "warning"
	LevelDebug   Level = "debug"
	LevelCount   Level = "count"
)

// Report is a single call made against a RecordingAPI.
type Report struct {
	Level  Level
	ID     string
	Params []any
	Count  int64
}

// Err returns the first error passed as a param, if any.
func (r Report) Err() error {
	for _, p := range r.Params {
		if err, ok := p.(error); ok {
			return err
		}
	}
	return nil
}

// RecordingAPI is an API that keeps every report in memory, tests use it to assert
// that failures were reported instead of silently swallowed.
type RecordingAPI struct {
	mu      sync.Mutex
	reports []Report
}

func (r *RecordingAPI) add(report Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
}

func (r *RecordingAPI) ReportBroken(id string, params ...any) {
	r.add(Report{Level: LevelBroken, ID: id, Params: params})
}

func (r *RecordingAPI) ReportWarning(id string, params ...any) {
	r.add(Report{Level: LevelWarning, ID: id, Params: params})
}

func (r *RecordingAPI) ReportDebug(msg string, params ...any) {
	r.add(Report{Level: LevelDebug, ID: msg, Params: params})
}

func (r *RecordingAPI) ReportCount(id string, count int64) {
	r.add(Report{Level: LevelCount, ID: id, Count: count})
}

// Reports returns a copy of every report made so far.
func (r *RecordingAPI) Reports() []Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Report, len(r.reports))
	copy(out, r.reports)
	return out
}

// Find returns the reports of the given level whose id contains `substr`.
func (r *RecordingAPI) Find(level Level, substr string) []Report {
	var out []Report
	for _, report := range r.Reports() {
		if report.Level == level && strings.Contains(report.ID, substr) {
			out = append(out, report)
		}
	}
	return out
}

// FindErr returns the reports of the given level carrying an error matching `target`.
func (r *RecordingAPI) FindErr(level Level, target error) []Report {
	var out []Report
	for _, report := range r.Reports() {
		if report.Level == level && errors.Is(report.Err(), target) {
			out = append(out, report)
		}
	}
	return out
}
