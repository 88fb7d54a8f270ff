package telemetry

import "sync"

// Report is a single call captured by Recorder.
type Report struct {
	Level  string
	ID     string
	Params []any
}

// Recorder is an API that keeps every report in memory, tests use it to assert that a
// component reported (or did not report) breakage.
type Recorder struct {
	mu      sync.Mutex
	reports []Report
}

func (r *Recorder) add(level, id string, params []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, Report{Level: level, ID: id, Params: params})
}

func (r *Recorder) ReportBroken(id string, params ...any) {
	r.add(LEVEL_BROKEN, id, params)
}

func (r *Recorder) ReportWarning(id string, params ...any) {
	r.add(LEVEL_WARNING, id, params)
}

func (r *Recorder) ReportDebug(msg string, params ...any) {
	r.add(LEVEL_DEBUG, msg, params)
}

func (r *Recorder) ReportCount(id string, count int64) {
	r.add(LEVEL_COUNT, id, []any{count})
}

// Reports returns a copy of the reports with the given level.
func (r *Recorder) Reports(level string) []Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Report
	for _, rep := range r.reports {
		if rep.Level == level {
			out = append(out, rep)
		}
	}
	return out
}
