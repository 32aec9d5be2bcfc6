// Package testcase holds the sample-test model shared by the sidecar store,
// the runner, the judge and the boundary protocol.
//
// Case identity is positional: ids always form the dense sequence
// test-1..test-N in display order. Ids are never persisted; they are derived
// again whenever a list is loaded or edited.
package testcase

import "time"

// TimeoutMessage is the error text reported for a case that hit its deadline.
const TimeoutMessage = "Timeout"

// Case is one sample test attached to a source file.
type Case struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Input    string `json:"input"`
	Expected string `json:"expected"`
}

// Result is the verdict for a single case. Results are recomputed on every
// run and are never written to the sidecar.
type Result struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Passed     bool    `json:"passed"`
	Output     string  `json:"output"`
	Expected   string  `json:"expected"`
	Error      *string `json:"error"`
	ExitCode   int     `json:"exitCode"`
	DurationMs int64   `json:"durationMs"`
}

// ErrorText returns the attached error text, or "" when there is none.
func (r Result) ErrorText() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}

// TimedOut reports whether the case was killed by its deadline.
func (r Result) TimedOut() bool {
	return r.Error != nil && *r.Error == TimeoutMessage
}

// Status classifies a whole run.
type Status string

const (
	// StatusExecuted means the source compiled and every case was run.
	StatusExecuted Status = "executed"
	// StatusBuildFailed means compilation failed; no case results exist.
	StatusBuildFailed Status = "build_failed"
)

// Report is the aggregate outcome of compiling a source and running its
// cases. A build failure carries Diagnostics and a nil Results slice, which
// is not the same thing as an executed run where every case failed.
type Report struct {
	RunID       string    `json:"runId"`
	Source      string    `json:"source"`
	Status      Status    `json:"status"`
	Diagnostics string    `json:"diagnostics,omitempty"`
	Results     []Result  `json:"results"`
	Passed      int       `json:"passed"`
	Total       int       `json:"total"`
	StartedAt   time.Time `json:"startedAt"`
	DurationMs  int64     `json:"durationMs"`
}

// BuildFailed reports whether the run stopped at compilation.
func (r *Report) BuildFailed() bool {
	return r.Status == StatusBuildFailed
}

// AllPassed reports whether the run executed and every case passed.
// An executed run with zero cases counts as passing.
func (r *Report) AllPassed() bool {
	return r.Status == StatusExecuted && r.Passed == r.Total
}

// Tally recounts Passed and Total from Results.
func (r *Report) Tally() {
	r.Total = len(r.Results)
	r.Passed = 0
	for _, res := range r.Results {
		if res.Passed {
			r.Passed++
		}
	}
}
