// Package ports defines the interfaces (contracts) that adapters must implement.
// These are the boundaries of the hexagonal architecture. Application code
// depends only on these interfaces, never on concrete implementations.
package ports

import "time"

// History persists the outcome of finished work: terminal import decisions
// and run summaries. Writes must be transactional; a crash mid-write must
// not corrupt previously committed records.
type History interface {
	// SaveImport records a terminal import decision. Saving the same id
	// again overwrites the earlier record.
	SaveImport(rec ImportRecord) error

	// ListImports returns up to limit records, most recently decided first.
	// A limit <= 0 returns everything.
	ListImports(limit int) ([]ImportRecord, error)

	// SaveRun records a run summary keyed by its run id.
	SaveRun(rec RunRecord) error

	// ListRuns returns up to limit summaries, newest first.
	ListRuns(limit int) ([]RunRecord, error)

	Close() error
}

// ImportRecord is the ledger entry for one import that reached a terminal
// state (accepted, rejected, expired, already_exists).
type ImportRecord struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Outcome      string    `json:"outcome"`
	SourcePath   string    `json:"sourcePath,omitempty"`
	CreatedNew   bool      `json:"createdNew,omitempty"`
	TestsWritten int       `json:"testsWritten,omitempty"`
	ReceivedAt   time.Time `json:"receivedAt"`
	DecidedAt    time.Time `json:"decidedAt"`
}

// RunRecord summarizes one judge run.
type RunRecord struct {
	RunID      string    `json:"runId"`
	Source     string    `json:"source"`
	Status     string    `json:"status"`
	Passed     int       `json:"passed"`
	Total      int       `json:"total"`
	StartedAt  time.Time `json:"startedAt"`
	DurationMs int64     `json:"durationMs"`
}
