package app

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/corey/cpbench/internal/adapters/logging"
	"github.com/corey/cpbench/internal/adapters/runner"
	"github.com/corey/cpbench/internal/adapters/toolchain"
	"github.com/corey/cpbench/internal/domain/testcase"
	"github.com/corey/cpbench/internal/ports"
)

// Judge compiles a source once and runs it against its cases.
type Judge struct {
	compiler *toolchain.Compiler
	runner   *runner.Runner
	history  ports.History   // optional
	events   ports.Publisher // optional
	log      *logging.Logger
}

// NewJudge creates a judge. history and events may be nil.
func NewJudge(c *toolchain.Compiler, r *runner.Runner, history ports.History, events ports.Publisher, log *logging.Logger) *Judge {
	return &Judge{compiler: c, runner: r, history: history, events: events, log: log}
}

// Run compiles source and executes every case in order. A compile failure
// yields a build_failed report with no results; faults that prevent the
// compiler from running at all are returned as errors.
func (j *Judge) Run(ctx context.Context, source string, cases []testcase.Case) (*testcase.Report, error) {
	start := time.Now()
	report := &testcase.Report{
		RunID:     ulid.Make().String(),
		Source:    source,
		StartedAt: start,
	}

	bin, err := j.compiler.Compile(ctx, source)
	if err != nil {
		var ce *toolchain.CompileError
		if !errors.As(err, &ce) {
			return nil, err
		}
		report.Status = testcase.StatusBuildFailed
		report.Diagnostics = ce.Diagnostics
		report.Total = len(cases)
		j.finish(report, start)
		return report, nil
	}
	defer func() {
		if err := bin.Remove(); err != nil {
			j.log.Warn("remove binary", "path", bin.Path, "error", err)
		}
	}()

	report.Status = testcase.StatusExecuted
	report.Results = j.runner.RunAll(ctx, bin.Path, filepath.Dir(source), cases)
	report.Tally()
	j.finish(report, start)
	return report, nil
}

func (j *Judge) finish(report *testcase.Report, start time.Time) {
	report.DurationMs = time.Since(start).Milliseconds()
	j.log.Info("run finished",
		"run_id", report.RunID,
		"source", report.Source,
		"status", report.Status,
		"passed", report.Passed,
		"total", report.Total,
		"duration_ms", report.DurationMs,
	)

	if j.history != nil {
		rec := ports.RunRecord{
			RunID:      report.RunID,
			Source:     report.Source,
			Status:     string(report.Status),
			Passed:     report.Passed,
			Total:      report.Total,
			StartedAt:  report.StartedAt,
			DurationMs: report.DurationMs,
		}
		if err := j.history.SaveRun(rec); err != nil {
			j.log.Warn("save run", "run_id", report.RunID, "error", err)
		}
	}
	if j.events != nil {
		j.events.Publish(ports.Event{
			Type: ports.EventRunFinished,
			Time: time.Now(),
			Data: map[string]any{
				"runId":  report.RunID,
				"source": report.Source,
				"status": report.Status,
				"passed": report.Passed,
				"total":  report.Total,
			},
		})
	}
}

// Select returns the cases whose ids are listed, in their original order.
// An empty id list selects everything.
func Select(cases []testcase.Case, ids []string) []testcase.Case {
	if len(ids) == 0 {
		return cases
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []testcase.Case
	for _, c := range cases {
		if want[c.ID] {
			out = append(out, c)
		}
	}
	return out
}
