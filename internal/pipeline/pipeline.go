// Package pipeline wires the safety scanner, sandboxed executor, and
// test harness into the single evaluation entry point used by the
// retry loop.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/sandkit/crucible/internal/harness"
	"github.com/sandkit/crucible/internal/safety"
	"github.com/sandkit/crucible/internal/sandbox"
	"github.com/sandkit/crucible/internal/telemetry"
)

// Result is one evaluation outcome: the execution record plus, when the
// candidate declared tests, the full harness report.
type Result struct {
	sandbox.ExecutionResult

	Tests *harness.TestResult
}

// Evaluator runs candidate code through scan, execute, and test phases.
// Execution is single-flight: concurrent callers serialize on an
// internal semaphore, since the design supports exactly one sandbox at
// a time.
type Evaluator struct {
	scanner *safety.Scanner
	sb      sandbox.Sandbox
	tests   *harness.Runner
	gate    *semaphore.Weighted
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// New creates an evaluator over the given sandbox. Metrics and logger
// may be nil.
func New(sb sandbox.Sandbox, metrics *telemetry.Metrics, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Evaluator{
		scanner: safety.NewScanner(),
		sb:      sb,
		tests:   harness.NewRunner(sb),
		gate:    semaphore.NewWeighted(1),
		metrics: metrics,
		logger:  logger,
	}
}

// Evaluate runs one code sample through the full pipeline. Code-level
// failures come back as data in the result; the returned error is
// reserved for the fatal scratch-area condition.
func (e *Evaluator) Evaluate(ctx context.Context, code string) (Result, error) {
	if err := e.gate.Acquire(ctx, 1); err != nil {
		return Result{}, fmt.Errorf("acquire execution slot: %w", err)
	}
	defer e.gate.Release(1)

	// Safety short-circuit: no process is spawned, no scratch file is
	// created.
	if v := e.scanner.Scan(code); v != nil {
		e.logger.Info("code blocked by safety scanner",
			"pattern", v.Pattern, "category", v.Category)
		if e.metrics != nil {
			e.metrics.RecordSafetyBlock(v.Category)
			e.metrics.RecordEvaluation(string(sandbox.KindSafetyViolation), 0)
		}
		return Result{ExecutionResult: sandbox.ExecutionResult{
			Success: false,
			Error:   v.Error(),
			Kind:    sandbox.KindSafetyViolation,
		}}, nil
	}

	res, err := e.sb.Execute(ctx, code)
	if err != nil {
		return Result{}, err
	}

	out := Result{ExecutionResult: res}
	if res.Success && harness.HasTests(code) {
		report, err := e.tests.Run(ctx, code)
		if err != nil {
			return Result{}, err
		}
		out = mergeTestReport(res, report)
	}

	if e.metrics != nil {
		e.metrics.RecordEvaluation(string(out.Kind), res.ExecutionTime.Seconds())
	}
	e.logger.Debug("evaluation finished",
		"success", out.Success, "kind", string(out.Kind),
		"duration", res.ExecutionTime)
	return out, nil
}

// mergeTestReport folds a harness report into the execution record:
// success becomes the conjunction of process exit and test success, the
// output gains a pass/fail tally, and each failing test renders as one
// block in the error field.
func mergeTestReport(res sandbox.ExecutionResult, report *harness.TestResult) Result {
	merged := res
	merged.Success = res.Success && report.Success

	tally := fmt.Sprintf("Tests: %d/%d passed", report.Passed, report.TotalTests)
	if merged.Output == "" {
		merged.Output = tally
	} else {
		merged.Output += "\n\n" + tally
	}

	if !report.Success {
		merged.Kind = testFailureKind(report)

		var blocks []string
		for _, f := range report.Failures {
			block := fmt.Sprintf("%s [%s]\n%s", f.TestName, f.ErrorKind, f.Message)
			if f.FullDiagnostic != "" {
				block += "\n" + strings.TrimRight(f.FullDiagnostic, "\n")
			}
			blocks = append(blocks, block)
		}
		merged.Error = strings.Join(blocks, "\n\n")
	}

	return Result{ExecutionResult: merged, Tests: report}
}

// testFailureKind distinguishes ordinary test failures from the two
// synthetic single-entry reports the harness produces.
func testFailureKind(report *harness.TestResult) sandbox.FailureKind {
	if report.TotalTests == 0 && len(report.Failures) == 1 {
		if report.Failures[0].ErrorKind == "NoTestsFound" {
			return sandbox.KindTestDiscoveryFailure
		}
		return sandbox.KindInternalFault
	}
	return sandbox.KindTestFailure
}
