package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sandkit/crucible/internal/sandbox"
	"github.com/sandkit/crucible/internal/telemetry"
)

// fakeSandbox returns a canned execution result and records every code
// sample it was asked to run.
type fakeSandbox struct {
	result sandbox.ExecutionResult
	err    error
	calls  []string
}

func (f *fakeSandbox) Execute(_ context.Context, code string) (sandbox.ExecutionResult, error) {
	f.calls = append(f.calls, code)
	return f.result, f.err
}

func (f *fakeSandbox) Available() bool { return true }

const reportSentinel = "<<<CRUCIBLE_REPORT>>>"

const testedCode = `import unittest

class TestMath(unittest.TestCase):
    def test_add(self):
        self.assertEqual(1 + 1, 2)
`

func TestEvaluateSafetyViolationShortCircuits(t *testing.T) {
	sb := &fakeSandbox{}
	ev := New(sb, nil, nil)

	res, err := ev.Evaluate(context.Background(), "import subprocess\nsubprocess.run(['ls'])")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.Success {
		t.Error("expected failure")
	}
	if res.Kind != sandbox.KindSafetyViolation {
		t.Errorf("expected safety_violation kind, got %s", res.Kind)
	}
	if !strings.Contains(res.Error, "blocked:") {
		t.Errorf("expected blocked error, got %q", res.Error)
	}
	if len(sb.calls) != 0 {
		t.Errorf("sandbox must not run for blocked code, ran %d times", len(sb.calls))
	}
}

func TestEvaluatePlainCodePassesThrough(t *testing.T) {
	sb := &fakeSandbox{result: sandbox.ExecutionResult{
		Success:       true,
		Output:        "hello",
		ExecutionTime: 50 * time.Millisecond,
	}}
	ev := New(sb, nil, nil)

	res, err := ev.Evaluate(context.Background(), "print('hello')")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !res.Success || res.Output != "hello" {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.Tests != nil {
		t.Error("no harness run expected without tests")
	}
	if len(sb.calls) != 1 {
		t.Fatalf("expected one execution, got %d", len(sb.calls))
	}
	if sb.calls[0] != "print('hello')" {
		t.Errorf("code rewritten before execution: %q", sb.calls[0])
	}
}

func TestEvaluateRunsDeclaredTests(t *testing.T) {
	// The fake serves both phases: the candidate run and the driver run.
	sb := &fakeSandbox{result: sandbox.ExecutionResult{
		Success: true,
		Output: reportSentinel +
			`{"total_tests":2,"passed":1,"failed":1,"errors":0,"failures":[{"test_name":"test_add","error_kind":"AssertionError","message":"AssertionError: 3 != 2","full_diagnostic":"Traceback"}],"success":false}`,
	}}
	ev := New(sb, nil, nil)

	res, err := ev.Evaluate(context.Background(), testedCode)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.Success {
		t.Error("failing tests must fail the evaluation")
	}
	if res.Kind != sandbox.KindTestFailure {
		t.Errorf("expected test_failure kind, got %s", res.Kind)
	}
	if res.Tests == nil || res.Tests.TotalTests != 2 || res.Tests.Passed != 1 {
		t.Errorf("unexpected report: %+v", res.Tests)
	}
	if !strings.Contains(res.Output, "Tests: 1/2 passed") {
		t.Errorf("missing tally in output: %q", res.Output)
	}
	if !strings.Contains(res.Error, "test_add [AssertionError]") {
		t.Errorf("missing failure block in error: %q", res.Error)
	}
	if len(sb.calls) != 2 {
		t.Fatalf("expected candidate and driver runs, got %d", len(sb.calls))
	}
}

func TestEvaluatePassingTestsKeepSuccess(t *testing.T) {
	sb := &fakeSandbox{result: sandbox.ExecutionResult{
		Success: true,
		Output: "case output\n" + reportSentinel +
			`{"total_tests":2,"passed":2,"failed":0,"errors":0,"failures":[],"success":true}`,
	}}
	ev := New(sb, nil, nil)

	res, err := ev.Evaluate(context.Background(), testedCode)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !res.Success {
		t.Error("expected success")
	}
	if !strings.Contains(res.Output, "Tests: 2/2 passed") {
		t.Errorf("missing tally: %q", res.Output)
	}
	if res.Error != "" {
		t.Errorf("expected no error text, got %q", res.Error)
	}
}

func TestEvaluateDiscoveryFailureKind(t *testing.T) {
	sb := &fakeSandbox{result: sandbox.ExecutionResult{
		Success: true,
		Output: reportSentinel +
			`{"total_tests":0,"passed":0,"failed":0,"errors":1,"failures":[{"test_name":"code_structure","error_kind":"NoTestsFound","message":"no test case class registered against the harness base","full_diagnostic":""}],"success":false}`,
	}}
	ev := New(sb, nil, nil)

	res, err := ev.Evaluate(context.Background(), testedCode)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.Kind != sandbox.KindTestDiscoveryFailure {
		t.Errorf("expected test_discovery_failure, got %s", res.Kind)
	}
}

func TestEvaluateFailedRunSkipsTests(t *testing.T) {
	sb := &fakeSandbox{result: sandbox.ExecutionResult{
		Success: false,
		Error:   "ValueError: boom",
		Kind:    sandbox.KindRuntimeFault,
	}}
	ev := New(sb, nil, nil)

	res, err := ev.Evaluate(context.Background(), testedCode)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.Tests != nil {
		t.Error("tests must not run after an execution fault")
	}
	if len(sb.calls) != 1 {
		t.Errorf("expected a single execution, got %d", len(sb.calls))
	}
}

func TestEvaluatePropagatesInfrastructureError(t *testing.T) {
	sb := &fakeSandbox{err: &sandbox.ErrScratchDir{Dir: "/gone", Err: errors.New("permission denied")}}
	ev := New(sb, nil, nil)

	_, err := ev.Evaluate(context.Background(), "print('x')")
	var scratchErr *sandbox.ErrScratchDir
	if !errors.As(err, &scratchErr) {
		t.Fatalf("expected ErrScratchDir, got %v", err)
	}
}

func TestEvaluateCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ev := New(&fakeSandbox{}, nil, nil)
	if _, err := ev.Evaluate(ctx, "print('x')"); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestEvaluateRecordsMetrics(t *testing.T) {
	metrics := telemetry.NewMetrics()
	ev := New(&fakeSandbox{}, metrics, nil)

	if _, err := ev.Evaluate(context.Background(), "import socket"); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	families, err := metrics.Gather().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "crucible_safety_blocks_total" {
			found = true
		}
	}
	if !found {
		t.Error("expected crucible_safety_blocks_total to be recorded")
	}
}
