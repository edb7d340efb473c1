// Package harness runs the unit tests a candidate code sample declares
// and reduces them to a structured pass/fail report.
//
// The candidate never shares an interpreter with the host: the harness
// wraps the source in a fixed driver program and hands the driver to an
// injected executor (in production, the sandbox). Test cases register
// themselves by subclassing the designated base class; the driver diffs
// the base's subclass registry around the candidate's evaluation rather
// than scanning a namespace.
package harness

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/sandkit/crucible/internal/sandbox"
)

// testBaseMarker is the literal token whose presence in a source sample
// signals that it declares unit tests.
const testBaseMarker = "unittest.TestCase"

// HasTests reports whether the code sample declares tests against the
// harness base contract.
func HasTests(code string) bool {
	return strings.Contains(code, testBaseMarker)
}

// Executor runs a composed driver program. Satisfied by
// sandbox.ProcessSandbox and sandbox.NoopSandbox.
type Executor interface {
	Execute(ctx context.Context, code string) (sandbox.ExecutionResult, error)
}

// Runner executes candidate test suites through an Executor.
type Runner struct {
	exec Executor
}

// NewRunner returns a harness runner backed by the given executor.
func NewRunner(exec Executor) *Runner {
	return &Runner{exec: exec}
}

// Run evaluates the candidate's declared tests and returns a structured
// result. Faults while loading or running the candidate are captured as
// data in the result; the returned error is reserved for executor
// infrastructure failures (see sandbox.ErrScratchDir).
func (r *Runner) Run(ctx context.Context, code string) (*TestResult, error) {
	driver := buildDriver(code)

	res, err := r.exec.Execute(ctx, driver)
	if err != nil {
		return nil, fmt.Errorf("harness execution: %w", err)
	}

	if result, ok := parseReport(res.Output); ok {
		return result, nil
	}

	// No report line: the driver was terminated before it could write
	// one (timeout, resource kill) or stdout was mangled.
	msg := res.Error
	if msg == "" {
		msg = "test driver produced no report"
	}
	return &TestResult{
		TotalTests: 0,
		Errors:     1,
		Failures: []TestFailure{{
			TestName:  "test_driver",
			ErrorKind: "InternalFault",
			Message:   msg,
		}},
		Success: false,
	}, nil
}

// buildDriver embeds the candidate source, base64-encoded, into the
// fixed driver template. Encoding sidesteps every quoting hazard a raw
// literal would have.
func buildDriver(code string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(code))
	return fmt.Sprintf(driverTemplate, encoded)
}

// driverTemplate is the Python program that evaluates the candidate and
// reports per-test outcomes as one sentinel-prefixed JSON line.
//
// Registration contract: a test case is any class that subclasses
// unittest.TestCase during the candidate's evaluation. The driver
// snapshots the base's subclass registry before evaluating and diffs it
// after, so discovery never inspects the candidate's namespace. The
// candidate is evaluated under __name__ "__candidate__" so a
// unittest.main() guard in generated code stays inert.
const driverTemplate = `import base64
import io
import json
import sys
import traceback
import unittest

_SENTINEL = "<<<CRUCIBLE_REPORT>>>"
_SOURCE = "%s"


def _emit(report):
    sys.stdout.write("\n" + _SENTINEL + json.dumps(report) + "\n")
    sys.stdout.flush()


def _synthetic(name, kind, message, diagnostic):
    _emit({
        "total_tests": 0,
        "passed": 0,
        "failed": 0,
        "errors": 1,
        "failures": [{
            "test_name": name,
            "error_kind": kind,
            "message": message,
            "full_diagnostic": diagnostic,
        }],
        "success": False,
    })


def _last_line(text):
    lines = [line for line in text.strip().split("\n") if line.strip()]
    return lines[-1] if lines else text


try:
    _source = base64.b64decode(_SOURCE).decode("utf-8")
    _before = set(unittest.TestCase.__subclasses__())
    _namespace = {"__name__": "__candidate__"}
    exec(compile(_source, "<candidate>", "exec"), _namespace)
    _cases = [c for c in unittest.TestCase.__subclasses__() if c not in _before]
except BaseException as _exc:
    _synthetic("code_execution", type(_exc).__name__, str(_exc),
               traceback.format_exc())
    sys.exit(0)

if not _cases:
    _synthetic("code_structure", "NoTestsFound",
               "no test case class registered against the harness base", "")
    sys.exit(0)

_loader = unittest.TestLoader()
_suite = unittest.TestSuite()
for _case in _cases:
    _suite.addTests(_loader.loadTestsFromTestCase(_case))

_runner = unittest.TextTestRunner(stream=io.StringIO(), verbosity=2)
_result = _runner.run(_suite)

_failures = []
for _test, _tb in _result.failures:
    _failures.append({
        "test_name": str(_test),
        "error_kind": "AssertionError",
        "message": _last_line(_tb),
        "full_diagnostic": _tb,
    })
for _test, _tb in _result.errors:
    _line = _last_line(_tb)
    _failures.append({
        "test_name": str(_test),
        "error_kind": _line.split(":")[0] if ":" in _line else "Error",
        "message": _line,
        "full_diagnostic": _tb,
    })

_total = _result.testsRun
_failed = len(_result.failures)
_errors = len(_result.errors)
_emit({
    "total_tests": _total,
    "passed": _total - _failed - _errors,
    "failed": _failed,
    "errors": _errors,
    "failures": _failures,
    "success": _result.wasSuccessful(),
})
`
