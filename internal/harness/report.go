package harness

import (
	"encoding/json"
	"strings"
)

// TestFailure describes one failing or erroring test.
type TestFailure struct {
	TestName       string `json:"test_name"`
	ErrorKind      string `json:"error_kind"`
	Message        string `json:"message"`
	FullDiagnostic string `json:"full_diagnostic"`
}

// TestResult is the structured outcome of a harness run.
//
// On a real run Passed + Failed + Errors == TotalTests. A discovery or
// load failure instead reports TotalTests=0 with a single synthetic
// failure entry.
type TestResult struct {
	TotalTests int           `json:"total_tests"`
	Passed     int           `json:"passed"`
	Failed     int           `json:"failed"`
	Errors     int           `json:"errors"`
	Failures   []TestFailure `json:"failures"`
	Success    bool          `json:"success"`
}

// FailingNames returns the names of all failing tests, in report order.
func (r *TestResult) FailingNames() []string {
	names := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		names = append(names, f.TestName)
	}
	return names
}

// reportSentinel prefixes the single JSON report line the driver writes
// to stdout. Everything else on the stream is the candidate's own
// output.
const reportSentinel = "<<<CRUCIBLE_REPORT>>>"

// parseReport extracts the driver's report from captured stdout.
// Returns false when no sentinel line is present (the driver was killed
// before reporting).
func parseReport(output string) (*TestResult, bool) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, reportSentinel) {
			continue
		}
		var result TestResult
		if err := json.Unmarshal([]byte(line[len(reportSentinel):]), &result); err != nil {
			return nil, false
		}
		// Reconcile the aggregate invariant regardless of what the
		// driver claimed.
		if result.TotalTests > 0 {
			result.Passed = result.TotalTests - result.Failed - result.Errors
		}
		return &result, true
	}
	return nil, false
}
