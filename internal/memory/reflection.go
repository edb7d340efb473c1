package memory

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Fixed advisory messages attached to triggered patterns. The digest is
// data handed to an external prompt-construction collaborator, so the
// wording is part of the contract and must stay deterministic.
const (
	adviceSameError = "WARNING: the same error occurred in the last 2 attempts. " +
		"Try a completely different approach."
	adviceSameTestFailure = "WARNING: the same test is failing repeatedly. " +
		"Focus specifically on fixing that test."
	adviceNoProgress = "WARNING: no tests have passed in 3 attempts. " +
		"Consider rewriting from scratch with a simpler approach."
)

// maxErrorPreview bounds the first-error-line excerpt in the digest.
const maxErrorPreview = 100

// Reflection renders the deterministic text digest: summary, triggered
// pattern warnings, and a compact log of the last three attempts.
// Returns the empty string when no attempts have been recorded.
func (m *ShortTermMemory) Reflection() string {
	if m.Count() == 0 {
		return ""
	}

	summary := m.GetSummary()
	var b strings.Builder

	b.WriteString("## Reflection on Previous Attempts\n\n")
	fmt.Fprintf(&b, "You have made %d attempt(s) so far.\n", summary.TotalAttempts)
	fmt.Fprintf(&b, "Progress status: %s\n\n", summary.Progress)

	if m.HasPattern(PatternSameError) {
		b.WriteString(adviceSameError + "\n\n")
	}
	if m.HasPattern(PatternSameTestFailure) {
		b.WriteString(adviceSameTestFailure + "\n\n")
	}
	if m.HasPattern(PatternNoProgress) {
		b.WriteString(adviceNoProgress + "\n\n")
	}

	recent := m.Recent(3)
	if len(recent) > 0 {
		b.WriteString("Recent attempts:\n")
		for _, a := range recent {
			status := "FAILED"
			if a.Success {
				status = "SUCCESS"
			}
			fmt.Fprintf(&b, "\nAttempt %d: %s\n", a.Iteration, status)

			if a.Tests != nil {
				fmt.Fprintf(&b, "  Tests: %d/%d passed\n", a.Tests.Passed, a.Tests.TotalTests)
				if len(a.Tests.Failures) > 0 {
					b.WriteString("  Failed tests:\n")
					for i, f := range a.Tests.Failures {
						if i == 2 {
							break
						}
						fmt.Fprintf(&b, "    - %s: %s\n", f.TestName, f.Message)
					}
				}
			}
			if !a.Success && a.Error != "" {
				fmt.Fprintf(&b, "  Error: %s\n", truncate(firstLine(a.Error), maxErrorPreview))
			}
		}
	}

	b.WriteString("\nBefore writing new code, ask yourself:\n")
	b.WriteString("1. What specifically went wrong in the last attempt?\n")
	b.WriteString("2. Am I repeating the same approach? Should I try something different?\n")
	b.WriteString("3. Are there edge cases I'm missing?\n")

	return b.String()
}

// truncate cuts s to at most n bytes without splitting a UTF-8
// sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
