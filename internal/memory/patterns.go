package memory

import "strings"

// Pattern identifies a repeating-failure shape detected over the tail
// of the history. Window sizes are fixed.
type Pattern string

const (
	// PatternSameError: the last two attempts both failed with an
	// identical first error line.
	PatternSameError Pattern = "same_error"

	// PatternSameTestFailure: at least one test name failed in both of
	// the last two attempts.
	PatternSameTestFailure Pattern = "same_test_failure"

	// PatternNoProgress: the last three attempts all failed and none of
	// them recorded a single passing test. An attempt without test
	// results counts as zero passing.
	PatternNoProgress Pattern = "no_progress"
)

// HasPattern reports whether the given pattern currently holds.
// Unknown patterns report false.
func (m *ShortTermMemory) HasPattern(p Pattern) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch p {
	case PatternSameError:
		if len(m.attempts) < 2 {
			return false
		}
		prev, last := m.attempts[len(m.attempts)-2], m.attempts[len(m.attempts)-1]
		if prev.Success || last.Success {
			return false
		}
		return firstLine(prev.Error) == firstLine(last.Error)

	case PatternSameTestFailure:
		if len(m.attempts) < 2 {
			return false
		}
		prev, last := m.attempts[len(m.attempts)-2], m.attempts[len(m.attempts)-1]
		if prev.Tests == nil || last.Tests == nil {
			return false
		}
		prevNames := make(map[string]bool, len(prev.Tests.Failures))
		for _, f := range prev.Tests.Failures {
			prevNames[f.TestName] = true
		}
		for _, f := range last.Tests.Failures {
			if prevNames[f.TestName] {
				return true
			}
		}
		return false

	case PatternNoProgress:
		if len(m.attempts) < 3 {
			return false
		}
		for _, a := range m.attempts[len(m.attempts)-3:] {
			if a.Success {
				return false
			}
			if a.Tests != nil && a.Tests.Passed > 0 {
				return false
			}
		}
		return true
	}
	return false
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
