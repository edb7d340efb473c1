package memory

// Progress classifies the trajectory of the last few attempts.
type Progress string

const (
	// ProgressInsufficientData: fewer than two attempts recorded.
	ProgressInsufficientData Progress = "insufficient_data"
	// ProgressImproving: passed counts over the window are non-decreasing.
	ProgressImproving Progress = "improving"
	// ProgressRegressing: passed counts over the window are non-increasing.
	ProgressRegressing Progress = "regressing"
	// ProgressMixed: some attempts faulted before tests could run while
	// others reached test failures.
	ProgressMixed Progress = "mixed"
	// ProgressStable: no clearer signal applies.
	ProgressStable Progress = "stable"
)

// Summary aggregates the retained history.
type Summary struct {
	TotalAttempts      int      `json:"total_attempts"`
	SuccessfulAttempts int      `json:"successful_attempts"`
	FailedAttempts     int      `json:"failed_attempts"`
	MostRecentError    string   `json:"most_recent_error,omitempty"`
	Progress           Progress `json:"progress,omitempty"`
}

// GetSummary computes the aggregate view of the history. An empty
// memory reports zero totals and no progress classification.
func (m *ShortTermMemory) GetSummary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.attempts) == 0 {
		return Summary{}
	}

	s := Summary{TotalAttempts: len(m.attempts)}
	for _, a := range m.attempts {
		if a.Success {
			s.SuccessfulAttempts++
		} else {
			s.FailedAttempts++
		}
	}
	if last := m.attempts[len(m.attempts)-1]; !last.Success {
		s.MostRecentError = last.Error
	}
	s.Progress = m.progress()
	return s
}

// progress classifies up to the last three attempts. Caller holds m.mu.
//
// When every considered attempt carries test results, the passed counts
// are compared as a sequence: non-decreasing reads as improving (checked
// first, so a flat sequence counts as improving), non-increasing as
// regressing. Without uniform test results, a mix of pre-test faults and
// test-bearing failures reads as mixed; anything else is stable.
func (m *ShortTermMemory) progress() Progress {
	if len(m.attempts) < 2 {
		return ProgressInsufficientData
	}
	recent := m.attempts
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}

	allHaveTests := true
	for _, a := range recent {
		if a.Tests == nil {
			allHaveTests = false
			break
		}
	}
	if allHaveTests {
		nonDecreasing, nonIncreasing := true, true
		for i := 1; i < len(recent); i++ {
			prev, cur := recent[i-1].Tests.Passed, recent[i].Tests.Passed
			if cur < prev {
				nonDecreasing = false
			}
			if cur > prev {
				nonIncreasing = false
			}
		}
		if nonDecreasing {
			return ProgressImproving
		}
		if nonIncreasing {
			return ProgressRegressing
		}
	}

	var hasExecutionFault, hasTestFailure bool
	for _, a := range recent {
		if !a.Success && a.Tests == nil {
			hasExecutionFault = true
		}
		if !a.Success && a.Tests != nil {
			hasTestFailure = true
		}
	}
	if hasExecutionFault && hasTestFailure {
		return ProgressMixed
	}
	return ProgressStable
}
