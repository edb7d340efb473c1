// Package memory keeps a bounded, oldest-first history of execution
// attempts, detects repeating-failure patterns over its tail, and
// renders a reflection digest for the retry loop.
package memory

import (
	"sync"
	"time"
)

// TestFailureRef is the slice of a test failure the memory retains:
// enough for pattern detection and reflection, not the full diagnostic.
type TestFailureRef struct {
	TestName string `json:"test_name"`
	Message  string `json:"message"`
}

// TestSummary is the attempt-level reduction of a harness result.
type TestSummary struct {
	TotalTests int              `json:"total_tests"`
	Passed     int              `json:"passed"`
	Failed     int              `json:"failed"`
	Errors     int              `json:"errors"`
	Failures   []TestFailureRef `json:"failures,omitempty"`
}

// Attempt records one full execution cycle. Created once per loop
// iteration and never mutated afterwards; owned exclusively by the
// memory once added.
type Attempt struct {
	ID        string       `json:"id"`
	Iteration int          `json:"iteration"`
	Code      string       `json:"code"`
	Success   bool         `json:"success"`
	Output    string       `json:"output"`
	Error     string       `json:"error"`
	Tests     *TestSummary `json:"test_results,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// DefaultMaxSize bounds the history when no explicit size is given.
const DefaultMaxSize = 5

// ShortTermMemory is a fixed-capacity attempt history with FIFO
// eviction. Length never exceeds maxSize; inserting at capacity evicts
// the single oldest entry.
type ShortTermMemory struct {
	mu       sync.Mutex
	maxSize  int
	attempts []Attempt
}

// New creates a memory retaining at most maxSize attempts.
func New(maxSize int) *ShortTermMemory {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &ShortTermMemory{maxSize: maxSize}
}

// Add appends an attempt, evicting the oldest entry when the window is
// exceeded.
func (m *ShortTermMemory) Add(a Attempt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, a)
	if len(m.attempts) > m.maxSize {
		m.attempts = m.attempts[len(m.attempts)-m.maxSize:]
	}
}

// All returns every retained attempt, oldest first.
func (m *ShortTermMemory) All() []Attempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.copyTail(len(m.attempts))
}

// Recent returns the last n attempts, oldest first. n larger than the
// history returns everything.
func (m *ShortTermMemory) Recent(n int) []Attempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n < 0 {
		n = 0
	}
	if n > len(m.attempts) {
		n = len(m.attempts)
	}
	return m.copyTail(n)
}

// Count returns the number of retained attempts.
func (m *ShortTermMemory) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attempts)
}

// MaxSize returns the configured capacity.
func (m *ShortTermMemory) MaxSize() int { return m.maxSize }

// Clear removes all attempts.
func (m *ShortTermMemory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = nil
}

// copyTail returns a copy of the last n attempts. Caller holds m.mu.
func (m *ShortTermMemory) copyTail(n int) []Attempt {
	tail := m.attempts[len(m.attempts)-n:]
	out := make([]Attempt, len(tail))
	copy(out, tail)
	return out
}
