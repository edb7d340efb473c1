// Package sandbox runs untrusted generated code in an isolated child
// process with resource ceilings and a wall-clock timeout enforced by
// the parent.
package sandbox

import (
	"context"
	"fmt"
	"time"
)

// FailureKind classifies why an execution did not succeed.
type FailureKind string

const (
	KindNone                 FailureKind = ""
	KindSafetyViolation      FailureKind = "safety_violation"
	KindTimeout              FailureKind = "timeout"
	KindCPULimit             FailureKind = "cpu_limit"
	KindMemoryLimit          FailureKind = "memory_limit"
	KindFileSizeLimit        FailureKind = "file_size_limit"
	KindRuntimeFault         FailureKind = "runtime_fault"
	KindTestDiscoveryFailure FailureKind = "test_discovery_failure"
	KindTestFailure          FailureKind = "test_failure"
	KindInternalFault        FailureKind = "internal_fault"
)

// ExecutionResult is the outcome of one sandboxed run. Produced exactly
// once per invocation and never mutated afterwards.
type ExecutionResult struct {
	Success       bool          `json:"success"`
	Output        string        `json:"output"`
	Error         string        `json:"error"`
	ExecutionTime time.Duration `json:"execution_time"`
	Kind          FailureKind   `json:"kind,omitempty"`
}

// Limits holds the resource ceilings requested of the child process.
// A ceiling the host platform cannot enforce is skipped, not fatal.
type Limits struct {
	CPUSeconds    int   // CPU time ceiling in seconds (ulimit -t)
	MemoryBytes   int64 // address space ceiling (ulimit -v)
	FileSizeBytes int64 // max file the child may create (ulimit -f)
}

// DefaultLimits returns the stock ceilings: 5s CPU, 256MiB address
// space, 10MiB file size.
func DefaultLimits() Limits {
	return Limits{
		CPUSeconds:    5,
		MemoryBytes:   256 << 20,
		FileSizeBytes: 10 << 20,
	}
}

// DefaultTimeout is the wall-clock bound enforced by the parent,
// independent of the CPU ceiling requested of the child.
const DefaultTimeout = 10 * time.Second

// Sandbox executes candidate code under isolation.
type Sandbox interface {
	// Execute runs code and classifies the outcome. Code-level failures
	// (nonzero exit, timeout, resource kill) are data in the result, not
	// a Go error. The returned error is reserved for the scratch-area
	// fatal condition described on ErrScratchDir.
	Execute(ctx context.Context, code string) (ExecutionResult, error)

	// Available reports whether this backend can run on the host.
	Available() bool
}

// ErrScratchDir indicates the scratch area could not be created or
// prepared. This is the single unrecoverable condition: if the sandbox
// cannot own its scratch directory it cannot be trusted to contain the
// child, so it surfaces as a fatal configuration error rather than a
// retryable result.
type ErrScratchDir struct {
	Dir string
	Err error
}

func (e *ErrScratchDir) Error() string {
	return fmt.Sprintf("sandbox scratch directory %s unusable: %v", e.Dir, e.Err)
}

func (e *ErrScratchDir) Unwrap() error { return e.Err }
