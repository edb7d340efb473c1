//go:build !unix

package sandbox

import "os/exec"

// Non-unix platforms have no signal-level wait status to inspect;
// resource-limit kills cannot be distinguished from plain faults.
func classifyExitStatus(_ *exec.ExitError) FailureKind {
	return KindNone
}
