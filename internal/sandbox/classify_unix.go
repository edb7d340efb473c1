//go:build unix

package sandbox

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// classifyExitStatus inspects the raw wait status for resource-limit
// terminations. SIGKILL covers the kernel OOM path, SIGXCPU the CPU
// ceiling, SIGXFSZ the file-size ceiling. When the shell absorbs the
// signal instead, it surfaces as exit code 128+signal.
func classifyExitStatus(exitErr *exec.ExitError) FailureKind {
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		switch ws.Signal() {
		case unix.SIGKILL:
			return KindMemoryLimit
		case unix.SIGXCPU:
			return KindCPULimit
		case unix.SIGXFSZ:
			return KindFileSizeLimit
		}
		return KindNone
	}

	switch exitErr.ExitCode() {
	case 128 + int(unix.SIGKILL):
		return KindMemoryLimit
	case 128 + int(unix.SIGXCPU):
		return KindCPULimit
	case 128 + int(unix.SIGXFSZ):
		return KindFileSizeLimit
	}
	return KindNone
}
