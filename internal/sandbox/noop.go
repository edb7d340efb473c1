package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// NoopSandbox runs code with no resource ceilings. It keeps the same
// scratch-file and capture discipline as ProcessSandbox but skips the
// launcher. Intended for tests and for hosts without bash.
type NoopSandbox struct {
	Interpreter string
	Timeout     time.Duration
}

// Available always reports true.
func (n *NoopSandbox) Available() bool { return true }

// Execute runs the code without isolation.
func (n *NoopSandbox) Execute(ctx context.Context, code string) (ExecutionResult, error) {
	interpreter := n.Interpreter
	if interpreter == "" {
		interpreter = "python3"
	}
	timeout := n.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	tmpDir, err := os.MkdirTemp("", "crucible-noop-*")
	if err != nil {
		return ExecutionResult{}, &ErrScratchDir{Dir: tmpDir, Err: err}
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	scriptPath := filepath.Join(tmpDir, "script.py")
	if err := os.WriteFile(scriptPath, []byte(code), 0o600); err != nil {
		return ExecutionResult{}, &ErrScratchDir{Dir: tmpDir, Err: err}
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, interpreter, scriptPath)
	cmd.Dir = tmpDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	out := strings.TrimSpace(stdout.String())
	errOut := strings.TrimSpace(stderr.String())

	if execCtx.Err() == context.DeadlineExceeded {
		return ExecutionResult{
			Success:       false,
			Output:        out,
			Error:         fmt.Sprintf("execution timed out after %s", timeout),
			ExecutionTime: timeout,
			Kind:          KindTimeout,
		}, nil
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			msg := errOut
			if msg == "" {
				msg = fmt.Sprintf("process exited with code %d", exitErr.ExitCode())
			}
			return ExecutionResult{
				Success:       false,
				Output:        out,
				Error:         msg,
				ExecutionTime: elapsed,
				Kind:          KindRuntimeFault,
			}, nil
		}
		return ExecutionResult{
			Success:       false,
			Output:        out,
			Error:         fmt.Sprintf("execution failed: %v", runErr),
			ExecutionTime: elapsed,
			Kind:          KindInternalFault,
		}, nil
	}
	return ExecutionResult{
		Success:       true,
		Output:        out,
		Error:         errOut,
		ExecutionTime: elapsed,
	}, nil
}
