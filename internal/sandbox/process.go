package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// ProcessSandbox runs candidate code as a resource-limited child
// process. Ceilings bind inside the child before the interpreter execs
// (a generated ulimit wrapper); the wall clock is enforced by the
// parent and is independent of the CPU ceiling.
type ProcessSandbox struct {
	scratchDir  string
	interpreter string
	limits      Limits
	timeout     time.Duration
	logger      *slog.Logger
}

// ProcessConfig configures a ProcessSandbox.
type ProcessConfig struct {
	// ScratchDir is the designated directory for per-invocation files.
	// It is created if missing and must never be the caller's working
	// directory.
	ScratchDir string

	// Interpreter is the target interpreter binary. Default "python3".
	Interpreter string

	Limits  Limits
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewProcessSandbox validates the configuration and prepares the
// scratch directory. A scratch directory that cannot be created or
// written is fatal here, not a retryable result.
func NewProcessSandbox(cfg ProcessConfig) (*ProcessSandbox, error) {
	if cfg.ScratchDir == "" {
		return nil, &ErrScratchDir{Dir: cfg.ScratchDir, Err: errors.New("not configured")}
	}
	if err := os.MkdirAll(cfg.ScratchDir, 0o700); err != nil {
		return nil, &ErrScratchDir{Dir: cfg.ScratchDir, Err: err}
	}
	// Prove the directory is writable before accepting any code.
	probe := filepath.Join(cfg.ScratchDir, ".probe_"+ulid.Make().String())
	if err := os.WriteFile(probe, nil, 0o600); err != nil {
		return nil, &ErrScratchDir{Dir: cfg.ScratchDir, Err: err}
	}
	_ = os.Remove(probe)

	interpreter := cfg.Interpreter
	if interpreter == "" {
		interpreter = "python3"
	}
	if _, err := exec.LookPath(interpreter); err != nil {
		return nil, fmt.Errorf("interpreter not found: %s", interpreter)
	}

	limits := cfg.Limits
	if limits == (Limits{}) {
		limits = DefaultLimits()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &ProcessSandbox{
		scratchDir:  cfg.ScratchDir,
		interpreter: interpreter,
		limits:      limits,
		timeout:     timeout,
		logger:      logger,
	}, nil
}

// ScratchDir returns the designated scratch directory.
func (p *ProcessSandbox) ScratchDir() string { return p.scratchDir }

// Available reports whether OS-level process isolation is supported on
// the current platform. Requires bash and ulimit.
func (p *ProcessSandbox) Available() bool {
	return runtime.GOOS == "linux" || runtime.GOOS == "darwin"
}

// Execute materializes code in the scratch directory, runs it through
// the ulimit launcher, and classifies the outcome. Scratch files for
// this invocation are removed on every exit path.
func (p *ProcessSandbox) Execute(ctx context.Context, code string) (ExecutionResult, error) {
	start := time.Now()

	id := ulid.Make().String()
	scriptPath := filepath.Join(p.scratchDir, "exec_"+id+".py")
	if err := os.WriteFile(scriptPath, []byte(code), 0o600); err != nil {
		return ExecutionResult{}, &ErrScratchDir{Dir: p.scratchDir, Err: err}
	}
	defer func() { _ = os.Remove(scriptPath) }()

	wrapperPath := filepath.Join(p.scratchDir, "launch_"+id+".sh")
	if err := os.WriteFile(wrapperPath, []byte(p.launcherScript(scriptPath)), 0o700); err != nil {
		return ExecutionResult{}, &ErrScratchDir{Dir: p.scratchDir, Err: err}
	}
	defer func() { _ = os.Remove(wrapperPath) }()

	execCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "bash", wrapperPath)
	cmd.Dir = p.scratchDir
	// Minimal environment: enough to locate the interpreter, nothing
	// else. Notably no inherited PYTHONPATH.
	cmd.Env = []string{
		"PATH=/usr/local/bin:/usr/bin:/bin",
		"HOME=" + p.scratchDir,
		"TMPDIR=" + p.scratchDir,
		"PYTHONDONTWRITEBYTECODE=1",
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	elapsed := time.Since(start)

	out := strings.TrimSpace(stdout.String())
	errOut := strings.TrimSpace(stderr.String())

	if execCtx.Err() == context.DeadlineExceeded {
		p.logger.Warn("execution timed out", "timeout", p.timeout)
		return ExecutionResult{
			Success:       false,
			Output:        out,
			Error:         fmt.Sprintf("execution timed out after %s", p.timeout),
			ExecutionTime: p.timeout,
			Kind:          KindTimeout,
		}, nil
	}

	if runErr == nil {
		return ExecutionResult{
			Success:       true,
			Output:        out,
			Error:         errOut,
			ExecutionTime: elapsed,
		}, nil
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		kind, msg := p.classify(exitErr, errOut)
		p.logger.Debug("execution failed", "kind", string(kind), "exit_code", exitErr.ExitCode())
		return ExecutionResult{
			Success:       false,
			Output:        out,
			Error:         msg,
			ExecutionTime: elapsed,
			Kind:          kind,
		}, nil
	}

	// Launch-level failure (bash missing, fork failure). Still a result:
	// the retry loop must always be able to continue.
	return ExecutionResult{
		Success:       false,
		Output:        out,
		Error:         fmt.Sprintf("execution failed: %v", runErr),
		ExecutionTime: elapsed,
		Kind:          KindInternalFault,
	}, nil
}

// classify maps an exit status to the failure taxonomy. Resource kills
// arrive as signals (the launcher execs the interpreter, so the
// interpreter's termination status is observed directly) or as the
// shell's 128+signal exit codes.
func (p *ProcessSandbox) classify(exitErr *exec.ExitError, stderr string) (FailureKind, string) {
	if kind := classifyExitStatus(exitErr); kind != KindNone {
		return kind, p.limitMessage(kind)
	}
	// Python reports an address-space hit as MemoryError and a file-size
	// hit as EFBIG (it ignores SIGXFSZ), both dying with a plain nonzero
	// exit rather than a signal.
	if strings.Contains(stderr, "MemoryError") {
		return KindMemoryLimit, p.limitMessage(KindMemoryLimit)
	}
	if strings.Contains(stderr, "File too large") {
		return KindFileSizeLimit, p.limitMessage(KindFileSizeLimit)
	}
	if stderr == "" {
		return KindRuntimeFault, fmt.Sprintf("process exited with code %d", exitErr.ExitCode())
	}
	return KindRuntimeFault, stderr
}

func (p *ProcessSandbox) limitMessage(kind FailureKind) string {
	switch kind {
	case KindCPULimit:
		return fmt.Sprintf("resource limit exceeded: cpu (limit: %ds)", p.limits.CPUSeconds)
	case KindMemoryLimit:
		return fmt.Sprintf("resource limit exceeded: memory (limit: %dMB)", p.limits.MemoryBytes>>20)
	case KindFileSizeLimit:
		return fmt.Sprintf("resource limit exceeded: filesize (limit: %dMB)", p.limits.FileSizeBytes>>20)
	default:
		return "resource limit exceeded"
	}
}

// launcherScript builds the bash wrapper that applies resource ceilings
// and hands off to the interpreter. Each ulimit is best-effort: a
// ceiling the platform rejects is skipped without failing the launch.
//
// The CPU ceiling sets the soft limit one second below the hard limit:
// the kernel delivers SIGXCPU at the soft limit and only escalates to
// SIGKILL at the hard one, so a CPU kill stays distinguishable from an
// OOM kill.
func (p *ProcessSandbox) launcherScript(scriptPath string) string {
	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	if p.limits.CPUSeconds > 0 {
		fmt.Fprintf(&b, "ulimit -H -t %d 2>/dev/null || true\n", p.limits.CPUSeconds+1)
		fmt.Fprintf(&b, "ulimit -S -t %d 2>/dev/null || true\n", p.limits.CPUSeconds)
	}
	if p.limits.MemoryBytes > 0 {
		fmt.Fprintf(&b, "ulimit -v %d 2>/dev/null || true\n", p.limits.MemoryBytes/1024)
	}
	if p.limits.FileSizeBytes > 0 {
		fmt.Fprintf(&b, "ulimit -f %d 2>/dev/null || true\n", p.limits.FileSizeBytes/1024)
	}
	b.WriteString("ulimit -u 64 2>/dev/null || true\n")
	fmt.Fprintf(&b, "cd %s\n", strconv.Quote(p.scratchDir))
	fmt.Fprintf(&b, "exec %s %s\n", p.interpreter, strconv.Quote(scriptPath))
	return b.String()
}
