// Package agent implements the retry loop that asks a model for code,
// evaluates it through the pipeline, and feeds the reflection digest
// back into the next prompt.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sandkit/crucible/internal/harness"
	"github.com/sandkit/crucible/internal/llm"
	"github.com/sandkit/crucible/internal/memory"
	"github.com/sandkit/crucible/internal/pipeline"
	"github.com/sandkit/crucible/internal/telemetry"
)

// Evaluator runs one code sample through the evaluation pipeline.
// Satisfied by pipeline.Evaluator.
type Evaluator interface {
	Evaluate(ctx context.Context, code string) (pipeline.Result, error)
}

// Store persists attempts. Optional; a nil store disables persistence.
type Store interface {
	SaveSnapshot(m *memory.ShortTermMemory) error
	LogAttempt(goal string, a memory.Attempt) error
}

// Options configure an Agent.
type Options struct {
	Model         string
	MaxIterations int
	MaxTokens     int
	Store         Store
	Metrics       *telemetry.Metrics
	Logger        *slog.Logger
}

// Agent drives the generate-evaluate-reflect loop.
type Agent struct {
	client  llm.Client
	eval    Evaluator
	mem     *memory.ShortTermMemory
	store   Store
	model   string
	maxIter int
	maxTok  int
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// Outcome is the final result of a loop run.
type Outcome struct {
	Achieved   bool
	Iterations int
	Code       string
	Final      pipeline.Result
}

// New creates an agent over the given client, evaluator, and memory.
func New(client llm.Client, eval Evaluator, mem *memory.ShortTermMemory, opts Options) *Agent {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = 5
	}
	maxTok := opts.MaxTokens
	if maxTok <= 0 {
		maxTok = 4096
	}
	return &Agent{
		client:  client,
		eval:    eval,
		mem:     mem,
		store:   opts.Store,
		model:   opts.Model,
		maxIter: maxIter,
		maxTok:  maxTok,
		metrics: opts.Metrics,
		logger:  logger,
	}
}

// Run iterates until the goal is achieved or iterations run out. The
// returned error is reserved for infrastructure failures (LLM transport,
// sandbox scratch area); a goal that was simply never achieved is a
// successful run with Achieved=false.
func (a *Agent) Run(ctx context.Context, goal string) (*Outcome, error) {
	logger := telemetry.RunLogger(a.logger, ctx, goal)
	var messages []llm.Message

	for iteration := 1; iteration <= a.maxIter; iteration++ {
		logger.Info("starting iteration", "iteration", iteration, "max", a.maxIter)

		messages = append(messages, llm.Message{
			Role:    llm.RoleUser,
			Content: buildUserPrompt(goal, iteration, a.mem),
		})

		resp, err := a.client.Chat(ctx, llm.ChatRequest{
			Model:     a.model,
			System:    systemPrompt,
			Messages:  messages,
			MaxTokens: a.maxTok,
		})
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", iteration, err)
		}
		messages = append(messages, llm.Message{
			Role:    llm.RoleAssistant,
			Content: resp.Content,
		})

		code := ExtractCode(resp.Content)
		if code == "" {
			logger.Warn("no code block in response", "iteration", iteration)
			a.record(goal, memory.Attempt{
				ID:        ulid.Make().String(),
				Iteration: iteration,
				Code:      "",
				Success:   false,
				Error:     "no code block returned",
				Timestamp: time.Now().UTC(),
			})
			continue
		}

		res, err := a.eval.Evaluate(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", iteration, err)
		}

		attempt := memory.Attempt{
			ID:        ulid.Make().String(),
			Iteration: iteration,
			Code:      code,
			Success:   res.Success,
			Output:    res.Output,
			Error:     res.Error,
			Tests:     summarize(res.Tests),
			Timestamp: time.Now().UTC(),
		}
		a.record(goal, attempt)

		if res.Success {
			logger.Info("goal achieved", "iteration", iteration)
			return &Outcome{
				Achieved:   true,
				Iterations: iteration,
				Code:       code,
				Final:      res,
			}, nil
		}
		logger.Info("attempt failed",
			"iteration", iteration, "kind", string(res.Kind),
			"error", firstLine(res.Error))
	}

	logger.Info("gave up", "iterations", a.maxIter)
	return &Outcome{Achieved: false, Iterations: a.maxIter}, nil
}

// record adds the attempt to memory and best-effort persists it.
// Persistence failures are logged, not fatal: losing a log file must
// not stop the loop.
func (a *Agent) record(goal string, attempt memory.Attempt) {
	a.mem.Add(attempt)
	if a.metrics != nil {
		a.metrics.RecordAttempt(attempt.Success)
	}
	if a.store == nil {
		return
	}
	if err := a.store.LogAttempt(goal, attempt); err != nil {
		a.logger.Warn("failed to log attempt", "error", err)
	}
	if err := a.store.SaveSnapshot(a.mem); err != nil {
		a.logger.Warn("failed to snapshot memory", "error", err)
	}
}

// summarize reduces a harness report to the slice the memory retains.
func summarize(report *harness.TestResult) *memory.TestSummary {
	if report == nil {
		return nil
	}
	s := &memory.TestSummary{
		TotalTests: report.TotalTests,
		Passed:     report.Passed,
		Failed:     report.Failed,
		Errors:     report.Errors,
	}
	for _, f := range report.Failures {
		s.Failures = append(s.Failures, memory.TestFailureRef{
			TestName: f.TestName,
			Message:  f.Message,
		})
	}
	return s
}
