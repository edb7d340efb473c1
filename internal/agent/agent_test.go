package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sandkit/crucible/internal/llm"
	"github.com/sandkit/crucible/internal/memory"
	"github.com/sandkit/crucible/internal/pipeline"
	"github.com/sandkit/crucible/internal/sandbox"
	"github.com/sandkit/crucible/internal/testutil"
)

// fakeEvaluator returns canned results in sequence and records the code
// it was handed.
type fakeEvaluator struct {
	results []pipeline.Result
	err     error
	codes   []string
}

func (f *fakeEvaluator) Evaluate(_ context.Context, code string) (pipeline.Result, error) {
	f.codes = append(f.codes, code)
	if f.err != nil {
		return pipeline.Result{}, f.err
	}
	idx := len(f.codes) - 1
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	return f.results[idx], nil
}

func codeResponse(code string) llm.MockResponse {
	return llm.MockResponse{
		Content:    "Here is the code:\n```python\n" + code + "\n```",
		StopReason: llm.StopEndTurn,
	}
}

func success() pipeline.Result {
	return pipeline.Result{ExecutionResult: sandbox.ExecutionResult{Success: true, Output: "ok"}}
}

func fault(msg string) pipeline.Result {
	return pipeline.Result{ExecutionResult: sandbox.ExecutionResult{
		Success: false,
		Error:   msg,
		Kind:    sandbox.KindRuntimeFault,
	}}
}

func TestRunStopsOnFirstSuccess(t *testing.T) {
	client := llm.NewMockClient(codeResponse("print('hello')"))
	eval := &fakeEvaluator{results: []pipeline.Result{success()}}
	mem := memory.New(5)

	a := New(client, eval, mem, Options{MaxIterations: 5})
	out, err := a.Run(context.Background(), "print hello")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.Achieved || out.Iterations != 1 {
		t.Errorf("unexpected outcome: %+v", out)
	}
	if out.Code != "print('hello')" {
		t.Errorf("unexpected code: %q", out.Code)
	}
	if mem.Count() != 1 {
		t.Errorf("expected one recorded attempt, got %d", mem.Count())
	}
}

func TestRunRetriesUntilSuccess(t *testing.T) {
	client := llm.NewMockClient(
		codeResponse("print(x)"),
		codeResponse("x = 1\nprint(x)"),
	)
	eval := &fakeEvaluator{results: []pipeline.Result{
		fault("NameError: name 'x' is not defined"),
		success(),
	}}
	mem := memory.New(5)

	a := New(client, eval, mem, Options{MaxIterations: 5})
	out, err := a.Run(context.Background(), "print x")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.Achieved || out.Iterations != 2 {
		t.Errorf("unexpected outcome: %+v", out)
	}
	if mem.Count() != 2 {
		t.Errorf("expected both attempts recorded, got %d", mem.Count())
	}

	// The second prompt must carry the reflection digest.
	calls := client.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected two chats, got %d", len(calls))
	}
	second := calls[1].Messages[len(calls[1].Messages)-1].Content
	if !strings.Contains(second, "Reflection on Previous Attempts") {
		t.Errorf("second prompt missing reflection:\n%s", second)
	}
	if !strings.Contains(second, "NameError") {
		t.Errorf("second prompt missing the previous error:\n%s", second)
	}
}

func TestRunGivesUpAfterMaxIterations(t *testing.T) {
	client := llm.NewMockClient(codeResponse("raise ValueError"))
	eval := &fakeEvaluator{results: []pipeline.Result{fault("ValueError")}}
	mem := memory.New(5)

	a := New(client, eval, mem, Options{MaxIterations: 3})
	out, err := a.Run(context.Background(), "impossible")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Achieved {
		t.Error("expected failure outcome")
	}
	if out.Iterations != 3 {
		t.Errorf("expected 3 iterations, got %d", out.Iterations)
	}
	if len(eval.codes) != 3 {
		t.Errorf("expected 3 evaluations, got %d", len(eval.codes))
	}
}

func TestRunRecordsMissingCodeBlock(t *testing.T) {
	client := llm.NewMockClient(
		llm.MockResponse{Content: "I cannot write code for that.", StopReason: llm.StopEndTurn},
		codeResponse("print('hello')"),
	)
	eval := &fakeEvaluator{results: []pipeline.Result{success()}}
	mem := memory.New(5)

	a := New(client, eval, mem, Options{MaxIterations: 5})
	out, err := a.Run(context.Background(), "print hello")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.Achieved || out.Iterations != 2 {
		t.Errorf("unexpected outcome: %+v", out)
	}
	all := mem.All()
	if len(all) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(all))
	}
	if all[0].Error != "no code block returned" || all[0].Code != "" {
		t.Errorf("unexpected first attempt: %+v", all[0])
	}
	// No code means nothing to evaluate.
	if len(eval.codes) != 1 {
		t.Errorf("expected one evaluation, got %d", len(eval.codes))
	}
}

func TestRunPropagatesClientError(t *testing.T) {
	client := llm.NewMockClient(llm.MockResponse{Error: errors.New("api unavailable")})
	a := New(client, &fakeEvaluator{}, memory.New(5), Options{MaxIterations: 5})

	if _, err := a.Run(context.Background(), "goal"); err == nil {
		t.Fatal("expected transport error to propagate")
	}
}

func TestRunPropagatesEvaluatorError(t *testing.T) {
	client := llm.NewMockClient(codeResponse("print('x')"))
	eval := &fakeEvaluator{err: &sandbox.ErrScratchDir{Dir: "/gone", Err: errors.New("enoent")}}
	a := New(client, eval, memory.New(5), Options{MaxIterations: 5})

	_, err := a.Run(context.Background(), "goal")
	var scratchErr *sandbox.ErrScratchDir
	if !errors.As(err, &scratchErr) {
		t.Fatalf("expected ErrScratchDir, got %v", err)
	}
}

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "fenced block",
			text: "Explanation.\n```python\nprint('hi')\n```",
			want: "print('hi')",
		},
		{
			name: "first of several blocks",
			text: "```python\nfirst\n```\n```python\nsecond\n```",
			want: "first",
		},
		{
			name: "no block",
			text: "no code here",
			want: "",
		},
		{
			name: "plain fence is not a python block",
			text: "```\nprint('hi')\n```",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractCode(tt.text); got != tt.want {
				t.Errorf("ExtractCode(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestBuildUserPrompt(t *testing.T) {
	t.Run("first iteration", func(t *testing.T) {
		got := buildUserPrompt("sort a list", 1, memory.New(5))
		testutil.AssertContains(t, got, "Goal: sort a list")
		testutil.AssertContains(t, got, "first attempt")
	})
	t.Run("later iteration with history", func(t *testing.T) {
		mem := memory.New(5)
		mem.Add(memory.Attempt{Iteration: 1, Error: "TypeError: boom"})
		got := buildUserPrompt("sort a list", 2, mem)
		testutil.AssertContains(t, got, "Reflection on Previous Attempts")
		testutil.AssertContains(t, got, "corrected version")
	})
	t.Run("later iteration with empty history", func(t *testing.T) {
		got := buildUserPrompt("sort a list", 3, memory.New(5))
		testutil.AssertContains(t, got, "first attempt")
	})
}
