package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sandkit/crucible/internal/memory"
)

func TestNewLocalCreatesStateDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	if _, err := NewLocal(dir); err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("stat state dir: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("state path is not a directory")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	local, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	m := memory.New(5)
	m.Add(memory.Attempt{ID: "a1", Iteration: 1, Error: "NameError"})
	m.Add(memory.Attempt{ID: "a2", Iteration: 2, Success: true})
	if err := local.SaveSnapshot(m); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	restored := memory.New(5)
	if err := local.LoadSnapshot(restored); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if restored.Count() != 2 {
		t.Fatalf("expected 2 attempts, got %d", restored.Count())
	}
	all := restored.All()
	if all[0].ID != "a1" || all[1].ID != "a2" {
		t.Errorf("unexpected attempts: %+v", all)
	}
}

func TestSaveSnapshotReplacesPrevious(t *testing.T) {
	local, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	m := memory.New(5)
	m.Add(memory.Attempt{ID: "a1", Iteration: 1})
	if err := local.SaveSnapshot(m); err != nil {
		t.Fatalf("first SaveSnapshot: %v", err)
	}
	m.Add(memory.Attempt{ID: "a2", Iteration: 2})
	if err := local.SaveSnapshot(m); err != nil {
		t.Fatalf("second SaveSnapshot: %v", err)
	}

	restored := memory.New(5)
	if err := local.LoadSnapshot(restored); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if restored.Count() != 2 {
		t.Errorf("expected the latest snapshot, got %d attempts", restored.Count())
	}
}

func TestLoadSnapshotMissingFileLeavesMemoryUntouched(t *testing.T) {
	local, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	m := memory.New(5)
	m.Add(memory.Attempt{ID: "a1", Iteration: 1})
	if err := local.LoadSnapshot(m); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if m.Count() != 1 {
		t.Errorf("memory was modified, count %d", m.Count())
	}
}

func TestLogAttemptWritesRecord(t *testing.T) {
	dir := t.TempDir()
	local, err := NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	a := memory.Attempt{ID: "01ABC", Iteration: 3, Code: "print('x')", Error: "TypeError"}
	if err := local.LogAttempt("sort a list", a); err != nil {
		t.Fatalf("LogAttempt: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "attempt_01ABC.json"))
	if err != nil {
		t.Fatalf("read attempt log: %v", err)
	}
	var record struct {
		Goal      string `json:"goal"`
		ID        string `json:"id"`
		Iteration int    `json:"iteration"`
	}
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("unmarshal attempt log: %v", err)
	}
	if record.Goal != "sort a list" || record.ID != "01ABC" || record.Iteration != 3 {
		t.Errorf("unexpected record: %+v", record)
	}
}
