// Package store is the persistence collaborator for attempt history.
// The evaluation core only serializes and restores; all disk I/O lives
// here.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sandkit/crucible/internal/memory"
)

// Local persists attempt history as JSON files under a state directory:
// a rolling memory snapshot for crash recovery plus one record file per
// attempt for later review.
type Local struct {
	dir string
}

// NewLocal prepares the state directory.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir %s: %w", dir, err)
	}
	return &Local{dir: dir}, nil
}

// snapshotFile is the rolling memory snapshot path.
func (l *Local) snapshotFile() string {
	return filepath.Join(l.dir, "memory.json")
}

// SaveSnapshot writes the serialized memory, replacing any previous
// snapshot atomically.
func (l *Local) SaveSnapshot(m *memory.ShortTermMemory) error {
	data, err := m.Serialize()
	if err != nil {
		return err
	}
	tmp := l.snapshotFile() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, l.snapshotFile()); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot restores memory from the last snapshot. A missing
// snapshot is not an error; the memory is left unchanged.
func (l *Local) LoadSnapshot(m *memory.ShortTermMemory) error {
	data, err := os.ReadFile(l.snapshotFile())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read snapshot: %w", err)
	}
	return m.Restore(data)
}

// attemptRecord is the on-disk shape of one attempt log.
type attemptRecord struct {
	Goal string `json:"goal"`
	memory.Attempt
}

// LogAttempt writes one attempt record file, keyed by the attempt ID.
func (l *Local) LogAttempt(goal string, a memory.Attempt) error {
	data, err := json.MarshalIndent(attemptRecord{Goal: goal, Attempt: a}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	path := filepath.Join(l.dir, "attempt_"+a.ID+".json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write attempt log: %w", err)
	}
	return nil
}
