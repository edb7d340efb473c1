package memory

import (
	"encoding/json"
	"fmt"
)

// snapshot is the serialized envelope. Versioned so an external
// persistence collaborator can evolve the format.
type snapshot struct {
	Version  string    `json:"version"`
	MaxSize  int       `json:"max_size"`
	Attempts []Attempt `json:"attempts"`
}

const snapshotVersion = "1.0"

// Serialize renders the history as JSON for an external persistence
// collaborator. The memory itself never touches disk.
func (m *ShortTermMemory) Serialize() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(snapshot{
		Version:  snapshotVersion,
		MaxSize:  m.maxSize,
		Attempts: m.attempts,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialize memory: %w", err)
	}
	return data, nil
}

// Restore replaces the history with a previously serialized snapshot.
// The current maxSize is kept; a snapshot longer than the window is
// truncated to its most recent entries.
func (m *ShortTermMemory) Restore(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("restore memory: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	attempts := snap.Attempts
	if len(attempts) > m.maxSize {
		attempts = attempts[len(attempts)-m.maxSize:]
	}
	m.attempts = make([]Attempt, len(attempts))
	copy(m.attempts, attempts)
	return nil
}
