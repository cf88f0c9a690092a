// Package journal provides crash-safe persistence of evaluation outcomes
// using JSON files.
//
// Each market's latest evaluation is stored as a separate file:
// eval_<ticker>.json. Writes use atomic file replacement (write to .tmp,
// then rename) to prevent corruption from partial writes or crashes
// mid-save. The engine records after every evaluation cycle; downstream
// tooling reads the files to inspect what the trader last decided and why.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"weather-trader/pkg/types"
)

// Entry is one journaled evaluation: the signal, the gate verdict, and
// enough context to correlate it with a poll cycle.
type Entry struct {
	CycleID      string       `json:"cycle_id"`
	City         string       `json:"city"`
	Ticker       string       `json:"ticker"`
	Signal       types.Signal `json:"signal"`
	GatesPassed  bool         `json:"gates_passed"`
	GateFailures []string     `json:"gate_failures,omitempty"`
	EvaluatedAt  time.Time    `json:"evaluated_at"`
}

// Journal persists entries to JSON files in a designated directory.
// All operations are mutex-protected to prevent concurrent file corruption.
type Journal struct {
	dir string
	mu  sync.Mutex
}

// Open creates a journal backed by the given directory.
func Open(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	return &Journal{dir: dir}, nil
}

// Close is a no-op for file-based storage.
func (j *Journal) Close() error {
	return nil
}

// Record atomically persists the latest evaluation for a market. It writes
// to a .tmp file first, then renames over the target so the file is never
// left in a partial state.
func (j *Journal) Record(e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	path := filepath.Join(j.dir, "eval_"+e.Ticker+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load restores the latest entry for a market from disk.
// Returns nil, nil if no entry exists.
func (j *Journal) Load(ticker string) (*Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	path := filepath.Join(j.dir, "eval_"+ticker+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read entry: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal entry: %w", err)
	}
	return &e, nil
}
