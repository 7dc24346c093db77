package enumerate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// checkpointState is the on-disk shape of a crawl checkpoint.
type checkpointState struct {
	Slices    map[string]sliceState `json:"slices"`
	Records   int                   `json:"records"`
	Partials  int                   `json:"partials"`
	UpdatedAt time.Time             `json:"updated_at"`
}

type sliceState struct {
	Records  int  `json:"records"`
	Complete bool `json:"complete"`
}

// Checkpoint tracks which (area, year) slices have been persisted, so an
// interrupted crawl resumes instead of re-querying finished slices. The
// state file is replaced atomically on every update.
type Checkpoint struct {
	mu    sync.Mutex
	path  string
	state checkpointState
}

// LoadCheckpoint opens (or initializes) the checkpoint in stateDir.
func LoadCheckpoint(stateDir string) (*Checkpoint, error) {
	path := filepath.Join(filepath.Clean(stateDir), "checkpoint.json")
	cp := &Checkpoint{
		path:  path,
		state: checkpointState{Slices: map[string]sliceState{}},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cp, nil
		}
		return nil, fmt.Errorf("read checkpoint %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cp.state); err != nil {
		return nil, fmt.Errorf("parse checkpoint %s: %w", path, err)
	}
	if cp.state.Slices == nil {
		cp.state.Slices = map[string]sliceState{}
	}
	return cp, nil
}

func sliceKey(area string, year int) string {
	return fmt.Sprintf("%s/%d", area, year)
}

// Done reports whether the slice has already been persisted.
func (cp *Checkpoint) Done(area string, year int) bool {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	_, ok := cp.state.Slices[sliceKey(area, year)]
	return ok
}

// MarkDone records a persisted slice and flushes the state file. The lock is
// held across the write so concurrent area goroutines cannot rename snapshots
// out of order and persist a stale one.
func (cp *Checkpoint) MarkDone(area string, year, records int, complete bool) error {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.state.Slices[sliceKey(area, year)] = sliceState{Records: records, Complete: complete}
	cp.state.Records += records
	if !complete {
		cp.state.Partials++
	}
	cp.state.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(cp.state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	return cp.save(data)
}

// Slices returns how many slices are recorded and how many of them came
// back partial.
func (cp *Checkpoint) Slices() (done, partial int) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return len(cp.state.Slices), cp.state.Partials
}

// Reset drops all recorded progress and flushes the empty state.
func (cp *Checkpoint) Reset() error {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.state = checkpointState{Slices: map[string]sliceState{}, UpdatedAt: time.Now().UTC()}
	data, err := json.MarshalIndent(cp.state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	return cp.save(data)
}

func (cp *Checkpoint) save(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(cp.path), 0o700); err != nil {
		return fmt.Errorf("checkpoint dir: %w", err)
	}
	tmp := cp.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, cp.path); err != nil {
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}
