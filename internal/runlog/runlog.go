// Package runlog keeps a thread-safe, file-backed history of pipeline runs.
// The history is rotated to a fixed depth; the latest report is additionally
// written to its own file so operators and health checks can read it without
// parsing the whole log. Writes are atomic (temp file plus rename).
package runlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mokoia/spawatch/internal/models"
)

const defaultMaxEntries = 100

// Log stores recent run reports in memory and mirrors them to disk.
type Log struct {
	entries    []models.RunReport
	mu         sync.RWMutex
	maxEntries int
	dir        string
}

// persistenceFile is the on-disk layout of the run history.
type persistenceFile struct {
	Version string             `json:"version"`
	SavedAt time.Time          `json:"saved_at"`
	Runs    []models.RunReport `json:"runs"`
}

// New creates a run log persisted under dir. maxEntries below 1 falls back
// to the default depth.
func New(dir string, maxEntries int) *Log {
	if maxEntries < 1 {
		maxEntries = defaultMaxEntries
	}
	return &Log{
		maxEntries: maxEntries,
		dir:        dir,
	}
}

// Record appends a report, rotates the history, and persists both files.
func (l *Log) Record(report *models.RunReport) error {
	l.mu.Lock()
	l.entries = append(l.entries, *report)
	if len(l.entries) > l.maxEntries {
		l.entries = l.entries[len(l.entries)-l.maxEntries:]
	}
	snapshot := make([]models.RunReport, len(l.entries))
	copy(snapshot, l.entries)
	l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create run log directory: %w", err)
	}

	history := persistenceFile{
		Version: "1.0",
		SavedAt: time.Now(),
		Runs:    snapshot,
	}
	if err := writeJSONAtomic(filepath.Join(l.dir, "runs.json"), history); err != nil {
		return err
	}
	return writeJSONAtomic(filepath.Join(l.dir, "last_run.json"), report)
}

// Load restores the history from disk. A missing file starts fresh.
func (l *Log) Load() error {
	path := filepath.Join(l.dir, "runs.json")

	// Clean up a stale temp file from a previous crash.
	if _, err := os.Stat(path + ".tmp"); err == nil {
		_ = os.Remove(path + ".tmp")
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read run log: %w", err)
	}

	var file persistenceFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to unmarshal run log: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = file.Runs
	if len(l.entries) > l.maxEntries {
		l.entries = l.entries[len(l.entries)-l.maxEntries:]
	}
	return nil
}

// Last returns the most recent report, or nil if no run has completed.
func (l *Log) Last() *models.RunReport {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.entries) == 0 {
		return nil
	}
	last := l.entries[len(l.entries)-1]
	return &last
}

// Len returns the number of retained reports.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Stale reports whether the newest run is older than maxAge. An empty log
// is stale: nothing has run yet.
func (l *Log) Stale(now time.Time, maxAge time.Duration) bool {
	last := l.Last()
	if last == nil {
		return true
	}
	return now.Sub(last.StartedAt) > maxAge
}

// ConsecutiveFailures counts how many of the newest runs failed in a row.
func (l *Log) ConsecutiveFailures() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	count := 0
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].Succeeded() {
			break
		}
		count++
	}
	return count
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run log: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write run log: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to replace run log: %w", err)
	}
	return nil
}
