package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/armash/log-ingestor/internal/engine"
	"github.com/armash/log-ingestor/internal/stats"
)

const Version = 1

// Summary is the JSON document written at the end of a run.
type Summary struct {
	Version    int          `json:"version"`
	RunID      string       `json:"runId"`
	SourceFile string       `json:"sourceFile"`
	Output     string       `json:"output"`
	Workers    int          `json:"workers"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	DurationMs int64        `json:"durationMs"`
	Error      string       `json:"error,omitempty"`
	Stats      *stats.Stats `json:"stats"`
}

// FromResult builds a Summary for a finished run. output is "" for console.
func FromResult(res engine.Result, output string, runErr error) Summary {
	s := Summary{
		Version:    Version,
		RunID:      res.RunID,
		SourceFile: res.File,
		Output:     output,
		Workers:    res.Workers,
		StartedAt:  res.StartedAt.UTC(),
		FinishedAt: res.FinishedAt.UTC(),
		DurationMs: res.Duration().Milliseconds(),
		Stats:      res.Stats,
	}
	if runErr != nil {
		s.Error = runErr.Error()
	}
	return s
}

// Write stores s at path, replacing any previous file atomically.
func Write(path string, s Summary) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}
