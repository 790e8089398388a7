package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Progress is the checkpoint written between rows so an interrupted batch
// resumes where it stopped instead of re-probing the whole catalog.
type Progress struct {
	SessionCount    int            `json:"session_count"`
	StartedAt       time.Time      `json:"started_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	Processed       int            `json:"processed"`
	Successful      int            `json:"successful"`
	Failed          int            `json:"failed"`
	ByPlatform      map[string]int `json:"by_platform"`
	LastProcessedID string         `json:"last_processed_id"`
}

// LoadProgress reads a checkpoint, returning a fresh one when the file does
// not exist yet. A file that exists but does not decode is an error; silently
// restarting from zero would re-hammer every page already done.
func LoadProgress(path string) (*Progress, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Progress{
			StartedAt:  time.Now().UTC(),
			ByPlatform: make(map[string]int),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading progress file %s: %w", path, err)
	}

	var p Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("progress file %s is corrupt: %w", path, err)
	}
	if p.ByPlatform == nil {
		p.ByPlatform = make(map[string]int)
	}
	return &p, nil
}

// Save writes the checkpoint atomically via a temp file rename.
func (p *Progress) Save(path string) error {
	p.UpdatedAt = time.Now().UTC()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating progress directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding progress: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing progress file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing progress file: %w", err)
	}
	return nil
}
