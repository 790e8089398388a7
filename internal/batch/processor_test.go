package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/veilcast/vidprobe-cli/internal/config"
	"github.com/veilcast/vidprobe-cli/internal/schemas"
	"github.com/veilcast/vidprobe-cli/internal/store"
)

type fakeStore struct {
	mu      sync.Mutex
	rows    []store.VideoRow
	saved   map[string]*schemas.ExtractionResult
	listErr error
	saveErr error
	cursors []string
}

func newFakeStore(rows ...store.VideoRow) *fakeStore {
	return &fakeStore{rows: rows, saved: make(map[string]*schemas.ExtractionResult)}
}

func (f *fakeStore) PendingVideos(_ context.Context, afterID string, limit int) ([]store.VideoRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.cursors = append(f.cursors, afterID)

	var out []store.VideoRow
	for _, r := range f.rows {
		if r.ID > afterID {
			out = append(out, r)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) SaveResult(_ context.Context, videoID string, res *schemas.ExtractionResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved[videoID] = res
	return nil
}

func testBatchConfig(t *testing.T) config.BatchConfig {
	t.Helper()
	return config.BatchConfig{
		RateLimit:       time.Millisecond,
		ProgressFile:    filepath.Join(t.TempDir(), "progress.json"),
		CheckpointEvery: 2,
		Concurrency:     1,
	}
}

func hitResult(platform schemas.Platform, id string) *schemas.ExtractionResult {
	return &schemas.ExtractionResult{AttemptID: "a", Platform: platform, Identifier: id}
}

func TestRunDrainsCatalog(t *testing.T) {
	st := newFakeStore(
		store.VideoRow{ID: "vid-001", PageURL: "https://t/1"},
		store.VideoRow{ID: "vid-002", PageURL: "https://t/2"},
		store.VideoRow{ID: "vid-003", PageURL: "https://t/3"},
	)
	probe := func(_ context.Context, pageURL string) (*schemas.ExtractionResult, error) {
		switch pageURL {
		case "https://t/1":
			return hitResult(schemas.PlatformStreamable, "yiv10d"), nil
		case "https://t/2":
			return hitResult(schemas.PlatformNone, ""), nil
		default:
			res := hitResult(schemas.PlatformNone, "")
			res.Error = "timed out in state navigated"
			res.FailedState = "navigated"
			return res, nil
		}
	}

	cfg := testBatchConfig(t)
	p := NewProcessor(cfg, st, probe, zaptest.NewLogger(t))
	progress, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, progress.Processed)
	assert.Equal(t, 1, progress.Successful)
	assert.Equal(t, 1, progress.Failed)
	assert.Equal(t, 1, progress.ByPlatform["streamable"])
	assert.Equal(t, 2, progress.ByPlatform["none"])
	assert.Equal(t, "vid-003", progress.LastProcessedID)
	assert.Equal(t, 1, progress.SessionCount)

	require.Contains(t, st.saved, "vid-001", "only the hit gets persisted")
	assert.Len(t, st.saved, 1)

	// Checkpoint lands on disk and reloads cleanly.
	reloaded, err := LoadProgress(cfg.ProgressFile)
	require.NoError(t, err)
	assert.Equal(t, "vid-003", reloaded.LastProcessedID)
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	cfg := testBatchConfig(t)

	prior := &Progress{
		SessionCount:    1,
		Processed:       2,
		ByPlatform:      map[string]int{"streamable": 1},
		LastProcessedID: "vid-002",
	}
	require.NoError(t, prior.Save(cfg.ProgressFile))

	st := newFakeStore(
		store.VideoRow{ID: "vid-001", PageURL: "https://t/1"},
		store.VideoRow{ID: "vid-003", PageURL: "https://t/3"},
	)
	probe := func(context.Context, string) (*schemas.ExtractionResult, error) {
		return hitResult(schemas.PlatformYouTube, "dQw4w9WgXcQ"), nil
	}

	p := NewProcessor(cfg, st, probe, zaptest.NewLogger(t))
	progress, err := p.Run(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, st.cursors)
	assert.Equal(t, "vid-002", st.cursors[0], "first fetch resumes after the checkpoint")
	assert.Equal(t, 2, progress.SessionCount)
	assert.Equal(t, 3, progress.Processed)
	assert.NotContains(t, st.saved, "vid-001", "rows before the cursor are skipped")
}

func TestRunHonorsLimit(t *testing.T) {
	st := newFakeStore(
		store.VideoRow{ID: "vid-001", PageURL: "https://t/1"},
		store.VideoRow{ID: "vid-002", PageURL: "https://t/2"},
		store.VideoRow{ID: "vid-003", PageURL: "https://t/3"},
	)
	probe := func(context.Context, string) (*schemas.ExtractionResult, error) {
		return hitResult(schemas.PlatformVimeo, "12345678"), nil
	}

	cfg := testBatchConfig(t)
	cfg.Limit = 2
	p := NewProcessor(cfg, st, probe, zaptest.NewLogger(t))
	progress, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, progress.Processed)
	assert.Equal(t, "vid-002", progress.LastProcessedID)
}

func TestRunAbortsOnSessionError(t *testing.T) {
	st := newFakeStore(
		store.VideoRow{ID: "vid-001", PageURL: "https://t/1"},
		store.VideoRow{ID: "vid-002", PageURL: "https://t/2"},
	)
	sessionErr := errors.New("remote debugging endpoint unreachable")
	probe := func(context.Context, string) (*schemas.ExtractionResult, error) {
		return nil, sessionErr
	}

	cfg := testBatchConfig(t)
	p := NewProcessor(cfg, st, probe, zaptest.NewLogger(t))
	_, err := p.Run(context.Background())
	require.ErrorIs(t, err, sessionErr)

	_, statErr := os.Stat(cfg.ProgressFile)
	assert.NoError(t, statErr, "progress must be checkpointed on abort")
}

func TestRunCorruptProgressFile(t *testing.T) {
	cfg := testBatchConfig(t)
	require.NoError(t, os.WriteFile(cfg.ProgressFile, []byte("{not json"), 0o644))

	p := NewProcessor(cfg, newFakeStore(), nil, zaptest.NewLogger(t))
	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt")
}

func TestRunConcurrent(t *testing.T) {
	st := newFakeStore(
		store.VideoRow{ID: "vid-001", PageURL: "https://t/1"},
		store.VideoRow{ID: "vid-002", PageURL: "https://t/2"},
		store.VideoRow{ID: "vid-003", PageURL: "https://t/3"},
		store.VideoRow{ID: "vid-004", PageURL: "https://t/4"},
	)
	probe := func(context.Context, string) (*schemas.ExtractionResult, error) {
		return hitResult(schemas.PlatformWistia, "ab12cd34ef"), nil
	}

	cfg := testBatchConfig(t)
	cfg.Concurrency = 3
	p := NewProcessor(cfg, st, probe, zaptest.NewLogger(t))
	progress, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, progress.Processed)
	assert.Equal(t, 4, progress.Successful)
	assert.Len(t, st.saved, 4)
}

func TestProgressRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "progress.json")

	p := &Progress{
		SessionCount:    3,
		Processed:       10,
		Successful:      6,
		Failed:          1,
		ByPlatform:      map[string]int{"streamable": 4, "none": 3},
		LastProcessedID: "vid-010",
		StartedAt:       time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, p.Save(path))

	got, err := LoadProgress(path)
	require.NoError(t, err)
	assert.Equal(t, p.SessionCount, got.SessionCount)
	assert.Equal(t, p.ByPlatform, got.ByPlatform)
	assert.Equal(t, "vid-010", got.LastProcessedID)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestLoadProgressMissingFileIsFresh(t *testing.T) {
	got, err := LoadProgress(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Zero(t, got.Processed)
	assert.NotNil(t, got.ByPlatform)
	assert.Empty(t, got.LastProcessedID)
}
