package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/veilcast/vidprobe-cli/internal/schemas"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// platformColumns maps a classified platform to the column its identifier is
// written to. PlatformNone and PlatformDirect intentionally absent: direct
// sources land in other_video_url like any non-hosted embed.
var platformColumns = map[schemas.Platform]string{
	schemas.PlatformStreamable: "streamable_id",
	schemas.PlatformYouTube:    "youtube_id",
	schemas.PlatformVimeo:      "vimeo_id",
	schemas.PlatformWistia:     "wistia_id",
	schemas.PlatformDirect:     "other_video_url",
	schemas.PlatformOther:      "other_video_url",
}

// VideoRow is one catalog entry still waiting for an extraction pass.
type VideoRow struct {
	ID      string
	Title   string
	PageURL string
}

// Store provides the PostgreSQL-backed video catalog.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// Connect opens a pgx pool for the configured URL and wraps it in a Store.
func Connect(ctx context.Context, databaseURL string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return New(ctx, pool, logger)
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// PendingVideos returns rows that have a page URL but no platform identifier
// yet, starting strictly after the cursor id. The id ordering makes the
// cursor a stable resume point across sessions.
func (s *Store) PendingVideos(ctx context.Context, afterID string, limit int) ([]VideoRow, error) {
	query := `
        SELECT id, COALESCE(title, ''), video_url
        FROM videos
        WHERE video_url IS NOT NULL AND video_url <> ''
          AND COALESCE(streamable_id, '') = ''
          AND COALESCE(youtube_id, '') = ''
          AND COALESCE(vimeo_id, '') = ''
          AND COALESCE(wistia_id, '') = ''
          AND COALESCE(other_video_url, '') = ''
          AND id > $1
        ORDER BY id ASC
        LIMIT $2;
    `
	rows, err := s.pool.Query(ctx, query, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending videos: %w", err)
	}
	defer rows.Close()

	var out []VideoRow
	for rows.Next() {
		var r VideoRow
		if err := rows.Scan(&r.ID, &r.Title, &r.PageURL); err != nil {
			return nil, fmt.Errorf("failed to scan video row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return out, nil
}

// SaveResult writes a successful classification back to the catalog. Results
// without a platform are not persisted; the row stays pending and the batch
// progress file records the miss instead.
func (s *Store) SaveResult(ctx context.Context, videoID string, res *schemas.ExtractionResult) error {
	if res.Failed() {
		return fmt.Errorf("refusing to persist failed attempt %s: %s", res.AttemptID, res.Error)
	}
	column, ok := platformColumns[res.Platform]
	if !ok {
		s.log.Debug("no platform to persist", zap.String("video_id", videoID))
		return nil
	}

	query := fmt.Sprintf(`UPDATE videos SET %s = $1, video_platform = $2 WHERE id = $3;`, column)
	tag, err := s.pool.Exec(ctx, query, res.Identifier, string(res.Platform), videoID)
	if err != nil {
		return fmt.Errorf("failed to update video %s: %w", videoID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("video %s not found", videoID)
	}

	s.log.Info("persisted classification",
		zap.String("video_id", videoID),
		zap.String("platform", string(res.Platform)),
		zap.String("identifier", res.Identifier))
	return nil
}

// PlatformCounts reports how many catalog rows resolved to each platform.
func (s *Store) PlatformCounts(ctx context.Context) (map[string]int64, error) {
	query := `
        SELECT COALESCE(video_platform, ''), COUNT(*)
        FROM videos
        GROUP BY COALESCE(video_platform, '');
    `
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query platform counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var platform string
		var n int64
		if err := rows.Scan(&platform, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		if platform == "" {
			platform = "unclassified"
		}
		counts[platform] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return counts, nil
}
