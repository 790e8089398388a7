package batch

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/veilcast/vidprobe-cli/internal/config"
	"github.com/veilcast/vidprobe-cli/internal/schemas"
	"github.com/veilcast/vidprobe-cli/internal/store"
)

// fetchSize is how many pending rows one catalog query pulls.
const fetchSize = 50

// StoreAPI is the slice of the store the processor needs.
type StoreAPI interface {
	PendingVideos(ctx context.Context, afterID string, limit int) ([]store.VideoRow, error)
	SaveResult(ctx context.Context, videoID string, res *schemas.ExtractionResult) error
}

// ProbeFunc runs one full extraction attempt against a page. Errors are
// session-level failures (endpoint unreachable, no usable tab) and abort the
// batch; per-page failures come back inside the result.
type ProbeFunc func(ctx context.Context, pageURL string) (*schemas.ExtractionResult, error)

// Processor walks the pending catalog rows, probes each page, persists hits,
// and checkpoints progress as it goes.
type Processor struct {
	cfg     config.BatchConfig
	store   StoreAPI
	probe   ProbeFunc
	limiter *rate.Limiter
	log     *zap.Logger
}

func NewProcessor(cfg config.BatchConfig, st StoreAPI, probe ProbeFunc, logger *zap.Logger) *Processor {
	return &Processor{
		cfg:     cfg,
		store:   st,
		probe:   probe,
		limiter: rate.NewLimiter(rate.Every(cfg.RateLimit), 1),
		log:     logger.Named("batch"),
	}
}

// Run processes pending rows until the catalog is drained, the session limit
// is hit, or a session-level error aborts the batch. The returned progress
// reflects everything checkpointed, including on error.
func (p *Processor) Run(ctx context.Context) (*Progress, error) {
	progress, err := LoadProgress(p.cfg.ProgressFile)
	if err != nil {
		return nil, err
	}
	progress.SessionCount++
	p.log.Info("batch session starting",
		zap.Int("session", progress.SessionCount),
		zap.String("resume_after", progress.LastProcessedID),
		zap.Int("limit", p.cfg.Limit))

	var processedThisSession int
	for {
		if err := ctx.Err(); err != nil {
			return progress, err
		}

		remaining := fetchSize
		if p.cfg.Limit > 0 {
			if left := p.cfg.Limit - processedThisSession; left < remaining {
				remaining = left
			}
		}
		if remaining <= 0 {
			break
		}

		rows, err := p.store.PendingVideos(ctx, progress.LastProcessedID, remaining)
		if err != nil {
			return progress, err
		}
		if len(rows) == 0 {
			break
		}

		if err := p.processPage(ctx, progress, rows); err != nil {
			saveErr := progress.Save(p.cfg.ProgressFile)
			if saveErr != nil {
				p.log.Error("failed to checkpoint after abort", zap.Error(saveErr))
			}
			return progress, err
		}
		processedThisSession += len(rows)

		if err := progress.Save(p.cfg.ProgressFile); err != nil {
			return progress, err
		}
	}

	if err := progress.Save(p.cfg.ProgressFile); err != nil {
		return progress, err
	}
	p.log.Info("batch session finished",
		zap.Int("processed", progress.Processed),
		zap.Int("successful", progress.Successful),
		zap.Int("failed", progress.Failed))
	return progress, nil
}

// processPage probes one fetched page of rows, optionally in parallel. The
// resume cursor only advances once the whole page is done, so an abort mid
// page re-probes at most one fetch worth of rows.
func (p *Processor) processPage(ctx context.Context, progress *Progress, rows []store.VideoRow) error {
	var mu sync.Mutex
	checkpointDue := 0

	g, gctx := errgroup.WithContext(ctx)
	concurrency := p.cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	g.SetLimit(concurrency)

	for _, row := range rows {
		g.Go(func() error {
			if err := p.limiter.Wait(gctx); err != nil {
				return err
			}

			res, err := p.probe(gctx, row.PageURL)
			if err != nil {
				return err
			}

			if !res.Failed() && res.Platform != schemas.PlatformNone {
				if err := p.store.SaveResult(gctx, row.ID, res); err != nil {
					return err
				}
			}

			mu.Lock()
			defer mu.Unlock()
			progress.Processed++
			progress.ByPlatform[string(res.Platform)]++
			if res.Failed() {
				progress.Failed++
				p.log.Warn("page probe failed",
					zap.String("video_id", row.ID),
					zap.String("state", res.FailedState),
					zap.String("error", res.Error))
			} else if res.Platform != schemas.PlatformNone {
				progress.Successful++
			}
			checkpointDue++
			if checkpointDue >= p.cfg.CheckpointEvery {
				checkpointDue = 0
				if err := progress.Save(p.cfg.ProgressFile); err != nil {
					p.log.Warn("mid-page checkpoint failed", zap.Error(err))
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	progress.LastProcessedID = rows[len(rows)-1].ID
	return nil
}
