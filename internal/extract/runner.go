package extract

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/veilcast/vidprobe-cli/internal/classify"
	"github.com/veilcast/vidprobe-cli/internal/config"
	"github.com/veilcast/vidprobe-cli/internal/devtools"
	"github.com/veilcast/vidprobe-cli/internal/schemas"
)

// TargetLister enumerates debuggable tabs. *devtools.Discovery satisfies it.
type TargetLister interface {
	ListTargets(ctx context.Context) ([]devtools.Target, error)
}

type strategy struct {
	name string
	mode Mode
}

// The structured collector runs first; the raw snapshot is the fallback when
// it fails or comes back empty-handed.
var strategies = []strategy{
	{name: "dom-findings", mode: ModeFindings},
	{name: "raw-html", mode: ModeRawHTML},
}

// Runner glues discovery, the sequencer, and the classifier into one
// probe-a-URL operation. Attempts that land on the same browser tab are
// serialized; the tab is shared mutable state.
type Runner struct {
	discovery  TargetLister
	seq        *Sequencer
	classifier *classify.Classifier
	chrome     config.ChromeConfig
	log        *zap.Logger

	mu       sync.Mutex
	tabLocks map[string]*sync.Mutex
}

func NewRunner(discovery TargetLister, seq *Sequencer, classifier *classify.Classifier, chrome config.ChromeConfig, logger *zap.Logger) *Runner {
	return &Runner{
		discovery:  discovery,
		seq:        seq,
		classifier: classifier,
		chrome:     chrome,
		log:        logger.Named("extract.runner"),
		tabLocks:   make(map[string]*sync.Mutex),
	}
}

func (r *Runner) lockTarget(id string) func() {
	r.mu.Lock()
	lock, ok := r.tabLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		r.tabLocks[id] = lock
	}
	r.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func (r *Runner) selectTarget(ctx context.Context) (*devtools.Target, error) {
	targets, err := r.discovery.ListTargets(ctx)
	if err != nil {
		return nil, err
	}
	return devtools.SelectTarget(targets, r.chrome.OriginMatch, r.chrome.TargetPolicy)
}

// ProbeURL runs the strategy list against one page and classifies whatever
// evidence comes back. Discovery and target-selection failures surface as
// errors; everything downstream lands in the result. The first strategy that
// yields a platform wins; otherwise the last attempt's result is returned.
func (r *Runner) ProbeURL(ctx context.Context, pageURL string) (*schemas.ExtractionResult, error) {
	target, err := r.selectTarget(ctx)
	if err != nil {
		return nil, err
	}

	unlock := r.lockTarget(target.ID)
	defer unlock()

	var last *schemas.ExtractionResult
	for _, strat := range strategies {
		r.log.Debug("running strategy",
			zap.String("strategy", strat.name), zap.String("page_url", pageURL))

		res := r.seq.Run(ctx, *target, pageURL, strat.mode)
		last = res
		if res.Failed() {
			continue
		}

		cls := r.classifier.Classify(ctx, res.Evidence)
		res.Platform = cls.Platform
		res.Identifier = cls.Identifier
		if cls.Platform != schemas.PlatformNone {
			r.log.Info("platform classified",
				zap.String("strategy", strat.name),
				zap.String("platform", string(cls.Platform)),
				zap.String("identifier", cls.Identifier))
			return res, nil
		}
	}
	return last, nil
}

// CheckAuth selects the working tab and probes the signed-in state.
func (r *Runner) CheckAuth(ctx context.Context, probeURL string) (*schemas.AuthStatus, error) {
	target, err := r.selectTarget(ctx)
	if err != nil {
		return nil, err
	}
	unlock := r.lockTarget(target.ID)
	defer unlock()
	return r.seq.AuthCheck(ctx, *target, probeURL)
}

// DumpCookies selects the working tab and exports its cookie jar.
func (r *Runner) DumpCookies(ctx context.Context, domainFilter string) ([]schemas.Credential, error) {
	target, err := r.selectTarget(ctx)
	if err != nil {
		return nil, err
	}
	unlock := r.lockTarget(target.ID)
	defer unlock()
	return r.seq.ExportCookies(ctx, *target, domainFilter)
}
