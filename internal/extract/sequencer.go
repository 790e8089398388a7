package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veilcast/vidprobe-cli/internal/config"
	"github.com/veilcast/vidprobe-cli/internal/devtools"
	"github.com/veilcast/vidprobe-cli/internal/schemas"
)

// Reserved command id bands. The channel allocates dynamic ids from 1000 up,
// so these can never collide with ad-hoc commands.
const (
	pageEnableID    int64 = 1
	networkEnableID int64 = 2
	cookieIDBase    int64 = 100
	navigateID      int64 = 200
	evaluateID      int64 = 300
)

// Sequencer states, in the order a successful attempt passes through them.
const (
	StateIdle           = "idle"
	StateConnected      = "connected"
	StatePageEnabled    = "page_enabled"
	StateNetworkEnabled = "network_enabled"
	StateNavigated      = "navigated"
	StateExtracted      = "extracted"
	StateDone           = "done"
)

// Mode selects which in-page script the attempt runs.
type Mode int

const (
	// ModeFindings runs the structured single-pass collector.
	ModeFindings Mode = iota
	// ModeRawHTML snapshots the document for source-level matching.
	ModeRawHTML
)

// ControlChannel is the slice of the devtools channel the sequencer drives.
type ControlChannel interface {
	Send(method string, params any) (int64, error)
	SendWithID(id int64, method string, params any) error
	WaitForID(id int64, timeout time.Duration) (devtools.Message, error)
	Close() error
}

// Dialer opens a control channel to a target's debugging websocket.
type Dialer func(ctx context.Context, wsURL string) (ControlChannel, error)

type navigateParams struct {
	URL string `json:"url"`
}

type evaluateParams struct {
	Expression    string `json:"expression"`
	ReturnByValue bool   `json:"returnByValue"`
}

type setCookieParams struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain,omitempty"`
	Path     string `json:"path"`
	Secure   bool   `json:"secure"`
	HTTPOnly bool   `json:"httpOnly"`
}

// Sequencer drives one extraction attempt through the fixed protocol
// sequence: connect, enable domains, inject cookies, navigate, settle,
// evaluate. Attempts never retry internally; every terminal failure becomes
// an ExtractionResult carrying the failed state.
type Sequencer struct {
	cfg   config.ExtractorConfig
	creds []schemas.Credential
	wait  RenderWaitStrategy
	dial  Dialer
	log   *zap.Logger
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithDialer replaces the websocket dialer. Tests use this to substitute a
// scripted channel.
func WithDialer(d Dialer) Option {
	return func(s *Sequencer) { s.dial = d }
}

// WithWaitStrategy replaces the settle-delay strategy.
func WithWaitStrategy(w RenderWaitStrategy) Option {
	return func(s *Sequencer) { s.wait = w }
}

func New(cfg config.ExtractorConfig, creds []schemas.Credential, logger *zap.Logger, opts ...Option) *Sequencer {
	s := &Sequencer{
		cfg:   cfg,
		creds: creds,
		wait:  FixedDelay{},
		log:   logger.Named("extract"),
	}
	s.dial = func(ctx context.Context, wsURL string) (ControlChannel, error) {
		ch, err := devtools.Dial(ctx, wsURL, devtools.DialOptions{
			QueueSize:        cfg.QueueSize,
			MaxMessageSize:   cfg.MaxMessageSize,
			HandshakeTimeout: cfg.StepTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return ch, nil
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run performs one full extraction attempt against the given target. The
// returned result is always non-nil; failures land in its Error and
// FailedState fields instead of an error return. Classification of the
// evidence is the caller's job.
func (s *Sequencer) Run(ctx context.Context, target devtools.Target, pageURL string, mode Mode) *schemas.ExtractionResult {
	res := &schemas.ExtractionResult{
		AttemptID: uuid.NewString(),
		PageURL:   pageURL,
		Platform:  schemas.PlatformNone,
	}
	start := time.Now()
	log := s.log.With(zap.String("attempt_id", res.AttemptID), zap.String("page_url", pageURL))

	ctx, cancel := context.WithTimeout(ctx, s.cfg.OverallBudget)
	defer cancel()

	state := StateIdle
	fail := func(err error) *schemas.ExtractionResult {
		var timeout *devtools.ProtocolTimeoutError
		if errors.As(err, &timeout) && timeout.State == "" {
			timeout.State = state
		}
		res.FailedState = state
		res.Error = err.Error()
		res.Elapsed = time.Since(start)
		log.Warn("extraction attempt failed", zap.String("state", state), zap.Error(err))
		return res
	}

	ch, err := s.dial(ctx, target.WebSocketDebuggerURL)
	if err != nil {
		return fail(err)
	}
	defer func() { _ = ch.Close() }()
	state = StateConnected
	log.Debug("control channel established", zap.String("target_id", target.ID))

	if _, err := s.roundTrip(ctx, ch, pageEnableID, "Page.enable", nil); err != nil {
		return fail(err)
	}
	state = StatePageEnabled

	if _, err := s.roundTrip(ctx, ch, networkEnableID, "Network.enable", nil); err != nil {
		return fail(err)
	}
	state = StateNetworkEnabled

	if err := s.injectCookies(ctx, ch, s.cfg.CookieLimit); err != nil {
		return fail(err)
	}

	if _, err := s.roundTrip(ctx, ch, navigateID, "Page.navigate", navigateParams{URL: pageURL}); err != nil {
		return fail(err)
	}
	state = StateNavigated

	if err := s.wait.Wait(ctx, s.cfg.RenderSettle); err != nil {
		return fail(err)
	}

	expr := extractionScript
	if mode == ModeRawHTML {
		expr = rawHTMLScript
	}
	msg, err := s.roundTrip(ctx, ch, evaluateID, "Runtime.evaluate", evaluateParams{Expression: expr, ReturnByValue: true})
	if err != nil {
		return fail(err)
	}
	state = StateExtracted

	findings, page, err := parseEvaluateReply(msg.Result)
	if err != nil {
		return fail(err)
	}

	_ = ch.Close()
	state = StateDone

	res.Evidence = findings
	res.Page = page
	res.Elapsed = time.Since(start)
	if findings.Empty() {
		log.Info("extraction produced no signals", zap.Duration("elapsed", res.Elapsed))
	} else {
		log.Info("extraction finished",
			zap.Int("streamable", len(findings.Streamable)),
			zap.Int("youtube", len(findings.YouTube)),
			zap.Int("vimeo", len(findings.Vimeo)),
			zap.Int("wistia", len(findings.Wistia)),
			zap.Int("iframes", len(findings.Iframes)),
			zap.Int("video_elements", len(findings.VideoElements)),
			zap.Duration("elapsed", res.Elapsed))
	}
	return res
}

// AuthCheck runs the trimmed sequence that probes whether the injected
// session is still signed in. Unlike Run it returns failures as errors since
// there is no result row to park them in.
func (s *Sequencer) AuthCheck(ctx context.Context, target devtools.Target, probeURL string) (*schemas.AuthStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.AuthBudget)
	defer cancel()

	ch, err := s.dial(ctx, target.WebSocketDebuggerURL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = ch.Close() }()

	if _, err := s.roundTrip(ctx, ch, pageEnableID, "Page.enable", nil); err != nil {
		return nil, err
	}
	if _, err := s.roundTrip(ctx, ch, networkEnableID, "Network.enable", nil); err != nil {
		return nil, err
	}
	if err := s.injectCookies(ctx, ch, s.cfg.AuthCookieLimit); err != nil {
		return nil, err
	}
	if _, err := s.roundTrip(ctx, ch, navigateID, "Page.navigate", navigateParams{URL: probeURL}); err != nil {
		return nil, err
	}
	if err := s.wait.Wait(ctx, s.cfg.AuthRenderSettle); err != nil {
		return nil, err
	}

	msg, err := s.roundTrip(ctx, ch, evaluateID, "Runtime.evaluate", evaluateParams{Expression: authProbeScript, ReturnByValue: true})
	if err != nil {
		return nil, err
	}

	status, err := parseAuthReply(msg.Result)
	if err != nil {
		return nil, err
	}
	s.log.Info("auth probe finished",
		zap.Bool("authenticated", status.Authenticated),
		zap.String("title", status.Title))
	return status, nil
}

// roundTrip sends one command and waits for its correlated reply, bounding
// the wait by the step timeout or the remaining overall budget, whichever is
// tighter.
func (s *Sequencer) roundTrip(ctx context.Context, ch ControlChannel, id int64, method string, params any) (devtools.Message, error) {
	if err := ch.SendWithID(id, method, params); err != nil {
		return devtools.Message{}, err
	}
	msg, err := ch.WaitForID(id, stepBudget(ctx, s.cfg.StepTimeout))
	if err != nil {
		return devtools.Message{}, err
	}
	if msg.Error != nil {
		return devtools.Message{}, fmt.Errorf("%s: %w", method, msg.Error)
	}
	return msg, nil
}

// injectCookies fires Network.setCookie for each credential up to the limit,
// without awaiting the individual acknowledgements, then lets the session
// settle. The acks land in the inbound queue and are discarded on close.
func (s *Sequencer) injectCookies(ctx context.Context, ch ControlChannel, limit int) error {
	n := len(s.creds)
	if n == 0 {
		return nil
	}
	if n > limit {
		n = limit
	}
	for i, c := range s.creds[:n] {
		params := setCookieParams{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if params.Path == "" {
			params.Path = "/"
		}
		if err := ch.SendWithID(cookieIDBase+int64(i), "Network.setCookie", params); err != nil {
			return err
		}
	}
	s.log.Debug("injected credentials", zap.Int("count", n), zap.Int("held_back", len(s.creds)-n))
	return s.wait.Wait(ctx, s.cfg.CookieSettle)
}

func stepBudget(ctx context.Context, step time.Duration) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < step {
			return remaining
		}
	}
	return step
}
