package classify

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/veilcast/vidprobe-cli/internal/schemas"
)

// Validator verifies a candidate identifier against its platform before the
// classifier commits to it.
type Validator interface {
	Validate(ctx context.Context, id string) bool
}

var (
	streamableIDPattern = regexp.MustCompile(`(?i)streamable\.com/(?:image/)?([a-z0-9]{6,})`)
	streamableToken     = regexp.MustCompile(`(?i)^[a-z0-9]{6,}$`)

	youtubeIDToken  = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	youtubePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:watch\?v=|embed/|youtu\.be/|/v/)([A-Za-z0-9_-]{11})`),
	}
	vimeoPatterns = []*regexp.Regexp{
		regexp.MustCompile(`player\.vimeo\.com/video/(\d+)`),
		regexp.MustCompile(`vimeo\.com/(\d+)`),
	}
	wistiaIDPattern = regexp.MustCompile(`(?i)([a-z0-9]{10})`)
)

// Frames matching any of these are third-party chrome, not video content.
var iframeExcludes = []string{
	"recaptcha",
	"analytics",
	"tracking",
	"ads",
	"facebook.com/plugins",
	"twitter.com/widgets",
}

// A generic iframe counts as a video embed when its source hints at playback.
var iframeIndicators = []string{
	"video", "player", "embed", "media", "stream", "watch",
	"herokuapp.com/worker",
}

const gcbAppMarker = "w-gcb-app"

// Classifier turns raw page findings into at most one platform verdict.
// Signal classes are checked in a fixed precedence order and the first class
// yielding a usable identifier wins outright; later classes are never
// consulted, even if the winning identifier is weaker evidence.
type Classifier struct {
	validators map[schemas.Platform]Validator
	log        *zap.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithValidator attaches an identifier validator for one platform.
func WithValidator(p schemas.Platform, v Validator) Option {
	return func(c *Classifier) { c.validators[p] = v }
}

func New(logger *zap.Logger, opts ...Option) *Classifier {
	c := &Classifier{
		validators: make(map[schemas.Platform]Validator),
		log:        logger.Named("classify"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify resolves findings to a single platform and identifier. A zero
// Classification with PlatformNone means nothing usable was found.
func (c *Classifier) Classify(ctx context.Context, f *schemas.Findings) schemas.Classification {
	if f.Empty() {
		return schemas.Classification{Platform: schemas.PlatformNone}
	}

	if id := c.pick(ctx, schemas.PlatformStreamable, streamableCandidates(f.Streamable)); id != "" {
		return schemas.Classification{Platform: schemas.PlatformStreamable, Identifier: id}
	}
	if id := c.pick(ctx, schemas.PlatformYouTube, youtubeCandidates(f.YouTube)); id != "" {
		return schemas.Classification{Platform: schemas.PlatformYouTube, Identifier: id}
	}
	if id := c.pick(ctx, schemas.PlatformVimeo, vimeoCandidates(f.Vimeo)); id != "" {
		return schemas.Classification{Platform: schemas.PlatformVimeo, Identifier: id}
	}
	if id := c.pick(ctx, schemas.PlatformWistia, wistiaCandidates(f.Wistia)); id != "" {
		return schemas.Classification{Platform: schemas.PlatformWistia, Identifier: id}
	}
	if src := firstVideoIframe(f.Iframes); src != "" {
		return schemas.Classification{Platform: schemas.PlatformOther, Identifier: src}
	}
	if src := firstVideoSource(f.VideoElements); src != "" {
		return schemas.Classification{Platform: schemas.PlatformDirect, Identifier: src}
	}

	return schemas.Classification{Platform: schemas.PlatformNone}
}

// pick returns the first candidate the platform's validator accepts, trying
// the next candidate after each rejection. Without a validator the first
// candidate wins.
func (c *Classifier) pick(ctx context.Context, platform schemas.Platform, candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	v, ok := c.validators[platform]
	if !ok {
		return candidates[0]
	}
	for _, id := range candidates {
		if v.Validate(ctx, id) {
			return id
		}
		c.log.Debug("validator rejected candidate",
			zap.String("platform", string(platform)), zap.String("id", id))
	}
	return ""
}

func streamableCandidates(raw []string) []string {
	return dedupe(raw, func(item string) string {
		if m := streamableIDPattern.FindStringSubmatch(item); m != nil {
			return m[1]
		}
		if streamableToken.MatchString(item) {
			return item
		}
		return ""
	})
}

func youtubeCandidates(raw []string) []string {
	return dedupe(raw, func(item string) string {
		if youtubeIDToken.MatchString(item) {
			return item
		}
		for _, p := range youtubePatterns {
			if m := p.FindStringSubmatch(item); m != nil {
				return m[1]
			}
		}
		return ""
	})
}

func vimeoCandidates(raw []string) []string {
	return dedupe(raw, func(item string) string {
		for _, p := range vimeoPatterns {
			if m := p.FindStringSubmatch(item); m != nil {
				return m[1]
			}
		}
		return ""
	})
}

func wistiaCandidates(raw []string) []string {
	return dedupe(raw, func(item string) string {
		if m := wistiaIDPattern.FindStringSubmatch(strings.TrimPrefix(item, "wistia_")); m != nil {
			return m[1]
		}
		return ""
	})
}

// dedupe maps raw items to identifiers, keeping first-occurrence order and
// dropping repeats and misses.
func dedupe(raw []string, extract func(string) string) []string {
	var out []string
	seen := make(map[string]struct{}, len(raw))
	for _, item := range raw {
		id := extract(item)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func firstVideoIframe(frames []schemas.IframeRef) string {
	for _, fr := range frames {
		src := strings.ToLower(fr.Src)
		if src == "" {
			continue
		}
		if excludedIframe(src) {
			continue
		}
		if strings.Contains(src, gcbAppMarker) {
			return fr.Src
		}
		for _, ind := range iframeIndicators {
			if strings.Contains(src, ind) {
				return fr.Src
			}
		}
	}
	return ""
}

func excludedIframe(src string) bool {
	for _, ex := range iframeExcludes {
		if strings.Contains(src, ex) {
			return true
		}
	}
	return false
}

func firstVideoSource(videos []schemas.VideoElement) string {
	for _, v := range videos {
		if v.Src != "" {
			return v.Src
		}
		for _, s := range v.Sources {
			if s != "" {
				return s
			}
		}
	}
	return ""
}
