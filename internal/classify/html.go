package classify

import (
	"regexp"

	"github.com/veilcast/vidprobe-cli/internal/schemas"
)

// Raw-HTML mode has no DOM to walk, so the same signal classes are recovered
// with source-level patterns over the full document text.
var (
	htmlStreamable = regexp.MustCompile(`(?i)(?:cdn-cf-east\.)?streamable\.com/(?:image/)?[a-z0-9]{6,}`)
	htmlYouTube    = regexp.MustCompile(`(?i)(?:youtube\.com/(?:watch\?v=|embed/)|youtu\.be/)[A-Za-z0-9_-]{11}`)
	htmlVimeo      = regexp.MustCompile(`(?i)(?:player\.)?vimeo\.com/(?:video/)?\d+`)
	htmlWistia     = regexp.MustCompile(`(?i)wistia_(?:async_)?[a-z0-9]{10}`)

	htmlIframe      = regexp.MustCompile(`(?is)<iframe[^>]*\bsrc=["']([^"']+)["'][^>]*>`)
	htmlVideoSrc    = regexp.MustCompile(`(?is)<video[^>]*\bsrc=["']([^"']+)["'][^>]*>`)
	htmlVideoSource = regexp.MustCompile(`(?is)<source[^>]*\bsrc=["']([^"']+)["'][^>]*>`)
)

// FindingsFromHTML synthesizes a findings bag from a raw document snapshot so
// the classifier can run on either extraction payload shape.
func FindingsFromHTML(html string) *schemas.Findings {
	f := &schemas.Findings{
		Streamable: htmlStreamable.FindAllString(html, -1),
		YouTube:    htmlYouTube.FindAllString(html, -1),
		Vimeo:      htmlVimeo.FindAllString(html, -1),
		Wistia:     htmlWistia.FindAllString(html, -1),
	}

	for _, m := range htmlIframe.FindAllStringSubmatch(html, -1) {
		f.Iframes = append(f.Iframes, schemas.IframeRef{Src: m[1]})
	}
	for _, m := range htmlVideoSrc.FindAllStringSubmatch(html, -1) {
		f.VideoElements = append(f.VideoElements, schemas.VideoElement{Src: m[1]})
	}
	for _, m := range htmlVideoSource.FindAllStringSubmatch(html, -1) {
		f.VideoElements = append(f.VideoElements, schemas.VideoElement{Src: m[1]})
	}

	return f
}
