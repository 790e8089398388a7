package schemas

import "time"

// Platform identifies which video host a page embeds.
type Platform string

const (
	PlatformStreamable Platform = "streamable"
	PlatformYouTube    Platform = "youtube"
	PlatformVimeo      Platform = "vimeo"
	PlatformWistia     Platform = "wistia"
	PlatformDirect     Platform = "direct"
	PlatformOther      Platform = "other"
	PlatformNone       Platform = "none"
)

// Credential is one named session cookie injected before navigation.
// Credentials are immutable once loaded.
type Credential struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain"`
	Path     string `json:"path"`
	Secure   bool   `json:"secure"`
	HTTPOnly bool   `json:"httpOnly"`
}

// IframeRef captures one embedded frame observed on the rendered page.
type IframeRef struct {
	Src   string `json:"src"`
	ID    string `json:"id"`
	Class string `json:"class"`
}

// VideoElement captures one native <video> element and its nested sources.
type VideoElement struct {
	Src     string   `json:"src"`
	Sources []string `json:"sources"`
}

// Findings is the bag of raw signals pulled from a rendered page, partitioned
// by signal class. The classifier reads it; nothing mutates it afterwards.
type Findings struct {
	Streamable    []string       `json:"streamable"`
	YouTube       []string       `json:"youtube"`
	Vimeo         []string       `json:"vimeo"`
	Wistia        []string       `json:"wistia"`
	Iframes       []IframeRef    `json:"iframes"`
	VideoElements []VideoElement `json:"video_elements"`
}

// Empty reports whether no signal class produced anything.
func (f *Findings) Empty() bool {
	if f == nil {
		return true
	}
	return len(f.Streamable) == 0 && len(f.YouTube) == 0 && len(f.Vimeo) == 0 &&
		len(f.Wistia) == 0 && len(f.Iframes) == 0 && len(f.VideoElements) == 0
}

// PageInfo describes the page the findings were extracted from.
type PageInfo struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	HTMLSize int    `json:"htmlSize"`
}

// Classification is the classifier's verdict: at most one platform and one
// identifier. A zero value means "nothing found".
type Classification struct {
	Platform   Platform `json:"platform"`
	Identifier string   `json:"identifier,omitempty"`
}

// ExtractionResult is the single structured output of one full extraction
// attempt. It is created once the sequencer finishes (or fails terminally)
// and never mutated afterwards.
type ExtractionResult struct {
	AttemptID  string    `json:"attempt_id"`
	PageURL    string    `json:"page_url"`
	Platform   Platform  `json:"platform"`
	Identifier string    `json:"identifier,omitempty"`
	Evidence   *Findings `json:"evidence,omitempty"`
	Page       *PageInfo `json:"page,omitempty"`
	// FailedState names the sequencer state a terminal failure occurred in.
	FailedState string        `json:"failed_state,omitempty"`
	Elapsed     time.Duration `json:"elapsed"`
	Error       string        `json:"error,omitempty"`
}

// Failed reports whether the attempt ended with a terminal error rather than
// a (possibly empty) classification.
func (r *ExtractionResult) Failed() bool { return r.Error != "" }

// AuthStatus is the outcome of an authentication probe against the gated site.
type AuthStatus struct {
	Authenticated bool   `json:"authenticated"`
	Title         string `json:"title"`
	URL           string `json:"url"`
	BodyLength    int    `json:"bodyLength"`
	HasSignIn     bool   `json:"hasSignIn"`
	HasLibrary    bool   `json:"hasLibrary"`
	HasPaywall    bool   `json:"hasPaywall"`
}
