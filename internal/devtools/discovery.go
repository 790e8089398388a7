package devtools

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/veilcast/vidprobe-cli/internal/config"
)

// Target is one debuggable page as reported by the /json/list endpoint.
type Target struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// internalSchemes are browser-internal pages that are never useful as an
// extraction target when falling back.
var internalSchemes = []string{"chrome-extension:", "chrome:", "devtools:"}

// Discovery enumerates debuggable tabs on a running browser.
type Discovery struct {
	endpoint string
	client   *http.Client
	log      *zap.Logger
}

func NewDiscovery(cfg config.ChromeConfig, logger *zap.Logger) *Discovery {
	return &Discovery{
		endpoint: cfg.DebugURL(),
		client:   &http.Client{Timeout: cfg.HTTPTimeout},
		log:      logger.Named("devtools.discovery"),
	}
}

// ListTargets fetches the current tab list. Any transport failure is wrapped
// as a ConnectivityError since it means the debugging session is unusable.
func (d *Discovery) ListTargets(ctx context.Context) ([]Target, error) {
	url := d.endpoint + "/json/list"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building target list request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &ConnectivityError{Endpoint: d.endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ConnectivityError{
			Endpoint: d.endpoint,
			Err:      fmt.Errorf("unexpected status %d from /json/list", resp.StatusCode),
		}
	}

	var targets []Target
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return nil, &ConnectivityError{Endpoint: d.endpoint, Err: fmt.Errorf("decoding target list: %w", err)}
	}

	d.log.Debug("listed browser targets", zap.Int("count", len(targets)))
	return targets, nil
}

// SelectTarget picks the tab to drive. A tab whose URL contains originMatch
// always wins. Otherwise, under PolicyAllowFallback, the first tab that is
// not a browser-internal page is used; under PolicyStrictOrigin the miss is
// an error.
func SelectTarget(targets []Target, originMatch string, policy config.TargetPolicy) (*Target, error) {
	if originMatch != "" {
		for i := range targets {
			t := &targets[i]
			if strings.Contains(t.URL, originMatch) && t.WebSocketDebuggerURL != "" {
				return t, nil
			}
		}
	}

	if policy == config.PolicyAllowFallback {
		for i := range targets {
			t := &targets[i]
			if t.WebSocketDebuggerURL == "" || isInternal(t.URL) {
				continue
			}
			return t, nil
		}
	}

	return nil, &NoTargetError{OriginMatch: originMatch}
}

func isInternal(url string) bool {
	for _, scheme := range internalSchemes {
		if strings.HasPrefix(url, scheme) {
			return true
		}
	}
	return false
}
