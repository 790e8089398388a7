package extract

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/veilcast/vidprobe-cli/internal/devtools"
	"github.com/veilcast/vidprobe-cli/internal/schemas"
)

// ExportCookies pulls every cookie the browser currently holds and returns
// the ones whose domain contains domainFilter (all of them when empty). The
// result is suitable for writing back out as a credentials file.
func (s *Sequencer) ExportCookies(ctx context.Context, target devtools.Target, domainFilter string) ([]schemas.Credential, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.AuthBudget)
	defer cancel()

	ch, err := s.dial(ctx, target.WebSocketDebuggerURL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = ch.Close() }()

	if _, err := s.roundTrip(ctx, ch, networkEnableID, "Network.enable", nil); err != nil {
		return nil, err
	}

	id, err := ch.Send("Network.getAllCookies", nil)
	if err != nil {
		return nil, err
	}
	msg, err := ch.WaitForID(id, stepBudget(ctx, s.cfg.StepTimeout))
	if err != nil {
		return nil, err
	}
	if msg.Error != nil {
		return nil, fmt.Errorf("Network.getAllCookies: %w", msg.Error)
	}

	var reply struct {
		Cookies []schemas.Credential `json:"cookies"`
	}
	if err := json.Unmarshal(msg.Result, &reply); err != nil {
		return nil, fmt.Errorf("decoding cookie dump: %w", err)
	}

	if domainFilter == "" {
		s.log.Info("exported cookies", zap.Int("count", len(reply.Cookies)))
		return reply.Cookies, nil
	}

	var out []schemas.Credential
	for _, c := range reply.Cookies {
		if strings.Contains(c.Domain, domainFilter) {
			out = append(out, c)
		}
	}
	s.log.Info("exported cookies",
		zap.Int("count", len(out)),
		zap.Int("total", len(reply.Cookies)),
		zap.String("domain_filter", domainFilter))
	return out, nil
}
