package validate

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/veilcast/vidprobe-cli/internal/config"
)

// Streamable checks candidate shortcodes against the public Streamable API.
// A candidate is valid only when the API returns 200 with a decodable JSON
// object; any network failure counts as invalid so the classifier moves on
// to the next candidate.
type Streamable struct {
	api    string
	client *http.Client
	log    *zap.Logger
}

func NewStreamable(cfg config.ValidationConfig, logger *zap.Logger) *Streamable {
	return &Streamable{
		api:    strings.TrimRight(cfg.StreamableAPI, "/"),
		client: &http.Client{Timeout: cfg.Timeout},
		log:    logger.Named("validate.streamable"),
	}
}

func (s *Streamable) Validate(ctx context.Context, id string) bool {
	url := fmt.Sprintf("%s/videos/%s", s.api, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Debug("validation request failed", zap.String("id", id), zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.log.Debug("validation rejected", zap.String("id", id), zap.Int("status", resp.StatusCode))
		return false
	}

	var body map[string]jsoniter.RawMessage
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.NewDecoder(resp.Body).Decode(&body); err != nil {
		s.log.Debug("validation body undecodable", zap.String("id", id), zap.Error(err))
		return false
	}
	return true
}
