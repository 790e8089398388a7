// Package credentials loads the session cookies that authenticate the
// browser against the gated site. The cookie file is produced out of band
// (for example by `vidprobe cookies`) and read once at startup.
package credentials

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/veilcast/vidprobe-cli/internal/config"
	"github.com/veilcast/vidprobe-cli/internal/schemas"
)

// Store resolves and loads the credential file.
type Store struct {
	cfg config.CredentialsConfig
	log *zap.Logger
}

// NewStore creates a credential store.
func NewStore(cfg config.CredentialsConfig, logger *zap.Logger) *Store {
	return &Store{cfg: cfg, log: logger.Named("credentials")}
}

// Load reads credentials from the first existing candidate location. A missing
// file is not an error: an empty credential set is a valid, if degraded, state
// in which the authenticate step becomes a no-op. Locations are never merged.
func (s *Store) Load() ([]schemas.Credential, error) {
	paths := s.cfg.CandidatePaths
	if s.cfg.File != "" {
		paths = []string{s.cfg.File}
	}

	for _, p := range paths {
		expanded, err := homedir.Expand(p)
		if err != nil {
			s.log.Warn("Skipping unexpandable credential path", zap.String("path", p), zap.Error(err))
			continue
		}
		if _, err := os.Stat(expanded); err != nil {
			continue
		}
		creds, err := readFile(expanded)
		if err != nil {
			// The first existing file wins even when it is malformed; falling
			// through to a later path would silently authenticate with stale
			// cookies.
			return nil, fmt.Errorf("credential file %s: %w", expanded, err)
		}
		creds = dedupe(creds)
		s.log.Info("Loaded authentication cookies",
			zap.String("path", expanded), zap.Int("count", len(creds)))
		return creds, nil
	}

	s.log.Warn("No credential file found; proceeding unauthenticated",
		zap.Strings("candidates", paths))
	return nil, nil
}

func readFile(path string) ([]schemas.Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var creds []schemas.Credential
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return creds, nil
}

// dedupe removes duplicate cookie names, last occurrence wins, preserving the
// position of the first occurrence so injection order stays stable.
func dedupe(creds []schemas.Credential) []schemas.Credential {
	index := make(map[string]int, len(creds))
	out := make([]schemas.Credential, 0, len(creds))
	for _, c := range creds {
		if i, ok := index[c.Name]; ok {
			out[i] = c
			continue
		}
		index[c.Name] = len(out)
		out = append(out, c)
	}
	return out
}

// WriteFile persists credentials as the JSON array format Load expects.
func WriteFile(path string, creds []schemas.Credential) error {
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write credential file: %w", err)
	}
	return nil
}
