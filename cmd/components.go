package cmd

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/veilcast/vidprobe-cli/internal/classify"
	"github.com/veilcast/vidprobe-cli/internal/credentials"
	"github.com/veilcast/vidprobe-cli/internal/devtools"
	"github.com/veilcast/vidprobe-cli/internal/extract"
	"github.com/veilcast/vidprobe-cli/internal/schemas"
	"github.com/veilcast/vidprobe-cli/internal/validate"
)

// buildRunner wires credentials, discovery, validation, classification, and
// the sequencer into the probe runner every subcommand drives.
func buildRunner(logger *zap.Logger) (*extract.Runner, error) {
	creds, err := credentials.NewStore(cfg.Credentials, logger).Load()
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}
	if len(creds) == 0 {
		logger.Warn("no credentials loaded; gated pages will likely bounce to sign-in")
	}

	var opts []classify.Option
	if cfg.Validation.Enabled {
		opts = append(opts, classify.WithValidator(
			schemas.PlatformStreamable, validate.NewStreamable(cfg.Validation, logger)))
	}

	classifier := classify.New(logger, opts...)
	seq := extract.New(cfg.Extractor, creds, logger)
	discovery := devtools.NewDiscovery(cfg.Chrome, logger)
	return extract.NewRunner(discovery, seq, classifier, cfg.Chrome, logger), nil
}

// printJSON writes a result to stdout for scripting; logs stay on their own
// sinks.
func printJSON(v any) error {
	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
