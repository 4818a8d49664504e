package config

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/qianjinfighter/DeepViewAgg/logging"
)

// Read reads a config from the given file.
func Read(ctx context.Context, filePath string, logger logging.Logger) (*Config, error) {
	//nolint:gosec
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	return FromReader(ctx, filePath, f, logger)
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from.
func FromReader(ctx context.Context, originalPath string, r io.Reader, logger logging.Logger) (*Config, error) {
	cfg := Config{ConfigFilePath: originalPath}
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to decode Config from json")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", originalPath)
	}
	for _, branch := range Branches {
		transforms, err := cfg.Transforms(branch)
		if err != nil {
			return nil, err
		}
		logger.CDebugw(ctx, "read pipeline", "branch", branch, "stages", len(transforms))
	}
	return &cfg, nil
}

// Schema returns the JSON schema of a config document.
func Schema() *jsonschema.Schema {
	return jsonschema.Reflect(&Config{})
}
