package utils

import (
	"github.com/pkg/errors"
)

// NewConfigValidationFieldRequiredError is used when a required field is missing from a config.
func NewConfigValidationFieldRequiredError(path, field string) error {
	return errors.Errorf("%s: %q is required", path, field)
}

// NewConfigValidationError is used when a config field holds an invalid value.
func NewConfigValidationError(path string, err error) error {
	return errors.Wrap(err, path)
}
