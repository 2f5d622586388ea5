package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks the struct tags, then the rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

// validateCustomRules checks the relationship between the mount point and
// the source tree.
func validateCustomRules(cfg *Config) error {
	source, err := filepath.Abs(cfg.Mount.Source)
	if err != nil {
		return fmt.Errorf("mount.source: %w", err)
	}
	point, err := filepath.Abs(cfg.Mount.Point)
	if err != nil {
		return fmt.Errorf("mount.point: %w", err)
	}

	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("mount.source: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("mount.source: %s is not a directory", source)
	}

	if point == source {
		return fmt.Errorf("mount.point: %s is the source directory", point)
	}
	// Serving a tree that contains its own mount point would make
	// requests recurse into the filesystem being served.
	if strings.HasPrefix(point, source+string(filepath.Separator)) {
		return fmt.Errorf("mount.point: %s lies inside the source directory %s", point, source)
	}
	return nil
}

// formatValidationError reports the first failing field.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
