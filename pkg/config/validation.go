package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/voxstream/pkg/voxel"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate checks the configuration using struct tags plus the custom
// rules that cannot be expressed declaratively.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	switch cfg.Transform.Type {
	case "affine":
		if len(cfg.Transform.Affine) == 0 {
			return fmt.Errorf("%w: transform.affine parameters are required for type \"affine\"", voxel.ErrInput)
		}
	case "distortion":
		if len(cfg.Transform.Distortion) == 0 {
			return fmt.Errorf("%w: transform.distortion parameters are required for type \"distortion\"", voxel.ErrInput)
		}
	}
	return nil
}

// formatValidationError converts validator errors into user-friendly
// messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%w: %s failed validation on %q tag (value: %v)",
			voxel.ErrInput, e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
