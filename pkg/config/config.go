// Package config loads and validates the voxstream CLI configuration.
//
// Configuration sources, in order of precedence: environment variables
// (VOXSTREAM_*), the configuration file (YAML), then defaults.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the complete CLI configuration.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Store contains the construction options for opened datasets
	Store StoreConfig `mapstructure:"store"`

	// Transform selects an optional read-time transform
	Transform TransformConfig `mapstructure:"transform"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
}

// StoreConfig carries the store construction surface.
type StoreConfig struct {
	// ChunkMiB is the memory budget in MiB for one materialized pass
	ChunkMiB float64 `mapstructure:"chunk_mib" validate:"gt=0"`

	// Mode forces a backend mode (0=memory, 1=mapped, 2=stream, 3=tiled).
	// Unset selects automatically.
	Mode *int `mapstructure:"mode" validate:"omitempty,min=0,max=3"`

	// IgnoreCached skips an existing container sibling during resolution
	IgnoreCached bool `mapstructure:"ignore_cached"`
}

// TransformConfig selects a transform implementation.
//
// The Type field determines which transform is built. Only the
// corresponding type-specific section is used.
type TransformConfig struct {
	// Type is the transform kind
	// Valid values: "", affine, distortion
	Type string `mapstructure:"type" validate:"omitempty,oneof=affine distortion"`

	// Affine contains affine-specific parameters
	// Only used when Type = "affine"
	Affine map[string]any `mapstructure:"affine"`

	// Distortion contains distortion-specific parameters
	// Only used when Type = "distortion"
	Distortion map[string]any `mapstructure:"distortion"`
}

// Load reads the configuration from path (optional) plus environment
// variables, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()

	applyDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("voxstream")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/voxstream")
	}

	v.SetEnvPrefix("VOXSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && path != "" {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// No config file is fine: env vars and defaults still apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
