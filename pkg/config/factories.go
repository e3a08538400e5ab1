package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/voxstream/pkg/store"
	"github.com/marmos91/voxstream/pkg/transform"
)

// StoreOptions builds the store construction options from configuration,
// including the optional transform.
func (c *Config) StoreOptions() (store.Options, error) {
	t, err := CreateTransform(&c.Transform)
	if err != nil {
		return store.Options{}, err
	}
	return store.Options{
		Mode:         c.Store.Mode,
		IgnoreCached: c.Store.IgnoreCached,
		ChunkMiB:     c.Store.ChunkMiB,
		Transform:    t,
	}, nil
}

// CreateTransform builds a transform from its configuration section. The
// Type field selects the implementation; the matching parameter map is
// decoded into the implementation's own config struct.
func CreateTransform(cfg *TransformConfig) (transform.Transform, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "affine":
		return createAffineTransform(cfg.Affine)
	case "distortion":
		return createDistortionTransform(cfg.Distortion)
	default:
		return nil, fmt.Errorf("unknown transform type: %q", cfg.Type)
	}
}

func createAffineTransform(options map[string]any) (transform.Transform, error) {
	type affineConfig struct {
		Matrix []float64 `mapstructure:"matrix"`
	}
	var tc affineConfig
	if err := mapstructure.Decode(options, &tc); err != nil {
		return nil, fmt.Errorf("failed to decode affine transform config: %w", err)
	}
	if len(tc.Matrix) != 6 {
		return nil, fmt.Errorf("affine transform: matrix needs 6 coefficients, got %d", len(tc.Matrix))
	}
	var a transform.Affine
	copy(a.A[:], tc.Matrix)
	return a, nil
}

func createDistortionTransform(options map[string]any) (transform.Transform, error) {
	type distortionConfig struct {
		K1        float64 `mapstructure:"k1"`
		K2        float64 `mapstructure:"k2"`
		CenterRow float64 `mapstructure:"center_row"`
		CenterCol float64 `mapstructure:"center_col"`
	}
	tc := distortionConfig{CenterRow: -1, CenterCol: -1}
	if err := mapstructure.Decode(options, &tc); err != nil {
		return nil, fmt.Errorf("failed to decode distortion transform config: %w", err)
	}
	return transform.Distortion{
		K1:        tc.K1,
		K2:        tc.K2,
		CenterRow: tc.CenterRow,
		CenterCol: tc.CenterCol,
	}, nil
}
