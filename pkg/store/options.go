package store

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/voxstream/pkg/backend"
	"github.com/marmos91/voxstream/pkg/convert"
	"github.com/marmos91/voxstream/pkg/transform"
	"github.com/marmos91/voxstream/pkg/voxel"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Options is the construction surface of a store. The zero value asks for
// automatic backend selection with the default chunk budget.
//
// Invalid combinations fail fast with an input error before any I/O.
type Options struct {
	// Mode forces a backend mode (0=memory, 1=mapped, 2=stream, 3=tiled).
	// Nil selects automatically: a valid container sibling wins, otherwise
	// the resolved source decides.
	Mode *int `validate:"omitempty,min=0,max=3"`

	// IgnoreCached skips an existing container sibling during resolution
	// so a richer source is used instead.
	IgnoreCached bool

	// ChunkMiB is the memory budget for one materialized pass. Zero means
	// convert.DefaultChunkMiB; negative values are rejected.
	ChunkMiB float64 `validate:"gte=0"`

	// Transform is applied lazily per frame at read time. Never persisted.
	Transform transform.Transform `validate:"-"`
}

// normalize validates the options and fills defaults, returning the
// requested mode (or nil for automatic).
func (o *Options) normalize() (*backend.Mode, error) {
	if err := validate.Struct(o); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			e := errs[0]
			return nil, fmt.Errorf("%w: option %s failed %q validation (value %v)",
				voxel.ErrInput, e.Field(), e.Tag(), e.Value())
		}
		return nil, fmt.Errorf("%w: %v", voxel.ErrInput, err)
	}
	if o.ChunkMiB == 0 {
		o.ChunkMiB = convert.DefaultChunkMiB
	}
	if o.Mode == nil {
		return nil, nil
	}
	m, err := backend.ModeFromInt(*o.Mode)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
