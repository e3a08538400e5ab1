package config

import (
	"github.com/spf13/viper"

	"github.com/marmos91/voxstream/pkg/convert"
)

// applyDefaults registers every default value before the config file and
// environment are read, so partial configurations stay valid.
func applyDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "INFO")

	v.SetDefault("store.chunk_mib", convert.DefaultChunkMiB)
	v.SetDefault("store.ignore_cached", false)

	v.SetDefault("transform.type", "")
}
