package util

import (
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix marks environment variables that override config values.
const EnvPrefix = "POP_"

// SetKeyValue maps an environment variable such as POP_DATABASE_URI onto
// the matching config key (database.uri). Underscores are tried as key
// separators left to right until a known key is found. It reports whether a
// key was set.
func SetKeyValue(vi *viper.Viper, key string, value any) bool {
	key = strings.TrimPrefix(key, EnvPrefix)
	uc := strings.Count(key, "_")
	k := strings.ToLower(key)

	if vi.Get(k) != nil {
		vi.Set(k, value)
		return true
	}

	for i := 0; i < uc; i++ {
		k = strings.Replace(k, "_", ".", 1)
		if vi.Get(k) != nil {
			vi.Set(k, value)
			return true
		}
	}
	return false
}
