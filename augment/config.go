package augment

import (
	"github.com/hazyhaar/chataug/augment/internal/config"
)

// Config is the top-level configuration. Re-exported from internal.
type Config = config.Config

// BrowserConfig controls the Chrome instance.
type BrowserConfig = config.BrowserConfig

// PageConfig defines a chat page to augment.
type PageConfig = config.PageConfig

// AugmentConfig tunes the engine.
type AugmentConfig = config.AugmentConfig

// CoalesceConfig controls mutation batching.
type CoalesceConfig = config.CoalesceConfig

// SinkConfig defines an activity output backend.
type SinkConfig = config.SinkConfig

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	return config.Defaults()
}
