// Package config handles chataug configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/chataug/augment/internal/engine"
)

// Config is the top-level chataug configuration.
type Config struct {
	Browser  BrowserConfig  `yaml:"browser"`
	Pages    []PageConfig   `yaml:"pages"`
	Augment  AugmentConfig  `yaml:"augment"`
	Coalesce CoalesceConfig `yaml:"coalesce"`
	Sinks    []SinkConfig   `yaml:"sinks"`
}

// BrowserConfig controls the Chrome instance hosting the chat page.
type BrowserConfig struct {
	Remote           string   `yaml:"remote"`
	Mode             string   `yaml:"mode"` // headful | headless
	ResourceBlocking []string `yaml:"resource_blocking"`
	XvfbDisplay      string   `yaml:"xvfb_display"`
	UseXvfb          bool     `yaml:"use_xvfb"`
	// ProfileDir keeps cookies and logins across runs. Empty = throwaway profile.
	ProfileDir string `yaml:"profile_dir"`
}

// PageConfig is one chat page to augment.
type PageConfig struct {
	ID        string              `yaml:"id"`
	URL       string              `yaml:"url"`
	Selectors map[string][]string `yaml:"selectors"` // role -> extra selectors tried first
}

// AugmentConfig tunes the engine.
type AugmentConfig struct {
	// DispatchDelay is the bounded wait between the synthetic input event
	// and the submit click.
	DispatchDelay       time.Duration `yaml:"dispatch_delay"`
	PlaceholderText     string        `yaml:"placeholder_text"`
	PlaceholderInterval time.Duration `yaml:"placeholder_interval"`
	FocusOnReady        *bool         `yaml:"focus_on_ready"`
}

// CoalesceConfig controls merging of bridge mutation batches.
type CoalesceConfig struct {
	Window    time.Duration `yaml:"window"`
	MaxBuffer int           `yaml:"max_buffer"`
}

// SinkConfig defines an activity output backend.
type SinkConfig struct {
	Type string `yaml:"type"` // stdout | webhook
	URL  string `yaml:"url"`
}

// DefaultPlaceholder is shown in the chat input until it is marked.
const DefaultPlaceholder = "Ask about DAM, GDAM or RTM prices… (Ctrl+K to focus, Ctrl+Enter to send)"

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Browser.Mode == "" {
		c.Browser.Mode = "headful"
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	c.Augment.applyDefaults()
	if c.Coalesce.Window <= 0 {
		c.Coalesce.Window = 30 * time.Millisecond
	}
	if c.Coalesce.MaxBuffer <= 0 {
		c.Coalesce.MaxBuffer = 500
	}
	for i := range c.Pages {
		if c.Pages[i].ID == "" {
			c.Pages[i].ID = fmt.Sprintf("page-%d", i+1)
		}
	}
}

func (a *AugmentConfig) applyDefaults() {
	if a.DispatchDelay <= 0 {
		a.DispatchDelay = 100 * time.Millisecond
	}
	if a.PlaceholderText == "" {
		a.PlaceholderText = DefaultPlaceholder
	}
	if a.PlaceholderInterval <= 0 {
		a.PlaceholderInterval = time.Second
	}
	if a.FocusOnReady == nil {
		on := true
		a.FocusOnReady = &on
	}
}

// Defaults returns a Config with every default applied and no pages.
func Defaults() *Config {
	var c Config
	c.ApplyDefaults()
	return &c
}

// Validate rejects configurations the engine cannot run.
func (c *Config) Validate() error {
	switch c.Browser.Mode {
	case "headful", "headless":
	default:
		return fmt.Errorf("config: browser.mode %q: want headful or headless", c.Browser.Mode)
	}
	seen := make(map[string]bool, len(c.Pages))
	for _, p := range c.Pages {
		if err := checkIdentifier(p.ID); err != nil {
			return err
		}
		if seen[p.ID] {
			return fmt.Errorf("config: duplicate page id %q", p.ID)
		}
		seen[p.ID] = true
		if p.URL == "" {
			return fmt.Errorf("config: page %s: url is required", p.ID)
		}
		if err := checkURL(p.URL, "http", "https", "file"); err != nil {
			return fmt.Errorf("config: page %s: %w", p.ID, err)
		}
		for role := range p.Selectors {
			if !engine.KnownRole(role) {
				return fmt.Errorf("config: page %s: unknown selector role %q", p.ID, role)
			}
		}
	}
	for _, s := range c.Sinks {
		if s.Type != "webhook" {
			continue
		}
		if s.URL == "" {
			return fmt.Errorf("config: webhook sink requires url")
		}
		if err := checkURL(s.URL, "http", "https"); err != nil {
			return fmt.Errorf("config: webhook sink: %w", err)
		}
	}
	return nil
}
