package site

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigFile is the site settings file that marks a directory as a site.
const ConfigFile = "_config.yml"

// DefaultTheme is the only theme shipped with snapshotplot.
const DefaultTheme = "scientific"

// ErrNotASite is returned when a directory has no _config.yml.
var ErrNotASite = errors.New("not a snapshotplot site (no " + ConfigFile + ")")

// CollectionConfig is the per-collection entry of the site settings.
type CollectionConfig struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
}

// Config is the top-level site settings record.
type Config struct {
	Title       string                      `yaml:"title"`
	Description string                      `yaml:"description,omitempty"`
	Author      string                      `yaml:"author,omitempty"`
	BaseURL     string                      `yaml:"base_url,omitempty"`
	Theme       string                      `yaml:"theme"`
	GitHubRepo  string                      `yaml:"github_repo,omitempty"`
	BuildDir    string                      `yaml:"build_dir"`
	Collections map[string]CollectionConfig `yaml:"collections"`
}

// DefaultConfig returns the settings of a freshly initialised site named name.
func DefaultConfig(name string) *Config {
	return &Config{
		Title:       titleCase(strings.ReplaceAll(name, "-", " ")) + " Plots",
		Description: "Data science plots and analysis for " + name,
		Author:      "Research Team",
		Theme:       DefaultTheme,
		BuildDir:    "docs",
		Collections: map[string]CollectionConfig{},
	}
}

// LoadConfig reads dir/_config.yml. Unset fields fall back to defaults.
func LoadConfig(dir string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", dir, ErrNotASite)
		}
		return nil, fmt.Errorf("failed to read site config: %w", err)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	cfg := DefaultConfig(filepath.Base(abs))
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse site config: %w", err)
	}

	if cfg.Theme != DefaultTheme {
		// Only one theme exists; anything else renders with it.
		cfg.Theme = DefaultTheme
	}
	if cfg.BuildDir == "" {
		cfg.BuildDir = "docs"
	}
	if cfg.Collections == nil {
		cfg.Collections = map[string]CollectionConfig{}
	}
	return cfg, nil
}

// Save writes the settings to dir/_config.yml.
func (c *Config) Save(dir string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode site config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ConfigFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write site config: %w", err)
	}
	return nil
}

// CollectionTitle returns the display title configured for name, or a
// title-cased version of name.
func (c *Config) CollectionTitle(name string) string {
	if cc, ok := c.Collections[name]; ok && cc.Title != "" {
		return cc.Title
	}
	return titleCase(strings.ReplaceAll(name, "-", " "))
}
