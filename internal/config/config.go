package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/dusk-indust/jitcap/internal/registry"
	"github.com/dusk-indust/jitcap/internal/search"
	"gopkg.in/yaml.v3"
)

// Config holds settings loaded from jitcap.yml, jitcap.yaml or jitcap.toml.
type Config struct {
	Registry     RegistryConfig     `yaml:"registry" toml:"registry"`
	Search       SearchConfig       `yaml:"search" toml:"search"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator" toml:"orchestrator"`
	Hydration    HydrationConfig    `yaml:"hydration" toml:"hydration"`
	Log          LogConfig          `yaml:"log" toml:"log"`

	// Path is the file the config was read from; empty for defaults.
	Path string `yaml:"-" toml:"-"`
}

// RegistryConfig selects and locates the capability store.
type RegistryConfig struct {
	Backend string `yaml:"backend,omitempty" toml:"backend,omitempty"`
	Path    string `yaml:"path,omitempty" toml:"path,omitempty"`
	// Catalog is a YAML file of capabilities seeded into the store on open.
	Catalog string `yaml:"catalog,omitempty" toml:"catalog,omitempty"`
}

type SearchConfig struct {
	Mode  string `yaml:"mode,omitempty" toml:"mode,omitempty"`
	Limit int    `yaml:"limit,omitempty" toml:"limit,omitempty"`
}

type OrchestratorConfig struct {
	MaxTurns      int `yaml:"maxTurns,omitempty" toml:"maxTurns,omitempty"`
	HistoryWindow int `yaml:"historyWindow,omitempty" toml:"historyWindow,omitempty"`
}

type HydrationConfig struct {
	// EagerSiblings activates every tool an origin returns when a single
	// capability is hydrated by name.
	EagerSiblings bool `yaml:"eagerSiblings" toml:"eagerSiblings"`
}

type LogConfig struct {
	Level  string `yaml:"level,omitempty" toml:"level,omitempty"`
	Format string `yaml:"format,omitempty" toml:"format,omitempty"`
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"console", "json"}
)

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Registry:     RegistryConfig{Backend: registry.BackendMemory},
		Search:       SearchConfig{Mode: search.DefaultMode.String(), Limit: search.DefaultLimit},
		Orchestrator: OrchestratorConfig{MaxTurns: 10, HistoryWindow: 5},
		Hydration:    HydrationConfig{EagerSiblings: true},
		Log:          LogConfig{Level: "info", Format: "console"},
	}
}

// Load attempts to read jitcap.yml, jitcap.yaml or jitcap.toml from the given
// directory, in that order. Values absent from the file keep their defaults.
// Returns the default config (not an error) if no config file exists.
func Load(dir string) (*Config, error) {
	type decoder func([]byte, any) error
	candidates := []struct {
		name   string
		decode decoder
	}{
		{"jitcap.yml", yaml.Unmarshal},
		{"jitcap.yaml", yaml.Unmarshal},
		{"jitcap.toml", toml.Unmarshal},
	}

	for _, c := range candidates {
		path := filepath.Join(dir, c.name)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		cfg := Default()
		if err := c.decode(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.Path = path
		cfg.resolvePaths(dir)
		return cfg, nil
	}
	return Default(), nil
}

// resolvePaths makes relative file paths relative to the config directory.
func (c *Config) resolvePaths(dir string) {
	for _, p := range []*string{&c.Registry.Path, &c.Registry.Catalog} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

// Validate rejects unknown backends, modes, log settings and non-positive
// limits.
func (c *Config) Validate() error {
	var errs []error
	backend := strings.ToLower(c.Registry.Backend)
	if !slices.Contains(registry.Backends(), backend) {
		errs = append(errs, fmt.Errorf("registry.backend %q: want one of %s",
			c.Registry.Backend, strings.Join(registry.Backends(), ", ")))
	}
	if (backend == registry.BackendBolt || backend == registry.BackendSQLite) && c.Registry.Path == "" {
		errs = append(errs, fmt.Errorf("registry.path is required for backend %q", c.Registry.Backend))
	}
	if _, err := search.ParseMode(c.Search.Mode); err != nil {
		errs = append(errs, fmt.Errorf("search.mode: %w", err))
	}
	if c.Search.Limit <= 0 {
		errs = append(errs, fmt.Errorf("search.limit must be positive, got %d", c.Search.Limit))
	}
	if c.Orchestrator.MaxTurns <= 0 {
		errs = append(errs, fmt.Errorf("orchestrator.maxTurns must be positive, got %d", c.Orchestrator.MaxTurns))
	}
	if c.Orchestrator.HistoryWindow <= 0 {
		errs = append(errs, fmt.Errorf("orchestrator.historyWindow must be positive, got %d", c.Orchestrator.HistoryWindow))
	}
	if !slices.Contains(logLevels, strings.ToLower(c.Log.Level)) {
		errs = append(errs, fmt.Errorf("log.level %q: want one of %s", c.Log.Level, strings.Join(logLevels, ", ")))
	}
	if !slices.Contains(logFormats, strings.ToLower(c.Log.Format)) {
		errs = append(errs, fmt.Errorf("log.format %q: want one of %s", c.Log.Format, strings.Join(logFormats, ", ")))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
