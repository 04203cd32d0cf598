package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// TomlProvider configures the profile data provider
type TomlProvider struct {
	Host       string `toml:"host"`
	PathMarker string `toml:"path_marker"`
	Handle     string `toml:"handle,omitempty"`
}

// TomlProfile is a profile followed on every refresh
type TomlProfile struct {
	Reference string `toml:"reference"`
}

// Config is the top-level configuration
type Config struct {
	CachePath            string        `toml:"cache_path"`
	CacheBackend         string        `toml:"cache_backend"`
	DaysBack             int           `toml:"days_back"`
	PostsPerProfile      int           `toml:"posts_per_profile"`
	FetchTimeout         string        `toml:"fetch_timeout"`
	MaxConcurrentFetches int           `toml:"max_concurrent_fetches"`
	Provider             TomlProvider  `toml:"provider"`
	Profiles             []TomlProfile `toml:"profiles"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		CachePath:            "feed.json",
		CacheBackend:         BackendFile,
		DaysBack:             7,
		PostsPerProfile:      10,
		FetchTimeout:         "15s",
		MaxConcurrentFetches: 4,
		Provider: TomlProvider{
			Host:       "https://public.api.bsky.app",
			PathMarker: "/profile/",
		},
	}
}

// LoadConfig reads the TOML file at path on top of the defaults.
// A missing file is not an error when optional is set.
func LoadConfig(path string, optional bool) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return config, nil
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	if c.CacheBackend != BackendFile && c.CacheBackend != BackendSQLite {
		return fmt.Errorf("unknown cache backend %q", c.CacheBackend)
	}
	if c.CachePath == "" {
		return errors.New("cache_path must not be empty")
	}
	if c.DaysBack < 1 {
		return fmt.Errorf("days_back must be at least 1, got %d", c.DaysBack)
	}
	if c.PostsPerProfile < 1 {
		return fmt.Errorf("posts_per_profile must be at least 1, got %d", c.PostsPerProfile)
	}
	if c.MaxConcurrentFetches < 1 {
		return fmt.Errorf("max_concurrent_fetches must be at least 1, got %d", c.MaxConcurrentFetches)
	}
	if _, err := c.FetchTimeoutDuration(); err != nil {
		return err
	}
	return nil
}

func (c *Config) FetchTimeoutDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.FetchTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid fetch_timeout %q: %w", c.FetchTimeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("fetch_timeout must be positive, got %s", d)
	}
	return d, nil
}

// References returns the profile references listed in the file
func (c *Config) References() []string {
	refs := make([]string, 0, len(c.Profiles))
	for _, p := range c.Profiles {
		if p.Reference != "" {
			refs = append(refs, p.Reference)
		}
	}
	return refs
}
