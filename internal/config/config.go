package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

const (
	defaultConcurrency = 8
	maxConcurrency     = 16
	defaultTimeout     = 20 * time.Second
	defaultUserAgent   = "RRCFeeds/1.0 (podcast feed builder)"
)

type Config struct {
	Shows   Shows   `yaml:"shows" toml:"shows"`
	Options Options `yaml:"options" toml:"options"`
	Cache   Cache   `yaml:"cache" toml:"cache"`
	Upload  Upload  `yaml:"upload" toml:"upload"`
	Logging Logging `yaml:"logging" toml:"logging"`
}

type Shows struct {
	ShowLists []string `yaml:"showlists" toml:"showlists"`
	Shows     []string `yaml:"shows" toml:"shows"`
	Combos    []Combo  `yaml:"combos" toml:"combos"`
}

// Combo groups several source shows into one feed.
type Combo struct {
	Name        string   `yaml:"name" toml:"name"`
	Description string   `yaml:"description" toml:"description"`
	Category    string   `yaml:"category" toml:"category"`
	Website     string   `yaml:"website" toml:"website"`
	URLs        []string `yaml:"urls" toml:"urls"`
}

type Options struct {
	MaxEpisodes int    `yaml:"max_episodes" toml:"max_episodes"`
	MinEpisodes int    `yaml:"min_episodes" toml:"min_episodes"`
	Concurrency int    `yaml:"concurrency" toml:"concurrency"`
	Timeout     string `yaml:"timeout" toml:"timeout"`
	UserAgent   string `yaml:"user_agent" toml:"user_agent"`
}

type Cache struct {
	Enabled      bool   `yaml:"enabled" toml:"enabled"`
	Dir          string `yaml:"dir" toml:"dir"`
	FileShows    string `yaml:"file_shows" toml:"file_shows"`
	FilePodcasts string `yaml:"file_podcasts" toml:"file_podcasts"`
	FileHashes   string `yaml:"file_hashes" toml:"file_hashes"`
	DatabaseURL  string `yaml:"database_url" toml:"database_url"`
}

type Upload struct {
	Target   string         `yaml:"target" toml:"target"`
	Folder   string         `yaml:"folder" toml:"folder"`
	Dir      string         `yaml:"dir" toml:"dir"`
	Supabase SupabaseUpload `yaml:"supabase" toml:"supabase"`
	HTTP     HTTPUpload     `yaml:"http" toml:"http"`
}

type SupabaseUpload struct {
	URL    string `yaml:"url" toml:"url"`
	KeyEnv string `yaml:"key_env" toml:"key_env"`
	Bucket string `yaml:"bucket" toml:"bucket"`
}

type HTTPUpload struct {
	BaseURL  string `yaml:"base_url" toml:"base_url"`
	TokenEnv string `yaml:"token_env" toml:"token_env"`
}

type Logging struct {
	Level string `yaml:"level" toml:"level"`
}

// ConfigDir returns the XDG config directory for rrcfeeds.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "rrcfeeds")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/rrcfeeds/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'rrcfeeds init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config file. Files ending in .toml are decoded as
// TOML, everything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return parseTOML(data)
	}
	return parse(data)
}

func defaults() *Config {
	return &Config{
		Options: Options{
			Concurrency: defaultConcurrency,
			Timeout:     defaultTimeout.String(),
			UserAgent:   defaultUserAgent,
		},
		Cache: Cache{
			Dir:          "data",
			FileShows:    "shows.db",
			FilePodcasts: "podcasts.db",
			FileHashes:   "hashes.db",
		},
		Upload: Upload{
			Target: "dir",
			Dir:    "feeds",
		},
		Logging: Logging{Level: "INFO"},
	}
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

func parseTOML(data []byte) (*Config, error) {
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Validate reports configuration errors that make a run pointless.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Shows.ShowLists) == 0 && len(c.Shows.Shows) == 0 && len(c.Shows.Combos) == 0 {
		errs = append(errs, errors.New("shows: no showlists, shows or combos configured"))
	}
	for i, combo := range c.Shows.Combos {
		if strings.TrimSpace(combo.Name) == "" {
			errs = append(errs, fmt.Errorf("shows.combos[%d]: name is required", i))
		}
		if len(combo.URLs) == 0 {
			errs = append(errs, fmt.Errorf("shows.combos[%d]: urls must not be empty", i))
		}
	}
	if c.Options.MaxEpisodes < 0 {
		errs = append(errs, errors.New("options.max_episodes must not be negative"))
	}
	if c.Options.MinEpisodes < 0 {
		errs = append(errs, errors.New("options.min_episodes must not be negative"))
	}
	if _, err := time.ParseDuration(c.Options.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("options.timeout: %w", err))
	}

	switch c.Upload.Target {
	case "dir":
		if c.Upload.Dir == "" {
			errs = append(errs, errors.New("upload.dir is required for target dir"))
		}
	case "supabase":
		if c.Upload.Supabase.URL == "" || c.Upload.Supabase.Bucket == "" || c.Upload.Supabase.KeyEnv == "" {
			errs = append(errs, errors.New("upload.supabase needs url, bucket and key_env"))
		}
	case "http":
		if c.Upload.HTTP.BaseURL == "" {
			errs = append(errs, errors.New("upload.http.base_url is required for target http"))
		}
	case "none":
	default:
		errs = append(errs, fmt.Errorf("upload.target: unknown value %q", c.Upload.Target))
	}
	return errors.Join(errs...)
}

// Concurrency returns the bounded fetch concurrency.
func (c *Config) Concurrency() int {
	n := c.Options.Concurrency
	if n < 1 {
		return 1
	}
	if n > maxConcurrency {
		return maxConcurrency
	}
	return n
}

// Timeout returns the per-request fetch timeout.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.Options.Timeout)
	if err != nil || d <= 0 {
		return defaultTimeout
	}
	return d
}

// StatePath resolves one of the cache.file_* names against cache.dir.
func (c *Config) StatePath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Cache.Dir, name)
}

// LockPath is the run lock held while the cache directory is in use.
func (c *Config) LockPath() string {
	return filepath.Join(c.Cache.Dir, "rrcfeeds.lock")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
