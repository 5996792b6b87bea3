package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile     = "config.yaml"
	DefaultFeedsDir       = "feeds"
	DefaultStoragePath    = ".feedping/history.db"
	DefaultBaseURL        = "https://ntfy.sh"
	DefaultUserAgent      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultSyncInterval   = 10 * time.Minute
	DefaultRequestTimeout = 20 * time.Second
	DefaultMaxPerFeed     = 3
	DefaultMaxRPS         = 5
	DefaultMinDelay       = 250 * time.Millisecond
	DefaultMaxDelay       = 10 * time.Second
	DefaultLogLevel       = "info"
)

// Duration wraps time.Duration for YAML unmarshaling from strings like "10m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

type Config struct {
	Ntfy    NtfyConfig    `yaml:"ntfy"`
	Feeds   FeedsConfig   `yaml:"feeds"`
	Storage StorageConfig `yaml:"storage"`
	Sync    SyncConfig    `yaml:"sync"`
	Pacing  PacingConfig  `yaml:"pacing"`
	Log     LogConfig     `yaml:"log"`
}

type NtfyConfig struct {
	BaseURL        string   `yaml:"base_url"`
	TokenEnv       string   `yaml:"token_env"`
	UserAgent      string   `yaml:"user_agent"`
	RequestTimeout Duration `yaml:"request_timeout"`
	MaxRPS         int      `yaml:"max_rps"`

	// Resolved from the env var named by TokenEnv at load time.
	Token string `yaml:"-"`
}

type FeedsConfig struct {
	// Dir holds one YAML file per feed group; the topic is the file name.
	// Relative paths are resolved against the config directory.
	Dir string `yaml:"dir"`

	// MaxPerFeed caps dispatches per feed source per cycle. 0 disables the cap.
	MaxPerFeed int `yaml:"max_per_feed"`
}

type StorageConfig struct {
	Path string `yaml:"path"`

	// RetainDays prunes history rows older than this many days.
	// 0 keeps history forever.
	RetainDays int `yaml:"retain_days"`
}

type SyncConfig struct {
	Interval Duration `yaml:"interval"`
}

type PacingConfig struct {
	// MinDelay is the gap before a priority-5 notification,
	// MaxDelay the gap before a priority-1 one.
	MinDelay Duration `yaml:"min_delay"`
	MaxDelay Duration `yaml:"max_delay"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads config.yaml from dir, applies defaults, resolves env vars, and validates.
// Defaults fill in only keys absent from the file, so an explicit zero
// (max_per_feed: 0, max_rps: 0) keeps its disable-the-limit meaning.
func Load(dir string) (*Config, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("config dir is required")
	}

	path := filepath.Join(dir, DefaultConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	resolveEnv(&cfg)

	if !filepath.IsAbs(cfg.Feeds.Dir) {
		cfg.Feeds.Dir = filepath.Join(dir, cfg.Feeds.Dir)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// defaultConfig is the starting point for Load; yaml.Unmarshal overwrites
// only the keys present in the file.
func defaultConfig() Config {
	return Config{
		Ntfy: NtfyConfig{
			BaseURL:        DefaultBaseURL,
			UserAgent:      DefaultUserAgent,
			RequestTimeout: Duration{DefaultRequestTimeout},
			MaxRPS:         DefaultMaxRPS,
		},
		Feeds: FeedsConfig{
			Dir:        DefaultFeedsDir,
			MaxPerFeed: DefaultMaxPerFeed,
		},
		Storage: StorageConfig{
			Path: DefaultStoragePath,
		},
		Sync: SyncConfig{
			Interval: Duration{DefaultSyncInterval},
		},
		Pacing: PacingConfig{
			MinDelay: Duration{DefaultMinDelay},
			MaxDelay: Duration{DefaultMaxDelay},
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
	}
}

func resolveEnv(cfg *Config) {
	if cfg.Ntfy.TokenEnv != "" {
		cfg.Ntfy.Token = os.Getenv(cfg.Ntfy.TokenEnv)
	}
}

func validate(cfg *Config) error {
	if !strings.HasPrefix(cfg.Ntfy.BaseURL, "http://") && !strings.HasPrefix(cfg.Ntfy.BaseURL, "https://") {
		return fmt.Errorf("ntfy.base_url: %q is not an http(s) URL", cfg.Ntfy.BaseURL)
	}
	if cfg.Ntfy.MaxRPS < 0 {
		return errors.New("ntfy.max_rps: must not be negative")
	}
	if cfg.Feeds.MaxPerFeed < 0 {
		return errors.New("feeds.max_per_feed: must not be negative")
	}
	if cfg.Storage.RetainDays < 0 {
		return errors.New("storage.retain_days: must not be negative")
	}
	if cfg.Pacing.MinDelay.Duration > cfg.Pacing.MaxDelay.Duration {
		return fmt.Errorf("pacing: min_delay %s exceeds max_delay %s",
			cfg.Pacing.MinDelay.Duration, cfg.Pacing.MaxDelay.Duration)
	}
	return nil
}
