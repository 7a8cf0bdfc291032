// Package config loads the tgcored daemon's configuration: bot
// credentials, throttle limits, poller options and observability
// settings, from a YAML file with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/basket/tgcore/internal/obs"
	"github.com/basket/tgcore/throttle"
)

// LimitsConfig mirrors throttle.Limits with yaml tags; zero fields fall
// back to throttle.DefaultLimits() values in normalize.
type LimitsConfig struct {
	PerSecOverall             int `yaml:"per_sec_overall"`
	PerSecChat                int `yaml:"per_sec_chat"`
	PerMinChat                int `yaml:"per_min_chat"`
	PerMinChannelOrSupergroup int `yaml:"per_min_channel_or_supergroup"`
}

// ToThrottleLimits converts to throttle.Limits.
func (l LimitsConfig) ToThrottleLimits() throttle.Limits {
	return throttle.Limits{
		PerSecOverall:             l.PerSecOverall,
		PerSecChat:                l.PerSecChat,
		PerMinChat:                l.PerMinChat,
		PerMinChannelOrSupergroup: l.PerMinChannelOrSupergroup,
	}
}

// PollingConfig controls the update poller.
type PollingConfig struct {
	TimeoutSeconds     int      `yaml:"timeout_seconds"`
	Limit              int32    `yaml:"limit"`
	AllowedUpdates     []string `yaml:"allowed_updates"`
	DropPendingUpdates bool     `yaml:"drop_pending_updates"`
	DeleteWebhook      bool     `yaml:"delete_webhook"`
}

// Config is the tgcored daemon's top-level configuration.
type Config struct {
	HomeDir string `yaml:"-"`

	Token  string `yaml:"token"`
	APIURL string `yaml:"api_url"`
	Proxy  string `yaml:"proxy"`

	LogLevel string `yaml:"log_level"`

	Limits  LimitsConfig  `yaml:"limits"`
	Polling PollingConfig `yaml:"polling"`

	// StatsCron is a cron expression for the periodic stats reporter, e.g.
	// "*/30 * * * * *" for every 30 seconds.
	StatsCron string `yaml:"stats_cron"`

	Observability obs.Config `yaml:"observability"`
}

// ConfigPath returns the path to config.yaml within homeDir.
func ConfigPath(homeDir string) string {
	return filepath.Join(homeDir, "config.yaml")
}

func defaultConfig() Config {
	defaults := throttle.DefaultLimits()
	return Config{
		APIURL:   "https://api.telegram.org",
		LogLevel: "info",
		Limits: LimitsConfig{
			PerSecOverall:             defaults.PerSecOverall,
			PerSecChat:                defaults.PerSecChat,
			PerMinChat:                defaults.PerMinChat,
			PerMinChannelOrSupergroup: defaults.PerMinChannelOrSupergroup,
		},
		Polling: PollingConfig{
			TimeoutSeconds: 30,
			Limit:          100,
		},
		StatsCron: "0 * * * * *",
	}
}

// HomeDir returns the daemon's config/state directory, overridable via
// TGCORED_HOME.
func HomeDir() string {
	if override := os.Getenv("TGCORED_HOME"); override != "" {
		return override
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".tgcored")
}

// Load reads config.yaml from HomeDir(), applying environment overrides
// and filling in defaults for anything left unset.
func Load() (Config, error) {
	cfg := defaultConfig()
	cfg.HomeDir = HomeDir()

	if err := os.MkdirAll(cfg.HomeDir, 0o755); err != nil {
		return cfg, fmt.Errorf("create tgcored home: %w", err)
	}

	data, err := os.ReadFile(ConfigPath(cfg.HomeDir))
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("read config.yaml: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config.yaml: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	normalize(&cfg)
	return cfg, nil
}

func normalize(cfg *Config) {
	defaults := defaultConfig()
	if cfg.APIURL == "" {
		cfg.APIURL = defaults.APIURL
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}
	if cfg.Limits == (LimitsConfig{}) {
		cfg.Limits = defaults.Limits
	}
	if cfg.Polling.TimeoutSeconds == 0 {
		cfg.Polling.TimeoutSeconds = defaults.Polling.TimeoutSeconds
	}
	if cfg.Polling.Limit == 0 {
		cfg.Polling.Limit = defaults.Polling.Limit
	}
	if cfg.StatsCron == "" {
		cfg.StatsCron = defaults.StatsCron
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TGCORE_TOKEN"); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv("TGCORE_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv("TGCORE_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("TGCORED_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TGCORED_PER_SEC_OVERALL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Limits.PerSecOverall = n
		}
	}
}
