// Package config loads dayplan settings from a YAML file with DAYPLAN_
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. DAYPLAN_USER.
const EnvPrefix = "DAYPLAN"

// DefaultPath is where the config file lives unless --config says otherwise.
const DefaultPath = "~/.config/dayplan/config.yaml"

// Defaults.
const (
	DefaultTickInterval  = 30 * time.Second
	DefaultTolerance     = 60 * time.Second
	DefaultSnoozeMinutes = 5
	DefaultHistoryLimit  = 100
	DefaultRefresh       = "@every 1m"
	DefaultRangeDays     = 7
)

// Config holds every setting. Paths may start with "~".
type Config struct {
	User          string        `mapstructure:"user" yaml:"user"`
	Database      string        `mapstructure:"database" yaml:"database"`
	TemplatesDir  string        `mapstructure:"templates_dir" yaml:"templates_dir"`
	SoundsDir     string        `mapstructure:"sounds_dir" yaml:"sounds_dir"`
	DefaultSound  string        `mapstructure:"default_sound" yaml:"default_sound,omitempty"`
	Timezone      string        `mapstructure:"timezone" yaml:"timezone,omitempty"`
	TickInterval  time.Duration `mapstructure:"tick_interval" yaml:"tick_interval"`
	Tolerance     time.Duration `mapstructure:"tolerance" yaml:"tolerance"`
	SnoozeMinutes int           `mapstructure:"snooze_minutes" yaml:"snooze_minutes"`
	HistoryLimit  int           `mapstructure:"history_limit" yaml:"history_limit"`
	Refresh       string        `mapstructure:"refresh" yaml:"refresh"`
	RangeDays     int           `mapstructure:"range_days" yaml:"range_days"`
}

var keys = []string{
	"user", "database", "templates_dir", "sounds_dir", "default_sound", "timezone",
	"tick_interval", "tolerance", "snooze_minutes", "history_limit", "refresh", "range_days",
}

// Default returns a config with every default filled in.
func Default() Config {
	var c Config
	c.Normalize()
	return c
}

// Normalize fills zero fields with defaults.
func (c *Config) Normalize() {
	if c.User == "" {
		c.User = currentUser()
	}
	if c.Database == "" {
		c.Database = "~/.local/share/dayplan/dayplan.db"
	}
	if c.TemplatesDir == "" {
		c.TemplatesDir = "~/.local/share/dayplan/templates"
	}
	if c.SoundsDir == "" {
		c.SoundsDir = "~/.local/share/dayplan/sounds"
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.Tolerance <= 0 {
		c.Tolerance = DefaultTolerance
	}
	if c.SnoozeMinutes <= 0 {
		c.SnoozeMinutes = DefaultSnoozeMinutes
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = DefaultHistoryLimit
	}
	if c.Refresh == "" {
		c.Refresh = DefaultRefresh
	}
	if c.RangeDays <= 0 {
		c.RangeDays = DefaultRangeDays
	}
}

// Location resolves Timezone, falling back to the local zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Expanded returns a copy with "~" resolved in every path.
func (c Config) Expanded() (Config, error) {
	for _, p := range []*string{&c.Database, &c.TemplatesDir, &c.SoundsDir} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return Config{}, fmt.Errorf("expand %q: %w", *p, err)
		}
		*p = expanded
	}
	return c, nil
}

// Load reads path (DefaultPath when empty) and applies environment
// overrides. A missing file is not an error; the defaults apply.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultPath
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return Config{}, fmt.Errorf("expand config path: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(expanded)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	// AutomaticEnv only consults keys viper already knows about.
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", k, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %s: %w", expanded, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", expanded, err)
	}
	c.Normalize()
	return c, nil
}

// Save writes c to path as YAML, replacing the file atomically.
func Save(path string, c Config) error {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return fmt.Errorf("expand config path: %w", err)
	}
	raw, err := yaml.Marshal(durationsAsText(c))
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	dir := filepath.Dir(expanded)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Rename(tmp.Name(), expanded); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

// fileConfig mirrors Config with durations spelled out ("30s") instead of
// yaml.v3's nanosecond integers.
type fileConfig struct {
	User          string `yaml:"user"`
	Database      string `yaml:"database"`
	TemplatesDir  string `yaml:"templates_dir"`
	SoundsDir     string `yaml:"sounds_dir"`
	DefaultSound  string `yaml:"default_sound,omitempty"`
	Timezone      string `yaml:"timezone,omitempty"`
	TickInterval  string `yaml:"tick_interval"`
	Tolerance     string `yaml:"tolerance"`
	SnoozeMinutes int    `yaml:"snooze_minutes"`
	HistoryLimit  int    `yaml:"history_limit"`
	Refresh       string `yaml:"refresh"`
	RangeDays     int    `yaml:"range_days"`
}

func durationsAsText(c Config) fileConfig {
	return fileConfig{
		User:          c.User,
		Database:      c.Database,
		TemplatesDir:  c.TemplatesDir,
		SoundsDir:     c.SoundsDir,
		DefaultSound:  c.DefaultSound,
		Timezone:      c.Timezone,
		TickInterval:  c.TickInterval.String(),
		Tolerance:     c.Tolerance.String(),
		SnoozeMinutes: c.SnoozeMinutes,
		HistoryLimit:  c.HistoryLimit,
		Refresh:       c.Refresh,
		RangeDays:     c.RangeDays,
	}
}

func currentUser() string {
	for _, k := range []string{"USER", "USERNAME"} {
		if u := strings.TrimSpace(os.Getenv(k)); u != "" {
			return u
		}
	}
	return "default"
}
