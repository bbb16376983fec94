// Package config loads amgp settings with viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/alucardeht/amgp/internal/plugin"
	"github.com/alucardeht/amgp/internal/registry"
	"github.com/alucardeht/amgp/internal/temporal"
	"github.com/alucardeht/amgp/internal/watcher"
)

// EnvPrefix prefixes environment overrides, e.g. AMGP_PLUGINS_DIR.
const EnvPrefix = "AMGP"

type Config struct {
	Log     LogConfig      `mapstructure:"log"`
	Plugins PluginsConfig  `mapstructure:"plugins"`
	History HistoryConfig  `mapstructure:"history"`
	Watch   watcher.Config `mapstructure:"watch"`
	Time    TimeConfig     `mapstructure:"time"`
	Presets PresetsConfig  `mapstructure:"presets"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PluginsConfig describes the user plugin location, searched after the
// built-in components.
type PluginsConfig struct {
	Dir      string   `mapstructure:"dir"`
	Patterns []string `mapstructure:"patterns"`
	Optional bool     `mapstructure:"optional"`

	plugin.Config `mapstructure:",squash"`
}

type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path"`
}

type TimeConfig struct {
	DefaultPolicy temporal.Policy `mapstructure:"default_policy"`
	MaxSteps      int             `mapstructure:"max_steps"`
}

type PresetsConfig struct {
	Dir string `mapstructure:"dir"`
}

// DataDir is where amgp keeps plugins, presets and history by default.
func DataDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".amgp")
}

func Defaults() Config {
	dataDir := DataDir()
	return Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Plugins: PluginsConfig{
			Dir:      filepath.Join(dataDir, "plugins"),
			Patterns: []string{registry.DefaultPattern},
			Optional: true,
			Config:   plugin.DefaultConfig(),
		},
		History: HistoryConfig{
			Enabled: true,
			DBPath:  filepath.Join(dataDir, "history.db"),
		},
		Watch: watcher.DefaultConfig(),
		Time: TimeConfig{
			DefaultPolicy: temporal.PolicySync,
			MaxSteps:      temporal.DefaultMaxSteps,
		},
		Presets: PresetsConfig{Dir: filepath.Join(dataDir, "presets")},
	}
}

// SetDefaults registers every default with v so that env overrides and
// partial config files fall back to them.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("plugins.dir", d.Plugins.Dir)
	v.SetDefault("plugins.patterns", d.Plugins.Patterns)
	v.SetDefault("plugins.optional", d.Plugins.Optional)
	v.SetDefault("plugins.args", d.Plugins.Args)
	v.SetDefault("plugins.init_timeout", d.Plugins.InitTimeout)
	v.SetDefault("plugins.request_timeout", d.Plugins.RequestTimeout)
	v.SetDefault("plugins.capability_ttl", d.Plugins.CapabilityTTL)
	v.SetDefault("plugins.stop_timeout", d.Plugins.StopTimeout)
	v.SetDefault("plugins.breaker.failure_threshold", d.Plugins.Breaker.FailureThreshold)
	v.SetDefault("plugins.breaker.open_timeout", d.Plugins.Breaker.OpenTimeout)
	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.db_path", d.History.DBPath)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("watch.max_batch", d.Watch.MaxBatch)
	v.SetDefault("watch.include", d.Watch.Include)
	v.SetDefault("watch.ignore", d.Watch.Ignore)
	v.SetDefault("time.default_policy", string(d.Time.DefaultPolicy))
	v.SetDefault("time.max_steps", d.Time.MaxSteps)
	v.SetDefault("presets.dir", d.Presets.Dir)
}

// Locate returns the config file to read. Lookup order: explicit, then
// .amgp/config.yaml in the working directory, then
// ~/.config/amgp/config.yaml. It returns "" when none exists.
func Locate(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(filepath.Join(".amgp", "config.yaml")); err == nil {
		return filepath.Join(".amgp", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	user := filepath.Join(home, ".config", "amgp", "config.yaml")
	if _, err := os.Stat(user); err == nil {
		return user
	}
	return ""
}

// Load reads the located config file, if any, applies AMGP_ environment
// overrides and validates the result. A missing config file is not an
// error; an explicit path that does not exist is.
func Load(v *viper.Viper, explicit string) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := Locate(explicit); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	policy, err := temporal.ParsePolicy(string(c.Time.DefaultPolicy))
	if err != nil {
		return fmt.Errorf("time.default_policy: %w", err)
	}
	c.Time.DefaultPolicy = policy

	if c.Time.MaxSteps < 0 {
		return fmt.Errorf("time.max_steps must not be negative, got %d", c.Time.MaxSteps)
	}
	if len(c.Plugins.Patterns) == 0 {
		return errors.New("plugins.patterns must name at least one pattern")
	}
	for _, d := range []struct {
		key string
		val time.Duration
	}{
		{"plugins.init_timeout", c.Plugins.InitTimeout},
		{"plugins.request_timeout", c.Plugins.RequestTimeout},
		{"plugins.capability_ttl", c.Plugins.CapabilityTTL},
		{"watch.debounce", c.Watch.Debounce},
	} {
		if d.val < 0 {
			return fmt.Errorf("%s must not be negative, got %s", d.key, d.val)
		}
	}
	return nil
}

// EnsureDirectories creates the directories the configured paths live in.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Plugins.Dir, c.Presets.Dir}
	if c.History.Enabled {
		dirs = append(dirs, filepath.Dir(c.History.DBPath))
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
