package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/alucardeht/amgp/internal/temporal"
)

// isolate points the lookup order at empty directories.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	wd, err := os.Getwd()
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, os.Chdir(dir))
	t.Setenv("PWD", dir)
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return home
}

func TestLoad_Defaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, filepath.Join(home, ".amgp", "plugins"), cfg.Plugins.Dir)
	require.Equal(t, []string{"AMGP_*"}, cfg.Plugins.Patterns)
	require.True(t, cfg.Plugins.Optional)
	require.Equal(t, 5*time.Minute, cfg.Plugins.CapabilityTTL)
	require.Equal(t, 3, cfg.Plugins.Breaker.FailureThreshold)
	require.Equal(t, temporal.PolicySync, cfg.Time.DefaultPolicy)
	require.Equal(t, temporal.DefaultMaxSteps, cfg.Time.MaxSteps)
	require.Equal(t, 300*time.Millisecond, cfg.Watch.Debounce)
}

func TestLoad_ExplicitFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "amgp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
plugins:
  dir: /opt/amgp/plugins
  patterns: ["AMGP_*", "LOCAL_*"]
  capability_ttl: 0s
  request_timeout: 90s
time:
  default_policy: Nearest
  max_steps: 48
`), 0o644))

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "/opt/amgp/plugins", cfg.Plugins.Dir)
	require.Equal(t, []string{"AMGP_*", "LOCAL_*"}, cfg.Plugins.Patterns)
	require.Zero(t, cfg.Plugins.CapabilityTTL)
	require.Equal(t, 90*time.Second, cfg.Plugins.RequestTimeout)
	require.Equal(t, 10*time.Second, cfg.Plugins.InitTimeout, "unset keys keep defaults")
	require.Equal(t, temporal.PolicyNearest, cfg.Time.DefaultPolicy)
	require.Equal(t, 48, cfg.Time.MaxSteps)
}

func TestLoad_WorkingDirectoryFile(t *testing.T) {
	isolate(t)
	require.NoError(t, os.MkdirAll(".amgp", 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(".amgp", "config.yaml"), []byte("history:\n  enabled: false\n"), 0o644))

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	require.False(t, cfg.History.Enabled)
}

func TestLoad_EnvOverride(t *testing.T) {
	isolate(t)
	t.Setenv("AMGP_PLUGINS_DIR", "/srv/plugins")
	t.Setenv("AMGP_TIME_DEFAULT_POLICY", "async")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	require.Equal(t, "/srv/plugins", cfg.Plugins.Dir)
	require.Equal(t, temporal.PolicyAsync, cfg.Time.DefaultPolicy)
}

func TestLoad_Invalid(t *testing.T) {
	isolate(t)

	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	t.Setenv("AMGP_TIME_DEFAULT_POLICY", "latest")
	_, err = Load(viper.New(), "")
	require.ErrorIs(t, err, temporal.ErrUnknownPolicy)
}

func TestEnsureDirectories(t *testing.T) {
	root := t.TempDir()
	cfg := Defaults()
	cfg.Plugins.Dir = filepath.Join(root, "plugins")
	cfg.Presets.Dir = filepath.Join(root, "presets")
	cfg.History.DBPath = filepath.Join(root, "state", "history.db")

	require.NoError(t, cfg.EnsureDirectories())
	for _, dir := range []string{"plugins", "presets", "state"} {
		info, err := os.Stat(filepath.Join(root, dir))
		require.NoError(t, err)
		require.True(t, info.IsDir())
	}
}
