package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alucardeht/amgp/internal/plugin"
)

const surfacePreset = `
name: surface
axes:
  - time: 20240101-00:00:00 to 20240101-12:00:00 interval 06:00:00
    mode: sync
    title: Surface
    append_date: true
    plotables:
      - {source_module: "00311000", name: surface_station_observations}
      - {source_module: AMGP_MODEL_FILL, name: filled_gfs_contours}
`

// sandbox isolates the config lookup and data directories of one test.
func sandbox(t *testing.T) string {
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

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	env = &environment{}
	cfgFile, logLevel = "", ""
	planPreset, planPolicy, planQuantize, planTags, planIndex, planExplain = "", "", "", nil, -1, false
	presetsSaveName = ""
	runOutput, componentsRole, componentsPing = "", "", false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	require.NoError(t, env.Close())
	return out.String(), err
}

func TestComponents_ListsBuiltins(t *testing.T) {
	sandbox(t)

	out, err := runCLI(t, "components", "--ping")
	require.NoError(t, err)
	require.Contains(t, out, "AMGP_OBS")
	require.Contains(t, out, "00510400")
	require.Contains(t, out, "static")

	out, err = runCLI(t, "components", "--role", "menu")
	require.NoError(t, err)
	require.Contains(t, out, "AMGP_MENU")
	require.NotContains(t, out, "AMGP_OBS")
}

func TestCapabilities_ByName(t *testing.T) {
	sandbox(t)

	out, err := runCLI(t, "capabilities", "AMGP_OBS")
	require.NoError(t, err)
	require.Contains(t, out, "upper_air_station_observations")
	require.Contains(t, out, "12h")
}

func TestPlan_Axis(t *testing.T) {
	sandbox(t)

	out, err := runCLI(t, "plan", "--time", "20240101-13:47:30", "--tag", "1h", "--tag", "6h")
	require.NoError(t, err)
	require.Equal(t, "20240101-12:00:00", strings.TrimSpace(out))

	out, err = runCLI(t, "plan", "--time", "20240101-13:47:30", "--policy", "raw", "--tag", "1h")
	require.NoError(t, err)
	require.Equal(t, "20240101-13:47:30", strings.TrimSpace(out))

	_, err = runCLI(t, "plan", "--time", "recent")
	require.Error(t, err)
}

func TestRun_RecordsHistory(t *testing.T) {
	sandbox(t)
	path := filepath.Join(t.TempDir(), "surface.yaml")
	require.NoError(t, os.WriteFile(path, []byte(surfacePreset), 0o644))

	out, err := runCLI(t, "run", path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	var manifest struct {
		Preset string `json:"preset"`
		Index  int    `json:"index"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &manifest))
	require.Equal(t, "surface", manifest.Preset)
	require.Equal(t, 2, manifest.Index)

	out, err = runCLI(t, "history")
	require.NoError(t, err)
	require.Contains(t, out, "surface")

	out, err = runCLI(t, "history", "layers", "00510400", "filled_gfs_contours")
	require.NoError(t, err)
	require.Contains(t, out, "20240101-12:00:00")
}

func TestPlan_Explain(t *testing.T) {
	sandbox(t)

	out, err := runCLI(t, "plan", "--explain", "--policy", "sync", "--tag", "6h",
		"--time", "20240101-00:00:00 to 20240101-12:00:00 interval 06:00:00")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	require.Equal(t, "# 20240101-00:00:00 to 20240101-12:00:00 interval 06:00:00 policy=sync pooled=6h", lines[0])
	require.Equal(t, "20240101-12:00:00", lines[3])
}

func TestPresets_SaveThenRunByName(t *testing.T) {
	home := sandbox(t)
	path := filepath.Join(t.TempDir(), "draft.yaml")
	require.NoError(t, os.WriteFile(path, []byte(surfacePreset), 0o644))

	out, err := runCLI(t, "presets")
	require.NoError(t, err)
	require.Empty(t, strings.TrimSpace(out))

	out, err = runCLI(t, "presets", "save", path, "--name", "nightly")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".amgp", "presets", "nightly.yaml"), strings.TrimSpace(out))

	out, err = runCLI(t, "presets", "list")
	require.NoError(t, err)
	require.Equal(t, "nightly", strings.TrimSpace(out))

	out, err = runCLI(t, "run", "nightly")
	require.NoError(t, err)
	require.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 3)

	_, err = runCLI(t, "presets", "save", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestDescribeStats(t *testing.T) {
	got := describeStats(plugin.Stats{
		State:        plugin.StateReady,
		Breaker:      plugin.BreakerClosed,
		RequestCount: 7,
		ErrorCount:   1,
		Uptime:       90*time.Second + 400*time.Millisecond,
	})
	require.Equal(t, "(ready, breaker closed, 7 requests, 1 errors, up 1m30s)", got)
}
