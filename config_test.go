package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings(t *testing.T) {
	s := defaultSettings()

	assert.Equal(t, StrategyDOM, s.Strategy)
	assert.Equal(t, 10, s.Workflow.MaxSteps)
	assert.Equal(t, 30*time.Second, s.Workflow.Timeout)
	assert.Equal(t, 50, s.Workflow.MinLength)
	assert.Equal(t, 5*time.Second, s.Overlay.ErrorDismiss)
	assert.Equal(t, 200*time.Millisecond, s.Watcher.MenuDelay)
	assert.Equal(t, "srv1", s.Captions.Format)
	assert.NotEmpty(t, s.Innertube.ClientVersion)
}

func TestParseSettingsKeepsDefaults(t *testing.T) {
	s, err := parseSettings([]byte("strategy: api\nworkflow:\n  max_steps: 4\n  expand_delay: 0s\n"))
	require.NoError(t, err)

	assert.Equal(t, StrategyAPI, s.Strategy)
	assert.Equal(t, 4, s.Workflow.MaxSteps)
	assert.Equal(t, time.Duration(0), s.Workflow.ExpandDelay)
	assert.Equal(t, 2*time.Second, s.Workflow.PanelDelay, "unset keys keep their default")
	assert.Equal(t, 50, s.Workflow.MinLength)
}

func TestParseSettingsInvalid(t *testing.T) {
	_, err := parseSettings([]byte("workflow: [not, a, map]"))
	assert.Error(t, err)
}

func TestWorkflowSettingsWithDefaults(t *testing.T) {
	w := WorkflowSettings{MaxSteps: -1, MinLength: 0, RetryDelay: -time.Second}.withDefaults()

	assert.Equal(t, defaultMaxSteps, w.MaxSteps)
	assert.Equal(t, defaultMinLength, w.MinLength)
	assert.Equal(t, time.Duration(0), w.RetryDelay)
}

func TestValidateStrategy(t *testing.T) {
	s := &Settings{}
	require.NoError(t, s.validate())
	assert.Equal(t, StrategyDOM, s.Strategy)

	s.Strategy = "iframe"
	assert.Error(t, s.validate())
}

func TestNewConfigOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("YOUTUBE_API_KEY", "from-env")
	t.Setenv("YOUTUBE_ACCESS_TOKEN", "token-env")

	custom := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(custom, []byte("strategy: dom\nserver:\n  addr: 127.0.0.1:9999\n"), 0644))

	key, strategy := "from-flag", "api"
	cfg, err := NewConfig(&ConfigOverrides{SettingsPath: &custom, APIKey: &key, Strategy: &strategy})
	require.NoError(t, err)

	assert.Equal(t, "from-flag", cfg.Settings.Captions.APIKey, "flag wins over environment")
	assert.Equal(t, "token-env", cfg.Settings.Captions.AccessToken)
	assert.Equal(t, StrategyAPI, cfg.Settings.Strategy)
	assert.Equal(t, "127.0.0.1:9999", cfg.Settings.Server.Addr)

	_, err = os.Stat(GetConfigPath("settings.yaml"))
	assert.NoError(t, err, "default settings written on first run")
}

func TestNewConfigMissingSettingsFile(t *testing.T) {
	chdir(t, t.TempDir())

	missing := filepath.Join(t.TempDir(), "missing.yaml")
	_, err := NewConfig(&ConfigOverrides{SettingsPath: &missing})
	assert.Error(t, err)
}

func TestNewConfigRejectsUnknownStrategy(t *testing.T) {
	chdir(t, t.TempDir())

	strategy := "telepathy"
	_, err := NewConfig(&ConfigOverrides{Strategy: &strategy})
	assert.ErrorContains(t, err, "unknown strategy")
}

// chdir changes the working directory for the duration of the test
// (testing.T.Chdir is only available from Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
