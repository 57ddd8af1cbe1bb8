package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"WAYFIND_DB", "WAYFIND_ADDR", "WAYFIND_LOG_LEVEL", "DIFY_BASE_URL",
		"DIFY_EXPLORE_KEY", "DIFY_OPTIONS_KEY", "DIFY_CHECK_KEY", "DIFY_EXPAND_KEY",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.NoError(t, cfg.Validate())
	assert.False(t, cfg.DifyConfigured())
	assert.Equal(t, 2*time.Second, cfg.GetRevealDelay())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database: /tmp/x.db
journey:
  reveal_delay: 500ms
  auto_extend: false
dify:
  explore_key: a
  options_key: b
  check_key: c
  expand_key: d
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", cfg.Database)
	assert.Equal(t, 500*time.Millisecond, cfg.GetRevealDelay())
	assert.False(t, cfg.Journey.AutoExtend)
	assert.Equal(t, 10, cfg.Journey.GridSize)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.True(t, cfg.DifyConfigured())
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("journey: [oops"), 0600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("WAYFIND_DB", "/data/w.db")
	t.Setenv("WAYFIND_ADDR", ":9000")
	t.Setenv("WAYFIND_LOG_LEVEL", "debug")
	t.Setenv("DIFY_BASE_URL", "http://dify.local")
	t.Setenv("DIFY_EXPLORE_KEY", "e")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "/data/w.db", cfg.Database)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "http://dify.local", cfg.Dify.BaseURL)
	assert.Equal(t, "e", cfg.Dify.ExploreKey)
	assert.False(t, cfg.DifyConfigured())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty database", func(c *Config) { c.Database = "" }},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"zero grid", func(c *Config) { c.Journey.GridSize = 0 }},
		{"zero canvas", func(c *Config) { c.Journey.CanvasWidth = 0 }},
		{"bad delay", func(c *Config) { c.Journey.RevealDelay = "soon" }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Dify.ExploreKey = "k"
	cfg.Journey.RecentLimit = 9
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestWatcher_Reloads(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	require.NoError(t, cfg.Save(path))

	w, err := NewWatcher(path, cfg, nil)
	require.NoError(t, err)
	defer w.Stop()

	var reloaded atomic.Value
	w.OnChange(func(c *Config) { reloaded.Store(c.Logging.Level) })

	cfg2 := DefaultConfig()
	cfg2.Logging.Level = "debug"
	require.NoError(t, cfg2.Save(path))

	assert.Eventually(t, func() bool {
		v, _ := reloaded.Load().(string)
		return v == "debug"
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, "debug", w.Current().Logging.Level)
}

func TestWatcher_IgnoresInvalid(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	require.NoError(t, cfg.Save(path))

	w, err := NewWatcher(path, cfg, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: loud\n"), 0600))
	time.Sleep(debounceDelay + 300*time.Millisecond)
	w.Stop()
	assert.Same(t, cfg, w.Current())
}
