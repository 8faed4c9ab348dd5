package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetSingleton(t *testing.T) {
	t.Helper()
	mu.Lock()
	once = sync.Once{}
	instance = nil
	mu.Unlock()
}

func writeJSON(t *testing.T, path string, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func TestLoadConfigCreatesDefaults(t *testing.T) {
	resetSingleton(t)
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := LoadConfig(path)

	assert.Equal(t, "38870", cfg.Port)
	assert.Equal(t, 20, cfg.Blocksize)
	assert.Equal(t, ModeWeb, cfg.Mode)
	assert.Equal(t, "random", cfg.FoodPlacement)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk AppConfig
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, cfg, onDisk)
}

func TestLoadConfigReadsExistingFile(t *testing.T) {
	resetSingleton(t)
	path := filepath.Join(t.TempDir(), "config.json")
	writeJSON(t, path, map[string]interface{}{
		"port":          "9000",
		"mode":          "term",
		"foodplacement": "free",
		"sound":         true,
	})

	cfg := LoadConfig(path)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, ModeTerm, cfg.Mode)
	assert.Equal(t, "free", cfg.FoodPlacement)
	assert.True(t, cfg.Sound)
	assert.Equal(t, 20, cfg.Blocksize, "missing keys keep their defaults")
}

func TestLoadConfigOnlyOnce(t *testing.T) {
	resetSingleton(t)
	dir := t.TempDir()
	first := filepath.Join(dir, "a.json")
	second := filepath.Join(dir, "b.json")
	writeJSON(t, first, map[string]interface{}{"port": "1"})
	writeJSON(t, second, map[string]interface{}{"port": "2"})

	LoadConfig(first)
	cfg := LoadConfig(second)

	assert.Equal(t, "1", cfg.Port)
}

func TestLoadConfigPanicsOnBadFile(t *testing.T) {
	resetSingleton(t)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	assert.Panics(t, func() { LoadConfig(path) })
}

func TestGetConfigValue(t *testing.T) {
	resetSingleton(t)
	path := filepath.Join(t.TempDir(), "config.json")
	writeJSON(t, path, map[string]interface{}{"blocksize": 12, "debug": true})
	LoadConfig(path)

	assert.Equal(t, 12, GetConfigValue("blocksize").(int))
	assert.Equal(t, true, GetConfigValue("debug").(bool))
	assert.Equal(t, "web", GetConfigValue("mode").(string))
	assert.Equal(t, "", GetConfigValue("nope"))
}

func TestReadConfigValidates(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"zero blocksize", map[string]interface{}{"blocksize": 0}},
		{"bad mode", map[string]interface{}{"mode": "gui"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			writeJSON(t, path, tt.body)

			_, err := readConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	resetSingleton(t)
	path := filepath.Join(t.TempDir(), "config.json")
	LoadConfig(path)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, path) }()

	data, err := json.Marshal(map[string]interface{}{"blocksize": 32})
	require.NoError(t, err)
	// 等 watcher 就绪后再写，写多次直到生效
	assert.Eventually(t, func() bool {
		_ = os.WriteFile(path, data, 0644)
		return GetConfigValue("blocksize").(int) == 32
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestReloadKeepsOldConfigOnError(t *testing.T) {
	resetSingleton(t)
	path := filepath.Join(t.TempDir(), "config.json")
	writeJSON(t, path, map[string]interface{}{"blocksize": 16})
	LoadConfig(path)

	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))
	reload(path)

	assert.Equal(t, 16, GetConfigValue("blocksize").(int))
}

func TestLoadConfigReturnsValueCopy(t *testing.T) {
	resetSingleton(t)
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := LoadConfig(path)
	cfg.Port = "1"

	assert.Equal(t, "38870", Get().Port)
}

func TestRestartOnlyChanges(t *testing.T) {
	base := *defaults()
	tests := []struct {
		name string
		edit func(c *AppConfig)
		want []string
	}{
		{"blocksize reloads live", func(c *AppConfig) { c.Blocksize = 32 }, nil},
		{"selfpath reloads live", func(c *AppConfig) { c.SelfPath = "example.org" }, nil},
		{"port", func(c *AppConfig) { c.Port = "9000" }, []string{"port"}},
		{"mode and sound", func(c *AppConfig) { c.Mode = ModeTerm; c.Sound = true }, []string{"mode", "sound"}},
		{"placement and debug", func(c *AppConfig) { c.FoodPlacement = "free"; c.Debug = true }, []string{"foodplacement", "debug"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cur := base
			tt.edit(&cur)
			assert.Equal(t, tt.want, restartOnlyChanges(base, cur))
		})
	}
}
