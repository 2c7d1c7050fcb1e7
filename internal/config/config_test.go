package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://api.openai.com/v1", cfg.Judge.BaseURL)
	assert.Equal(t, "gpt-4o-mini", cfg.Judge.Model)
	assert.Equal(t, 20*time.Second, cfg.Judge.Timeout())
	assert.Equal(t, 60.0, cfg.Engine.DefaultThreshold)
	assert.Equal(t, 5, cfg.Engine.ContextWindow)
	assert.Equal(t, 4, cfg.Engine.Concurrency)
	assert.False(t, cfg.Engine.SkipAsked)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "medscore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
judge:
  model: test-model
  timeout_seconds: 5
engine:
  default_threshold: 75
  skip_asked: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test-model", cfg.Judge.Model)
	assert.Equal(t, 5*time.Second, cfg.Judge.Timeout())
	assert.Equal(t, 75.0, cfg.Engine.DefaultThreshold)
	assert.True(t, cfg.Engine.SkipAsked)
	// Untouched keys keep their defaults.
	assert.Equal(t, "https://api.openai.com/v1", cfg.Judge.BaseURL)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("MEDSCORE_JUDGE_MODEL", "env-model")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-model", cfg.Judge.Model)
}
