package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:5000/api", cfg.ServerURL)
	assert.Equal(t, "exam-journal.db", cfg.Journal)
	assert.Equal(t, 30*time.Second, cfg.Autosave)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Empty(t, cfg.Token)
}

func TestLoadPrecedence(t *testing.T) {
	file := writeFile(t, "exam.yaml", `
server_url: https://lms.example.edu/api/
autosave: 45s
log_level: info
`)
	t.Setenv("EXAM_LOG_LEVEL", "debug")
	t.Setenv("EXAM_TOKEN", "env-token")

	cfg, err := Load(Options{
		ConfigFile: file,
		Overrides:  map[string]any{KeyToken: "flag-token"},
	})
	require.NoError(t, err)

	assert.Equal(t, "https://lms.example.edu/api", cfg.ServerURL)
	assert.Equal(t, 45*time.Second, cfg.Autosave)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "flag-token", cfg.Token)
}

func TestLoadDotEnv(t *testing.T) {
	envFile := writeFile(t, ".env", "EXAM_JOURNAL=/tmp/from-dotenv.db\n")
	t.Cleanup(func() {
		_ = os.Unsetenv("EXAM_JOURNAL")
	})

	cfg, err := Load(Options{EnvFile: envFile})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-dotenv.db", cfg.Journal)
}

func TestLoadMissingFiles(t *testing.T) {
	_, err := Load(Options{EnvFile: filepath.Join(t.TempDir(), "nope.env")})
	assert.Error(t, err)

	_, err = Load(Options{ConfigFile: filepath.Join(t.TempDir(), "nope.yaml")})
	assert.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	_, err := Load(Options{Overrides: map[string]any{KeyServerURL: "not a url"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server_url")

	_, err = Load(Options{Overrides: map[string]any{KeyLogLevel: "loud"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level must be one of")

	_, err = Load(Options{Overrides: map[string]any{KeyTimeout: time.Duration(0)}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestAutosaveCanBeDisabled(t *testing.T) {
	t.Setenv("EXAM_AUTOSAVE", "0s")
	cfg, err := Load(Options{})
	require.NoError(t, err)
	assert.Zero(t, cfg.Autosave)
}
