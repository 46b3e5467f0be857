package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points every default path at a temp directory so the host's real
// configuration never leaks into the tests.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
}

func TestLoadWithoutFile(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.Equal(t, "robust", cfg.IPC.Policy)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9465, cfg.Metrics.Port)

	assert.NotEmpty(t, cfg.IPC.Home)
	assert.Equal(t, filepath.Join(cfg.IPC.Home, "lib"), cfg.IPC.Lib)
	assert.Equal(t, filepath.Join(cfg.IPC.Home, "keywardend.rendezvous"), cfg.IPC.Rendezvous)
	assert.Equal(t, filepath.Join(cfg.IPC.Lib, "keystore"), cfg.Keystore.Path)
}

func TestLoadFromFile(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
logging:
  level: debug
  format: json
ipc:
  home: /srv/keywarden
  policy: external
metrics:
  enabled: true
  port: 9470
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level, "level is normalized to uppercase")
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "/srv/keywarden", cfg.IPC.Home)
	assert.Equal(t, "external", cfg.IPC.Policy)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9470, cfg.Metrics.Port)

	// Derived defaults follow the configured home.
	assert.Equal(t, filepath.Join("/srv/keywarden", "lib"), cfg.IPC.Lib)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	isolate(t)

	cases := map[string]string{
		"BadLevel":  "logging:\n  level: SHOUTY\n",
		"BadFormat": "logging:\n  format: xml\n",
		"BadPolicy": "ipc:\n  policy: carrier-pigeon\n",
		"BadPort":   "metrics:\n  port: 99999\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0600))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	cfg.IPC.Policy = "in-process"
	cfg.Logging.Level = "DEBUG"

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, Save(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "in-process", reloaded.IPC.Policy)
	assert.Equal(t, "DEBUG", reloaded.Logging.Level)
}

func TestValidateAcceptsDefaults(t *testing.T) {
	isolate(t)

	var cfg Config
	ApplyDefaults(&cfg)
	assert.NoError(t, Validate(&cfg))
}
