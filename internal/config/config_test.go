package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "./overlays", cfg.Overlays.Dir)
	assert.Equal(t, "./templates", cfg.Templates.Dir)
	assert.Equal(t, ".", cfg.Output.Dir)
	assert.Equal(t, 0, cfg.Output.PortOffset)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devstack.yaml")
	content := `
overlays:
  dir: /srv/overlays
output:
  dir: /tmp/out
  port_offset: 100
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/overlays", cfg.Overlays.Dir)
	assert.Equal(t, "/tmp/out", cfg.Output.Dir)
	assert.Equal(t, 100, cfg.Output.PortOffset)
	assert.Equal(t, "./templates", cfg.Templates.Dir, "unset keys keep defaults")
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "./overlays", cfg.Overlays.Dir)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devstack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("overlays: [unclosed"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Setenv("DEVSTACK_OVERLAYS_DIR", "/env/overlays")
	t.Setenv("DEVSTACK_OUTPUT_PORT_OFFSET", "300")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/env/overlays", cfg.Overlays.Dir)
	assert.Equal(t, 300, cfg.Output.PortOffset)
}
