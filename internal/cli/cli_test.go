package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/devstack/internal/manifest"
	"github.com/mmr-tortoise/devstack/internal/model"
	"github.com/mmr-tortoise/devstack/internal/overlay"
)

// writeLibrary lays out a minimal overlay library and template directory
// on disk, returning their paths.
func writeLibrary(t *testing.T) (overlaysDir, templatesDir string) {
	t.Helper()
	root := t.TempDir()
	overlaysDir = filepath.Join(root, "overlays")
	templatesDir = filepath.Join(root, "templates")

	write := func(rel, content string) {
		t.Helper()
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	write("overlays/postgres/overlay.json", `{
		// PostgreSQL database service
		"id": "postgres",
		"category": "database",
		"ports": [{"port": 5432}]
	}`)
	write("overlays/postgres/devcontainer-patch.json", `{"forwardPorts": [5432]}`)
	write("overlays/postgres/docker-compose.yml", `services:
  db:
    image: postgres:16
    ports:
      - "5432:5432"
`)

	write("templates/python/devcontainer.json", `{"name": "python", "image": "python:3.12"}`)
	write("templates/python/docker-compose.yml", `services:
  app:
    image: python:3.12
`)

	return overlaysDir, templatesDir
}

func runCommand(t *testing.T, args ...string) error {
	t.Helper()
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestGenerateCommand_EndToEnd(t *testing.T) {
	overlaysDir, templatesDir := writeLibrary(t)
	t.Setenv("DEVSTACK_OVERLAYS_DIR", overlaysDir)
	t.Setenv("DEVSTACK_TEMPLATES_DIR", templatesDir)

	out := filepath.Join(t.TempDir(), "env")
	err := runCommand(t, "generate", out,
		"--template", "python",
		"--overlay", "postgres",
		"--port-offset", "100")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(out, ".devcontainer", "devcontainer.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "5532", "port offset applied to forwardPorts")

	composeData, err := os.ReadFile(filepath.Join(out, ".devcontainer", "docker-compose.yml"))
	require.NoError(t, err)
	assert.Contains(t, string(composeData), "5532:5432")

	_, err = os.Stat(filepath.Join(out, manifest.FileName))
	assert.NoError(t, err)
}

func TestGenerateCommand_UnknownOverlay(t *testing.T) {
	overlaysDir, templatesDir := writeLibrary(t)
	t.Setenv("DEVSTACK_OVERLAYS_DIR", overlaysDir)
	t.Setenv("DEVSTACK_TEMPLATES_DIR", templatesDir)

	out := filepath.Join(t.TempDir(), "env")
	err := runCommand(t, "generate", out, "--template", "python", "--overlay", "ghost")
	require.Error(t, err)
	assert.Equal(t, model.ExitValidationFailed, model.ExitCodeFor(err))

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "a failed generation writes nothing")
}

func TestRegenerateCommand_ReproducesTree(t *testing.T) {
	overlaysDir, templatesDir := writeLibrary(t)
	t.Setenv("DEVSTACK_OVERLAYS_DIR", overlaysDir)
	t.Setenv("DEVSTACK_TEMPLATES_DIR", templatesDir)

	out := filepath.Join(t.TempDir(), "env")
	require.NoError(t, runCommand(t, "generate", out,
		"--template", "python", "--overlay", "postgres", "--port-offset", "200"))

	original, err := os.ReadFile(filepath.Join(out, ".devcontainer", "devcontainer.json"))
	require.NoError(t, err)

	require.NoError(t, runCommand(t, "regenerate", out))

	regenerated, err := os.ReadFile(filepath.Join(out, ".devcontainer", "devcontainer.json"))
	require.NoError(t, err)
	assert.Equal(t, string(original), string(regenerated))
}

func TestRegenerateCommand_NoManifest(t *testing.T) {
	err := runCommand(t, "regenerate", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, model.ExitGeneralError, model.ExitCodeFor(err))
}

func TestBucketOverlays(t *testing.T) {
	reg := overlay.NewRegistry()
	require.NoError(t, reg.Add(&overlay.Overlay{
		Manifest: model.OverlayManifest{ID: "postgres", Category: model.CategoryDatabase},
	}))

	buckets := bucketOverlays(reg, []string{"postgres", "ghost"})

	assert.Equal(t, []string{"postgres"}, buckets[model.CategoryDatabase])
	assert.Equal(t, []string{"ghost"}, buckets[model.CategoryCustom],
		"unknown ids stay in the request so validation can name them")

	assert.Nil(t, bucketOverlays(reg, nil))
}

func TestRequestFromManifest(t *testing.T) {
	reg := overlay.NewRegistry()
	require.NoError(t, reg.Add(&overlay.Overlay{
		Manifest: model.OverlayManifest{ID: "grafana", Category: model.CategoryObservability},
	}))
	require.NoError(t, reg.Add(&overlay.Overlay{
		Manifest: model.OverlayManifest{ID: "prometheus", Category: model.CategoryObservability},
	}))

	m := &manifest.Manifest{
		ManifestVersion: manifest.CurrentVersion,
		BaseTemplate:    "python",
		BaseImage:       "python:3.13",
		Overlays:        []string{"grafana", "prometheus"},
		PortOffset:      100,
		AutoResolved:    []model.AutoAdded{{ID: "prometheus", Reason: "grafana"}},
		Customizations:  &manifest.Customizations{CustomImage: true},
	}

	req := requestFromManifest(m, reg)

	assert.Equal(t, "python", req.BaseTemplate)
	assert.Equal(t, []string{"grafana"}, req.Overlays[model.CategoryObservability],
		"auto-resolved overlays are rediscovered, not re-requested")
	assert.Equal(t, 100, req.PortOffset)
	assert.Equal(t, "python:3.13", req.BaseImage)
	assert.True(t, req.CustomImage)
}

func TestRequestFromManifest_TemplateImageNotForced(t *testing.T) {
	reg := overlay.NewRegistry()
	m := &manifest.Manifest{
		ManifestVersion: manifest.CurrentVersion,
		BaseTemplate:    "python",
		BaseImage:       "python:3.12",
	}

	req := requestFromManifest(m, reg)
	assert.Empty(t, req.BaseImage,
		"a recorded template image is not replayed as a user override")
}

func TestOverlayLine(t *testing.T) {
	m := &model.OverlayManifest{
		ID:        "postgres",
		Requires:  []string{"db-tools"},
		Conflicts: []string{"mysql"},
		Supports:  []string{"python", "node"},
	}

	line := overlayLine(m)
	assert.Contains(t, line, "postgres")
	assert.Contains(t, line, "requires: db-tools")
	assert.Contains(t, line, "conflicts: mysql")
	assert.Contains(t, line, "[python, node only]")
}

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "Database", capitalize("database"))
	assert.Equal(t, "", capitalize(""))
}
