package writer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/devstack/internal/engine"
)

func sampleFileSet() *engine.FileSet {
	files := engine.NewFileSet()
	files.Add(".devcontainer/devcontainer.json", []byte("{}\n"))
	files.Add(".devcontainer/shared/observability/datasources.yml", []byte("datasources: []\n"))
	files.Add("devstack.manifest.json", []byte("{\"manifestVersion\":\"2\"}\n"))
	return files
}

func TestCommit_WritesFullTree(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "workspace")

	require.NoError(t, Commit(dest, sampleFileSet()))

	data, err := os.ReadFile(filepath.Join(dest, ".devcontainer", "devcontainer.json"))
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))

	nested, err := os.ReadFile(filepath.Join(dest, ".devcontainer", "shared", "observability", "datasources.yml"))
	require.NoError(t, err)
	assert.Equal(t, "datasources: []\n", string(nested))
}

func TestCommit_CreatesParentDirectories(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "deep", "nested", "workspace")

	require.NoError(t, Commit(dest, sampleFileSet()))

	_, err := os.Stat(filepath.Join(dest, "devstack.manifest.json"))
	assert.NoError(t, err)
}

func TestCommit_ReplacesExistingOutput(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "workspace")

	// Seed a stale tree with a file the new set does not contain.
	require.NoError(t, os.MkdirAll(filepath.Join(dest, ".devcontainer"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dest, ".devcontainer", "stale.yml"), []byte("old"), 0o644))

	require.NoError(t, Commit(dest, sampleFileSet()))

	_, err := os.Stat(filepath.Join(dest, ".devcontainer", "stale.yml"))
	assert.True(t, os.IsNotExist(err), "replaced output must not retain stale files")

	_, err = os.Stat(filepath.Join(dest, ".devcontainer", "devcontainer.json"))
	assert.NoError(t, err)

	_, err = os.Stat(dest + ".previous")
	assert.True(t, os.IsNotExist(err), "the previous tree is cleaned up after commit")
}

func TestCommit_LeavesNoStagingDirectoryBehind(t *testing.T) {
	parent := t.TempDir()
	dest := filepath.Join(parent, "workspace")

	require.NoError(t, Commit(dest, sampleFileSet()))

	entries, err := os.ReadDir(parent)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "workspace", entries[0].Name())
}

func TestCommit_EmptyFileSet(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "workspace")

	require.NoError(t, Commit(dest, engine.NewFileSet()))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
