// Package writer commits a generated file set to disk atomically. Files
// are staged in a temporary directory next to the destination and the
// whole tree lands in one rename, so a crash or write error mid-commit
// never leaves a half-written output directory behind.
package writer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mmr-tortoise/devstack/internal/engine"
)

// Commit writes a file set under destDir. The sequence is:
//
//  1. Stage every file into a temp directory on the same filesystem
//     (os.Rename cannot cross filesystems).
//  2. If destDir already exists, move it aside.
//  3. Rename the staged tree to destDir — the single visible step.
//  4. Remove the previous tree.
//
// On any error before the rename, the destination is untouched and the
// staging directory is cleaned up.
func Commit(destDir string, files *engine.FileSet) error {
	parent := filepath.Dir(destDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory %s: %w", parent, err)
	}

	stage, err := os.MkdirTemp(parent, ".devstack-stage-*")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	// The stage is renamed away on success; RemoveAll on a missing path
	// is a no-op, so an unconditional defer covers every error path.
	defer os.RemoveAll(stage)

	if err := writeTree(stage, files); err != nil {
		return err
	}

	// Move an existing destination aside first so the rename below never
	// collides. It is deleted only after the new tree is in place.
	var previous string
	if _, err := os.Stat(destDir); err == nil {
		previous = destDir + ".previous"
		if err := os.RemoveAll(previous); err != nil {
			return fmt.Errorf("failed to clear %s: %w", previous, err)
		}
		if err := os.Rename(destDir, previous); err != nil {
			return fmt.Errorf("failed to move existing output aside: %w", err)
		}
	}

	if err := os.Rename(stage, destDir); err != nil {
		// Best effort: put the previous tree back so the destination is
		// not left missing.
		if previous != "" {
			_ = os.Rename(previous, destDir)
		}
		return fmt.Errorf("failed to commit output to %s: %w", destDir, err)
	}

	if previous != "" {
		if err := os.RemoveAll(previous); err != nil {
			return fmt.Errorf("failed to remove previous output %s: %w", previous, err)
		}
	}

	return nil
}

// writeTree materializes the file set under root, creating parent
// directories as needed (like `mkdir -p`).
func writeTree(root string, files *engine.FileSet) error {
	for _, rel := range files.Paths() {
		data, _ := files.Get(rel)
		target := filepath.Join(root, filepath.FromSlash(rel))

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", rel, err)
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", rel, err)
		}
	}
	return nil
}
