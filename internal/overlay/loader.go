// loader.go scans overlay and template directories into in-memory
// registries. This is the only place the metadata store touches the
// filesystem; everything downstream of here works on loaded data.
//
// Overlay directory layout:
//
//	overlays/
//	  shared/                    shared fragments referenced via imports
//	  <id>/overlay.json          metadata (JSONC tolerated)
//	  <id>/devcontainer-patch.json   devcontainer patch (JSONC, optional)
//	  <id>/docker-compose.yml    compose fragment (optional)
//	  <id>/overlay.env           env fragment (optional)
//	  <id>/**                    anything else is an asset, emitted verbatim
//
// Template directory layout:
//
//	templates/
//	  <id>/devcontainer.json     base devcontainer document (JSONC)
//	  <id>/docker-compose.yml    base compose document (optional)
//	  <id>/template.env          starting .env content (optional)
//
// The scan is deliberately dumb: structural parsing only, no schema
// validation of the documents themselves.
package overlay

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"

	"github.com/mmr-tortoise/devstack/internal/compose"
	"github.com/mmr-tortoise/devstack/internal/model"
)

const (
	// sharedDirName is the reserved subdirectory for shared fragments.
	sharedDirName = "shared"

	// manifestFileName is the per-overlay metadata file.
	manifestFileName = "overlay.json"

	// patchFileName is the per-overlay devcontainer patch.
	patchFileName = "devcontainer-patch.json"

	// envFileName is the per-overlay env fragment.
	envFileName = "overlay.env"

	// templateConfigName is the per-template base devcontainer document.
	templateConfigName = "devcontainer.json"

	// templateEnvName is the per-template starting env content.
	templateEnvName = "template.env"
)

// composeFileNames are the accepted compose fragment file names, checked
// in order.
var composeFileNames = []string{"docker-compose.yml", "docker-compose.yaml"}

// LoadRegistry scans an overlay directory into a Registry. Every
// subdirectory containing an overlay.json becomes an overlay; the
// reserved shared/ subdirectory holds the fragments overlays import.
// A missing import is an authoring error and fails the load.
func LoadRegistry(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read overlay directory %s: %w", dir, err)
	}

	reg := NewRegistry()

	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == sharedDirName {
			continue
		}

		overlayDir := filepath.Join(dir, entry.Name())
		if _, err := os.Stat(filepath.Join(overlayDir, manifestFileName)); err != nil {
			// Directories without metadata are not overlays; skip them
			// rather than failing on stray content.
			continue
		}

		o, err := loadOverlay(overlayDir, entry.Name())
		if err != nil {
			return nil, err
		}
		if err := reg.Add(o); err != nil {
			return nil, err
		}
	}

	if err := loadSharedImports(reg, dir); err != nil {
		return nil, err
	}

	return reg, nil
}

// loadOverlay reads one overlay directory: metadata, fragments, assets.
func loadOverlay(dir, dirName string) (*Overlay, error) {
	manifest, err := parseManifestFile(filepath.Join(dir, manifestFileName), dirName)
	if err != nil {
		return nil, err
	}

	o := &Overlay{Manifest: *manifest}

	patchPath := filepath.Join(dir, patchFileName)
	if data, err := os.ReadFile(patchPath); err == nil {
		var patch map[string]any
		if err := json.Unmarshal(jsonc.ToJSON(data), &patch); err != nil {
			return nil, fmt.Errorf("overlay %q: failed to parse %s: %w", manifest.ID, patchFileName, err)
		}
		o.ConfigPatch = patch
	}

	for _, name := range composeFileNames {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		fragment, err := compose.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("overlay %q: %w", manifest.ID, err)
		}
		o.ComposeFragment = fragment
		break
	}

	if data, err := os.ReadFile(filepath.Join(dir, envFileName)); err == nil {
		o.EnvText = string(data)
	}

	assets, err := collectAssets(dir)
	if err != nil {
		return nil, fmt.Errorf("overlay %q: %w", manifest.ID, err)
	}
	o.Assets = assets

	return o, nil
}

// parseManifestFile parses an overlay.json, tolerating JSONC comments.
// The id defaults to the directory name; an explicit id that disagrees
// with the directory name is an authoring error.
func parseManifestFile(path, dirName string) (*model.OverlayManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var manifest model.OverlayManifest
	if err := json.Unmarshal(jsonc.ToJSON(data), &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if manifest.ID == "" {
		manifest.ID = dirName
	} else if manifest.ID != dirName {
		return nil, fmt.Errorf("overlay directory %q declares mismatched id %q", dirName, manifest.ID)
	}

	return &manifest, nil
}

// collectAssets walks an overlay directory and gathers every file that is
// not one of the recognized fragment files, keyed by overlay-relative
// path. Symlinks are skipped.
func collectAssets(dir string) (map[string][]byte, error) {
	known := map[string]bool{
		manifestFileName: true,
		patchFileName:    true,
		envFileName:      true,
	}
	for _, name := range composeFileNames {
		known[name] = true
	}

	assets := make(map[string][]byte)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("error walking %s: %w", path, walkErr)
		}
		if d.IsDir() || d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return fmt.Errorf("failed to compute relative path for %s: %w", path, err)
		}
		if known[rel] {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read asset %s: %w", path, err)
		}
		assets[filepath.ToSlash(rel)] = data
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(assets) == 0 {
		return nil, nil
	}
	return assets, nil
}

// loadSharedImports resolves the union of every overlay's imports against
// the shared/ directory and stores the contents in the registry.
func loadSharedImports(reg *Registry, dir string) error {
	for _, id := range reg.IDs() {
		o, _ := reg.Get(id)
		for _, imp := range o.Manifest.Imports {
			if _, ok := reg.Shared(imp); ok {
				continue
			}
			path := filepath.Join(dir, sharedDirName, filepath.FromSlash(imp))
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("overlay %q imports %q which could not be read: %w", id, imp, err)
			}
			reg.AddShared(imp, data)
		}
	}
	return nil
}

// LoadTemplates scans a template directory into a TemplateSource. Every
// subdirectory containing a devcontainer.json becomes a template.
func LoadTemplates(dir string) (StaticTemplates, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read template directory %s: %w", dir, err)
	}

	templates := make(StaticTemplates)

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		tmplDir := filepath.Join(dir, entry.Name())
		configPath := filepath.Join(tmplDir, templateConfigName)
		data, err := os.ReadFile(configPath)
		if err != nil {
			continue
		}

		var config map[string]any
		if err := json.Unmarshal(jsonc.ToJSON(data), &config); err != nil {
			return nil, fmt.Errorf("template %q: failed to parse %s: %w", entry.Name(), templateConfigName, err)
		}

		tmpl := &Template{ID: entry.Name(), Config: config}

		for _, name := range composeFileNames {
			composeData, err := os.ReadFile(filepath.Join(tmplDir, name))
			if err != nil {
				continue
			}
			doc, err := compose.Parse(composeData)
			if err != nil {
				return nil, fmt.Errorf("template %q: %w", entry.Name(), err)
			}
			tmpl.Compose = doc
			break
		}

		if envData, err := os.ReadFile(filepath.Join(tmplDir, templateEnvName)); err == nil {
			tmpl.EnvText = string(envData)
		}

		templates[entry.Name()] = tmpl
	}

	return templates, nil
}
