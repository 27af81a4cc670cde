// Package engine implements the composition orchestrator: the linear
// pipeline that turns a selection request into a complete, internally
// consistent file set.
//
// The pipeline has no branching and terminates on success or the first
// fatal error: validate the selection, resolve dependencies, drop
// overlays the chosen template does not support and re-resolve, apply
// overlay patches in category order through the merge engine, reconcile
// compose fragments, apply the port offset, and record the manifest.
// The engine performs no I/O — it consumes pre-loaded documents and
// emits an in-memory FileSet the caller commits (or discards) whole.
package engine

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/mmr-tortoise/devstack/internal/compose"
	"github.com/mmr-tortoise/devstack/internal/manifest"
	"github.com/mmr-tortoise/devstack/internal/merge"
	"github.com/mmr-tortoise/devstack/internal/model"
	"github.com/mmr-tortoise/devstack/internal/overlay"
	"github.com/mmr-tortoise/devstack/internal/portshift"
	"github.com/mmr-tortoise/devstack/internal/resolver"
)

// Output paths inside the generated tree.
const (
	outputDir       = ".devcontainer"
	configFileName  = "devcontainer.json"
	composeFileName = "docker-compose.yml"
	envFileName     = ".env"
	sharedSubdir    = "shared"
)

// Engine composes overlay fragments onto base templates. It is bound to
// one registry and one template source for its lifetime; both are
// read-only, so a single Engine is safe for concurrent Generate calls.
type Engine struct {
	registry    *overlay.Registry
	templates   overlay.TemplateSource
	generatedBy string
}

// New creates an engine. generatedBy identifies the tool build and is
// recorded verbatim in every manifest it writes.
func New(reg *overlay.Registry, templates overlay.TemplateSource, generatedBy string) *Engine {
	return &Engine{
		registry:    reg,
		templates:   templates,
		generatedBy: generatedBy,
	}
}

// Result is everything a successful generation produces.
type Result struct {
	// Files is the complete output tree, ready for an atomic commit.
	Files *FileSet

	// Selection is the fully resolved overlay selection.
	Selection *model.ResolvedSelection

	// Warnings are the non-fatal conditions encountered. They never
	// affect the result's validity.
	Warnings []model.Warning

	// Manifest is the persisted generation record, also present in
	// Files under its canonical path.
	Manifest *manifest.Manifest

	// Ports lists the normalized service ports of the resolved overlays,
	// offset applied, for user-facing summaries.
	Ports []model.Port
}

// Generate runs the composition pipeline for one selection request. Any
// fatal error aborts before a single file is produced; warnings
// accumulate alongside a successful result.
func (e *Engine) Generate(req model.SelectionRequest) (*Result, error) {
	tmpl, ok := e.templates.Template(req.BaseTemplate)
	if !ok {
		return nil, model.NewUnknownTemplateError(req.BaseTemplate)
	}

	sel, err := resolver.Resolve(req, e.registry)
	if err != nil {
		return nil, err
	}

	// Drop requested overlays the template does not support, then
	// re-resolve so their no-longer-needed dependencies disappear too.
	sel, dropped, err := e.dropUnsupported(req, sel)
	if err != nil {
		return nil, err
	}

	var warnings []model.Warning
	for _, id := range dropped {
		warnings = append(warnings, model.NewStackIncompatibilityWarning(id, req.BaseTemplate))
	}
	for _, pair := range sel.Conflicts {
		warnings = append(warnings, model.NewConflictWarning(pair))
	}

	config, composeDoc, envText, err := e.applyOverlays(req, sel, tmpl)
	if err != nil {
		return nil, err
	}

	config = portshift.ApplyToConfig(config, req.PortOffset)
	if composeDoc != nil {
		composeDoc = portshift.ApplyToCompose(composeDoc, req.PortOffset)
	}
	envText = portshift.OffsetEnvText(envText, req.PortOffset)

	m := manifest.New(sel, e.generatedBy)

	files, err := e.emit(config, composeDoc, envText, m, sel)
	if err != nil {
		return nil, err
	}

	return &Result{
		Files:     files,
		Selection: sel,
		Warnings:  warnings,
		Manifest:  m,
		Ports:     e.normalizedPorts(sel, req.PortOffset),
	}, nil
}

// dropUnsupported removes requested overlays the chosen template does
// not support and re-resolves the trimmed request. Auto-added
// dependencies are not support-checked: an overlay's requires edges are
// taken to be valid wherever the overlay itself is.
func (e *Engine) dropUnsupported(req model.SelectionRequest, sel *model.ResolvedSelection) (*model.ResolvedSelection, []string, error) {
	var dropped []string

	trimmed := make(map[model.Category][]string, len(req.Overlays))
	for cat, ids := range req.Overlays {
		for _, id := range ids {
			m, ok := e.registry.Manifest(id)
			if ok && !m.SupportsTemplate(req.BaseTemplate) {
				dropped = append(dropped, id)
				continue
			}
			trimmed[cat] = append(trimmed[cat], id)
		}
	}

	if len(dropped) == 0 {
		return sel, nil, nil
	}

	req.Overlays = trimmed
	sel, err := resolver.Resolve(req, e.registry)
	if err != nil {
		return nil, nil, err
	}
	sel.Dropped = dropped
	return sel, dropped, nil
}

// applyOverlays merges the resolved overlays onto the template documents
// and returns the merged config, the reconciled compose document (nil
// for single-container templates), and the assembled env text.
func (e *Engine) applyOverlays(req model.SelectionRequest, sel *model.ResolvedSelection, tmpl *overlay.Template) (map[string]any, map[string]any, string, error) {
	config := merge.CloneDoc(tmpl.Config)
	if config == nil {
		config = map[string]any{}
	}
	if req.BaseImage != "" {
		config["image"] = req.BaseImage
	}

	composeDocs := []map[string]any{tmpl.Compose}
	envParts := appendEnvPart(nil, tmpl.EnvText)

	for _, id := range sel.Overlays {
		o, ok := e.registry.Get(id)
		if !ok {
			// Resolution guarantees membership; a miss here is a registry bug.
			return nil, nil, "", fmt.Errorf("resolved overlay %q missing from registry", id)
		}
		if o.ConfigPatch != nil {
			config = merge.Merge(config, o.ConfigPatch)
		}
		if tmpl.HasCompose() && o.ComposeFragment != nil {
			composeDocs = append(composeDocs, o.ComposeFragment)
		}
		envParts = appendEnvPart(envParts, o.EnvText)
	}

	// User customizations layer last so they win over every overlay.
	if req.CustomPatch != nil {
		config = merge.Merge(config, req.CustomPatch)
	}
	envParts = appendEnvPart(envParts, req.CustomEnv)

	var composeDoc map[string]any
	if tmpl.HasCompose() {
		composeDoc = compose.Reconcile(composeDocs)
	}

	return config, composeDoc, strings.Join(envParts, "\n"), nil
}

// appendEnvPart accumulates a non-empty env fragment, trimmed of
// trailing newlines so joining produces exactly one blank-free boundary.
func appendEnvPart(parts []string, text string) []string {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return parts
	}
	return append(parts, text)
}

// emit assembles the output file set: the merged config, the compose
// document, the env file, overlay assets, shared fragments, and the
// manifest.
func (e *Engine) emit(config, composeDoc map[string]any, envText string, m *manifest.Manifest, sel *model.ResolvedSelection) (*FileSet, error) {
	files := NewFileSet()

	configJSON, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialize devcontainer config: %w", err)
	}
	files.Add(path.Join(outputDir, configFileName), append(configJSON, '\n'))

	if composeDoc != nil {
		composeYAML, err := compose.Serialize(composeDoc)
		if err != nil {
			return nil, err
		}
		files.Add(path.Join(outputDir, composeFileName), composeYAML)
	}

	if envText != "" {
		files.Add(path.Join(outputDir, envFileName), []byte(envText+"\n"))
	}

	manifestJSON, err := m.Serialize()
	if err != nil {
		return nil, err
	}
	files.Add(manifest.FileName, manifestJSON)

	for _, id := range sel.Overlays {
		o, ok := e.registry.Get(id)
		if !ok {
			return nil, fmt.Errorf("resolved overlay %q missing from registry", id)
		}
		for rel, data := range o.Assets {
			files.Add(path.Join(outputDir, id, rel), data)
		}
		// Imports of distinct overlays may name the same fragment; the
		// shared path dedups naturally.
		for _, imp := range o.Manifest.Imports {
			data, ok := e.registry.Shared(imp)
			if !ok {
				return nil, fmt.Errorf("overlay %q imports unknown shared fragment %q", id, imp)
			}
			files.Add(path.Join(outputDir, sharedSubdir, imp), data)
		}
	}

	return files, nil
}

// normalizedPorts collects every resolved overlay's declared ports with
// defaults filled in and the offset applied, in overlay then declaration
// order.
func (e *Engine) normalizedPorts(sel *model.ResolvedSelection, offset int) []model.Port {
	var ports []model.Port
	for _, id := range sel.Overlays {
		m, ok := e.registry.Manifest(id)
		if !ok {
			continue
		}
		for _, p := range m.Ports {
			ports = append(ports, p.Normalize(id, offset))
		}
	}
	return ports
}
