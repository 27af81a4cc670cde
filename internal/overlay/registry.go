// Package overlay implements the overlay metadata store: parsed overlay
// manifests, their fragment documents, and the base templates they
// compose onto.
//
// The Registry is an explicit object built once by the loader and passed
// by reference into the resolver and the composition engine. There is no
// package-level state — tests build synthetic registries directly and the
// CLI builds one per invocation from the overlay directory.
package overlay

import (
	"fmt"
	"sort"

	"github.com/mmr-tortoise/devstack/internal/model"
)

// Overlay bundles an overlay's metadata with its fragment documents, all
// loaded up front so the composition engine performs no I/O.
type Overlay struct {
	// Manifest is the parsed overlay metadata.
	Manifest model.OverlayManifest

	// ConfigPatch is the overlay's devcontainer patch document, or nil
	// when the overlay contributes no devcontainer changes.
	ConfigPatch map[string]any

	// ComposeFragment is the overlay's compose fragment, or nil when the
	// overlay contributes no services.
	ComposeFragment map[string]any

	// EnvText is the overlay's env fragment, appended to the generated
	// .env file. Empty when the overlay ships none.
	EnvText string

	// Assets maps overlay-relative paths to file contents for extra files
	// the overlay ships (sample apps, init scripts, dashboards). Assets
	// are emitted into the output tree verbatim.
	Assets map[string][]byte
}

// ID returns the overlay's id.
func (o *Overlay) ID() string {
	return o.Manifest.ID
}

// Registry is the in-memory overlay metadata graph plus the shared
// fragments overlays import. Immutable after loading.
type Registry struct {
	overlays map[string]*Overlay
	shared   map[string][]byte
}

// NewRegistry creates an empty registry. Tests and the loader add
// overlays via Add.
func NewRegistry() *Registry {
	return &Registry{
		overlays: make(map[string]*Overlay),
		shared:   make(map[string][]byte),
	}
}

// Add registers an overlay. The id must be valid and unique.
func (r *Registry) Add(o *Overlay) error {
	if err := model.ValidateID(o.Manifest.ID); err != nil {
		return fmt.Errorf("overlay manifest: %w", err)
	}
	if !o.Manifest.Category.IsValid() {
		return fmt.Errorf("overlay %q: invalid category %q", o.Manifest.ID, o.Manifest.Category)
	}
	if _, exists := r.overlays[o.Manifest.ID]; exists {
		return fmt.Errorf("duplicate overlay id %q", o.Manifest.ID)
	}
	r.overlays[o.Manifest.ID] = o
	return nil
}

// Get returns the overlay registered under id.
func (r *Registry) Get(id string) (*Overlay, bool) {
	o, ok := r.overlays[id]
	return o, ok
}

// Manifest returns just the metadata of the overlay registered under id.
func (r *Registry) Manifest(id string) (*model.OverlayManifest, bool) {
	o, ok := r.overlays[id]
	if !ok {
		return nil, false
	}
	return &o.Manifest, true
}

// Has reports whether an overlay id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.overlays[id]
	return ok
}

// IDs returns all registered overlay ids, sorted for stable output.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.overlays))
	for id := range r.overlays {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ByCategory returns the overlays of one category, sorted by id.
func (r *Registry) ByCategory(cat model.Category) []*Overlay {
	var out []*Overlay
	for _, id := range r.IDs() {
		if r.overlays[id].Manifest.Category == cat {
			out = append(out, r.overlays[id])
		}
	}
	return out
}

// Len returns the number of registered overlays.
func (r *Registry) Len() int {
	return len(r.overlays)
}

// AddShared registers a shared fragment under its import path.
func (r *Registry) AddShared(path string, data []byte) {
	r.shared[path] = data
}

// Shared returns the shared fragment registered under an import path.
func (r *Registry) Shared(path string) ([]byte, bool) {
	data, ok := r.shared[path]
	return data, ok
}

// Template is one base template: the minimal starting configuration
// overlays are merged onto.
type Template struct {
	// ID is the template's unique key (e.g. "python", "node", "go").
	ID string

	// Config is the template's base devcontainer document.
	Config map[string]any

	// Compose is the template's base compose document, or nil for
	// single-container templates.
	Compose map[string]any

	// EnvText is the template's starting .env content. May be empty.
	EnvText string
}

// HasCompose reports whether the template is compose-based. Overlay
// compose fragments only apply to compose templates.
func (t *Template) HasCompose() bool {
	return t.Compose != nil
}

// TemplateSource is the engine's view of available base templates. The
// loader provides the directory-backed implementation; tests provide
// synthetic maps.
type TemplateSource interface {
	// Template returns the template registered under id.
	Template(id string) (*Template, bool)

	// TemplateIDs returns all known template ids, sorted.
	TemplateIDs() []string
}

// StaticTemplates is a TemplateSource backed by a plain map. The loader
// returns one, and tests construct them inline.
type StaticTemplates map[string]*Template

// Template implements TemplateSource.
func (s StaticTemplates) Template(id string) (*Template, bool) {
	t, ok := s[id]
	return t, ok
}

// TemplateIDs implements TemplateSource.
func (s StaticTemplates) TemplateIDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
