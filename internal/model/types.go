// Package model defines the domain types for the devstack CLI.
//
// All entities in this package represent the core data structures of the
// composition engine: overlay metadata, selection requests, resolved
// selections, and the warning/error taxonomy. Types here are plain data —
// behavior lives in the packages that consume them (resolver, merge,
// engine), which keeps the model reusable across the pipeline stages.
package model

import (
	"fmt"
	"regexp"
	"strings"
)

// Category groups overlays by the kind of capability they add. Overlays
// are applied in a fixed category order because the deep merge is
// order-sensitive: a later overlay's array entries land after an earlier
// overlay's entries.
type Category string

const (
	// CategoryLanguage covers language runtimes and toolchains
	// (python, node, go, rust, ...).
	CategoryLanguage Category = "language"

	// CategoryDatabase covers datastores (postgres, redis, mongo, ...).
	CategoryDatabase Category = "database"

	// CategoryObservability covers tracing/metrics/logging stacks
	// (otel-collector, jaeger, grafana, ...).
	CategoryObservability Category = "observability"

	// CategoryTool covers cloud and developer tooling (awscli, terraform,
	// docker-in-docker, ...).
	CategoryTool Category = "tool"

	// CategoryCustom covers user-authored overlays applied after all
	// built-in categories.
	CategoryCustom Category = "custom"
)

// CategoryOrder is the fixed sequence in which overlay categories are
// applied during composition. The merge engine is order-dependent
// (first-seen-wins for array unions), so this order is part of the
// output contract, not a cosmetic choice.
var CategoryOrder = []Category{
	CategoryLanguage,
	CategoryDatabase,
	CategoryObservability,
	CategoryTool,
	CategoryCustom,
}

// String returns the string representation of Category.
func (c Category) String() string {
	return string(c)
}

// IsValid checks whether the Category value is one of the predefined
// categories.
func (c Category) IsValid() bool {
	switch c {
	case CategoryLanguage, CategoryDatabase, CategoryObservability, CategoryTool, CategoryCustom:
		return true
	default:
		return false
	}
}

// ParseCategory converts a string to a Category. Returns an error if the
// string does not match any valid category.
func ParseCategory(s string) (Category, error) {
	cat := Category(strings.ToLower(s))
	if !cat.IsValid() {
		return "", fmt.Errorf("invalid overlay category: %q (valid: language, database, observability, tool, custom)", s)
	}
	return cat, nil
}

// idRegex validates overlay and template ids: lowercase alphanumeric plus
// hyphens, must start and end with alphanumeric.
var idRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*[a-z0-9]$|^[a-z0-9]$`)

// ValidateID checks whether the given string is a valid overlay or
// template id.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("id must not be empty")
	}
	if !idRegex.MatchString(id) {
		return fmt.Errorf("invalid id %q: must contain only lowercase alphanumeric characters and hyphens, and start/end with alphanumeric", id)
	}
	return nil
}

// OverlayManifest is the parsed metadata of a single overlay — the node
// type of the dependency graph the resolver walks. Manifests are immutable
// once loaded; every pipeline stage receives them by reference and never
// writes back.
type OverlayManifest struct {
	// ID is the unique key of the overlay (e.g. "postgres", "python").
	ID string `json:"id"`

	// Name is an optional display name. Falls back to ID when empty.
	Name string `json:"name,omitempty"`

	// Description is a one-line summary shown by `devstack list`.
	Description string `json:"description,omitempty"`

	// Category determines when the overlay is applied relative to others.
	Category Category `json:"category"`

	// Requires lists overlay ids this overlay depends on. The resolver
	// auto-adds every transitive requirement.
	Requires []string `json:"requires,omitempty"`

	// Suggests lists overlay ids that pair well with this overlay but are
	// never auto-added. Purely informational.
	Suggests []string `json:"suggests,omitempty"`

	// Conflicts lists overlay ids that are known to be incompatible with
	// this overlay. Conflicts are reported as warnings, never enforced —
	// a user's explicit selection is never silently dropped.
	Conflicts []string `json:"conflicts,omitempty"`

	// Supports lists base-template ids the overlay works with. An empty
	// list means the overlay supports every template.
	Supports []string `json:"supports,omitempty"`

	// Ports lists the ports the overlay's services expose, in declaration
	// order. Entries normalize via Port.Normalize before use.
	Ports []Port `json:"ports,omitempty"`

	// Imports lists shared-fragment paths (relative to the overlay root's
	// shared/ directory) that must be emitted alongside the overlay.
	Imports []string `json:"imports,omitempty"`
}

// DisplayName returns the overlay's name, falling back to its id.
func (m *OverlayManifest) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}

// SupportsTemplate reports whether the overlay supports the given base
// template. An empty Supports list means "all templates".
func (m *OverlayManifest) SupportsTemplate(templateID string) bool {
	if len(m.Supports) == 0 {
		return true
	}
	for _, t := range m.Supports {
		if t == templateID {
			return true
		}
	}
	return false
}

// Port describes a single port an overlay exposes. In overlay metadata a
// port may be written as a bare integer ({"ports": [5432]}) or as a rich
// object; UnmarshalJSON accepts both forms.
type Port struct {
	// Port is the container-side port number.
	Port int `json:"port"`

	// Service is the compose service that owns the port. Defaults to the
	// owning overlay's id during normalization.
	Service string `json:"service,omitempty"`

	// Protocol is "tcp" or "udp". Defaults to "tcp".
	Protocol string `json:"protocol,omitempty"`

	// Description is a human-readable label for the port.
	Description string `json:"description,omitempty"`

	// Path is an optional URL path appended when printing the port's
	// address (e.g. "/metrics").
	Path string `json:"path,omitempty"`

	// OnAutoForward controls IDE behavior when the port is detected
	// ("notify", "openBrowser", "silent", "ignore").
	OnAutoForward string `json:"onAutoForward,omitempty"`

	// ConnectionStringTemplate is an optional template with a {port}
	// placeholder, used to print ready-to-paste connection strings.
	ConnectionStringTemplate string `json:"connectionStringTemplate,omitempty"`
}

// Normalize returns a copy of the port with the offset applied and
// defaults filled in: Service falls back to ownerID and Protocol to "tcp".
// The receiver is not modified.
func (p Port) Normalize(ownerID string, offset int) Port {
	out := p
	out.Port = p.Port + offset
	if out.Service == "" {
		out.Service = ownerID
	}
	if out.Protocol == "" {
		out.Protocol = "tcp"
	}
	return out
}

// ConnectionString renders the connection string template with the
// (already offset) port number substituted. Returns "" when no template
// is set.
func (p Port) ConnectionString() string {
	if p.ConnectionStringTemplate == "" {
		return ""
	}
	return strings.ReplaceAll(p.ConnectionStringTemplate, "{port}", fmt.Sprintf("%d", p.Port))
}

// String returns a human-readable representation of the port.
// Format: "service:port/protocol".
func (p Port) String() string {
	proto := p.Protocol
	if proto == "" {
		proto = "tcp"
	}
	return fmt.Sprintf("%s:%d/%s", p.Service, p.Port, proto)
}

// SelectionRequest is the engine's sole input: the overlay selection and
// scalar options gathered by the CLI or questionnaire (both out of scope
// for the engine itself). Overlays are bucketed by category so the
// orchestrator can apply them in CategoryOrder.
type SelectionRequest struct {
	// BaseTemplate is the id of the base template to compose onto.
	BaseTemplate string `json:"baseTemplate"`

	// BaseImage optionally overrides the template's container image.
	BaseImage string `json:"baseImage,omitempty"`

	// Overlays maps each category to the ordered overlay ids requested
	// within it.
	Overlays map[Category][]string `json:"overlays"`

	// PortOffset is added to every host-facing port in the output.
	PortOffset int `json:"portOffset,omitempty"`

	// PresetID records which preset (if any) produced this selection.
	PresetID string `json:"presetId,omitempty"`

	// PresetChoices records the answers given to preset questions, keyed
	// by question id. Recorded into the manifest for regeneration.
	PresetChoices map[string]string `json:"presetChoices,omitempty"`

	// CustomImage is true when BaseImage was user-supplied rather than
	// taken from the template.
	CustomImage bool `json:"customImage,omitempty"`

	// CustomPatch is an optional user-authored devcontainer patch
	// document applied after all overlays.
	CustomPatch map[string]any `json:"-"`

	// CustomEnv is optional user-authored env text appended after all
	// overlay env fragments.
	CustomEnv string `json:"-"`
}

// AllOverlays returns the requested overlay ids flattened in category
// application order.
func (r *SelectionRequest) AllOverlays() []string {
	var ids []string
	for _, cat := range CategoryOrder {
		ids = append(ids, r.Overlays[cat]...)
	}
	return ids
}

// AutoAdded records an overlay the resolver pulled in to satisfy a
// requires edge, together with the reason (the requiring overlay).
type AutoAdded struct {
	// ID is the overlay that was added automatically.
	ID string `json:"id"`

	// Reason names the overlay whose requires edge pulled this one in.
	Reason string `json:"reason"`
}

// ConflictPair records two mutually incompatible overlays that are both
// present in a resolved selection. Both remain in the result — the pair
// is surfaced as a warning only.
type ConflictPair struct {
	A string `json:"a"`
	B string `json:"b"`
}

// String returns "a <-> b" for display.
func (c ConflictPair) String() string {
	return fmt.Sprintf("%s <-> %s", c.A, c.B)
}

// ResolvedSelection is the dependency-closed, conflict-annotated form of
// a SelectionRequest. It is immutable input to every downstream stage:
// every requires edge of every overlay in Overlays is itself satisfied
// within Overlays (the closure is a fixed point).
type ResolvedSelection struct {
	// Request is the original selection the closure was computed from.
	Request SelectionRequest `json:"request"`

	// Overlays is the full resolved overlay id list in application order:
	// requested ids in category order, then auto-added ids in discovery
	// order.
	Overlays []string `json:"overlays"`

	// AutoAdded lists the dependencies the resolver added, with reasons.
	AutoAdded []AutoAdded `json:"autoAdded,omitempty"`

	// Conflicts lists incompatible pairs found in the resolved set.
	Conflicts []ConflictPair `json:"conflicts,omitempty"`

	// Dropped lists overlays removed because the chosen base template
	// does not support them (stack-incompatibility policy).
	Dropped []string `json:"dropped,omitempty"`
}

// Contains reports whether the resolved selection includes the overlay id.
func (s *ResolvedSelection) Contains(id string) bool {
	for _, o := range s.Overlays {
		if o == id {
			return true
		}
	}
	return false
}
