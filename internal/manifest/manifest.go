// Package manifest persists the versioned record of exactly which inputs
// produced a generated configuration tree. The manifest is written once
// per generation and fully regenerated every time — never partially
// patched — so reading it back is sufficient to reproduce an identical
// tree given the same overlay set.
package manifest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmr-tortoise/devstack/internal/model"
)

// CurrentVersion is the manifest schema version this build writes.
const CurrentVersion = "2"

// FileName is the manifest's location inside a generated tree.
const FileName = "devstack.manifest.json"

// Manifest records the exact selection behind a generated tree.
type Manifest struct {
	// ManifestVersion is the schema version. Always CurrentVersion when
	// written by this build; older values are migrated on read.
	ManifestVersion string `json:"manifestVersion"`

	// GeneratedBy names the tool and version that wrote the manifest.
	GeneratedBy string `json:"generatedBy"`

	// Generated is the UTC generation timestamp.
	Generated time.Time `json:"generated"`

	// GenerationID uniquely identifies this generation run.
	GenerationID string `json:"generationId"`

	// BaseTemplate is the base template id the tree was composed onto.
	BaseTemplate string `json:"baseTemplate"`

	// BaseImage is the container image, when overridden or recorded.
	BaseImage string `json:"baseImage,omitempty"`

	// Overlays is the full resolved overlay set in application order,
	// auto-added dependencies included.
	Overlays []string `json:"overlays"`

	// PortOffset is the offset applied to every service port.
	PortOffset int `json:"portOffset,omitempty"`

	// Preset records which preset produced the selection, if any.
	Preset string `json:"preset,omitempty"`

	// PresetChoices records the answers given to preset questions.
	PresetChoices map[string]string `json:"presetChoices,omitempty"`

	// AutoResolved lists overlays added by dependency resolution rather
	// than by the user, with the overlay that pulled each one in.
	AutoResolved []model.AutoAdded `json:"autoResolved,omitempty"`

	// Customizations records which user-authored inputs participated.
	// The inputs themselves are not persisted; regeneration re-reads
	// them from the tree.
	Customizations *Customizations `json:"customizations,omitempty"`
}

// Customizations flags the optional user-authored inputs of a generation.
type Customizations struct {
	// CustomImage is true when the base image was user-supplied rather
	// than taken from the template.
	CustomImage bool `json:"customImage,omitempty"`

	// Patch is true when a user devcontainer patch was applied.
	Patch bool `json:"patch,omitempty"`

	// Env is true when user env text was appended.
	Env bool `json:"env,omitempty"`
}

// New builds a current-version manifest from a resolved selection.
// generatedBy should identify the tool build, e.g. "devstack v1.2.0".
func New(sel *model.ResolvedSelection, generatedBy string) *Manifest {
	req := sel.Request

	m := &Manifest{
		ManifestVersion: CurrentVersion,
		GeneratedBy:     generatedBy,
		Generated:       time.Now().UTC().Truncate(time.Second),
		GenerationID:    uuid.NewString(),
		BaseTemplate:    req.BaseTemplate,
		BaseImage:       req.BaseImage,
		Overlays:        append([]string(nil), sel.Overlays...),
		PortOffset:      req.PortOffset,
		Preset:          req.PresetID,
		AutoResolved:    append([]model.AutoAdded(nil), sel.AutoAdded...),
	}

	if len(req.PresetChoices) > 0 {
		m.PresetChoices = make(map[string]string, len(req.PresetChoices))
		for k, v := range req.PresetChoices {
			m.PresetChoices[k] = v
		}
	}

	cust := Customizations{
		CustomImage: req.CustomImage,
		Patch:       req.CustomPatch != nil,
		Env:         req.CustomEnv != "",
	}
	if cust != (Customizations{}) {
		m.Customizations = &cust
	}

	return m
}

// Serialize renders the manifest as indented JSON with a trailing
// newline, matching the formatting of the generated config files.
func (m *Manifest) Serialize() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialize manifest: %w", err)
	}
	return append(data, '\n'), nil
}

// Parse reads a persisted manifest of any supported version, migrating
// it to CurrentVersion. Parsing a manifest this build just wrote is a
// no-op round trip.
func Parse(data []byte) (*Manifest, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return Migrate(raw)
}
