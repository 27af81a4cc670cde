package manifest

import (
	"encoding/json"
	"fmt"

	"github.com/mmr-tortoise/devstack/internal/model"
)

// DetectVersion determines the schema version of a raw manifest
// document. An explicit manifestVersion field wins; a legacy version
// field implies "1"; anything else is "0", which has no migration path.
func DetectVersion(raw map[string]any) string {
	if v, ok := raw["manifestVersion"].(string); ok && v != "" {
		return v
	}
	if _, ok := raw["version"]; ok {
		return "1"
	}
	return "0"
}

// migrations maps a version to the single-step transform that lifts a
// raw document to the next version. Each step is field-preserving: keys
// it does not recognize pass through untouched.
var migrations = map[string]func(map[string]any) map[string]any{
	"1": migrateV1toV2,
}

// MigrateRaw lifts a raw manifest document to CurrentVersion by applying
// single-step migrations in sequence. A document already at
// CurrentVersion is returned as-is. A version with no migration path —
// including "0" — yields a model.MigrationError.
func MigrateRaw(raw map[string]any) (map[string]any, error) {
	version := DetectVersion(raw)
	for version != CurrentVersion {
		step, ok := migrations[version]
		if !ok {
			return nil, &model.MigrationError{Version: version}
		}
		raw = step(raw)

		next := DetectVersion(raw)
		if next == version {
			// A step that fails to advance the version would loop forever.
			return nil, &model.MigrationError{Version: version}
		}
		version = next
	}
	return raw, nil
}

// Migrate lifts a raw manifest document to CurrentVersion and decodes it.
func Migrate(raw map[string]any) (*Manifest, error) {
	raw, err := MigrateRaw(raw)
	if err != nil {
		return nil, err
	}

	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("migrate manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(buf, &m); err != nil {
		return nil, fmt.Errorf("migrate manifest: %w", err)
	}
	return &m, nil
}

// migrateV1toV2 lifts the original flat schema to version 2. Version 1
// manifests carried a numeric version field and template/image keys, and
// predate generation ids and auto-resolve tracking.
func migrateV1toV2(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw)+2)
	for k, v := range raw {
		switch k {
		case "version":
			// Superseded by manifestVersion.
		case "template":
			out["baseTemplate"] = v
		case "image":
			out["baseImage"] = v
		default:
			out[k] = v
		}
	}

	out["manifestVersion"] = "2"
	if _, ok := out["generatedBy"]; !ok {
		out["generatedBy"] = "devstack (pre-2 manifest)"
	}
	return out
}
