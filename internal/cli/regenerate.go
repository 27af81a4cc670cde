// Package cli — regenerate.go implements the "devstack regenerate" command.
//
// Regenerate reads the manifest of a previously generated tree, migrates
// it to the current schema if needed, reconstructs the original selection
// request, and runs the same pipeline again. Given an unchanged overlay
// library, the result is an identical tree.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/devstack/internal/config"
	"github.com/mmr-tortoise/devstack/internal/manifest"
	"github.com/mmr-tortoise/devstack/internal/model"
	"github.com/mmr-tortoise/devstack/internal/overlay"
)

// NewRegenerateCommand creates the "regenerate" cobra command.
func NewRegenerateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regenerate [dir]",
		Short: "Regenerate a tree from its manifest",
		Long: `Regenerate a previously generated tree from its recorded manifest.

The manifest stores the exact template, overlays, port offset and options
of the original run. Manifests written by older devstack versions are
migrated to the current schema before regeneration.

Examples:
  devstack regenerate ./myenv
  devstack regenerate        (current directory)`,

		Args: cobra.MaximumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runRegenerate(dir)
		},
	}

	return cmd
}

// runRegenerate is the main logic function for the regenerate command.
func runRegenerate(dir string) error {
	manifestPath := filepath.Join(dir, manifest.FileName)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("no manifest found at %s", manifestPath), err)
	}

	m, err := manifest.Parse(data)
	if err != nil {
		// Migration and parse errors carry their own classification.
		return err
	}
	VerboseLog("Loaded manifest (version %s, generated %s)", m.ManifestVersion, m.Generated)

	cfg, err := config.Load(configFile)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to load configuration", err)
	}

	reg, templates, err := loadLibrary(cfg)
	if err != nil {
		return err
	}

	req := requestFromManifest(m, reg)
	return generateAndCommit(reg, templates, req, dir)
}

// requestFromManifest reconstructs the selection request a manifest was
// generated from. Auto-resolved overlays are excluded from the request —
// re-running resolution rediscovers them, so a dependency dropped from an
// overlay's metadata since the original run disappears instead of
// sticking around as an explicit selection.
func requestFromManifest(m *manifest.Manifest, reg *overlay.Registry) model.SelectionRequest {
	autoAdded := make(map[string]bool, len(m.AutoResolved))
	for _, a := range m.AutoResolved {
		autoAdded[a.ID] = true
	}

	var requested []string
	for _, id := range m.Overlays {
		if !autoAdded[id] {
			requested = append(requested, id)
		}
	}

	req := model.SelectionRequest{
		BaseTemplate:  m.BaseTemplate,
		Overlays:      bucketOverlays(reg, requested),
		PortOffset:    m.PortOffset,
		PresetID:      m.Preset,
		PresetChoices: m.PresetChoices,
	}
	if m.Customizations != nil && m.Customizations.CustomImage {
		req.BaseImage = m.BaseImage
		req.CustomImage = true
	}
	return req
}
