// Package cli — list.go implements the "devstack list" command.
//
// The list command displays the overlay library grouped by category,
// with dependency and conflict annotations, plus the available base
// templates. Output is a text listing or JSON, depending on --json.
package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/devstack/internal/config"
	"github.com/mmr-tortoise/devstack/internal/model"
)

// NewListCommand creates the "list" cobra command.
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available templates and overlays",
		Long: `List the base templates and overlays available in the configured
library, grouped by category.

Examples:
  devstack list
  devstack list --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runList()
		},
	}

	return cmd
}

// runList is the main logic function for the list command.
func runList() error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to load configuration", err)
	}

	reg, templates, err := loadLibrary(cfg)
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		out := map[string]any{
			"templates": templates.TemplateIDs(),
			"overlays":  map[string][]*model.OverlayManifest{},
		}
		overlays := out["overlays"].(map[string][]*model.OverlayManifest)
		for _, cat := range model.CategoryOrder {
			for _, o := range reg.ByCategory(cat) {
				overlays[cat.String()] = append(overlays[cat.String()], &o.Manifest)
			}
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	PrintSection("Templates")
	PrintList(templates.TemplateIDs(), 1)

	for _, cat := range model.CategoryOrder {
		overlays := reg.ByCategory(cat)
		if len(overlays) == 0 {
			continue
		}
		PrintSection(capitalize(cat.String()))
		for _, o := range overlays {
			PrintList([]string{overlayLine(&o.Manifest)}, 1)
			if o.Manifest.Description != "" {
				PrintDim(o.Manifest.Description)
			}
		}
	}

	return nil
}

// capitalize upper-cases the first letter of a category name for use as
// a section header.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// overlayLine formats one overlay entry with its dependency and conflict
// annotations.
func overlayLine(m *model.OverlayManifest) string {
	line := m.ID
	if m.DisplayName() != m.ID {
		line += fmt.Sprintf(" (%s)", m.DisplayName())
	}
	if len(m.Requires) > 0 {
		line += fmt.Sprintf("  requires: %s", strings.Join(m.Requires, ", "))
	}
	if len(m.Conflicts) > 0 {
		line += fmt.Sprintf("  conflicts: %s", strings.Join(m.Conflicts, ", "))
	}
	if len(m.Supports) > 0 {
		line += fmt.Sprintf("  [%s only]", strings.Join(m.Supports, ", "))
	}
	return line
}
