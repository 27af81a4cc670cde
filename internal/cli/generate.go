// Package cli — generate.go implements the "devstack generate" command.
//
// The generate command is the primary user-facing operation. It loads the
// overlay library, builds a selection request from the flags, runs the
// composition engine, and commits the resulting file set atomically into
// the output directory.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tidwall/jsonc"

	"github.com/mmr-tortoise/devstack/internal/config"
	"github.com/mmr-tortoise/devstack/internal/engine"
	"github.com/mmr-tortoise/devstack/internal/model"
	"github.com/mmr-tortoise/devstack/internal/overlay"
	"github.com/mmr-tortoise/devstack/internal/port"
	"github.com/mmr-tortoise/devstack/internal/resolver"
	"github.com/mmr-tortoise/devstack/internal/writer"
)

// generateFlags holds the flag values for the generate command.
// These are bound to cobra flags in NewGenerateCommand.
type generateFlags struct {
	// template is the base template id to compose onto. Required.
	template string

	// overlays lists the overlay ids to apply. Dependencies are resolved
	// automatically, so listing "grafana" pulls in "prometheus" when the
	// overlay metadata requires it.
	overlays []string

	// portOffset shifts every host-facing port in the output.
	portOffset int

	// autoOffset picks the smallest offset at which every declared
	// service port is free on this host, instead of a fixed value.
	autoOffset bool

	// baseImage overrides the template's container image.
	baseImage string

	// patchFile is an optional user devcontainer patch (JSON with
	// comments allowed), merged after all overlays.
	patchFile string

	// envFile is an optional env fragment appended after all overlays.
	envFile string
}

// NewGenerateCommand creates the "generate" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewGenerateCommand() *cobra.Command {
	flags := &generateFlags{}

	cmd := &cobra.Command{
		Use:   "generate [output-dir]",
		Short: "Generate a devcontainer setup from a template and overlays",
		Long: `Generate a devcontainer configuration tree by composing a base template
with the selected overlays.

The output directory is replaced atomically on each run: either the
complete new tree lands, or the previous contents stay untouched.

Examples:
  devstack generate ./myenv --template python --overlay postgres --overlay redis
  devstack generate ./myenv --template node --overlay postgres --port-offset 100
  devstack generate ./myenv --template python --overlay postgres --patch extra.json`,

		Args: cobra.MaximumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			outputDir := ""
			if len(args) == 1 {
				outputDir = args[0]
			}
			// Distinguish "flag not given" from an explicit 0 so the
			// config file default can apply.
			offsetSet := cmd.Flags().Changed("port-offset")
			return runGenerate(flags, outputDir, offsetSet)
		},
	}

	cmd.Flags().StringVarP(&flags.template, "template", "t", "", "Base template id (required)")
	cmd.Flags().StringArrayVarP(&flags.overlays, "overlay", "o", nil, "Overlay id to apply (repeatable)")
	cmd.Flags().IntVar(&flags.portOffset, "port-offset", 0, "Offset added to every service port")
	cmd.Flags().BoolVar(&flags.autoOffset, "auto-offset", false, "Pick the smallest offset whose ports are all free")
	cmd.Flags().StringVar(&flags.baseImage, "base-image", "", "Override the template's container image")
	cmd.Flags().StringVar(&flags.patchFile, "patch", "", "User devcontainer patch file, applied last")
	cmd.Flags().StringVar(&flags.envFile, "env", "", "User env file, appended last")
	_ = cmd.MarkFlagRequired("template")

	return cmd
}

// runGenerate is the main logic function for the generate command.
func runGenerate(flags *generateFlags, outputDir string, offsetSet bool) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to load configuration", err)
	}

	if outputDir == "" {
		outputDir = cfg.Output.Dir
	}
	if !offsetSet {
		flags.portOffset = cfg.Output.PortOffset
	}

	reg, templates, err := loadLibrary(cfg)
	if err != nil {
		return err
	}

	req := model.SelectionRequest{
		BaseTemplate: flags.template,
		Overlays:     bucketOverlays(reg, flags.overlays),
		PortOffset:   flags.portOffset,
		BaseImage:    flags.baseImage,
		CustomImage:  flags.baseImage != "",
	}

	if flags.autoOffset {
		offset, err := suggestOffset(reg, req)
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "failed to pick a port offset", err)
		}
		VerboseLog("Auto-selected port offset %d", offset)
		req.PortOffset = offset
	}

	if flags.patchFile != "" {
		patch, err := readPatchFile(flags.patchFile)
		if err != nil {
			return err
		}
		req.CustomPatch = patch
	}
	if flags.envFile != "" {
		data, err := os.ReadFile(flags.envFile)
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError,
				fmt.Sprintf("failed to read env file %s", flags.envFile), err)
		}
		req.CustomEnv = string(data)
	}

	return generateAndCommit(reg, templates, req, outputDir)
}

// loadLibrary loads the overlay registry and the base templates from the
// configured directories.
func loadLibrary(cfg *config.Config) (*overlay.Registry, overlay.StaticTemplates, error) {
	reg, err := overlay.LoadRegistry(cfg.Overlays.Dir)
	if err != nil {
		return nil, nil, model.WrapCLIError(model.ExitRegistryError,
			fmt.Sprintf("failed to load overlays from %s", cfg.Overlays.Dir), err)
	}
	VerboseLog("Loaded %d overlays from %s", reg.Len(), cfg.Overlays.Dir)

	templates, err := overlay.LoadTemplates(cfg.Templates.Dir)
	if err != nil {
		return nil, nil, model.WrapCLIError(model.ExitRegistryError,
			fmt.Sprintf("failed to load templates from %s", cfg.Templates.Dir), err)
	}
	VerboseLog("Loaded %d templates from %s", len(templates), cfg.Templates.Dir)

	return reg, templates, nil
}

// bucketOverlays groups overlay ids by their registry category, which is
// how the engine expects a selection. Ids the registry does not know keep
// flowing through (bucketed as custom) so validation can report them by
// name instead of the CLI dropping them silently.
func bucketOverlays(reg *overlay.Registry, ids []string) map[model.Category][]string {
	if len(ids) == 0 {
		return nil
	}
	buckets := make(map[model.Category][]string)
	for _, id := range ids {
		cat := model.CategoryCustom
		if m, ok := reg.Manifest(id); ok {
			cat = m.Category
		}
		buckets[cat] = append(buckets[cat], id)
	}
	return buckets
}

// suggestOffset resolves the selection's dependency closure, collects
// the declared ports of every overlay in it, and asks the port scanner
// for the smallest round-hundred offset at which all of them are free.
func suggestOffset(reg *overlay.Registry, req model.SelectionRequest) (int, error) {
	sel, err := resolver.Resolve(req, reg)
	if err != nil {
		return 0, err
	}

	var ports []model.Port
	for _, id := range sel.Overlays {
		if m, ok := reg.Manifest(id); ok {
			ports = append(ports, m.Ports...)
		}
	}

	return port.SuggestOffset(port.NewScanner(), ports)
}

// readPatchFile parses a user devcontainer patch. Comments and trailing
// commas are allowed, matching the devcontainer.json dialect.
func readPatchFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("failed to read patch file %s", path), err)
	}
	var patch map[string]any
	if err := json.Unmarshal(jsonc.ToJSON(data), &patch); err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("failed to parse patch file %s", path), err)
	}
	return patch, nil
}

// generateAndCommit runs the engine and writes the result. Shared with
// the regenerate command.
func generateAndCommit(reg *overlay.Registry, templates overlay.StaticTemplates, req model.SelectionRequest, outputDir string) error {
	eng := engine.New(reg, templates, fmt.Sprintf("devstack %s", Version))

	result, err := eng.Generate(req)
	if err != nil {
		return err
	}

	if err := writer.Commit(outputDir, result.Files); err != nil {
		return model.WrapCLIError(model.ExitWriteFailed,
			fmt.Sprintf("failed to write output to %s", outputDir), err)
	}

	reportResult(result, outputDir)
	return nil
}

// reportResult prints the outcome of a successful generation in the
// format selected by the --json flag. Warnings print either way, and
// never change the exit code.
func reportResult(result *engine.Result, outputDir string) {
	if IsJSONOutput() {
		out := map[string]any{
			"outputDir": outputDir,
			"overlays":  result.Selection.Overlays,
			"files":     result.Files.Paths(),
			"manifest":  result.Manifest,
		}
		if len(result.Warnings) > 0 {
			out["warnings"] = result.Warnings
		}
		if len(result.Ports) > 0 {
			out["ports"] = result.Ports
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
		return
	}

	for _, w := range result.Warnings {
		PrintWarning(w.Message)
	}

	// Advisory only: the tree is already written either way.
	for _, busy := range port.NewScanner().Busy(result.Ports) {
		PrintWarning(fmt.Sprintf("port %d (%s) is already in use on this host", busy.Port, busy.Service))
	}

	PrintSuccess(fmt.Sprintf("Generated %d files in %s", result.Files.Len(), outputDir))
	PrintLabelValue("Template", result.Manifest.BaseTemplate)
	PrintLabelValue("Overlays", fmt.Sprintf("%v", result.Selection.Overlays))
	if result.Manifest.PortOffset != 0 {
		PrintLabelValue("Port offset", fmt.Sprintf("%d", result.Manifest.PortOffset))
	}

	if len(result.Ports) > 0 {
		PrintSection("Service ports")
		for _, p := range result.Ports {
			line := p.String()
			if p.Description != "" {
				line += "  " + p.Description
			}
			PrintList([]string{line}, 1)
			if cs := p.ConnectionString(); cs != "" {
				PrintDim(cs)
			}
		}
	}
}
