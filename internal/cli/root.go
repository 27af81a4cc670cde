// Package cli implements the cobra-based CLI commands for devstack.
//
// Each subcommand (generate, regenerate, list) is defined in its own file
// within this package. This file defines the root command that serves as
// the parent for all subcommands and handles global flags.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/devstack/internal/model"
)

// Global flag variables shared across all subcommands.
// These are bound to cobra persistent flags on the root command,
// which makes them available to every subcommand automatically.
var (
	// jsonOutput controls whether command output is formatted as JSON.
	// When true, all output uses structured JSON format for machine consumption.
	// When false (default), output uses human-readable text format.
	jsonOutput bool

	// verbose enables detailed logging output for debugging.
	// When true, additional information about operations is printed to stderr.
	verbose bool

	// configFile is an optional path to a devstack config file. When empty,
	// defaults and DEVSTACK_* environment variables apply.
	configFile string
)

// version, commit, and date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
// This is the entry point for the entire CLI application.
//
// The root command itself does not perform any action — it only provides
// help text and global flags. Actual functionality is provided by
// subcommands (generate, regenerate, list).
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "devstack",
		Short: "Layered devcontainer configuration generator",
		Long: `devstack composes a base template with overlay fragments — language
runtimes, databases, observability stacks, dev tools — into one internally
consistent devcontainer setup.

Overlay dependencies resolve automatically, docker-compose fragments merge
into a single file, and an optional port offset shifts every service port so
multiple generated environments can run side by side.`,

		// SilenceUsage prevents cobra from printing usage on every error.
		// We handle error output ourselves for cleaner UX.
		SilenceUsage: true,

		// SilenceErrors prevents cobra from printing errors automatically.
		// We format errors ourselves (text or JSON based on --json flag).
		SilenceErrors: true,

		// Version is displayed when --version flag is used.
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),
	}

	// PersistentFlags are inherited by all subcommands. This is the cobra
	// mechanism for global flags — any flag defined here is automatically
	// available in every subcommand without re-declaration.
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file")

	// Register subcommands. Each subcommand is defined in its own file
	// (generate.go, regenerate.go, list.go) and returns a *cobra.Command.
	rootCmd.AddCommand(NewGenerateCommand())
	rootCmd.AddCommand(NewRegenerateCommand())
	rootCmd.AddCommand(NewListCommand())

	return rootCmd
}

// Execute runs the root command and handles exit codes.
// This is the main entry point called from main.go.
//
// It inspects errors returned by cobra commands and translates them into
// appropriate OS exit codes: CLIError carries its own code, typed domain
// errors (validation, migration) map to their dedicated codes, and
// anything else defaults to 1.
func Execute(rootCmd *cobra.Command) {
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(int(model.ExitCodeFor(err)))
	}
}

// printError outputs an error in the appropriate format (JSON or text)
// based on the --json global flag. Errors always go to stderr; stdout is
// reserved for successful command output.
func printError(err error) {
	if jsonOutput {
		errObj := map[string]any{
			"error": map[string]any{
				"message": err.Error(),
				"code":    int(model.ExitCodeFor(err)),
			},
		}
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
		return
	}
	PrintError(err.Error())
}

// VerboseLog prints a message to stderr only when verbose mode is enabled.
// This is used throughout the CLI for debug/trace output that helps
// users understand what operations are being performed.
func VerboseLog(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[verbose] "+format+"\n", args...)
	}
}

// IsJSONOutput returns whether the --json flag is set.
// Subcommands use this to decide their output format.
func IsJSONOutput() bool {
	return jsonOutput
}
