// Package model defines the domain types and value objects for the
// devstack CLI.
//
// This package contains pure data structures with no external
// dependencies: overlay manifests, port declarations, selection requests
// and resolved selections. They are the vocabulary shared by the loader,
// the resolver and the composition engine.
//
// The package also defines the error taxonomy — fatal typed errors
// (ValidationError, MigrationError), non-fatal Warning values — plus
// exit codes (ExitCode) and a custom error type (CLIError) that carries
// exit codes for proper OS process exit handling.
package model
