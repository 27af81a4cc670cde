package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for the fatal half of the taxonomy. Warnings are not
// errors at all — see Warning below.
var (
	// ErrUnknownOverlay indicates a requested overlay id is absent from
	// the registry.
	ErrUnknownOverlay = errors.New("unknown overlay")

	// ErrUnknownTemplate indicates the requested base template id has no
	// template documents.
	ErrUnknownTemplate = errors.New("unknown base template")

	// ErrUnsupportedManifestVersion indicates a persisted manifest cannot
	// be migrated to the current version.
	ErrUnsupportedManifestVersion = errors.New("unsupported manifest version")
)

// ValidationError is the fatal error for an invalid selection: an unknown
// overlay or template id. The orchestrator aborts before any merging, and
// no files are written.
type ValidationError struct {
	// Kind names what failed validation ("overlay" or "template").
	Kind string

	// ID is the offending identifier.
	ID string

	// Err is the underlying sentinel (ErrUnknownOverlay / ErrUnknownTemplate).
	Err error
}

// Error satisfies the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Kind, e.ID, e.Err)
}

// Unwrap returns the underlying sentinel for errors.Is checks.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewUnknownOverlayError creates a ValidationError for an overlay id
// missing from the registry.
func NewUnknownOverlayError(id string) *ValidationError {
	return &ValidationError{Kind: "overlay", ID: id, Err: ErrUnknownOverlay}
}

// NewUnknownTemplateError creates a ValidationError for a base template id
// with no registered documents.
func NewUnknownTemplateError(id string) *ValidationError {
	return &ValidationError{Kind: "template", ID: id, Err: ErrUnknownTemplate}
}

// MigrationError is the fatal error for a manifest whose version has no
// migration path to the current version. The orchestrator treats this as
// fatal — no partial manifest is ever written.
type MigrationError struct {
	// Version is the detected manifest version that could not be migrated.
	Version string
}

// Error satisfies the error interface.
func (e *MigrationError) Error() string {
	return fmt.Sprintf("manifest version %q: %v", e.Version, ErrUnsupportedManifestVersion)
}

// Unwrap returns ErrUnsupportedManifestVersion for errors.Is checks.
func (e *MigrationError) Unwrap() error {
	return ErrUnsupportedManifestVersion
}

// WarningKind distinguishes the non-fatal conditions a generation can
// accumulate. Warnings print but never change the exit code, and never
// block the generation.
type WarningKind string

const (
	// WarnConflict flags two mutually incompatible overlays that are both
	// selected. Both stay in the result by policy: a user's explicit
	// selection is never silently dropped.
	WarnConflict WarningKind = "conflict"

	// WarnStackIncompatibility flags an overlay dropped because the chosen
	// base template does not support it. The drop itself is silent; this
	// warning is how it gets reported.
	WarnStackIncompatibility WarningKind = "stack-incompatibility"
)

// Warning is a non-fatal condition surfaced alongside a successful result.
type Warning struct {
	// Kind classifies the warning.
	Kind WarningKind

	// Message is the human-readable description.
	Message string
}

// String returns the message.
func (w Warning) String() string {
	return w.Message
}

// NewConflictWarning builds the warning for a conflicting overlay pair.
func NewConflictWarning(pair ConflictPair) Warning {
	return Warning{
		Kind:    WarnConflict,
		Message: fmt.Sprintf("overlays %q and %q are marked as conflicting; both were kept", pair.A, pair.B),
	}
}

// NewStackIncompatibilityWarning builds the warning for an overlay dropped
// because the base template does not support it.
func NewStackIncompatibilityWarning(overlayID, templateID string) Warning {
	return Warning{
		Kind:    WarnStackIncompatibility,
		Message: fmt.Sprintf("overlay %q does not support template %q and was dropped", overlayID, templateID),
	}
}

// ExitCode defines standard CLI exit codes. These codes allow scripts and
// CI systems to programmatically determine the outcome of a command.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	// Warnings do not change this.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitValidationFailed indicates the selection referenced an unknown
	// overlay or template id.
	ExitValidationFailed ExitCode = 2

	// ExitMigrationFailed indicates a persisted manifest could not be
	// migrated to the current version.
	ExitMigrationFailed ExitCode = 3

	// ExitRegistryError indicates the overlay directory could not be
	// loaded into a registry.
	ExitRegistryError ExitCode = 4

	// ExitWriteFailed indicates the generated file set could not be
	// committed to the output directory.
	ExitWriteFailed ExitCode = 5
)

// CLIError is a custom error type that carries an exit code. This allows
// the CLI layer to translate domain errors into appropriate process exit
// codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}

// ExitCodeFor maps a domain error to the exit code the process should
// return. CLIError carries its own code; typed domain errors map to their
// dedicated codes; anything else is a general error.
func ExitCodeFor(err error) ExitCode {
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr.Code
	}
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return ExitValidationFailed
	}
	var migErr *MigrationError
	if errors.As(err, &migErr) {
		return ExitMigrationFailed
	}
	return ExitGeneralError
}
