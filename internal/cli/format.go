package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Color styles for terminal output. fatih/color detects TTYs and
// disables itself when stdout is piped, so these are safe to use
// unconditionally.
var (
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
	labelColor   = color.New(color.FgWhite, color.Bold)
	dimColor     = color.New(color.FgHiBlack)
)

// PrintSection prints a section header.
func PrintSection(title string) {
	fmt.Println()
	_, _ = headerColor.Printf("▸ %s\n", title)
}

// PrintSuccess prints a success message with a checkmark.
func PrintSuccess(msg string) {
	_, _ = successColor.Printf("✓ %s\n", msg)
}

// PrintWarning prints a warning message with a warning symbol.
func PrintWarning(msg string) {
	_, _ = warningColor.Printf("⚠ %s\n", msg)
}

// PrintError prints an error message to stderr.
func PrintError(msg string) {
	_, _ = errorColor.Fprintf(os.Stderr, "✗ %s\n", msg)
}

// PrintLabelValue prints an indented label-value pair.
func PrintLabelValue(label, value string) {
	_, _ = labelColor.Printf("  %s: ", label)
	fmt.Println(value)
}

// PrintList prints a list of items with bullet points.
func PrintList(items []string, indent int) {
	indentStr := strings.Repeat("  ", indent)
	for _, item := range items {
		_, _ = infoColor.Printf("%s• %s\n", indentStr, item)
	}
}

// PrintDim prints de-emphasized supplementary text.
func PrintDim(msg string) {
	_, _ = dimColor.Printf("  %s\n", msg)
}
