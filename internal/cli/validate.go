package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid          bool         `json:"valid"`
	Specifications []string     `json:"specifications"`
	Files          int          `json:"files"`
	Errors         []Diagnostic `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <specs-dir>",
		Short: "Parse and check every specification in a directory",
		Long: `Parse and check every specification under a directory.

Reads CUE files (a "specification" struct of named entries) and .spec
files (one specification in canonical text, named after the file). Every
problem is reported, not just the first: syntax errors with line and
column, and construction errors (unbound labels, type conflicts, unnamed
collections) with their E2xx codes.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	result, diags := loadSpecs(specsDir)
	if result == nil {
		return outputValidateError(formatter, diags[0].Code, diags[0].Message)
	}

	formatter.VerboseLog("Found %d specification file(s) in %s", result.FileCount, specsDir)
	for _, name := range result.Names() {
		formatter.VerboseLog("Valid: %s", name)
	}

	if len(diags) > 0 {
		return outputValidationErrors(formatter, result.Names(), result.FileCount, diags)
	}
	return outputValidateSuccess(formatter, result.Names(), result.FileCount)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, names []string, files int) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Specifications: names, Files: files})
	}

	fmt.Fprintf(formatter.Writer, "✓ %d specification(s) valid\n", len(names))
	return nil
}

// outputValidateError outputs a single fatal loading error.
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	// Unusable input directory is a command-level error (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs every diagnostic.
func outputValidationErrors(formatter *OutputFormatter, names []string, files int, diags []Diagnostic) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data: ValidationResult{
				Valid:          false,
				Specifications: names,
				Files:          files,
				Errors:         diags,
			},
			Error: &CLIError{
				Code:    diags[0].Code,
				Message: diags[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(diags)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, d := range diags {
		fmt.Fprintf(formatter.Writer, "  %s\n", d)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(diags)))
}
