package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/roach88/factsync/internal/compiler"
	"github.com/roach88/factsync/internal/spec"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeScanError     = "E002" // Directory scan error
	ErrCodeNoFiles       = "E003" // No specification files found
	ErrCodeLoadFailed    = "E004" // Specification file could not be read or compiled
	ErrCodeNotFound      = "E005" // Path not found
	ErrCodeUnknownSpec   = "E006" // --spec names no loaded specification
	ErrCodeWriteFailed   = "E007" // File write error
	ErrCodeDatabase      = "E008" // Database open, read or write failed
	ErrCodeBadGiven      = "E009" // --given could not be parsed or bound
	ErrCodeFactFile      = "E010" // Fact file malformed
	ErrCodeExecute       = "E011" // Execution or observation failed
	ErrCodeSyntax        = "E101" // Canonical text syntax error
	ErrCodeCUE           = "E102" // CUE structure or evaluation error
	ErrCodeDuplicateSpec = "E103" // Two files define one specification name
)

// Diagnostic is one problem found while loading specifications. Code is
// either a CLI code above or a specification validation code (E2xx).
type Diagnostic struct {
	Code    string `json:"code"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	loc := d.File
	if d.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", d.File, d.Line, d.Column)
	}
	if loc == "" {
		return fmt.Sprintf("%s: %s", d.Code, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s", loc, d.Code, d.Message)
}

// loadSpecs loads every specification under dir. A nil result means the
// directory itself could not be used; otherwise diagnostics describe the
// files or specifications that were left out.
func loadSpecs(dir string) (*compiler.LoadResult, []Diagnostic) {
	result, errs := compiler.LoadDir(dir)
	var diags []Diagnostic
	for _, err := range errs {
		diags = append(diags, diagnose(err, result == nil)...)
	}
	return result, diags
}

// diagnose turns one loader error into diagnostics. Joined validation
// errors yield one diagnostic per defect.
func diagnose(err error, fatal bool) []Diagnostic {
	var pe *compiler.ParseError
	if errors.As(err, &pe) {
		return []Diagnostic{{Code: ErrCodeSyntax, File: pe.File, Line: pe.Line, Column: pe.Column, Message: pe.Message}}
	}
	var ce *compiler.CompileError
	if errors.As(err, &ce) {
		d := Diagnostic{Code: ErrCodeCUE, Message: ce.Message}
		if ce.Pos.IsValid() {
			d.File, d.Line, d.Column = ce.Pos.Filename(), ce.Pos.Line(), ce.Pos.Column()
		}
		return []Diagnostic{d}
	}
	if verrs := validationErrors(err); len(verrs) > 0 {
		file, _, _ := strings.Cut(err.Error(), ": ")
		diags := make([]Diagnostic, len(verrs))
		for i, v := range verrs {
			diags[i] = Diagnostic{Code: v.Code, File: file, Message: strings.TrimPrefix(v.Error(), "["+v.Code+"] ")}
		}
		return diags
	}

	code := ErrCodeLoadFailed
	switch {
	case errors.Is(err, fs.ErrNotExist):
		code = ErrCodeNotFound
	case strings.Contains(err.Error(), "already defined in"):
		code = ErrCodeDuplicateSpec
	case strings.Contains(err.Error(), "no specification files"):
		code = ErrCodeNoFiles
	case strings.HasPrefix(err.Error(), "not a directory"):
		code = ErrCodeNotFound
	case fatal:
		code = ErrCodeScanError
	}
	return []Diagnostic{{Code: code, Message: err.Error()}}
}

// validationErrors collects every spec.ValidationError in err's tree.
func validationErrors(err error) []spec.ValidationError {
	var out []spec.ValidationError
	var walk func(error)
	walk = func(e error) {
		if v, ok := e.(spec.ValidationError); ok {
			out = append(out, v)
			return
		}
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			if inner := u.Unwrap(); inner != nil {
				walk(inner)
			}
		}
	}
	walk(err)
	return out
}

// lookupSpec loads dir and returns the named specification. Diagnostics
// in other files do not prevent using a specification that loaded.
func lookupSpec(f *OutputFormatter, dir, name string) (compiler.NamedSpecification, error) {
	if name == "" {
		return compiler.NamedSpecification{}, f.Fail(ExitCommandError, ErrCodeUnknownSpec, "--spec is required", nil)
	}
	result, diags := loadSpecs(dir)
	if result == nil {
		return compiler.NamedSpecification{}, f.Fail(ExitCommandError, diags[0].Code, diags[0].Message, nil)
	}
	for _, d := range diags {
		f.VerboseLog("skipped: %s", d)
	}
	named, ok := result.Lookup(name)
	if !ok {
		msg := fmt.Sprintf("no specification %q in %s (have %s)", name, dir, strings.Join(result.Names(), ", "))
		if len(diags) > 0 {
			msg += fmt.Sprintf("; %d file(s) failed to load", len(diags))
		}
		return compiler.NamedSpecification{}, f.Fail(ExitCommandError, ErrCodeUnknownSpec, msg, nil)
	}
	return named, nil
}
