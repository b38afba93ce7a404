package compiler

import (
	"cmp"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/roach88/factsync/internal/spec"
)

// SpecPattern selects the files LoadDir reads: CUE files holding a
// "specification" struct, and .spec files holding one specification in
// canonical text each.
const SpecPattern = "**/*.{cue,spec}"

// NamedSpecification is a loaded specification with its name and source
// file.
type NamedSpecification struct {
	Name          string
	File          string
	Specification spec.Specification
}

// LoadResult holds every specification found under a directory, sorted by
// name.
type LoadResult struct {
	Specifications []NamedSpecification
	FileCount      int
}

// Lookup finds a specification by name.
func (r *LoadResult) Lookup(name string) (NamedSpecification, bool) {
	i := slices.IndexFunc(r.Specifications, func(n NamedSpecification) bool { return n.Name == name })
	if i < 0 {
		return NamedSpecification{}, false
	}
	return r.Specifications[i], true
}

// Names returns the loaded specification names in order.
func (r *LoadResult) Names() []string {
	names := make([]string, len(r.Specifications))
	for i, n := range r.Specifications {
		names[i] = n.Name
	}
	return names
}

// Discover returns the specification files under dir matching SpecPattern,
// sorted, as paths joined onto dir.
func Discover(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		matched, err := doublestar.Match(SpecPattern, filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		if matched {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	slices.Sort(files)
	return files, nil
}

// LoadDir loads and checks every specification under dir. Errors are
// collected rather than stopping at the first bad file; specifications
// that fail are left out of the result.
func LoadDir(dir string) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("specs directory: %w", err)}
	}
	if !info.IsDir() {
		return nil, []error{fmt.Errorf("not a directory: %s", dir)}
	}

	files, err := Discover(dir)
	if err != nil {
		return nil, []error{err}
	}
	if len(files) == 0 {
		return nil, []error{fmt.Errorf("no specification files found in %s", dir)}
	}

	result := &LoadResult{FileCount: len(files)}
	ctx := cuecontext.New()
	var errs []error
	seen := map[string]string{}
	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		var loaded []NamedSpecification
		var fileErrs []error
		if filepath.Ext(file) == ".cue" {
			loaded, fileErrs = LoadCUE(ctx, file, src)
		} else {
			loaded, fileErrs = loadText(file, src)
		}
		errs = append(errs, fileErrs...)
		for _, n := range loaded {
			if prev, dup := seen[n.Name]; dup {
				errs = append(errs, fmt.Errorf("%s: specification %s is already defined in %s", file, n.Name, prev))
				continue
			}
			if err := n.Specification.Check(); err != nil {
				errs = append(errs, fmt.Errorf("%s: specification %s: %w", file, n.Name, err))
				continue
			}
			seen[n.Name] = file
			result.Specifications = append(result.Specifications, n)
		}
	}

	slices.SortFunc(result.Specifications, func(a, b NamedSpecification) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return result, errs
}

// LoadCUE compiles one CUE source and reads every entry of its
// "specification" struct. Entries are returned unchecked.
func LoadCUE(ctx *cue.Context, filename string, src []byte) ([]NamedSpecification, []error) {
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}

	specsVal := v.LookupPath(cue.ParsePath("specification"))
	if !specsVal.Exists() {
		return nil, nil
	}
	iter, err := specsVal.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	var (
		out  []NamedSpecification
		errs []error
	)
	for iter.Next() {
		name := specName(iter.Label())
		s, err := CompileSpecification(iter.Value())
		if err != nil {
			errs = append(errs, fmt.Errorf("specification %s: %w", name, err))
			continue
		}
		out = append(out, NamedSpecification{Name: name, File: filename, Specification: s})
	}
	return out, errs
}

// loadText reads a .spec file. The specification is named after the file.
func loadText(filename string, src []byte) ([]NamedSpecification, []error) {
	s, err := Parse(string(src))
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.File = filename
		}
		return nil, []error{err}
	}
	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return []NamedSpecification{{Name: name, File: filename, Specification: s}}, nil
}
