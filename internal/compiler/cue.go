package compiler

import (
	"errors"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
	cuetoken "cuelang.org/go/cue/token"

	"github.com/roach88/factsync/internal/spec"
)

// CompileError is a defect in a CUE specification file, with source
// position when CUE provides one.
type CompileError struct {
	Field   string
	Message string
	Pos     cuetoken.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// structured is the CUE shape of a specification written out field by
// field. Givens and matches decode through the model's JSON tags; the
// projection is written in its textual form.
type structured struct {
	Givens  []spec.Given `json:"givens"`
	Matches []spec.Match `json:"matches"`
	Project string       `json:"project"`
}

// CompileSpecification reads one entry of the "specification" struct. Two
// forms are accepted:
//
//	specification: openOffices: {
//	    text: """
//	        (company: Company) { ... } => office
//	        """
//	}
//
//	specification: companyOfOffice: {
//	    givens: [{label: {name: "office", type: "Office"}}]
//	    matches: [...]
//	    project: "company.identifier"
//	}
func CompileSpecification(v cue.Value) (spec.Specification, error) {
	if err := v.Err(); err != nil {
		return spec.Specification{}, formatCUEError(err)
	}

	if textVal := v.LookupPath(cue.ParsePath("text")); textVal.Exists() {
		text, err := textVal.String()
		if err != nil {
			return spec.Specification{}, formatCUEError(err)
		}
		s, err := Parse(text)
		if err != nil {
			return spec.Specification{}, positioned(err, "text", textVal.Pos())
		}
		return s, nil
	}

	if !v.LookupPath(cue.ParsePath("givens")).Exists() {
		return spec.Specification{}, &CompileError{
			Field:   "givens",
			Message: "specification needs either text or givens",
			Pos:     v.Pos(),
		}
	}

	var st structured
	if err := v.Decode(&st); err != nil {
		return spec.Specification{}, formatCUEError(err)
	}
	proj, err := ParseProjection(st.Project)
	if err != nil {
		return spec.Specification{}, positioned(err, "project", v.LookupPath(cue.ParsePath("project")).Pos())
	}
	return spec.Specification{
		Givens:     st.Givens,
		Matches:    st.Matches,
		Projection: proj,
	}, nil
}

// positioned reports a text parse error at the CUE field that held the
// text. The offset within the text stays in the message.
func positioned(err error, field string, pos cuetoken.Pos) error {
	var pe *ParseError
	if errors.As(err, &pe) {
		return &CompileError{
			Field:   field,
			Message: fmt.Sprintf("line %d, column %d: %s", pe.Line, pe.Column, pe.Message),
			Pos:     pos,
		}
	}
	return &CompileError{Field: field, Message: err.Error(), Pos: pos}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}

// specName strips the quotes CUE keeps on labels like "open-offices".
func specName(label string) string {
	return strings.Trim(label, `"`)
}
