package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/factsync/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string        // Assertion type for categorization
	Expected string        // Human-readable expected outcome
	Actual   string        // Human-readable actual outcome
	Trace    []ChangeEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, event)
		}
	}
	return buf.String()
}

func assertResultCount(result *Result, assertion Assertion) error {
	if len(result.Results) != assertion.Count {
		return &AssertionError{
			Type:     AssertResultCount,
			Expected: fmt.Sprintf("%d results", assertion.Count),
			Actual:   fmt.Sprintf("%d results", len(result.Results)),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertResultContains checks that some top-level result matches the
// expected value. Objects match as subsets; everything else exactly.
func assertResultContains(result *Result, assertion Assertion) error {
	expected, err := ir.FromAny(assertion.Value)
	if err != nil {
		return fmt.Errorf("%s: value: %w", AssertResultContains, err)
	}
	for _, actual := range result.Results {
		if matchValue(actual, expected) {
			return nil
		}
	}
	actual, _ := ir.MarshalIRValue(result.Results)
	want, _ := ir.MarshalIRValue(expected)
	return &AssertionError{
		Type:     AssertResultContains,
		Expected: fmt.Sprintf("a result matching %s", want),
		Actual:   string(actual),
		Trace:    result.Trace,
	}
}

func assertChangeCount(result *Result, assertion Assertion) error {
	added := assertion.Kind == "added"
	count := 0
	for _, e := range result.Trace {
		if e.Added == added && e.Path == assertion.Path {
			count++
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertChangeCount,
			Expected: fmt.Sprintf("%d %s changes at %q", assertion.Count, assertion.Kind, assertion.Path),
			Actual:   fmt.Sprintf("%d", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertNoChange(result *Result, assertion Assertion) error {
	for _, e := range result.Trace {
		if e.Fact == assertion.Fact {
			return &AssertionError{
				Type:     AssertNoChange,
				Expected: fmt.Sprintf("no changes from %s", assertion.Fact),
				Actual:   e.String(),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

// matchValue uses subset semantics for objects: every expected key must be
// present with a matching value. Arrays match element-wise.
func matchValue(actual, expected ir.IRValue) bool {
	switch exp := expected.(type) {
	case ir.IRObject:
		act, ok := actual.(ir.IRObject)
		if !ok {
			return false
		}
		for k, v := range exp {
			av, ok := act[k]
			if !ok || !matchValue(av, v) {
				return false
			}
		}
		return true
	case ir.IRArray:
		act, ok := actual.(ir.IRArray)
		if !ok || len(act) != len(exp) {
			return false
		}
		for i := range exp {
			if !matchValue(act[i], exp[i]) {
				return false
			}
		}
		return true
	default:
		return ir.Equal(actual, expected)
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertResultCount:
			err = assertResultCount(result, assertion)
		case AssertResultContains:
			err = assertResultContains(result, assertion)
		case AssertChangeCount:
			err = assertChangeCount(result, assertion)
		case AssertNoChange:
			err = assertNoChange(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
