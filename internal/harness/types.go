package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/factsync/internal/ir"
)

// ChangeEvent is one result-set change observed while a scenario ran.
// Tuple maps each bound label to the alias of its fact, so traces stay
// readable and independent of content hashes.
type ChangeEvent struct {
	Fact  string            `json:"fact"` // alias of the arriving fact
	Added bool              `json:"added"`
	Path  string            `json:"path"`
	Tuple map[string]string `json:"tuple"`
}

// String renders the event as one trace line:
//
//	nyc_closed: - "" {company=acme, office=nyc}
func (e ChangeEvent) String() string {
	sign := "-"
	if e.Added {
		sign = "+"
	}
	labels := make([]string, 0, len(e.Tuple))
	for l := range e.Tuple {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	pairs := make([]string, len(labels))
	for i, l := range labels {
		pairs[i] = l + "=" + e.Tuple[l]
	}
	return fmt.Sprintf("%s: %s %q {%s}", e.Fact, sign, e.Path, strings.Join(pairs, ", "))
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step stayed consistent with re-execution and
	// every assertion held.
	Pass bool `json:"pass"`

	// Trace lists changes in the order the observer reported them.
	Trace []ChangeEvent `json:"trace"`

	// Errors contains consistency and assertion failures.
	Errors []string `json:"errors,omitempty"`

	// Results is the observer's final result set, with fact references
	// replaced by aliases ("@alias" for facts, "#alias" for hashes).
	Results ir.IRArray `json:"-"`

	// Steps counts the facts applied after Start.
	Steps int `json:"steps"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []ChangeEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddChange appends a change to the trace.
func (r *Result) AddChange(e ChangeEvent) {
	r.Trace = append(r.Trace, e)
}
