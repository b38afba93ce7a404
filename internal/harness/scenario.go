package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Backend names accepted in Scenario.Backend.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Scenario replays a sequence of fact arrivals against one observed
// specification.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Backend selects the fact graph: "memory" (default) or "sqlite".
	Backend string `yaml:"backend,omitempty"`

	// Specification is the observed specification in canonical text.
	Specification string `yaml:"specification"`

	// Given binds each given label to a fact alias.
	Given map[string]string `yaml:"given"`

	// Facts are added in order. Seed facts are present before the observer
	// starts; the rest arrive one at a time afterwards.
	Facts []FactStep `yaml:"facts"`

	// Assertions are checked against the final result and trace.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// FactStep declares one fact. Predecessors name earlier facts by alias.
type FactStep struct {
	ID           string              `yaml:"id"`
	Type         string              `yaml:"type"`
	Fields       map[string]any      `yaml:"fields,omitempty"`
	Predecessors map[string][]string `yaml:"predecessors,omitempty"`
	Seed         bool                `yaml:"seed,omitempty"`
}

// Assertion validates the final result or the trace.
type Assertion struct {
	// Type specifies the assertion type:
	// - "result_count": top-level results number exactly Count
	// - "result_contains": some top-level result matches Value (subset match)
	// - "change_count": Count changes of Kind at Path
	// - "no_change": the arrival of Fact changed nothing
	Type string `yaml:"type"`

	Count int    `yaml:"count,omitempty"`
	Value any    `yaml:"value,omitempty"`
	Kind  string `yaml:"kind,omitempty"` // "added" or "removed"
	Path  string `yaml:"path,omitempty"`
	Fact  string `yaml:"fact,omitempty"`
}

// Assertion type constants.
const (
	AssertResultCount    = "result_count"
	AssertResultContains = "result_contains"
	AssertChangeCount    = "change_count"
	AssertNoChange       = "no_change"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks required fields and alias references.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Specification == "" {
		return fmt.Errorf("specification is required")
	}
	switch s.Backend {
	case "", BackendMemory, BackendSQLite:
	default:
		return fmt.Errorf("backend %q: must be %q or %q", s.Backend, BackendMemory, BackendSQLite)
	}
	if len(s.Facts) == 0 {
		return fmt.Errorf("at least one fact is required")
	}

	declared := map[string]bool{}
	seeded := map[string]bool{}
	for i, f := range s.Facts {
		if f.ID == "" {
			return fmt.Errorf("fact %d: id is required", i)
		}
		if f.Type == "" {
			return fmt.Errorf("fact %s: type is required", f.ID)
		}
		if declared[f.ID] {
			return fmt.Errorf("fact %s: id is declared twice", f.ID)
		}
		for role, preds := range f.Predecessors {
			for _, p := range preds {
				if !declared[p] {
					return fmt.Errorf("fact %s: role %s: %q is not declared before it", f.ID, role, p)
				}
				if f.Seed && !seeded[p] {
					return fmt.Errorf("fact %s: seed fact depends on %q, which is not a seed", f.ID, p)
				}
			}
		}
		declared[f.ID] = true
		seeded[f.ID] = f.Seed
	}
	for label, alias := range s.Given {
		if !declared[alias] {
			return fmt.Errorf("given %s: unknown fact %q", label, alias)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a, declared); err != nil {
			return fmt.Errorf("assertion %d: %w", i, err)
		}
	}
	return nil
}

func validateAssertion(a Assertion, declared map[string]bool) error {
	switch a.Type {
	case AssertResultCount:
	case AssertResultContains:
		if a.Value == nil {
			return fmt.Errorf("%s requires value", a.Type)
		}
	case AssertChangeCount:
		if a.Kind != "added" && a.Kind != "removed" {
			return fmt.Errorf("%s requires kind added or removed", a.Type)
		}
	case AssertNoChange:
		if !declared[a.Fact] {
			return fmt.Errorf("%s: unknown fact %q", a.Type, a.Fact)
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
