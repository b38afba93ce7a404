package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/factsync/internal/ir"
)

// Snapshot renders a result for golden comparison:
//
//	scenario: open_offices
//	steps: 5
//	trace:
//	  sfo: + "" {company=acme, office=sfo}
//	results: ["sfo"]
//
// Facts appear by alias, so the snapshot does not depend on content
// hashes.
func Snapshot(name string, result *Result) ([]byte, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "scenario: %s\n", name)
	fmt.Fprintf(&b, "steps: %d\n", result.Steps)
	b.WriteString("trace:\n")
	for _, e := range result.Trace {
		fmt.Fprintf(&b, "  %s\n", e)
	}
	results, err := ir.MarshalIRValue(result.Results)
	if err != nil {
		return nil, fmt.Errorf("marshal results: %w", err)
	}
	fmt.Fprintf(&b, "results: %s\n", results)
	return b.Bytes(), nil
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, snapshot)
	return nil
}
