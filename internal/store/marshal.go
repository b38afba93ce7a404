package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/factsync/internal/ir"
)

// factData is the stored payload of a fact. The type and hash live in
// their own columns.
type factData struct {
	Fields       ir.IRObject                   `json:"fields"`
	Predecessors map[string][]ir.FactReference `json:"predecessors,omitempty"`
}

// marshalFact converts a fact's fields and predecessors to JSON TEXT.
// Fields use canonical JSON so stored payloads are byte-stable.
func marshalFact(f ir.Fact) (string, error) {
	fields := f.Fields
	if fields == nil {
		fields = ir.IRObject{}
	}
	canonical, err := ir.MarshalCanonical(fields)
	if err != nil {
		return "", fmt.Errorf("marshal fields: %w", err)
	}
	preds, err := json.Marshal(f.Predecessors)
	if err != nil {
		return "", fmt.Errorf("marshal predecessors: %w", err)
	}
	if len(f.Predecessors) == 0 {
		return `{"fields":` + string(canonical) + `}`, nil
	}
	return `{"fields":` + string(canonical) + `,"predecessors":` + string(preds) + `}`, nil
}

// unmarshalFact rebuilds a fact from its type column and payload.
// Uses ir.IRObject.UnmarshalJSON which handles large integers via
// json.Number to avoid float64 precision loss.
func unmarshalFact(factType, data string) (ir.Fact, error) {
	var d factData
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return ir.Fact{}, fmt.Errorf("unmarshal fact %s: %w", factType, err)
	}
	if d.Fields == nil {
		d.Fields = ir.IRObject{}
	}
	return ir.Fact{Type: factType, Fields: d.Fields, Predecessors: d.Predecessors}, nil
}
