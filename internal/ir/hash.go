package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
)

// DomainFact is the hash domain for fact identity.
// The version suffix leaves room for a future algorithm migration.
const DomainFact = "factsync/fact/v" + FactFormatVersion

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalFact builds the object that is hashed for a fact:
//
//	{"fields": {...}, "predecessors": {"role": [{"hash":..., "type":...}]}, "type": "..."}
//
// Predecessor lists are sorted by (type, hash) so the order in which a
// caller supplied them does not change identity.
func canonicalFact(f Fact) IRObject {
	preds := make(IRObject, len(f.Predecessors))
	for role, refs := range f.Predecessors {
		sorted := slices.Clone(refs)
		slices.SortFunc(sorted, CompareRefs)
		sorted = slices.Compact(sorted)
		arr := make(IRArray, len(sorted))
		for i, r := range sorted {
			arr[i] = IRObject{"type": IRString(r.Type), "hash": IRString(r.Hash)}
		}
		preds[role] = arr
	}
	fields := f.Fields
	if fields == nil {
		fields = IRObject{}
	}
	return IRObject{
		"type":         IRString(f.Type),
		"fields":       fields,
		"predecessors": preds,
	}
}

// HashFact computes the content hash of a fact. Two facts with the same
// type, fields, and predecessors always hash identically.
func HashFact(f Fact) (string, error) {
	if f.Type == "" {
		return "", fmt.Errorf("HashFact: fact type is required")
	}
	canonical, err := MarshalCanonical(canonicalFact(f))
	if err != nil {
		return "", fmt.Errorf("HashFact: failed to marshal %s: %w", f.Type, err)
	}
	return hashWithDomain(DomainFact, canonical), nil
}

// MustHashFact is like HashFact but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustHashFact(f Fact) string {
	h, err := HashFact(f)
	if err != nil {
		panic(err)
	}
	return h
}
