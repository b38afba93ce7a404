// Package ir provides the canonical runtime representation of facts for factsync.
//
// This package contains value types only. All other internal packages
// import ir; ir imports nothing internal. This keeps the fact model the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types in fact fields - use int64 for numbers
//   - Facts are immutable and content-addressed (type + hash)
//   - Hashes are computed over RFC 8785 canonical JSON with domain separation
//   - All JSON tags use snake_case
package ir
