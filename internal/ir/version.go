package ir

// Version constants for the fact format and engine.
const (
	// FactFormatVersion is the canonical fact encoding version.
	FactFormatVersion = "1"

	// EngineVersion is the factsync engine version.
	EngineVersion = "0.1.0"
)
