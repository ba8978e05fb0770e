package ir

// Version constants for the statement schema and the engine.
const (
	// SchemaVersion is the version of the fixed statement vocabulary layout.
	SchemaVersion = "1"

	// EngineVersion is the mdrepo engine version.
	EngineVersion = "0.1.0"
)
