package ir

// Version constants for the command schema and engine.
const (
	// SchemaVersion is the command schema version written to the run journal.
	SchemaVersion = "1"

	// EngineVersion is the protocol engine version.
	EngineVersion = "0.1.0"
)
