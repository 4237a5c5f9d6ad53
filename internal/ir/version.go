package ir

// Version constants for the journal format and engine.
const (
	// JournalVersion is the action journal schema version.
	JournalVersion = "1"

	// EngineVersion is the seed engine version.
	EngineVersion = "0.3.0"
)
