package ir

// Version constants for the journal schema and engine.
const (
	// JournalVersion is the move journal record format version.
	JournalVersion = "1"

	// EngineVersion is the prioritize engine version.
	EngineVersion = "0.1.0"
)
