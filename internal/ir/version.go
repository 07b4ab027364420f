package ir

// Version constants for the trace format and engine.
const (
	// TraceVersion is bumped whenever the persisted transition shape changes.
	TraceVersion = "1"

	// EngineVersion is the navsync engine version.
	EngineVersion = "0.1.0"
)
