package codec

import "fmt"

// MalformedStreamError reports a structural fault in a record stream: bad
// JSON, an unknown record kind, or records out of phase order. Line numbers
// are one-based.
type MalformedStreamError struct {
	Line   int
	Reason string
}

func (e *MalformedStreamError) Error() string {
	return fmt.Sprintf("malformed replay stream at line %d: %s", e.Line, e.Reason)
}

// LimitError reports a decode ceiling breached while reading a stream. The
// decoder stops at the first breach and never buffers past its limits.
type LimitError struct {
	Kind  string
	Limit int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("replay stream exceeds %s limit of %d", e.Kind, e.Limit)
}

// UnsupportedFeatureError reports an encode request the trace layout cannot
// express, such as visual frames under schema v1.
type UnsupportedFeatureError struct {
	Feature       string
	SchemaVersion int
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("schema v%d cannot encode %s", e.SchemaVersion, e.Feature)
}
