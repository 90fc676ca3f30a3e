package command

import (
	"encoding/json"
	"fmt"
)

// Priority ranks the origin of a simulation input. The set is closed: every
// comparison site switches exhaustively over the three values.
type Priority uint8

const (
	PriorityPlayer Priority = iota
	PriorityAutomation
	PrioritySystem
)

const (
	priorityPlayerName     = "PLAYER"
	priorityAutomationName = "AUTOMATION"
	prioritySystemName     = "SYSTEM"
)

// String returns the wire name for the priority.
func (p Priority) String() string {
	switch p {
	case PriorityPlayer:
		return priorityPlayerName
	case PriorityAutomation:
		return priorityAutomationName
	case PrioritySystem:
		return prioritySystemName
	}
	return fmt.Sprintf("Priority(%d)", uint8(p))
}

// Valid reports whether the priority is one of the recognized values.
func (p Priority) Valid() bool {
	switch p {
	case PriorityPlayer, PriorityAutomation, PrioritySystem:
		return true
	}
	return false
}

// ParsePriority maps a wire name back to its priority value.
func ParsePriority(name string) (Priority, bool) {
	switch name {
	case priorityPlayerName:
		return PriorityPlayer, true
	case priorityAutomationName:
		return PriorityAutomation, true
	case prioritySystemName:
		return PrioritySystem, true
	}
	return 0, false
}

// MarshalJSON encodes the priority as its wire name.
func (p Priority) MarshalJSON() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %d", ErrMalformedCommand, uint8(p))
	}
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes a wire name into a priority.
func (p *Priority) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("%w: priority: %v", ErrMalformedCommand, err)
	}
	parsed, ok := ParsePriority(name)
	if !ok {
		return fmt.Errorf("%w: unknown priority %q", ErrMalformedCommand, name)
	}
	*p = parsed
	return nil
}

// Command is the atomic simulation input captured by a replay. Once
// normalized it is treated as immutable: the payload is a private structural
// copy and callers never mutate a recorded command.
type Command struct {
	Type      string   `json:"type"`
	Priority  Priority `json:"priority"`
	Payload   any      `json:"payload,omitempty"`
	Timestamp int64    `json:"timestamp"`
	Step      int64    `json:"step"`
	RequestID string   `json:"requestId,omitempty"`
}

// Normalize validates the candidate and returns a copy whose payload has been
// structurally cloned. The returned command shares no mutable state with the
// input.
func Normalize(candidate Command) (Command, error) {
	if candidate.Type == "" {
		return Command{}, fmt.Errorf("%w: empty type", ErrMalformedCommand)
	}
	if !candidate.Priority.Valid() {
		return Command{}, fmt.Errorf("%w: unknown priority %d", ErrMalformedCommand, uint8(candidate.Priority))
	}
	if candidate.Step < 0 {
		return Command{}, fmt.Errorf("%w: negative step %d", ErrMalformedCommand, candidate.Step)
	}
	payload, err := CloneValue(candidate.Payload)
	if err != nil {
		return Command{}, err
	}
	normalized := candidate
	normalized.Payload = payload
	return normalized, nil
}

// Clone returns a copy of the command with a freshly cloned payload. The
// command must already be normalized; a payload that fails to clone reports
// the same unsupported-payload error Normalize would.
func (c Command) Clone() (Command, error) {
	return Normalize(c)
}
