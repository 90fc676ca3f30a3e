package command

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNormalizeValidCommand(t *testing.T) {
	candidate := Command{
		Type:      "COLLECT_RESOURCE",
		Priority:  PriorityPlayer,
		Payload:   map[string]any{"resourceId": "gold", "amount": 5},
		Timestamp: 1200,
		Step:      1,
		RequestID: "req-1",
	}
	normalized, err := Normalize(candidate)
	if err != nil {
		t.Fatalf("expected normalize to succeed: %v", err)
	}
	if normalized.Type != candidate.Type || normalized.Step != candidate.Step {
		t.Fatalf("normalize mutated scalar fields: %+v", normalized)
	}
	payload, ok := normalized.Payload.(map[string]any)
	if !ok {
		t.Fatalf("expected cloned map payload, got %T", normalized.Payload)
	}
	if payload["amount"] != float64(5) {
		t.Fatalf("expected numeric payload member widened to float64, got %#v", payload["amount"])
	}
	// The clone must not alias the candidate payload.
	candidate.Payload.(map[string]any)["amount"] = 99
	if payload["amount"] != float64(5) {
		t.Fatalf("normalized payload aliases the candidate payload")
	}
}

func TestNormalizeRejectsMalformedCommands(t *testing.T) {
	cases := []struct {
		name      string
		candidate Command
	}{
		{"empty type", Command{Priority: PriorityPlayer}},
		{"unknown priority", Command{Type: "TICK", Priority: Priority(42)}},
		{"negative step", Command{Type: "TICK", Priority: PrioritySystem, Step: -1}},
	}
	for _, tc := range cases {
		if _, err := Normalize(tc.candidate); !errors.Is(err, ErrMalformedCommand) {
			t.Fatalf("%s: expected ErrMalformedCommand, got %v", tc.name, err)
		}
	}
}

func TestPriorityRoundTrip(t *testing.T) {
	for _, priority := range []Priority{PriorityPlayer, PriorityAutomation, PrioritySystem} {
		data, err := json.Marshal(priority)
		if err != nil {
			t.Fatalf("marshal %v: %v", priority, err)
		}
		var decoded Priority
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if decoded != priority {
			t.Fatalf("expected %v after round trip, got %v", priority, decoded)
		}
	}
	var decoded Priority
	if err := json.Unmarshal([]byte(`"URGENT"`), &decoded); !errors.Is(err, ErrMalformedCommand) {
		t.Fatalf("expected unknown priority name to fail, got %v", err)
	}
}
