// Package replaydiag defines the diagnostic event vocabulary the replay core
// emits before a failure propagates to the caller.
package replaydiag

import (
	"context"

	"github.com/hansjm10/Idle-Game-Engine-sub003/logging"
)

const (
	// EventInvalidTrace is emitted when a trace fails structural validation.
	EventInvalidTrace logging.EventType = "replay.invalid_trace"
	// EventDigestMismatch is emitted when a replay targets a different content pack.
	EventDigestMismatch logging.EventType = "replay.digest_mismatch"
	// EventRuntimeMismatch is emitted when a restored runtime disagrees with the recorded trace.
	EventRuntimeMismatch logging.EventType = "replay.runtime_mismatch"
	// EventCommandRejected is emitted when the restored runtime's queue refuses a recorded command.
	EventCommandRejected logging.EventType = "replay.command_rejected"
	// EventChecksumMismatch is emitted when the end-state checksum gate fails.
	EventChecksumMismatch logging.EventType = "replay.checksum_mismatch"
	// EventFrameMismatch is emitted when a recorded frame hash disagrees with the rebuilt output.
	EventFrameMismatch logging.EventType = "replay.frame_mismatch"
	// EventFrameMisaligned is emitted when frame consumption falls out of step order.
	EventFrameMisaligned logging.EventType = "replay.frame_misaligned"
	// EventIncompleteFrameStream is emitted when a run ends with unconsumed recorded frames.
	EventIncompleteFrameStream logging.EventType = "replay.incomplete_frame_stream"
	// EventReplayCompleted is emitted after a successful verification run.
	EventReplayCompleted logging.EventType = "replay.completed"
	// EventDecodeFailed is emitted when a record stream fails to decode.
	EventDecodeFailed logging.EventType = "codec.decode_failed"
	// EventStreamLimitExceeded is emitted when a stream breaches a decode ceiling.
	EventStreamLimitExceeded logging.EventType = "codec.stream_limit_exceeded"
)

// DigestMismatchPayload carries both digests for offline comparison.
type DigestMismatchPayload struct {
	PackID       string `json:"packId"`
	WantVersion  int    `json:"wantVersion"`
	WantHash     string `json:"wantHash"`
	FoundVersion int    `json:"foundVersion"`
	FoundHash    string `json:"foundHash"`
}

// ChecksumMismatchPayload carries the recorded and computed checksums.
type ChecksumMismatchPayload struct {
	EndStep  int64  `json:"endStep"`
	Want     string `json:"want"`
	Computed string `json:"computed"`
}

// CommandRejectedPayload identifies the refused command.
type CommandRejectedPayload struct {
	Step        int64  `json:"step"`
	CommandType string `json:"commandType"`
	RequestID   string `json:"requestId,omitempty"`
	PostWindow  bool   `json:"postWindow,omitempty"`
}

// FrameMismatchPayload identifies the diverging frame.
type FrameMismatchPayload struct {
	Stream      string `json:"stream"`
	Step        int64  `json:"step"`
	RenderFrame int64  `json:"renderFrame,omitempty"`
	Want        string `json:"want"`
	Got         string `json:"got"`
}

// StreamLimitPayload reports which ceiling was breached.
type StreamLimitPayload struct {
	Kind  string `json:"kind"`
	Limit int    `json:"limit"`
}

// Emit publishes an error-severity replay diagnostic.
func Emit(ctx context.Context, pub logging.Publisher, eventType logging.EventType, step int64, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Step:     step,
		Severity: logging.SeverityError,
		Category: logging.CategoryReplay,
		Payload:  payload,
	})
}

// EmitInfo publishes an info-severity replay diagnostic.
func EmitInfo(ctx context.Context, pub logging.Publisher, eventType logging.EventType, step int64, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Step:     step,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryReplay,
		Payload:  payload,
	})
}
