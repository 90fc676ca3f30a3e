package replay

import (
	"errors"
	"fmt"

	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/content"
)

// ErrInvalidReplay marks a trace whose structural invariants do not hold.
var ErrInvalidReplay = errors.New("invalid replay")

// ErrReplayConsumed reports a second run attempt on the same runner. A replay
// is consumed exactly once per runner.
var ErrReplayConsumed = errors.New("replay already consumed by this runner")

// DigestMismatchError reports a replay run against the wrong content pack.
// Always fatal; checked before any simulation step executes.
type DigestMismatchError struct {
	PackID string
	Want   content.Digest
	Got    content.Digest
}

func (e *DigestMismatchError) Error() string {
	return fmt.Sprintf("content digest mismatch for pack %s: replay recorded %s/v%d, pack is %s/v%d",
		e.PackID, e.Want.Hash, e.Want.Version, e.Got.Hash, e.Got.Version)
}

// UnsupportedSnapshotError reports an initial snapshot this build cannot
// restore.
type UnsupportedSnapshotError struct {
	Version int
}

func (e *UnsupportedSnapshotError) Error() string {
	return fmt.Sprintf("unsupported snapshot version %d", e.Version)
}

// RuntimeMismatchError reports a restored runtime that disagrees with the
// recorded trace.
type RuntimeMismatchError struct {
	Field string
	Want  int64
	Got   int64
}

func (e *RuntimeMismatchError) Error() string {
	return fmt.Sprintf("restored runtime mismatch: %s recorded as %d, runtime reports %d", e.Field, e.Want, e.Got)
}

// CommandRejectedError reports a recorded command the restored runtime's
// queue refused.
type CommandRejectedError struct {
	Step        int64
	CommandType string
	RequestID   string
	PostWindow  bool
}

func (e *CommandRejectedError) Error() string {
	where := fmt.Sprintf("step %d", e.Step)
	if e.PostWindow {
		where = fmt.Sprintf("post-window (recorded step %d)", e.Step)
	}
	return fmt.Sprintf("runtime rejected %s command at %s", e.CommandType, where)
}

// ChecksumMismatchError reports a replay whose re-simulated end state
// diverged from the recorded one.
type ChecksumMismatchError struct {
	EndStep int64
	Want    string
	Got     string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("end-state checksum mismatch at step %d: recorded %s, computed %s", e.EndStep, e.Want, e.Got)
}

// FrameStream names one of the two visual streams.
type FrameStream string

const (
	FrameStreamViewModel      FrameStream = "viewModel"
	FrameStreamRenderCommands FrameStream = "renderCommandBuffer"
)

// FrameMismatchError reports a rebuilt render output whose hash diverged from
// the recorded frame.
type FrameMismatchError struct {
	Stream      FrameStream
	Step        int64
	RenderFrame int64
	Want        string
	Got         string
}

func (e *FrameMismatchError) Error() string {
	if e.Stream == FrameStreamRenderCommands {
		return fmt.Sprintf("%s hash mismatch at render frame %d (step %d): recorded %s, computed %s", e.Stream, e.RenderFrame, e.Step, e.Want, e.Got)
	}
	return fmt.Sprintf("%s hash mismatch at step %d: recorded %s, computed %s", e.Stream, e.Step, e.Want, e.Got)
}

// FrameAlignmentError reports frame consumption that fell out of the recorded
// step/render-frame order.
type FrameAlignmentError struct {
	Stream      FrameStream
	Step        int64
	RenderFrame int64
	Reason      string
}

func (e *FrameAlignmentError) Error() string {
	return fmt.Sprintf("%s frame misaligned at step %d: %s", e.Stream, e.Step, e.Reason)
}

// MissingFrameError reports an expected recorded frame that could not be
// rebuilt because no builder is installed for its stream.
type MissingFrameError struct {
	Stream FrameStream
	Step   int64
}

func (e *MissingFrameError) Error() string {
	return fmt.Sprintf("no %s builder installed but a frame is recorded at step %d", e.Stream, e.Step)
}

// IncompleteFrameStreamError reports a run that finished without consuming
// every recorded frame exactly once.
type IncompleteFrameStreamError struct {
	Stream   FrameStream
	Consumed int
	Recorded int
}

func (e *IncompleteFrameStreamError) Error() string {
	return fmt.Sprintf("%s stream incomplete: consumed %d of %d recorded frames", e.Stream, e.Consumed, e.Recorded)
}
