// Package replay records, restores and verifies deterministic simulation
// runs. A Replay is the immutable trace of one run: the starting snapshot,
// every input command, the expected end-state checksum and, for schema v2,
// per-step render output hashes.
package replay

import (
	"fmt"

	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/command"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/content"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/runtime"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/snapshot"
)

const (
	// FileType is the fixed wire identifier for replay streams.
	FileType = "idle-engine-sim-replay"
	// SchemaV1 traces carry the simulation trace only.
	SchemaV1 = 1
	// SchemaV2 traces additionally carry visual frames.
	SchemaV2 = 2
)

// SupportedSchemaVersion reports whether this build understands the version.
func SupportedSchemaVersion(version int) bool {
	return version == SchemaV1 || version == SchemaV2
}

// Header identifies the trace format and the build that recorded it.
type Header struct {
	FileType       string `json:"fileType"`
	SchemaVersion  int    `json:"schemaVersion"`
	RecordedAt     int64  `json:"recordedAt"`
	RuntimeVersion string `json:"runtimeVersion"`
}

// Content pins the trace to the exact content pack it was recorded against.
type Content struct {
	PackID      string         `json:"packId"`
	PackVersion string         `json:"packVersion"`
	Digest      content.Digest `json:"digest"`
}

// Assets carries the optional asset manifest fingerprint.
type Assets struct {
	ManifestHash string `json:"manifestHash,omitempty"`
}

// Sim is the simulation trace proper.
type Sim struct {
	Wiring           runtime.FeatureFlags `json:"wiring"`
	StepSizeMs       int64                `json:"stepSizeMs"`
	StartStep        int64                `json:"startStep"`
	EndStep          int64                `json:"endStep"`
	InitialSnapshot  snapshot.Snapshot    `json:"initialSnapshot"`
	Commands         []command.Command    `json:"commands"`
	EndStateChecksum string               `json:"endStateChecksum"`
}

// ViewModelFrame records the hash (and value) of the view model compiled at
// one step.
type ViewModelFrame struct {
	Step      int64  `json:"step"`
	Hash      string `json:"hash"`
	ViewModel any    `json:"viewModel"`
}

// RenderCommandBuffer is one render output produced for a simulation step.
// The header fields identify which render frame and step produced it.
type RenderCommandBuffer struct {
	RenderFrame int64 `json:"renderFrame"`
	Step        int64 `json:"step"`
	Commands    any   `json:"commands,omitempty"`
}

// RenderCommandBufferFrame records the hash (and buffer) of one render frame.
type RenderCommandBufferFrame struct {
	RenderFrame int64               `json:"renderFrame"`
	Step        int64               `json:"step"`
	Hash        string              `json:"hash"`
	RCB         RenderCommandBuffer `json:"rcb"`
}

// Frames holds the v2 visual streams. Both are strictly increasing: view
// models by step, render command buffers by render frame.
type Frames struct {
	ViewModels           []ViewModelFrame           `json:"viewModels"`
	RenderCommandBuffers []RenderCommandBufferFrame `json:"rcbs"`
}

// Replay is a fully immutable trace value. It is created once, by a Recorder
// or by decoding a stream, and consumed exactly once by a Runner; nothing in
// this package mutates it after construction.
type Replay struct {
	Header  Header  `json:"header"`
	Content Content `json:"content"`
	Assets  Assets  `json:"assets"`
	Sim     Sim     `json:"sim"`
	Frames  *Frames `json:"frames,omitempty"`
}

// HasFrames reports whether the trace carries any visual frames.
func (r Replay) HasFrames() bool {
	if r.Frames == nil {
		return false
	}
	return len(r.Frames.ViewModels) > 0 || len(r.Frames.RenderCommandBuffers) > 0
}

// Validate checks the structural invariants every well-formed replay holds.
// A trace failing validation is never simulated.
func (r Replay) Validate() error {
	if r.Header.FileType != FileType {
		return fmt.Errorf("%w: unknown file type %q", ErrInvalidReplay, r.Header.FileType)
	}
	if !SupportedSchemaVersion(r.Header.SchemaVersion) {
		return fmt.Errorf("%w: unsupported schema version %d", ErrInvalidReplay, r.Header.SchemaVersion)
	}
	if r.Header.SchemaVersion == SchemaV1 && r.HasFrames() {
		return fmt.Errorf("%w: schema v1 trace carries visual frames", ErrInvalidReplay)
	}
	if r.Sim.StepSizeMs <= 0 {
		return fmt.Errorf("%w: non-positive step size %d", ErrInvalidReplay, r.Sim.StepSizeMs)
	}
	if r.Sim.StartStep != r.Sim.InitialSnapshot.Runtime.Step {
		return fmt.Errorf("%w: start step %d disagrees with snapshot step %d", ErrInvalidReplay, r.Sim.StartStep, r.Sim.InitialSnapshot.Runtime.Step)
	}
	if r.Sim.StepSizeMs != r.Sim.InitialSnapshot.Runtime.StepSizeMs {
		return fmt.Errorf("%w: step size %dms disagrees with snapshot step size %dms", ErrInvalidReplay, r.Sim.StepSizeMs, r.Sim.InitialSnapshot.Runtime.StepSizeMs)
	}
	if r.Sim.EndStep < r.Sim.StartStep {
		return fmt.Errorf("%w: end step %d before start step %d", ErrInvalidReplay, r.Sim.EndStep, r.Sim.StartStep)
	}
	for i, cmd := range r.Sim.Commands {
		if cmd.Step < r.Sim.StartStep {
			return fmt.Errorf("%w: command %d scheduled at step %d before start step %d", ErrInvalidReplay, i, cmd.Step, r.Sim.StartStep)
		}
	}
	if r.Frames != nil {
		if err := validateFrameOrder(r.Frames); err != nil {
			return err
		}
	}
	return nil
}

func validateFrameOrder(frames *Frames) error {
	for i := 1; i < len(frames.ViewModels); i++ {
		prev, next := frames.ViewModels[i-1].Step, frames.ViewModels[i].Step
		if next <= prev {
			return fmt.Errorf("%w: view-model frames out of order at index %d (step %d after %d)", ErrInvalidReplay, i, next, prev)
		}
	}
	for i := 1; i < len(frames.RenderCommandBuffers); i++ {
		prev, next := frames.RenderCommandBuffers[i-1], frames.RenderCommandBuffers[i]
		if next.RenderFrame <= prev.RenderFrame {
			return fmt.Errorf("%w: rcb frames out of order at index %d (render frame %d after %d)", ErrInvalidReplay, i, next.RenderFrame, prev.RenderFrame)
		}
		if next.Step < prev.Step {
			return fmt.Errorf("%w: rcb frames out of order at index %d (step %d after %d)", ErrInvalidReplay, i, next.Step, prev.Step)
		}
	}
	for i, frame := range frames.RenderCommandBuffers {
		if frame.RCB.RenderFrame != frame.RenderFrame || frame.RCB.Step != frame.Step {
			return fmt.Errorf("%w: rcb frame %d header (%d,%d) disagrees with buffer header (%d,%d)", ErrInvalidReplay, i, frame.RenderFrame, frame.Step, frame.RCB.RenderFrame, frame.RCB.Step)
		}
	}
	return nil
}
