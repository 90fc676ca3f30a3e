package replay

import (
	"fmt"

	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/command"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/content"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/runtime"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/snapshot"
	"github.com/hansjm10/Idle-Game-Engine-sub003/logging"
)

// RecorderConfig tunes how a live run is observed.
type RecorderConfig struct {
	// SchemaVersion selects the trace layout; zero means SchemaV1.
	SchemaVersion  int
	RuntimeVersion string
	ManifestHash   string
	Flags          runtime.FeatureFlags
	Clock          logging.Clock

	// HashViewModel and HashRenderCommands are the renderer collaborators
	// used to fingerprint v2 frames.
	HashViewModel      func(any) string
	HashRenderCommands func(RenderCommandBuffer) string
}

// Recorder observes one live run and produces an immutable Replay. It never
// reorders or deduplicates: commands are appended exactly as recorded.
type Recorder struct {
	cfg    RecorderConfig
	pack   content.Pack
	handle runtime.Handle
	clock  logging.Clock

	start    snapshot.Snapshot
	commands []command.Command
	frames   Frames
}

// NewRecorder captures the run's starting snapshot and returns a recorder
// bound to it.
func NewRecorder(pack content.Pack, handle runtime.Handle, cfg RecorderConfig) (*Recorder, error) {
	if handle == nil {
		return nil, fmt.Errorf("recorder requires a live run handle")
	}
	if cfg.SchemaVersion == 0 {
		cfg.SchemaVersion = SchemaV1
	}
	if !SupportedSchemaVersion(cfg.SchemaVersion) {
		return nil, fmt.Errorf("unsupported schema version %d", cfg.SchemaVersion)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}
	start, err := captureState(handle, clock)
	if err != nil {
		return nil, fmt.Errorf("capture start snapshot: %w", err)
	}
	return &Recorder{
		cfg:    cfg,
		pack:   pack,
		handle: handle,
		clock:  clock,
		start:  start,
	}, nil
}

// StartStep reports the step the recording began on.
func (r *Recorder) StartStep() int64 {
	return r.start.Runtime.Step
}

// RecordCommand normalizes the command and appends it to the trace in
// arrival order.
func (r *Recorder) RecordCommand(cmd command.Command) error {
	normalized, err := command.Normalize(cmd)
	if err != nil {
		return err
	}
	r.commands = append(r.commands, normalized)
	return nil
}

// RecordViewModelFrame fingerprints the view model compiled at the given
// step and appends it to the v2 frame stream.
func (r *Recorder) RecordViewModelFrame(step int64, viewModel any) error {
	if r.cfg.SchemaVersion != SchemaV2 {
		return fmt.Errorf("view-model frames require schema v2, recorder uses v%d", r.cfg.SchemaVersion)
	}
	if r.cfg.HashViewModel == nil {
		return fmt.Errorf("recorder has no view-model hash collaborator")
	}
	if n := len(r.frames.ViewModels); n > 0 && step <= r.frames.ViewModels[n-1].Step {
		return fmt.Errorf("view-model frame step %d not after previous step %d", step, r.frames.ViewModels[n-1].Step)
	}
	cloned, err := command.CloneValue(viewModel)
	if err != nil {
		return fmt.Errorf("record view-model frame: %w", err)
	}
	r.frames.ViewModels = append(r.frames.ViewModels, ViewModelFrame{
		Step:      step,
		Hash:      r.cfg.HashViewModel(cloned),
		ViewModel: cloned,
	})
	return nil
}

// RecordRenderCommandBuffer fingerprints one render command buffer and
// appends it to the v2 frame stream.
func (r *Recorder) RecordRenderCommandBuffer(buffer RenderCommandBuffer) error {
	if r.cfg.SchemaVersion != SchemaV2 {
		return fmt.Errorf("rcb frames require schema v2, recorder uses v%d", r.cfg.SchemaVersion)
	}
	if r.cfg.HashRenderCommands == nil {
		return fmt.Errorf("recorder has no render-command hash collaborator")
	}
	if n := len(r.frames.RenderCommandBuffers); n > 0 {
		last := r.frames.RenderCommandBuffers[n-1]
		if buffer.RenderFrame <= last.RenderFrame {
			return fmt.Errorf("rcb render frame %d not after previous %d", buffer.RenderFrame, last.RenderFrame)
		}
		if buffer.Step < last.Step {
			return fmt.Errorf("rcb frame step %d before previous step %d", buffer.Step, last.Step)
		}
	}
	clonedCommands, err := command.CloneValue(buffer.Commands)
	if err != nil {
		return fmt.Errorf("record rcb frame: %w", err)
	}
	cloned := RenderCommandBuffer{
		RenderFrame: buffer.RenderFrame,
		Step:        buffer.Step,
		Commands:    clonedCommands,
	}
	r.frames.RenderCommandBuffers = append(r.frames.RenderCommandBuffers, RenderCommandBufferFrame{
		RenderFrame: cloned.RenderFrame,
		Step:        cloned.Step,
		Hash:        r.cfg.HashRenderCommands(cloned),
		RCB:         cloned,
	})
	return nil
}

// Export captures an end snapshot and assembles the full trace. Calling it
// again recaptures end state: the live run may have advanced, so Export is
// deliberately not idempotent.
func (r *Recorder) Export() (Replay, error) {
	end, err := captureState(r.handle, r.clock)
	if err != nil {
		return Replay{}, fmt.Errorf("capture end snapshot: %w", err)
	}
	checksum, err := snapshot.Checksum(end)
	if err != nil {
		return Replay{}, fmt.Errorf("checksum end snapshot: %w", err)
	}
	initial, err := r.start.Clone()
	if err != nil {
		return Replay{}, fmt.Errorf("clone start snapshot: %w", err)
	}

	rep := Replay{
		Header: Header{
			FileType:       FileType,
			SchemaVersion:  r.cfg.SchemaVersion,
			RecordedAt:     r.clock.Now().UnixMilli(),
			RuntimeVersion: r.cfg.RuntimeVersion,
		},
		Content: Content{
			PackID:      r.pack.Metadata.ID,
			PackVersion: r.pack.Metadata.Version,
			Digest:      r.pack.Digest,
		},
		Assets: Assets{ManifestHash: r.cfg.ManifestHash},
		Sim: Sim{
			Wiring:           r.cfg.Flags,
			StepSizeMs:       r.start.Runtime.StepSizeMs,
			StartStep:        r.start.Runtime.Step,
			EndStep:          end.Runtime.Step,
			InitialSnapshot:  initial,
			Commands:         append([]command.Command(nil), r.commands...),
			EndStateChecksum: checksum,
		},
	}
	if r.cfg.SchemaVersion == SchemaV2 {
		rep.Frames = &Frames{
			ViewModels:           append([]ViewModelFrame(nil), r.frames.ViewModels...),
			RenderCommandBuffers: append([]RenderCommandBufferFrame(nil), r.frames.RenderCommandBuffers...),
		}
	}
	if err := rep.Validate(); err != nil {
		return Replay{}, err
	}
	return rep, nil
}

func captureState(handle runtime.Handle, clock logging.Clock) (snapshot.Snapshot, error) {
	meta := snapshot.RuntimeMeta{
		Step:       handle.CurrentStep(),
		StepSizeMs: handle.StepSizeMs(),
	}
	return snapshot.Capture(meta, handle.StateSource(), clock.Now().UnixMilli())
}
