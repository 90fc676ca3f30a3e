package replay

import (
	"context"
	"fmt"

	"github.com/hansjm10/Idle-Game-Engine-sub003/logging"
	"github.com/hansjm10/Idle-Game-Engine-sub003/logging/replaydiag"
)

// VisualHooks are the renderer collaborators a visual run rebuilds frames
// with. Builders may suspend (they take a context); the runner awaits each
// one before the next step begins, so callbacks never overlap.
type VisualHooks struct {
	BuildViewModel      func(ctx context.Context, step int64) (any, error)
	HashViewModel       func(any) string
	BuildRenderCommands func(ctx context.Context, renderFrame, step int64) (RenderCommandBuffer, error)
	HashRenderCommands  func(RenderCommandBuffer) string
}

// VisualResult extends Result with the number of frames validated per stream.
type VisualResult struct {
	Result
	ViewModelFramesValidated int
	RCBFramesValidated       int
}

// VisualRunner re-executes a replay and additionally verifies that every
// recorded render output is reproduced hash-for-hash, in order, exactly once.
type VisualRunner struct {
	runner *Runner
	hooks  VisualHooks

	viewModels []ViewModelFrame
	rcbs       []RenderCommandBufferFrame
	vmCursor   int
	rcbCursor  int
}

// NewVisualRunner constructs a visual runner in the Idle state.
func NewVisualRunner(cfg RunnerConfig, hooks VisualHooks) *VisualRunner {
	return &VisualRunner{runner: NewRunner(cfg), hooks: hooks}
}

// Run behaves like Runner.Run and additionally validates the v2 frame
// streams per step.
func (v *VisualRunner) Run(ctx context.Context, rep Replay) (VisualResult, error) {
	if rep.Frames != nil {
		v.viewModels = rep.Frames.ViewModels
		v.rcbs = rep.Frames.RenderCommandBuffers
	}
	if len(v.viewModels) > 0 && (v.hooks.BuildViewModel == nil || v.hooks.HashViewModel == nil) {
		missing := &MissingFrameError{Stream: FrameStreamViewModel, Step: v.viewModels[0].Step}
		return VisualResult{}, v.runner.fail(ctx, replaydiag.EventFrameMismatch, missing.Step, nil, missing)
	}
	if len(v.rcbs) > 0 && (v.hooks.BuildRenderCommands == nil || v.hooks.HashRenderCommands == nil) {
		missing := &MissingFrameError{Stream: FrameStreamRenderCommands, Step: v.rcbs[0].Step}
		return VisualResult{}, v.runner.fail(ctx, replaydiag.EventFrameMismatch, missing.Step, nil, missing)
	}

	v.runner.afterTick = v.validateStep
	v.runner.afterWindow = v.validateStreamsConsumed

	result, err := v.runner.Run(ctx, rep)
	if err != nil {
		return VisualResult{}, err
	}
	return VisualResult{
		Result:                   result,
		ViewModelFramesValidated: v.vmCursor,
		RCBFramesValidated:       v.rcbCursor,
	}, nil
}

func (v *VisualRunner) validateStep(ctx context.Context, step int64) error {
	if err := v.validateViewModel(ctx, step); err != nil {
		return err
	}
	return v.validateRenderCommands(ctx, step)
}

func (v *VisualRunner) validateViewModel(ctx context.Context, step int64) error {
	if v.vmCursor >= len(v.viewModels) {
		return nil
	}
	expected := v.viewModels[v.vmCursor]
	if expected.Step > step {
		return nil
	}
	if expected.Step < step {
		misaligned := &FrameAlignmentError{
			Stream: FrameStreamViewModel,
			Step:   step,
			Reason: fmt.Sprintf("recorded frame for step %d was never consumed", expected.Step),
		}
		return v.failFrame(ctx, replaydiag.EventFrameMisaligned, misaligned.Step, nil, misaligned)
	}

	viewModel, err := v.hooks.BuildViewModel(ctx, step)
	if err != nil {
		return v.failFrame(ctx, replaydiag.EventFrameMismatch, step, nil, fmt.Errorf("build view model at step %d: %w", step, err))
	}
	got := v.hooks.HashViewModel(viewModel)
	if got != expected.Hash {
		mismatch := &FrameMismatchError{Stream: FrameStreamViewModel, Step: step, Want: expected.Hash, Got: got}
		payload := replaydiag.FrameMismatchPayload{Stream: string(FrameStreamViewModel), Step: step, Want: expected.Hash, Got: got}
		return v.failFrame(ctx, replaydiag.EventFrameMismatch, step, payload, mismatch)
	}
	v.vmCursor++
	return nil
}

func (v *VisualRunner) validateRenderCommands(ctx context.Context, step int64) error {
	for v.rcbCursor < len(v.rcbs) {
		expected := v.rcbs[v.rcbCursor]
		if expected.Step > step {
			return nil
		}
		if expected.Step < step {
			misaligned := &FrameAlignmentError{
				Stream:      FrameStreamRenderCommands,
				Step:        step,
				RenderFrame: expected.RenderFrame,
				Reason:      fmt.Sprintf("recorded render frame %d for step %d was never consumed", expected.RenderFrame, expected.Step),
			}
			return v.failFrame(ctx, replaydiag.EventFrameMisaligned, misaligned.Step, nil, misaligned)
		}

		buffer, err := v.hooks.BuildRenderCommands(ctx, expected.RenderFrame, step)
		if err != nil {
			return v.failFrame(ctx, replaydiag.EventFrameMismatch, step, nil, fmt.Errorf("build render commands at step %d: %w", step, err))
		}
		// The produced buffer's embedded header must match the recorded
		// frame header; a disagreement is a fatal alignment error, never
		// silently skipped.
		if buffer.RenderFrame != expected.RenderFrame || buffer.Step != expected.Step {
			misaligned := &FrameAlignmentError{
				Stream:      FrameStreamRenderCommands,
				Step:        step,
				RenderFrame: expected.RenderFrame,
				Reason: fmt.Sprintf("buffer header (%d,%d) disagrees with recorded frame (%d,%d)",
					buffer.RenderFrame, buffer.Step, expected.RenderFrame, expected.Step),
			}
			return v.failFrame(ctx, replaydiag.EventFrameMisaligned, step, nil, misaligned)
		}
		got := v.hooks.HashRenderCommands(buffer)
		if got != expected.Hash {
			mismatch := &FrameMismatchError{
				Stream:      FrameStreamRenderCommands,
				Step:        step,
				RenderFrame: expected.RenderFrame,
				Want:        expected.Hash,
				Got:         got,
			}
			payload := replaydiag.FrameMismatchPayload{
				Stream:      string(FrameStreamRenderCommands),
				Step:        step,
				RenderFrame: expected.RenderFrame,
				Want:        expected.Hash,
				Got:         got,
			}
			return v.failFrame(ctx, replaydiag.EventFrameMismatch, step, payload, mismatch)
		}
		v.rcbCursor++
	}
	return nil
}

// validateStreamsConsumed runs after the simulated window: both cursors must
// have consumed every recorded frame exactly once.
func (v *VisualRunner) validateStreamsConsumed(ctx context.Context) error {
	if v.vmCursor != len(v.viewModels) {
		incomplete := &IncompleteFrameStreamError{Stream: FrameStreamViewModel, Consumed: v.vmCursor, Recorded: len(v.viewModels)}
		return v.failFrame(ctx, replaydiag.EventIncompleteFrameStream, v.viewModels[v.vmCursor].Step, nil, incomplete)
	}
	if v.rcbCursor != len(v.rcbs) {
		incomplete := &IncompleteFrameStreamError{Stream: FrameStreamRenderCommands, Consumed: v.rcbCursor, Recorded: len(v.rcbs)}
		return v.failFrame(ctx, replaydiag.EventIncompleteFrameStream, v.rcbs[v.rcbCursor].Step, nil, incomplete)
	}
	return nil
}

func (v *VisualRunner) failFrame(ctx context.Context, eventType logging.EventType, step int64, payload any, err error) error {
	return v.runner.fail(ctx, eventType, step, payload, err)
}
