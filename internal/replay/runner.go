package replay

import (
	"context"
	"fmt"

	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/content"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/runtime"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/schedule"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/snapshot"
	"github.com/hansjm10/Idle-Game-Engine-sub003/logging"
	"github.com/hansjm10/Idle-Game-Engine-sub003/logging/replaydiag"
)

// runState tracks the runner's progress through a replay. Failed absorbs
// every other state: nothing is retried and nothing resumes.
type runState int

const (
	stateIdle runState = iota
	stateDigestChecked
	stateSnapshotRestored
	stateSimulating
	stateCompleted
	stateFailed
)

// RunnerConfig wires a runner to its collaborators. Restore is required;
// Publisher and Clock default to no-op and the system clock.
type RunnerConfig struct {
	Pack      content.Pack
	Restore   runtime.RestoreFunc
	Publisher logging.Publisher
	Clock     logging.Clock
	ReplayID  string
}

// Result is the outcome of a successful replay run.
type Result struct {
	Snapshot snapshot.Snapshot
	Checksum string
}

// Runner restores a run from a trace and re-executes it, verifying final
// state equivalence. A runner consumes exactly one replay.
type Runner struct {
	cfg   RunnerConfig
	pub   logging.Publisher
	clock logging.Clock
	state runState

	// stepHooks extend the Simulating state; the visual runner installs them.
	afterTick   func(ctx context.Context, step int64) error
	afterWindow func(ctx context.Context) error
}

// NewRunner constructs a runner in the Idle state.
func NewRunner(cfg RunnerConfig) *Runner {
	pub := cfg.Publisher
	if pub == nil {
		pub = logging.NopPublisher()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}
	return &Runner{cfg: cfg, pub: pub, clock: clock, state: stateIdle}
}

// Run re-executes the replay against the configured content pack. Every
// detected inconsistency is fatal: the runner emits one diagnostic event,
// enters the Failed state and returns a typed error.
func (r *Runner) Run(ctx context.Context, rep Replay) (Result, error) {
	if r.state != stateIdle {
		return Result{}, ErrReplayConsumed
	}
	if r.cfg.Restore == nil {
		r.state = stateFailed
		return Result{}, fmt.Errorf("runner requires a restore collaborator")
	}
	if err := rep.Validate(); err != nil {
		return Result{}, r.fail(ctx, replaydiag.EventInvalidTrace, rep.Sim.StartStep, nil, err)
	}

	// Idle -> DigestChecked: gate on the content pack before any simulation.
	if !r.cfg.Pack.Digest.Equal(rep.Content.Digest) {
		err := &DigestMismatchError{
			PackID: rep.Content.PackID,
			Want:   rep.Content.Digest,
			Got:    r.cfg.Pack.Digest,
		}
		payload := replaydiag.DigestMismatchPayload{
			PackID:       rep.Content.PackID,
			WantVersion:  rep.Content.Digest.Version,
			WantHash:     rep.Content.Digest.Hash,
			FoundVersion: r.cfg.Pack.Digest.Version,
			FoundHash:    r.cfg.Pack.Digest.Hash,
		}
		return Result{}, r.fail(ctx, replaydiag.EventDigestMismatch, rep.Sim.StartStep, payload, err)
	}
	r.state = stateDigestChecked

	// DigestChecked -> SnapshotRestored.
	handle, err := r.restore(ctx, rep)
	if err != nil {
		return Result{}, err
	}
	r.state = stateSnapshotRestored

	// SnapshotRestored -> Simulating.
	r.state = stateSimulating
	if err := r.simulate(ctx, rep, handle); err != nil {
		return Result{}, err
	}

	// Simulating -> Completed: the end-state checksum gate.
	end, err := captureState(handle, r.clock)
	if err != nil {
		return Result{}, r.fail(ctx, replaydiag.EventChecksumMismatch, rep.Sim.EndStep, nil, fmt.Errorf("capture end snapshot: %w", err))
	}
	checksum, err := snapshot.Checksum(end)
	if err != nil {
		return Result{}, r.fail(ctx, replaydiag.EventChecksumMismatch, rep.Sim.EndStep, nil, fmt.Errorf("checksum end snapshot: %w", err))
	}
	if checksum != rep.Sim.EndStateChecksum {
		mismatch := &ChecksumMismatchError{EndStep: rep.Sim.EndStep, Want: rep.Sim.EndStateChecksum, Got: checksum}
		payload := replaydiag.ChecksumMismatchPayload{EndStep: rep.Sim.EndStep, Want: rep.Sim.EndStateChecksum, Computed: checksum}
		return Result{}, r.fail(ctx, replaydiag.EventChecksumMismatch, rep.Sim.EndStep, payload, mismatch)
	}

	r.state = stateCompleted
	replaydiag.EmitInfo(ctx, r.pub, replaydiag.EventReplayCompleted, rep.Sim.EndStep, map[string]any{
		"checksum": checksum,
		"commands": len(rep.Sim.Commands),
	})
	return Result{Snapshot: end, Checksum: checksum}, nil
}

func (r *Runner) restore(ctx context.Context, rep Replay) (runtime.Handle, error) {
	snap := rep.Sim.InitialSnapshot
	if !snapshot.SupportedVersion(snap.Version) {
		err := &UnsupportedSnapshotError{Version: snap.Version}
		return nil, r.fail(ctx, replaydiag.EventRuntimeMismatch, rep.Sim.StartStep, nil, err)
	}
	handle, err := r.cfg.Restore(ctx, runtime.RestoreRequest{
		Pack:     r.cfg.Pack,
		Snapshot: snap,
		Flags:    rep.Sim.Wiring,
	})
	if err != nil {
		return nil, r.fail(ctx, replaydiag.EventRuntimeMismatch, rep.Sim.StartStep, nil, fmt.Errorf("restore runtime: %w", err))
	}
	if got := handle.CurrentStep(); got != rep.Sim.StartStep {
		mismatch := &RuntimeMismatchError{Field: "step", Want: rep.Sim.StartStep, Got: got}
		return nil, r.fail(ctx, replaydiag.EventRuntimeMismatch, rep.Sim.StartStep, nil, mismatch)
	}
	if got := handle.StepSizeMs(); got != rep.Sim.StepSizeMs {
		mismatch := &RuntimeMismatchError{Field: "stepSizeMs", Want: rep.Sim.StepSizeMs, Got: got}
		return nil, r.fail(ctx, replaydiag.EventRuntimeMismatch, rep.Sim.StartStep, nil, mismatch)
	}
	return handle, nil
}

func (r *Runner) simulate(ctx context.Context, rep Replay, handle runtime.Handle) error {
	plan, err := schedule.Build(rep.Sim.Commands, rep.Sim.StartStep, rep.Sim.EndStep)
	if err != nil {
		return r.fail(ctx, replaydiag.EventInvalidTrace, rep.Sim.StartStep, nil, err)
	}
	queue := handle.CommandQueue()

	for step := rep.Sim.StartStep; step < rep.Sim.EndStep; step++ {
		for _, cmd := range plan.At(step) {
			if !queue.Enqueue(cmd) {
				rejected := &CommandRejectedError{Step: step, CommandType: cmd.Type, RequestID: cmd.RequestID}
				payload := replaydiag.CommandRejectedPayload{Step: step, CommandType: cmd.Type, RequestID: cmd.RequestID}
				return r.fail(ctx, replaydiag.EventCommandRejected, step, payload, rejected)
			}
		}
		handle.Tick(rep.Sim.StepSizeMs)
		if r.afterTick != nil {
			if err := r.afterTick(ctx, step); err != nil {
				return err
			}
		}
	}

	// Post-window commands execute once, after the window, in recorded order.
	for _, cmd := range plan.PostWindow() {
		if !queue.Enqueue(cmd) {
			rejected := &CommandRejectedError{Step: cmd.Step, CommandType: cmd.Type, RequestID: cmd.RequestID, PostWindow: true}
			payload := replaydiag.CommandRejectedPayload{Step: cmd.Step, CommandType: cmd.Type, RequestID: cmd.RequestID, PostWindow: true}
			return r.fail(ctx, replaydiag.EventCommandRejected, cmd.Step, payload, rejected)
		}
	}

	if r.afterWindow != nil {
		if err := r.afterWindow(ctx); err != nil {
			return err
		}
	}
	return nil
}

// fail publishes the diagnostic, moves the runner into the absorbing Failed
// state and hands the error back unchanged.
func (r *Runner) fail(ctx context.Context, eventType logging.EventType, step int64, payload any, err error) error {
	r.state = stateFailed
	if payload == nil {
		payload = map[string]any{"error": err.Error()}
	}
	event := logging.Event{
		Type:     eventType,
		Step:     step,
		Severity: logging.SeverityError,
		Category: logging.CategoryReplay,
		ReplayID: r.cfg.ReplayID,
		Payload:  payload,
	}
	r.pub.Publish(ctx, event)
	return err
}
