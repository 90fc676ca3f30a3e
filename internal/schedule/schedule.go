// Package schedule buckets recorded commands by the simulation step they must
// execute on.
package schedule

import (
	"fmt"

	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/command"
)

// OutOfWindowError reports a recorded command that predates the simulated
// window. A trace containing one is not replayable as captured.
type OutOfWindowError struct {
	Index     int
	Step      int64
	StartStep int64
}

func (e *OutOfWindowError) Error() string {
	return fmt.Sprintf("command %d scheduled for step %d before window start %d", e.Index, e.Step, e.StartStep)
}

// Plan partitions a flat command log over a [startStep, endStep) window.
// Commands keep their recorded order inside a bucket; priority ordering is
// the live dispatcher's concern, not the scheduler's.
type Plan struct {
	buckets map[int64][]command.Command
	post    []command.Command
}

// Build partitions commands into per-step buckets plus a post-window overflow
// list for commands whose step is at or past endStep. Commands before
// startStep fail with an OutOfWindowError.
func Build(commands []command.Command, startStep, endStep int64) (*Plan, error) {
	plan := &Plan{buckets: make(map[int64][]command.Command)}
	for i, cmd := range commands {
		if cmd.Step < startStep {
			return nil, &OutOfWindowError{Index: i, Step: cmd.Step, StartStep: startStep}
		}
		if cmd.Step >= endStep {
			plan.post = append(plan.post, cmd)
			continue
		}
		plan.buckets[cmd.Step] = append(plan.buckets[cmd.Step], cmd)
	}
	return plan, nil
}

// At returns the commands recorded for the given step, in recorded order.
func (p *Plan) At(step int64) []command.Command {
	if p == nil {
		return nil
	}
	return p.buckets[step]
}

// PostWindow returns the commands recorded at or past endStep. They execute
// once, immediately after the simulated window, in recorded order.
func (p *Plan) PostWindow() []command.Command {
	if p == nil {
		return nil
	}
	return p.post
}
