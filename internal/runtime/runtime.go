// Package runtime defines the collaborator surface through which the replay
// core drives a live simulation. The engine's actual game-logic systems live
// behind these interfaces; this module only restores, ticks and enqueues.
package runtime

import (
	"context"

	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/command"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/content"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/snapshot"
)

// FeatureFlags mirrors the simulation wiring toggles recorded with a replay.
// A restored runtime must be wired identically to the recording run.
type FeatureFlags struct {
	EnableProduction bool `json:"enableProduction"`
	EnableAutomation bool `json:"enableAutomation"`
	EnableTransforms bool `json:"enableTransforms"`
	EnableEntities   bool `json:"enableEntities"`
}

// Queue accepts commands for execution on the next tick. Enqueue reports
// whether the runtime accepted the command.
type Queue interface {
	Enqueue(command.Command) bool
}

// Handle is a live simulation run. Tick advances exactly one step of the
// given millisecond size; the loop driving it is strictly sequential.
// StateSource exposes the subsystem accessors a snapshot capture pulls from.
type Handle interface {
	Tick(ms int64)
	CurrentStep() int64
	StepSizeMs() int64
	CommandQueue() Queue
	StateSource() snapshot.Source
}

// RestoreRequest carries everything needed to reconstruct a runtime from a
// recorded trace.
type RestoreRequest struct {
	Pack     content.Pack
	Snapshot snapshot.Snapshot
	Flags    FeatureFlags
}

// RestoreFunc reconstructs a fresh runtime from a snapshot. The returned
// handle is owned exclusively by the caller.
type RestoreFunc func(ctx context.Context, req RestoreRequest) (Handle, error)
