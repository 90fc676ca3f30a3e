// Package stubs provides a small deterministic idle runtime used by the
// replay core's tests and the CLI self-check. It implements the full
// collaborator surface (handle, queue, state source, restore) with plain
// in-memory maps so recorded traces replay bit-exactly.
package stubs

import (
	"context"
	"fmt"
	"sort"

	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/command"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/content"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/runtime"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/snapshot"
)

// Command types understood by the stub world.
const (
	CmdCollectResource   = "COLLECT_RESOURCE"
	CmdSetProductionRate = "SET_PRODUCTION_RATE"
	CmdGrantEntity       = "GRANT_ENTITY"
)

// World is a minimal idle simulation: resources accumulate per step from
// production rates, and queued commands apply at the start of each tick in
// arrival order.
type World struct {
	step       int64
	stepSizeMs int64
	flags      runtime.FeatureFlags

	resources  map[string]float64
	production map[string]float64
	entities   map[string]float64

	pending []command.Command
}

// NewWorld constructs a fresh world at step zero.
func NewWorld(stepSizeMs int64, flags runtime.FeatureFlags) *World {
	return &World{
		stepSizeMs: stepSizeMs,
		flags:      flags,
		resources:  map[string]float64{},
		production: map[string]float64{},
		entities:   map[string]float64{},
	}
}

// Tick applies every pending command, then advances production by one step.
func (w *World) Tick(ms int64) {
	queued := w.pending
	w.pending = nil
	for _, cmd := range queued {
		w.apply(cmd)
	}
	if w.flags.EnableProduction {
		ids := make([]string, 0, len(w.production))
		for id := range w.production {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			w.resources[id] += w.production[id]
		}
	}
	w.step++
}

func (w *World) apply(cmd command.Command) {
	payload, _ := cmd.Payload.(map[string]any)
	switch cmd.Type {
	case CmdCollectResource:
		id, _ := payload["resourceId"].(string)
		amount, _ := payload["amount"].(float64)
		if id != "" {
			w.resources[id] += amount
		}
	case CmdSetProductionRate:
		id, _ := payload["resourceId"].(string)
		rate, _ := payload["ratePerStep"].(float64)
		if id != "" {
			w.production[id] = rate
		}
	case CmdGrantEntity:
		if !w.flags.EnableEntities {
			return
		}
		id, _ := payload["entityId"].(string)
		count, _ := payload["count"].(float64)
		if id != "" {
			w.entities[id] += count
		}
	}
}

// CurrentStep reports the number of ticks executed so far.
func (w *World) CurrentStep() int64 { return w.step }

// StepSizeMs reports the fixed step duration the world was built with.
func (w *World) StepSizeMs() int64 { return w.stepSizeMs }

// CommandQueue exposes the world's pending-command queue.
func (w *World) CommandQueue() runtime.Queue { return (*worldQueue)(w) }

// worldQueue adapts World to the queue interface; unknown command types are
// rejected rather than silently dropped.
type worldQueue World

func (q *worldQueue) Enqueue(cmd command.Command) bool {
	switch cmd.Type {
	case CmdCollectResource, CmdSetProductionRate, CmdGrantEntity:
		(*World)(q).pending = append((*World)(q).pending, cmd)
		return true
	default:
		return false
	}
}

// StateSource exposes the subsystem accessors a snapshot capture pulls from.
// Sub-states are plain string-keyed maps of float64 so they survive the
// JSON-safe clone unchanged.
func (w *World) StateSource() snapshot.Source {
	return snapshot.Source{
		Resources:  func() any { return toAnyMap(w.resources) },
		Production: func() any { return toAnyMap(w.production) },
		Entities:   func() any { return toAnyMap(w.entities) },
	}
}

func toAnyMap(in map[string]float64) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func fromAnyMap(state any) (map[string]float64, error) {
	out := map[string]float64{}
	if state == nil {
		return out, nil
	}
	raw, ok := state.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("sub-state is %T, want map[string]any", state)
	}
	for k, v := range raw {
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("sub-state value %q is %T, want float64", k, v)
		}
		out[k] = f
	}
	return out, nil
}

// Restore reconstructs a world from a recorded snapshot. It satisfies the
// runtime restore contract used by the replay runner.
func Restore(ctx context.Context, req runtime.RestoreRequest) (runtime.Handle, error) {
	_ = ctx
	w := NewWorld(req.Snapshot.Runtime.StepSizeMs, req.Flags)
	w.step = req.Snapshot.Runtime.Step

	var err error
	if w.resources, err = fromAnyMap(req.Snapshot.Resources); err != nil {
		return nil, fmt.Errorf("restore resource state: %w", err)
	}
	if w.production, err = fromAnyMap(req.Snapshot.Production); err != nil {
		return nil, fmt.Errorf("restore production state: %w", err)
	}
	if w.entities, err = fromAnyMap(req.Snapshot.Entities); err != nil {
		return nil, fmt.Errorf("restore entity state: %w", err)
	}
	return w, nil
}

// Pack returns the fixture content pack the stub world simulates against.
func Pack() (content.Pack, error) {
	definition := map[string]any{
		"resources": []any{"gold", "wood", "stone"},
		"entities":  []any{"miner", "lumberjack"},
		"version":   "1.0.0",
	}
	digest, err := content.DigestValue(definition)
	if err != nil {
		return content.Pack{}, err
	}
	return content.Pack{
		Metadata: content.Metadata{ID: "stub-idle-pack", Version: "1.0.0"},
		Digest:   digest,
	}, nil
}

// ViewModel builds a deterministic render view of the world at its current
// step. The visual runner's tests rebuild frames through this.
func (w *World) ViewModel() map[string]any {
	return map[string]any{
		"step":      w.step,
		"resources": toAnyMap(w.resources),
		"entities":  toAnyMap(w.entities),
	}
}

// RenderCommands builds a deterministic draw list for the given render frame.
func (w *World) RenderCommands(renderFrame int64) []any {
	ids := make([]string, 0, len(w.resources))
	for id := range w.resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	commands := make([]any, 0, len(ids))
	for _, id := range ids {
		commands = append(commands, map[string]any{
			"op":       "drawCounter",
			"resource": id,
			"value":    w.resources[id],
			"frame":    renderFrame,
		})
	}
	return commands
}
