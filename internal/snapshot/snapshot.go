// Package snapshot captures a total, serializable view of simulation state
// and reduces it to a short comparable checksum.
package snapshot

import (
	"fmt"

	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/command"
)

// Version is the snapshot layout produced by this build.
const Version = 1

// SupportedVersion reports whether this build can restore the given layout.
func SupportedVersion(version int) bool {
	return version == Version
}

// RuntimeMeta records where the owning runtime stood when the snapshot was
// taken.
type RuntimeMeta struct {
	Step       int64 `json:"step"`
	StepSizeMs int64 `json:"stepSizeMs"`
}

// Snapshot is a deep, immutable copy of simulation state. It holds no live
// references back into the runtime that produced it; every sub-state is a
// structural clone of whatever the subsystem accessor exposed.
type Snapshot struct {
	Version    int         `json:"version"`
	Runtime    RuntimeMeta `json:"runtime"`
	Resources  any         `json:"resourceState"`
	Production any         `json:"productionState"`
	Automation any         `json:"automationState"`
	Transforms any         `json:"transformState"`
	Entities   any         `json:"entityState"`
	PRD        any         `json:"prdState"`
	CapturedAt int64       `json:"capturedAt"`
}

// Source bundles the per-subsystem accessors a capture pulls from. A nil
// accessor means the subsystem is absent and contributes an empty sub-state.
type Source struct {
	Resources  func() any
	Production func() any
	Automation func() any
	Transforms func() any
	Entities   func() any
	PRD        func() any
}

// Capture pulls state from every subsystem accessor and assembles a snapshot.
// Sub-states are deep-cloned so the snapshot stays valid however the live
// runtime mutates afterwards.
func Capture(meta RuntimeMeta, src Source, capturedAt int64) (Snapshot, error) {
	snap := Snapshot{
		Version:    Version,
		Runtime:    meta,
		CapturedAt: capturedAt,
	}
	var err error
	if snap.Resources, err = captureSubState("resourceState", src.Resources); err != nil {
		return Snapshot{}, err
	}
	if snap.Production, err = captureSubState("productionState", src.Production); err != nil {
		return Snapshot{}, err
	}
	if snap.Automation, err = captureSubState("automationState", src.Automation); err != nil {
		return Snapshot{}, err
	}
	if snap.Transforms, err = captureSubState("transformState", src.Transforms); err != nil {
		return Snapshot{}, err
	}
	if snap.Entities, err = captureSubState("entityState", src.Entities); err != nil {
		return Snapshot{}, err
	}
	if snap.PRD, err = captureSubState("prdState", src.PRD); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func captureSubState(name string, accessor func() any) (any, error) {
	if accessor == nil {
		return map[string]any{}, nil
	}
	state := accessor()
	if state == nil {
		return map[string]any{}, nil
	}
	cloned, err := command.CloneValue(state)
	if err != nil {
		return nil, fmt.Errorf("capture %s: %w", name, err)
	}
	return cloned, nil
}

// Clone returns a deep copy of the snapshot. Recorded replays hand out clones
// so consumers can never reach back into the original.
func (s Snapshot) Clone() (Snapshot, error) {
	cloned := s
	var err error
	if cloned.Resources, err = cloneSubState("resourceState", s.Resources); err != nil {
		return Snapshot{}, err
	}
	if cloned.Production, err = cloneSubState("productionState", s.Production); err != nil {
		return Snapshot{}, err
	}
	if cloned.Automation, err = cloneSubState("automationState", s.Automation); err != nil {
		return Snapshot{}, err
	}
	if cloned.Transforms, err = cloneSubState("transformState", s.Transforms); err != nil {
		return Snapshot{}, err
	}
	if cloned.Entities, err = cloneSubState("entityState", s.Entities); err != nil {
		return Snapshot{}, err
	}
	if cloned.PRD, err = cloneSubState("prdState", s.PRD); err != nil {
		return Snapshot{}, err
	}
	return cloned, nil
}

func cloneSubState(name string, state any) (any, error) {
	if state == nil {
		return map[string]any{}, nil
	}
	cloned, err := command.CloneValue(state)
	if err != nil {
		return nil, fmt.Errorf("clone %s: %w", name, err)
	}
	return cloned, nil
}
