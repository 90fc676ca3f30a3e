package replay

import (
	"strings"
	"testing"

	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/command"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/runtime"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/stubs"
)

func TestRecorderCapturesStartState(t *testing.T) {
	world := stubs.NewWorld(100, runtime.FeatureFlags{EnableProduction: true})
	world.Tick(100)
	world.Tick(100)

	rec, err := NewRecorder(testPack(t), world, RecorderConfig{Clock: testClock()})
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	if rec.StartStep() != 2 {
		t.Fatalf("start step %d, want 2", rec.StartStep())
	}

	rep, err := rec.Export()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if rep.Header.FileType != FileType {
		t.Fatalf("file type %q", rep.Header.FileType)
	}
	if rep.Header.SchemaVersion != SchemaV1 {
		t.Fatalf("schema version defaults to %d, want %d", rep.Header.SchemaVersion, SchemaV1)
	}
	if rep.Sim.StartStep != 2 || rep.Sim.EndStep != 2 {
		t.Fatalf("window [%d,%d], want [2,2]", rep.Sim.StartStep, rep.Sim.EndStep)
	}
	if rep.Frames != nil {
		t.Fatalf("v1 export carries frames")
	}
}

func TestRecorderNormalizesCommands(t *testing.T) {
	world := stubs.NewWorld(100, runtime.FeatureFlags{})
	rec, err := NewRecorder(testPack(t), world, RecorderConfig{Clock: testClock()})
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	payload := map[string]any{"resourceId": "gold", "amount": 5}
	cmd := command.Command{Type: stubs.CmdCollectResource, Priority: command.PriorityPlayer, Step: 0, Payload: payload}
	if err := rec.RecordCommand(cmd); err != nil {
		t.Fatalf("record: %v", err)
	}
	// The recorded payload is a deep clone: mutating the caller's map must
	// not reach the trace.
	payload["amount"] = 9000

	rep, err := rec.Export()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	recorded := rep.Sim.Commands[0].Payload.(map[string]any)
	if got := recorded["amount"].(float64); got != 5 {
		t.Fatalf("recorded amount %v, want 5", got)
	}

	if err := rec.RecordCommand(command.Command{Priority: command.PriorityPlayer}); err == nil {
		t.Fatalf("command without a type was recorded")
	}
}

func TestRecorderRejectsFramesOnV1(t *testing.T) {
	world := stubs.NewWorld(100, runtime.FeatureFlags{})
	rec, err := NewRecorder(testPack(t), world, RecorderConfig{Clock: testClock()})
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	if err := rec.RecordViewModelFrame(0, map[string]any{}); err == nil || !strings.Contains(err.Error(), "schema v2") {
		t.Fatalf("v1 recorder accepted a view-model frame: %v", err)
	}
	if err := rec.RecordRenderCommandBuffer(RenderCommandBuffer{}); err == nil || !strings.Contains(err.Error(), "schema v2") {
		t.Fatalf("v1 recorder accepted an rcb frame: %v", err)
	}
}

func TestRecorderEnforcesFrameOrder(t *testing.T) {
	world := stubs.NewWorld(100, runtime.FeatureFlags{})
	rec, err := NewRecorder(testPack(t), world, RecorderConfig{
		SchemaVersion:      SchemaV2,
		Clock:              testClock(),
		HashViewModel:      func(v any) string { return hashValue(t, v) },
		HashRenderCommands: func(buffer RenderCommandBuffer) string { return hashValue(t, buffer) },
	})
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	if err := rec.RecordViewModelFrame(3, map[string]any{}); err != nil {
		t.Fatalf("record frame at step 3: %v", err)
	}
	if err := rec.RecordViewModelFrame(3, map[string]any{}); err == nil {
		t.Fatalf("duplicate frame step was accepted")
	}
	if err := rec.RecordViewModelFrame(1, map[string]any{}); err == nil {
		t.Fatalf("out-of-order frame step was accepted")
	}

	if err := rec.RecordRenderCommandBuffer(RenderCommandBuffer{RenderFrame: 1, Step: 1}); err != nil {
		t.Fatalf("record rcb frame 1: %v", err)
	}
	if err := rec.RecordRenderCommandBuffer(RenderCommandBuffer{RenderFrame: 1, Step: 2}); err == nil {
		t.Fatalf("duplicate render frame was accepted")
	}
	if err := rec.RecordRenderCommandBuffer(RenderCommandBuffer{RenderFrame: 2, Step: 0}); err == nil {
		t.Fatalf("rcb frame with decreasing step was accepted")
	}
}

func TestRecorderExportRecapturesEndState(t *testing.T) {
	flags := runtime.FeatureFlags{EnableProduction: true}
	world := stubs.NewWorld(100, flags)
	rec, err := NewRecorder(testPack(t), world, RecorderConfig{Clock: testClock(), Flags: flags})
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	world.Tick(100)
	first, err := rec.Export()
	if err != nil {
		t.Fatalf("first export: %v", err)
	}
	world.Tick(100)
	second, err := rec.Export()
	if err != nil {
		t.Fatalf("second export: %v", err)
	}
	if first.Sim.EndStep != 1 || second.Sim.EndStep != 2 {
		t.Fatalf("end steps %d and %d, want 1 and 2", first.Sim.EndStep, second.Sim.EndStep)
	}
	if first.Sim.StartStep != second.Sim.StartStep {
		t.Fatalf("start step drifted between exports")
	}
}
