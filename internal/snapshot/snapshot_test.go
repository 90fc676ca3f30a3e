package snapshot

import "testing"

func testSource(resources map[string]any) Source {
	return Source{
		Resources: func() any { return resources },
		Production: func() any {
			return map[string]any{"gold": map[string]any{"perStep": 1.0}}
		},
	}
}

func TestCaptureClonesSubStates(t *testing.T) {
	resources := map[string]any{"gold": 10.0}
	snap, err := Capture(RuntimeMeta{Step: 4, StepSizeMs: 100}, testSource(resources), 1700000000000)
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	resources["gold"] = 999.0
	captured := snap.Resources.(map[string]any)
	if captured["gold"] != 10.0 {
		t.Fatalf("snapshot aliases live runtime state: %#v", captured)
	}
	if snap.Version != Version {
		t.Fatalf("unexpected snapshot version %d", snap.Version)
	}
}

func TestCaptureDefaultsAbsentSubsystems(t *testing.T) {
	snap, err := Capture(RuntimeMeta{Step: 0, StepSizeMs: 100}, Source{}, 0)
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	for name, state := range map[string]any{
		"resourceState":   snap.Resources,
		"productionState": snap.Production,
		"automationState": snap.Automation,
		"transformState":  snap.Transforms,
		"entityState":     snap.Entities,
		"prdState":        snap.PRD,
	} {
		sub, ok := state.(map[string]any)
		if !ok || len(sub) != 0 {
			t.Fatalf("expected empty default for %s, got %#v", name, state)
		}
	}
}

func TestChecksumIgnoresCaptureTime(t *testing.T) {
	src := testSource(map[string]any{"gold": 10.0})
	first, err := Capture(RuntimeMeta{Step: 4, StepSizeMs: 100}, src, 1)
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	second, err := Capture(RuntimeMeta{Step: 4, StepSizeMs: 100}, src, 999999)
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	firstSum, err := Checksum(first)
	if err != nil {
		t.Fatalf("checksum failed: %v", err)
	}
	secondSum, err := Checksum(second)
	if err != nil {
		t.Fatalf("checksum failed: %v", err)
	}
	if firstSum != secondSum {
		t.Fatalf("checksum must not depend on capture time: %s vs %s", firstSum, secondSum)
	}
}

func TestChecksumDetectsSemanticDifferences(t *testing.T) {
	base, err := Capture(RuntimeMeta{Step: 4, StepSizeMs: 100}, testSource(map[string]any{"gold": 10.0}), 0)
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	changed, err := Capture(RuntimeMeta{Step: 4, StepSizeMs: 100}, testSource(map[string]any{"gold": 11.0}), 0)
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	baseSum, _ := Checksum(base)
	changedSum, _ := Checksum(changed)
	if baseSum == changedSum {
		t.Fatalf("expected differing resource state to change the checksum")
	}

	stepped := base
	stepped.Runtime.Step = 5
	steppedSum, _ := Checksum(stepped)
	if steppedSum == baseSum {
		t.Fatalf("expected runtime step to participate in the checksum")
	}
}

func TestCloneProducesIndependentCopy(t *testing.T) {
	snap, err := Capture(RuntimeMeta{Step: 1, StepSizeMs: 50}, testSource(map[string]any{"gold": 1.0}), 0)
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	cloned, err := snap.Clone()
	if err != nil {
		t.Fatalf("clone failed: %v", err)
	}
	snap.Resources.(map[string]any)["gold"] = 42.0
	if cloned.Resources.(map[string]any)["gold"] != 1.0 {
		t.Fatalf("clone aliases the source snapshot")
	}
}
