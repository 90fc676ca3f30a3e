package schedule

import (
	"errors"
	"testing"

	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/command"
)

func cmd(step int64, requestID string) command.Command {
	return command.Command{
		Type:      "COLLECT_RESOURCE",
		Priority:  command.PriorityPlayer,
		Step:      step,
		RequestID: requestID,
	}
}

func TestBuildBucketsByStep(t *testing.T) {
	plan, err := Build([]command.Command{
		cmd(1, "a"),
		cmd(2, "b"),
		cmd(1, "c"),
	}, 0, 3)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	stepOne := plan.At(1)
	if len(stepOne) != 2 || stepOne[0].RequestID != "a" || stepOne[1].RequestID != "c" {
		t.Fatalf("expected recorded order preserved within a step, got %+v", stepOne)
	}
	if len(plan.At(0)) != 0 {
		t.Fatalf("expected empty bucket for step 0")
	}
	if len(plan.PostWindow()) != 0 {
		t.Fatalf("expected no post-window commands")
	}
}

func TestBuildRoutesOverflowToPostWindow(t *testing.T) {
	plan, err := Build([]command.Command{
		cmd(5, "late-a"),
		cmd(2, "in"),
		cmd(3, "late-b"),
	}, 0, 3)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	post := plan.PostWindow()
	if len(post) != 2 || post[0].RequestID != "late-a" || post[1].RequestID != "late-b" {
		t.Fatalf("expected post-window commands in recorded order, got %+v", post)
	}
}

func TestBuildRejectsPreWindowCommands(t *testing.T) {
	_, err := Build([]command.Command{cmd(4, "early")}, 5, 10)
	var oow *OutOfWindowError
	if !errors.As(err, &oow) {
		t.Fatalf("expected OutOfWindowError, got %v", err)
	}
	if oow.Step != 4 || oow.StartStep != 5 {
		t.Fatalf("unexpected error context: %+v", oow)
	}
}

func TestBuildNeverReordersByPriority(t *testing.T) {
	system := cmd(1, "sys")
	system.Priority = command.PrioritySystem
	player := cmd(1, "ply")
	plan, err := Build([]command.Command{player, system}, 0, 2)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	bucket := plan.At(1)
	if bucket[0].RequestID != "ply" || bucket[1].RequestID != "sys" {
		t.Fatalf("scheduler must keep recorded order regardless of priority, got %+v", bucket)
	}
}
