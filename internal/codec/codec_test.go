package codec

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/command"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/replay"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/runtime"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/stubs"
	"github.com/hansjm10/Idle-Game-Engine-sub003/logging"
)

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

func hashValue(t *testing.T, v any) string {
	t.Helper()
	encoded, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal for hash: %v", err)
	}
	return fmt.Sprintf("xxh64:%016x", xxhash.Sum64(encoded))
}

// buildReplay records a short stub-world run and exports it, optionally with
// v2 frame streams and extra dummy commands to force chunk splits.
func buildReplay(t *testing.T, schemaVersion, extraCommands int) replay.Replay {
	t.Helper()
	pack, err := stubs.Pack()
	if err != nil {
		t.Fatalf("build pack: %v", err)
	}
	flags := runtime.FeatureFlags{EnableProduction: true}
	world := stubs.NewWorld(100, flags)
	rec, err := replay.NewRecorder(pack, world, replay.RecorderConfig{
		SchemaVersion:  schemaVersion,
		RuntimeVersion: "0.3.0-test",
		Flags:          flags,
		Clock:          fixedClock{at: time.UnixMilli(1_700_000_000_000)},
		HashViewModel:  func(v any) string { return hashValue(t, v) },
		HashRenderCommands: func(buffer replay.RenderCommandBuffer) string {
			return hashValue(t, buffer)
		},
	})
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	for step := int64(0); step < 3; step++ {
		cmd := command.Command{
			Type:     stubs.CmdCollectResource,
			Priority: command.PriorityPlayer,
			Step:     step,
			Payload:  map[string]any{"resourceId": "gold", "amount": 1.0},
		}
		if !world.CommandQueue().Enqueue(cmd) {
			t.Fatalf("world rejected command at step %d", step)
		}
		if err := rec.RecordCommand(cmd); err != nil {
			t.Fatalf("record command: %v", err)
		}
		world.Tick(100)
		if schemaVersion == replay.SchemaV2 {
			if err := rec.RecordViewModelFrame(step, world.ViewModel()); err != nil {
				t.Fatalf("record frame: %v", err)
			}
		}
	}
	for i := 0; i < extraCommands; i++ {
		err := rec.RecordCommand(command.Command{
			Type:     stubs.CmdCollectResource,
			Priority: command.PriorityAutomation,
			Step:     3,
			Payload:  map[string]any{"resourceId": "wood", "amount": 1.0},
		})
		if err != nil {
			t.Fatalf("record extra command %d: %v", i, err)
		}
	}

	rep, err := rec.Export()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	return rep
}

func encodeToLines(t *testing.T, rep replay.Replay, opts EncodeOptions) []string {
	t.Helper()
	var buf bytes.Buffer
	if err := Encode(&buf, rep, opts); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
}

func decodeLines(lines []string) (replay.Replay, error) {
	dec := &Decoder{}
	return dec.Decode(context.Background(), strings.NewReader(strings.Join(lines, "\n")+"\n"))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, schema := range []int{replay.SchemaV1, replay.SchemaV2} {
		t.Run(fmt.Sprintf("v%d", schema), func(t *testing.T) {
			rep := buildReplay(t, schema, 0)
			var first bytes.Buffer
			if err := Encode(&first, rep, EncodeOptions{}); err != nil {
				t.Fatalf("encode: %v", err)
			}

			dec := &Decoder{}
			decoded, err := dec.Decode(context.Background(), bytes.NewReader(first.Bytes()))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}

			// Re-encoding the decoded trace must reproduce the stream byte
			// for byte.
			var second bytes.Buffer
			if err := Encode(&second, decoded, EncodeOptions{}); err != nil {
				t.Fatalf("re-encode: %v", err)
			}
			if !bytes.Equal(first.Bytes(), second.Bytes()) {
				t.Fatalf("round trip is not bit-exact")
			}
		})
	}
}

func TestStreamRecordsAreFlat(t *testing.T) {
	rep := buildReplay(t, replay.SchemaV1, 0)
	lines := encodeToLines(t, rep, EncodeOptions{})

	parse := func(line string) map[string]any {
		t.Helper()
		fields := map[string]any{}
		if err := json.Unmarshal([]byte(line), &fields); err != nil {
			t.Fatalf("parse record line: %v", err)
		}
		return fields
	}

	header := parse(lines[0])
	if header["type"] != "header" {
		t.Fatalf("first record discriminator is %v, want header", header["type"])
	}
	if header["fileType"] != replay.FileType {
		t.Fatalf("header record does not carry fileType flat: %v", header)
	}
	if _, nested := header["header"]; nested {
		t.Fatalf("header record nests its payload: %v", header)
	}

	sim := parse(lines[3])
	if sim["type"] != "sim" {
		t.Fatalf("fourth record discriminator is %v, want sim", sim["type"])
	}
	if _, ok := sim["endStep"]; ok {
		t.Fatalf("sim record carries endStep, it belongs to the end record")
	}
	if _, ok := sim["endStateChecksum"]; ok {
		t.Fatalf("sim record carries endStateChecksum, it belongs to the end record")
	}

	end := parse(lines[len(lines)-1])
	if end["type"] != "end" {
		t.Fatalf("last record discriminator is %v, want end", end["type"])
	}
	if int64(end["endStep"].(float64)) != rep.Sim.EndStep {
		t.Fatalf("end record endStep %v, recorded %d", end["endStep"], rep.Sim.EndStep)
	}
	if end["endStateChecksum"] != rep.Sim.EndStateChecksum {
		t.Fatalf("end record checksum %v, recorded %s", end["endStateChecksum"], rep.Sim.EndStateChecksum)
	}
}

func TestDecodedReplayStillVerifies(t *testing.T) {
	rep := buildReplay(t, replay.SchemaV1, 0)
	var buf bytes.Buffer
	if err := Encode(&buf, rep, EncodeOptions{}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec := &Decoder{}
	decoded, err := dec.Decode(context.Background(), &buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	pack, err := stubs.Pack()
	if err != nil {
		t.Fatalf("build pack: %v", err)
	}
	runner := replay.NewRunner(replay.RunnerConfig{Pack: pack, Restore: stubs.Restore})
	result, err := runner.Run(context.Background(), decoded)
	if err != nil {
		t.Fatalf("run decoded replay: %v", err)
	}
	if result.Checksum != rep.Sim.EndStateChecksum {
		t.Fatalf("decoded replay verified to %s, recorded %s", result.Checksum, rep.Sim.EndStateChecksum)
	}
}

func TestEncodeSplitsCommandChunks(t *testing.T) {
	rep := buildReplay(t, replay.SchemaV1, 2497) // 3 recorded + 2497 extra = 2500
	lines := encodeToLines(t, rep, EncodeOptions{})

	var chunkSizes []int
	for _, line := range lines {
		var record CommandChunkRecord
		if err := json.Unmarshal([]byte(line), &record); err != nil || record.Type != KindCommands {
			continue
		}
		if record.ChunkIndex != len(chunkSizes) {
			t.Fatalf("chunk index %d at position %d", record.ChunkIndex, len(chunkSizes))
		}
		chunkSizes = append(chunkSizes, len(record.Commands))
	}
	want := []int{1000, 1000, 500}
	if len(chunkSizes) != len(want) {
		t.Fatalf("got %d command chunks, want %d", len(chunkSizes), len(want))
	}
	for i, size := range want {
		if chunkSizes[i] != size {
			t.Fatalf("chunk %d carries %d commands, want %d", i, chunkSizes[i], size)
		}
	}

	decoded, err := decodeLines(lines)
	if err != nil {
		t.Fatalf("decode chunked stream: %v", err)
	}
	if len(decoded.Sim.Commands) != 2500 {
		t.Fatalf("decoded %d commands, want 2500", len(decoded.Sim.Commands))
	}
}

func TestEncodeRejectsNegativeChunkSize(t *testing.T) {
	rep := buildReplay(t, replay.SchemaV1, 0)
	if err := Encode(&bytes.Buffer{}, rep, EncodeOptions{MaxCommandsPerChunk: -1}); err == nil {
		t.Fatalf("negative chunk size was accepted")
	}
}

func TestEncodeRejectsFramesUnderSchemaV1(t *testing.T) {
	rep := buildReplay(t, replay.SchemaV1, 0)
	rep.Frames = &replay.Frames{ViewModels: []replay.ViewModelFrame{{Step: 0, Hash: "xxh64:0"}}}

	err := Encode(&bytes.Buffer{}, rep, EncodeOptions{})
	var unsupported *UnsupportedFeatureError
	if !errors.As(err, &unsupported) {
		t.Fatalf("got %v, want UnsupportedFeatureError", err)
	}
	if unsupported.SchemaVersion != replay.SchemaV1 {
		t.Fatalf("error names schema v%d", unsupported.SchemaVersion)
	}
}

func TestDecodeRejectsRecordsOutOfOrder(t *testing.T) {
	lines := encodeToLines(t, buildReplay(t, replay.SchemaV1, 0), EncodeOptions{})
	// Swap content and sim records.
	lines[1], lines[3] = lines[3], lines[1]

	_, err := decodeLines(lines)
	var malformed *MalformedStreamError
	if !errors.As(err, &malformed) {
		t.Fatalf("got %v, want MalformedStreamError", err)
	}
	if malformed.Line != 2 {
		t.Fatalf("fault reported at line %d, want 2", malformed.Line)
	}
}

func TestDecodeRejectsNonContiguousChunks(t *testing.T) {
	rep := buildReplay(t, replay.SchemaV1, 2497)
	lines := encodeToLines(t, rep, EncodeOptions{})
	for i, line := range lines {
		var record CommandChunkRecord
		if json.Unmarshal([]byte(line), &record) == nil && record.Type == KindCommands && record.ChunkIndex == 1 {
			record.ChunkIndex = 7
			mutated, err := json.Marshal(record)
			if err != nil {
				t.Fatalf("remarshal chunk: %v", err)
			}
			lines[i] = string(mutated)
			break
		}
	}

	_, err := decodeLines(lines)
	var malformed *MalformedStreamError
	if !errors.As(err, &malformed) {
		t.Fatalf("got %v, want MalformedStreamError", err)
	}
	if !strings.Contains(malformed.Reason, "chunk index") {
		t.Fatalf("unexpected reason %q", malformed.Reason)
	}
}

func TestDecodeEnforcesCommandCeiling(t *testing.T) {
	rep := buildReplay(t, replay.SchemaV1, 2497)
	lines := encodeToLines(t, rep, EncodeOptions{})

	var captured []logging.Event
	dec := &Decoder{
		Limits: DecodeLimits{MaxCommands: 100},
		Publisher: logging.PublisherFunc(func(_ context.Context, event logging.Event) {
			captured = append(captured, event)
		}),
	}
	_, err := dec.Decode(context.Background(), strings.NewReader(strings.Join(lines, "\n")))
	var limit *LimitError
	if !errors.As(err, &limit) {
		t.Fatalf("got %v, want LimitError", err)
	}
	if limit.Kind != "commands" || limit.Limit != 100 {
		t.Fatalf("limit error reports %s/%d", limit.Kind, limit.Limit)
	}
	if len(captured) != 1 || captured[0].Category != logging.CategoryCodec {
		t.Fatalf("expected one codec diagnostic, got %d", len(captured))
	}
}

func TestDecodeRejectsNegativeLimits(t *testing.T) {
	lines := encodeToLines(t, buildReplay(t, replay.SchemaV1, 0), EncodeOptions{})
	dec := &Decoder{Limits: DecodeLimits{MaxLines: -1}}
	_, err := dec.Decode(context.Background(), strings.NewReader(strings.Join(lines, "\n")))
	if err == nil {
		t.Fatalf("negative line limit was accepted")
	}
	var limit *LimitError
	if errors.As(err, &limit) {
		t.Fatalf("negative limit reported as a stream fault: %v", err)
	}
	if !strings.Contains(err.Error(), "negative max lines") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestDecodeChecksEndRecordCounts(t *testing.T) {
	lines := encodeToLines(t, buildReplay(t, replay.SchemaV1, 0), EncodeOptions{})
	last := len(lines) - 1
	var end EndRecord
	if err := json.Unmarshal([]byte(lines[last]), &end); err != nil {
		t.Fatalf("parse end record: %v", err)
	}
	end.CommandCount += 5
	mutated, err := json.Marshal(end)
	if err != nil {
		t.Fatalf("remarshal end record: %v", err)
	}
	lines[last] = string(mutated)

	_, decodeErr := decodeLines(lines)
	var malformed *MalformedStreamError
	if !errors.As(decodeErr, &malformed) {
		t.Fatalf("got %v, want MalformedStreamError", decodeErr)
	}
	if !strings.Contains(malformed.Reason, "declares") {
		t.Fatalf("unexpected reason %q", malformed.Reason)
	}
}

func TestDecodeRejectsTruncatedStream(t *testing.T) {
	lines := encodeToLines(t, buildReplay(t, replay.SchemaV1, 0), EncodeOptions{})
	_, err := decodeLines(lines[:len(lines)-1])
	var malformed *MalformedStreamError
	if !errors.As(err, &malformed) {
		t.Fatalf("got %v, want MalformedStreamError", err)
	}
	if !strings.Contains(malformed.Reason, "truncated") {
		t.Fatalf("unexpected reason %q", malformed.Reason)
	}
}

func TestDecodeRejectsTrailingRecords(t *testing.T) {
	lines := encodeToLines(t, buildReplay(t, replay.SchemaV1, 0), EncodeOptions{})
	lines = append(lines, lines[0])
	_, err := decodeLines(lines)
	var malformed *MalformedStreamError
	if !errors.As(err, &malformed) {
		t.Fatalf("got %v, want MalformedStreamError", err)
	}
	if !strings.Contains(malformed.Reason, "after end of stream") {
		t.Fatalf("unexpected reason %q", malformed.Reason)
	}
}

func TestDecodeRejectsDuplicateFrameSteps(t *testing.T) {
	rep := buildReplay(t, replay.SchemaV2, 0)
	lines := encodeToLines(t, rep, EncodeOptions{})
	for i, line := range lines {
		var record ViewModelFrameChunkRecord
		if json.Unmarshal([]byte(line), &record) == nil && record.Type == KindViewModelFrames {
			// Duplicate a recorded step; the reassembled trace must fail
			// structural validation.
			record.Frames[1].Step = record.Frames[0].Step
			mutated, err := json.Marshal(record)
			if err != nil {
				t.Fatalf("remarshal frame chunk: %v", err)
			}
			lines[i] = string(mutated)
			break
		}
	}

	_, err := decodeLines(lines)
	if !errors.Is(err, replay.ErrInvalidReplay) {
		t.Fatalf("got %v, want ErrInvalidReplay", err)
	}
}

func TestDecodeSkipsBlankLines(t *testing.T) {
	lines := encodeToLines(t, buildReplay(t, replay.SchemaV1, 0), EncodeOptions{})
	padded := []string{"", lines[0], ""}
	padded = append(padded, lines[1:]...)
	if _, err := decodeLines(padded); err != nil {
		t.Fatalf("blank lines broke decoding: %v", err)
	}
}
