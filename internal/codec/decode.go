package codec

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/command"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/replay"
	"github.com/hansjm10/Idle-Game-Engine-sub003/logging"
	"github.com/hansjm10/Idle-Game-Engine-sub003/logging/replaydiag"
)

// Decode ceilings. A stream that breaches any of them is refused outright;
// the decoder never truncates or samples.
const (
	DefaultMaxLines           = 2_000_000
	DefaultMaxCommands        = 1_000_000
	DefaultMaxViewModelFrames = 100_000
	DefaultMaxRCBFrames       = 100_000

	// maxLineBytes bounds a single record line. Chunking keeps well-formed
	// lines far below this.
	maxLineBytes = 16 << 20
)

// DecodeLimits caps how much a stream may make the decoder buffer. Zero
// values select the defaults.
type DecodeLimits struct {
	MaxLines           int
	MaxCommands        int
	MaxViewModelFrames int
	MaxRCBFrames       int
}

func (l DecodeLimits) resolve() (DecodeLimits, error) {
	if l.MaxLines < 0 {
		return DecodeLimits{}, fmt.Errorf("negative max lines %d", l.MaxLines)
	}
	if l.MaxCommands < 0 {
		return DecodeLimits{}, fmt.Errorf("negative max commands %d", l.MaxCommands)
	}
	if l.MaxViewModelFrames < 0 {
		return DecodeLimits{}, fmt.Errorf("negative max view-model frames %d", l.MaxViewModelFrames)
	}
	if l.MaxRCBFrames < 0 {
		return DecodeLimits{}, fmt.Errorf("negative max rcb frames %d", l.MaxRCBFrames)
	}
	if l.MaxLines == 0 {
		l.MaxLines = DefaultMaxLines
	}
	if l.MaxCommands == 0 {
		l.MaxCommands = DefaultMaxCommands
	}
	if l.MaxViewModelFrames == 0 {
		l.MaxViewModelFrames = DefaultMaxViewModelFrames
	}
	if l.MaxRCBFrames == 0 {
		l.MaxRCBFrames = DefaultMaxRCBFrames
	}
	return l, nil
}

// Decoder reads replay record streams. The zero value uses default limits
// and publishes no diagnostics.
type Decoder struct {
	Limits    DecodeLimits
	Publisher logging.Publisher
}

// decodePhase tracks where the reader stands in the mandatory record order.
type decodePhase int

const (
	phaseHeader decodePhase = iota
	phaseContent
	phaseAssets
	phaseSim
	phaseCommands
	phaseViewModelFrames
	phaseRCBFrames
	phaseDone
)

// Decode reads one complete record stream and reassembles the replay. Every
// structural fault is fatal at the line it appears on; the assembled replay
// is fully validated before it is returned.
func (d *Decoder) Decode(ctx context.Context, r io.Reader) (replay.Replay, error) {
	limits, err := d.Limits.resolve()
	if err != nil {
		return replay.Replay{}, err
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var (
		rep          replay.Replay
		frames       replay.Frames
		end          EndRecord
		phase        = phaseHeader
		line         int
		nextCmdChunk int
		nextVMChunk  int
		nextRCBChunk int
	)

	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(strings.TrimSpace(string(raw))) == 0 {
			continue
		}
		line++
		if line > limits.MaxLines {
			return replay.Replay{}, d.failLimit(ctx, "lines", limits.MaxLines)
		}

		var probe struct {
			Type RecordKind `json:"type"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return replay.Replay{}, d.failMalformed(ctx, line, fmt.Sprintf("not a JSON record: %v", err))
		}

		if phase == phaseDone {
			return replay.Replay{}, d.failMalformed(ctx, line, fmt.Sprintf("%s record after end of stream", probe.Type))
		}

		switch probe.Type {
		case KindHeader:
			if phase != phaseHeader {
				return replay.Replay{}, d.failMalformed(ctx, line, "duplicate header record")
			}
			var record HeaderRecord
			if err := json.Unmarshal(raw, &record); err != nil {
				return replay.Replay{}, d.failMalformed(ctx, line, fmt.Sprintf("bad header record: %v", err))
			}
			rep.Header = record.Header
			phase = phaseContent

		case KindContent:
			if phase != phaseContent {
				return replay.Replay{}, d.failMalformed(ctx, line, "content record out of order")
			}
			var record ContentRecord
			if err := json.Unmarshal(raw, &record); err != nil {
				return replay.Replay{}, d.failMalformed(ctx, line, fmt.Sprintf("bad content record: %v", err))
			}
			rep.Content = record.Content
			phase = phaseAssets

		case KindAssets:
			if phase != phaseAssets {
				return replay.Replay{}, d.failMalformed(ctx, line, "assets record out of order")
			}
			var record AssetsRecord
			if err := json.Unmarshal(raw, &record); err != nil {
				return replay.Replay{}, d.failMalformed(ctx, line, fmt.Sprintf("bad assets record: %v", err))
			}
			rep.Assets = record.Assets
			phase = phaseSim

		case KindSim:
			if phase != phaseSim {
				return replay.Replay{}, d.failMalformed(ctx, line, "sim record out of order")
			}
			var record SimRecord
			if err := json.Unmarshal(raw, &record); err != nil {
				return replay.Replay{}, d.failMalformed(ctx, line, fmt.Sprintf("bad sim record: %v", err))
			}
			rep.Sim = replay.Sim{
				Wiring:          record.Wiring,
				StepSizeMs:      record.StepSizeMs,
				StartStep:       record.StartStep,
				InitialSnapshot: record.InitialSnapshot,
			}
			phase = phaseCommands

		case KindCommands:
			if phase != phaseCommands {
				return replay.Replay{}, d.failMalformed(ctx, line, "command chunk out of order")
			}
			var record CommandChunkRecord
			if err := json.Unmarshal(raw, &record); err != nil {
				return replay.Replay{}, d.failMalformed(ctx, line, fmt.Sprintf("bad command chunk: %v", err))
			}
			if record.ChunkIndex != nextCmdChunk {
				return replay.Replay{}, d.failMalformed(ctx, line, fmt.Sprintf("command chunk index %d, want %d", record.ChunkIndex, nextCmdChunk))
			}
			if len(record.Commands) == 0 {
				return replay.Replay{}, d.failMalformed(ctx, line, "empty command chunk")
			}
			if len(rep.Sim.Commands)+len(record.Commands) > limits.MaxCommands {
				return replay.Replay{}, d.failLimit(ctx, "commands", limits.MaxCommands)
			}
			rep.Sim.Commands = append(rep.Sim.Commands, record.Commands...)
			nextCmdChunk++

		case KindViewModelFrames:
			if phase > phaseViewModelFrames || phase < phaseCommands {
				return replay.Replay{}, d.failMalformed(ctx, line, "view-model chunk out of order")
			}
			var record ViewModelFrameChunkRecord
			if err := json.Unmarshal(raw, &record); err != nil {
				return replay.Replay{}, d.failMalformed(ctx, line, fmt.Sprintf("bad view-model chunk: %v", err))
			}
			if record.ChunkIndex != nextVMChunk {
				return replay.Replay{}, d.failMalformed(ctx, line, fmt.Sprintf("view-model chunk index %d, want %d", record.ChunkIndex, nextVMChunk))
			}
			if len(record.Frames) == 0 {
				return replay.Replay{}, d.failMalformed(ctx, line, "empty view-model chunk")
			}
			if len(frames.ViewModels)+len(record.Frames) > limits.MaxViewModelFrames {
				return replay.Replay{}, d.failLimit(ctx, "viewModelFrames", limits.MaxViewModelFrames)
			}
			frames.ViewModels = append(frames.ViewModels, record.Frames...)
			nextVMChunk++
			phase = phaseViewModelFrames

		case KindRCBFrames:
			if phase > phaseRCBFrames || phase < phaseCommands {
				return replay.Replay{}, d.failMalformed(ctx, line, "rcb chunk out of order")
			}
			var record RCBFrameChunkRecord
			if err := json.Unmarshal(raw, &record); err != nil {
				return replay.Replay{}, d.failMalformed(ctx, line, fmt.Sprintf("bad rcb chunk: %v", err))
			}
			if record.ChunkIndex != nextRCBChunk {
				return replay.Replay{}, d.failMalformed(ctx, line, fmt.Sprintf("rcb chunk index %d, want %d", record.ChunkIndex, nextRCBChunk))
			}
			if len(record.Frames) == 0 {
				return replay.Replay{}, d.failMalformed(ctx, line, "empty rcb chunk")
			}
			if len(frames.RenderCommandBuffers)+len(record.Frames) > limits.MaxRCBFrames {
				return replay.Replay{}, d.failLimit(ctx, "rcbFrames", limits.MaxRCBFrames)
			}
			frames.RenderCommandBuffers = append(frames.RenderCommandBuffers, record.Frames...)
			nextRCBChunk++
			phase = phaseRCBFrames

		case KindEnd:
			if phase < phaseCommands {
				return replay.Replay{}, d.failMalformed(ctx, line, "end record before sim record")
			}
			if err := json.Unmarshal(raw, &end); err != nil {
				return replay.Replay{}, d.failMalformed(ctx, line, fmt.Sprintf("bad end record: %v", err))
			}
			phase = phaseDone

		default:
			return replay.Replay{}, d.failMalformed(ctx, line, fmt.Sprintf("unknown record kind %q", probe.Type))
		}
	}
	if err := scanner.Err(); err != nil {
		return replay.Replay{}, d.failMalformed(ctx, line+1, fmt.Sprintf("read stream: %v", err))
	}
	if phase != phaseDone {
		return replay.Replay{}, d.failMalformed(ctx, line+1, "stream truncated before end record")
	}

	rep.Sim.EndStep = end.EndStep
	rep.Sim.EndStateChecksum = end.EndStateChecksum

	if end.CommandCount != len(rep.Sim.Commands) {
		return replay.Replay{}, d.failMalformed(ctx, line, fmt.Sprintf("end record declares %d commands, stream carried %d", end.CommandCount, len(rep.Sim.Commands)))
	}
	if end.ViewModelFrameCount != len(frames.ViewModels) {
		return replay.Replay{}, d.failMalformed(ctx, line, fmt.Sprintf("end record declares %d view-model frames, stream carried %d", end.ViewModelFrameCount, len(frames.ViewModels)))
	}
	if end.RCBFrameCount != len(frames.RenderCommandBuffers) {
		return replay.Replay{}, d.failMalformed(ctx, line, fmt.Sprintf("end record declares %d rcb frames, stream carried %d", end.RCBFrameCount, len(frames.RenderCommandBuffers)))
	}

	if rep.Header.SchemaVersion == replay.SchemaV2 {
		rep.Frames = &frames
	} else if len(frames.ViewModels) > 0 || len(frames.RenderCommandBuffers) > 0 {
		return replay.Replay{}, d.failMalformed(ctx, line, "schema v1 stream carried visual frames")
	}

	for i, cmd := range rep.Sim.Commands {
		normalized, err := command.Normalize(cmd)
		if err != nil {
			return replay.Replay{}, d.failMalformed(ctx, line, fmt.Sprintf("command %d: %v", i, err))
		}
		rep.Sim.Commands[i] = normalized
	}

	if err := rep.Validate(); err != nil {
		d.emit(ctx, replaydiag.EventDecodeFailed, map[string]any{"error": err.Error()})
		return replay.Replay{}, err
	}
	return rep, nil
}

func (d *Decoder) failMalformed(ctx context.Context, line int, reason string) error {
	err := &MalformedStreamError{Line: line, Reason: reason}
	d.emit(ctx, replaydiag.EventDecodeFailed, map[string]any{
		"line":   line,
		"reason": reason,
	})
	return err
}

func (d *Decoder) failLimit(ctx context.Context, kind string, limit int) error {
	err := &LimitError{Kind: kind, Limit: limit}
	d.emit(ctx, replaydiag.EventStreamLimitExceeded, replaydiag.StreamLimitPayload{Kind: kind, Limit: limit})
	return err
}

func (d *Decoder) emit(ctx context.Context, eventType logging.EventType, payload any) {
	if d.Publisher == nil {
		return
	}
	d.Publisher.Publish(ctx, logging.Event{
		Type:     eventType,
		Severity: logging.SeverityError,
		Category: logging.CategoryCodec,
		Payload:  payload,
	})
}
