package codec

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/command"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/replay"
)

// Default chunk sizes. Chunking bounds the size of any single line so
// readers never need to buffer a whole trace's commands at once.
const (
	DefaultMaxCommandsPerChunk = 1000
	DefaultMaxFramesPerChunk   = 250
)

// EncodeOptions tunes chunking. Zero values select the defaults; negative
// values are rejected.
type EncodeOptions struct {
	MaxCommandsPerChunk int
	MaxFramesPerChunk   int
}

func (o EncodeOptions) resolve() (EncodeOptions, error) {
	if o.MaxCommandsPerChunk < 0 {
		return EncodeOptions{}, fmt.Errorf("negative commands-per-chunk %d", o.MaxCommandsPerChunk)
	}
	if o.MaxFramesPerChunk < 0 {
		return EncodeOptions{}, fmt.Errorf("negative frames-per-chunk %d", o.MaxFramesPerChunk)
	}
	if o.MaxCommandsPerChunk == 0 {
		o.MaxCommandsPerChunk = DefaultMaxCommandsPerChunk
	}
	if o.MaxFramesPerChunk == 0 {
		o.MaxFramesPerChunk = DefaultMaxFramesPerChunk
	}
	return o, nil
}

// Encode writes the replay to w as a line-delimited record stream. The
// trace is validated first; a replay that fails validation is never
// serialized.
func Encode(w io.Writer, rep replay.Replay, opts EncodeOptions) error {
	opts, err := opts.resolve()
	if err != nil {
		return err
	}
	if rep.Header.SchemaVersion == replay.SchemaV1 && rep.HasFrames() {
		return &UnsupportedFeatureError{Feature: "visual frames", SchemaVersion: replay.SchemaV1}
	}
	if err := rep.Validate(); err != nil {
		return err
	}

	buffered := bufio.NewWriter(w)
	enc := json.NewEncoder(buffered)

	records := []any{
		HeaderRecord{Type: KindHeader, Header: rep.Header},
		ContentRecord{Type: KindContent, Content: rep.Content},
		AssetsRecord{Type: KindAssets, Assets: rep.Assets},
		SimRecord{
			Type:            KindSim,
			Wiring:          rep.Sim.Wiring,
			StepSizeMs:      rep.Sim.StepSizeMs,
			StartStep:       rep.Sim.StartStep,
			InitialSnapshot: rep.Sim.InitialSnapshot,
		},
	}
	for _, record := range records {
		if err := enc.Encode(record); err != nil {
			return fmt.Errorf("encode %T: %w", record, err)
		}
	}

	for index, chunk := range chunkCommands(rep.Sim.Commands, opts.MaxCommandsPerChunk) {
		record := CommandChunkRecord{Type: KindCommands, ChunkIndex: index, Commands: chunk}
		if err := enc.Encode(record); err != nil {
			return fmt.Errorf("encode command chunk %d: %w", index, err)
		}
	}

	end := EndRecord{
		Type:             KindEnd,
		EndStep:          rep.Sim.EndStep,
		EndStateChecksum: rep.Sim.EndStateChecksum,
		CommandCount:     len(rep.Sim.Commands),
	}
	if rep.Frames != nil {
		for index, chunk := range chunkViewModels(rep.Frames.ViewModels, opts.MaxFramesPerChunk) {
			record := ViewModelFrameChunkRecord{Type: KindViewModelFrames, ChunkIndex: index, Frames: chunk}
			if err := enc.Encode(record); err != nil {
				return fmt.Errorf("encode view-model chunk %d: %w", index, err)
			}
		}
		for index, chunk := range chunkRCBs(rep.Frames.RenderCommandBuffers, opts.MaxFramesPerChunk) {
			record := RCBFrameChunkRecord{Type: KindRCBFrames, ChunkIndex: index, Frames: chunk}
			if err := enc.Encode(record); err != nil {
				return fmt.Errorf("encode rcb chunk %d: %w", index, err)
			}
		}
		end.ViewModelFrameCount = len(rep.Frames.ViewModels)
		end.RCBFrameCount = len(rep.Frames.RenderCommandBuffers)
	}

	if err := enc.Encode(end); err != nil {
		return fmt.Errorf("encode end record: %w", err)
	}
	return buffered.Flush()
}

func chunkCommands(commands []command.Command, size int) [][]command.Command {
	var chunks [][]command.Command
	for start := 0; start < len(commands); start += size {
		end := min(start+size, len(commands))
		chunks = append(chunks, commands[start:end])
	}
	return chunks
}

func chunkViewModels(frames []replay.ViewModelFrame, size int) [][]replay.ViewModelFrame {
	var chunks [][]replay.ViewModelFrame
	for start := 0; start < len(frames); start += size {
		end := min(start+size, len(frames))
		chunks = append(chunks, frames[start:end])
	}
	return chunks
}

func chunkRCBs(frames []replay.RenderCommandBufferFrame, size int) [][]replay.RenderCommandBufferFrame {
	var chunks [][]replay.RenderCommandBufferFrame
	for start := 0; start < len(frames); start += size {
		end := min(start+size, len(frames))
		chunks = append(chunks, frames[start:end])
	}
	return chunks
}
