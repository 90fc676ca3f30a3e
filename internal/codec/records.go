// Package codec streams replays as line-delimited JSON. Each line is one
// flat, self-describing record discriminated by its "type" key; large
// collections are split across fixed-size chunk records so a trace never has
// to be held as a single JSON document.
package codec

import (
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/command"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/replay"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/runtime"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/snapshot"
)

// RecordKind discriminates the line types of the stream.
type RecordKind string

const (
	KindHeader          RecordKind = "header"
	KindContent         RecordKind = "content"
	KindAssets          RecordKind = "assets"
	KindSim             RecordKind = "sim"
	KindCommands        RecordKind = "commands"
	KindViewModelFrames RecordKind = "viewModelFrames"
	KindRCBFrames       RecordKind = "rcbFrames"
	KindEnd             RecordKind = "end"
)

// HeaderRecord is always the first line of a stream. The header fields sit
// flat beside the discriminator.
type HeaderRecord struct {
	Type RecordKind `json:"type"`
	replay.Header
}

// ContentRecord pins the stream to its content pack.
type ContentRecord struct {
	Type RecordKind `json:"type"`
	replay.Content
}

// AssetsRecord carries the asset manifest fingerprint.
type AssetsRecord struct {
	Type RecordKind `json:"type"`
	replay.Assets
}

// SimRecord opens the simulation trace: the wiring, the step window start
// and the initial snapshot. Commands stream separately in chunks; the end of
// the window and the end-state checksum travel on the end record.
type SimRecord struct {
	Type            RecordKind           `json:"type"`
	Wiring          runtime.FeatureFlags `json:"wiring"`
	StepSizeMs      int64                `json:"stepSizeMs"`
	StartStep       int64                `json:"startStep"`
	InitialSnapshot snapshot.Snapshot    `json:"initialSnapshot"`
}

// CommandChunkRecord carries one contiguous slice of the command trace.
// Chunk indices start at zero and increase by one per record.
type CommandChunkRecord struct {
	Type       RecordKind        `json:"type"`
	ChunkIndex int               `json:"chunkIndex"`
	Commands   []command.Command `json:"commands"`
}

// ViewModelFrameChunkRecord carries one contiguous slice of the v2
// view-model frame stream.
type ViewModelFrameChunkRecord struct {
	Type       RecordKind              `json:"type"`
	ChunkIndex int                     `json:"chunkIndex"`
	Frames     []replay.ViewModelFrame `json:"frames"`
}

// RCBFrameChunkRecord carries one contiguous slice of the v2 render-command
// frame stream.
type RCBFrameChunkRecord struct {
	Type       RecordKind                        `json:"type"`
	ChunkIndex int                               `json:"chunkIndex"`
	Frames     []replay.RenderCommandBufferFrame `json:"frames"`
}

// EndRecord terminates the stream. It closes the step window, carries the
// recorded end-state checksum, and lets a reader verify it received every
// element the writer emitted.
type EndRecord struct {
	Type                RecordKind `json:"type"`
	EndStep             int64      `json:"endStep"`
	EndStateChecksum    string     `json:"endStateChecksum"`
	CommandCount        int        `json:"commandCount"`
	ViewModelFrameCount int        `json:"viewModelFrameCount,omitempty"`
	RCBFrameCount       int        `json:"rcbFrameCount,omitempty"`
}
