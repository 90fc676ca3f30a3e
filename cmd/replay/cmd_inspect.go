package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/codec"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/replay"
)

type inspectSummary struct {
	FileType      string `json:"fileType"`
	SchemaVersion int    `json:"schemaVersion"`
	PackID        string `json:"packId"`
	PackVersion   string `json:"packVersion"`
	Digest        string `json:"digest"`
	StepSizeMs    int64  `json:"stepSizeMs"`
	StartStep     int64  `json:"startStep"`
	EndStep       int64  `json:"endStep"`
	Commands      int    `json:"commands"`
	VMFrames      int    `json:"viewModelFrames"`
	RCBFrames     int    `json:"rcbFrames"`
	EndChecksum   string `json:"endChecksum"`
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <trace-file>",
		Short: "Decode a trace file and print its summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			jsonOut, _ := cmd.Flags().GetBool("json")

			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open trace: %w", err)
			}
			defer file.Close()

			dec := &codec.Decoder{Limits: cfg.decodeLimits()}
			rep, err := dec.Decode(cmd.Context(), file)
			if err != nil {
				return fmt.Errorf("decode trace: %w", err)
			}

			summary := summarize(rep)
			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(summary)
			}
			fmt.Printf("schema:      v%d\n", summary.SchemaVersion)
			fmt.Printf("pack:        %s@%s (%s)\n", summary.PackID, summary.PackVersion, summary.Digest)
			fmt.Printf("window:      steps [%d, %d) at %dms\n", summary.StartStep, summary.EndStep, summary.StepSizeMs)
			fmt.Printf("commands:    %d\n", summary.Commands)
			if summary.SchemaVersion >= replay.SchemaV2 {
				fmt.Printf("frames:      %d view-model, %d rcb\n", summary.VMFrames, summary.RCBFrames)
			}
			fmt.Printf("end state:   %s\n", summary.EndChecksum)
			return nil
		},
	}
}

func summarize(rep replay.Replay) inspectSummary {
	summary := inspectSummary{
		FileType:      rep.Header.FileType,
		SchemaVersion: rep.Header.SchemaVersion,
		PackID:        rep.Content.PackID,
		PackVersion:   rep.Content.PackVersion,
		Digest:        rep.Content.Digest.Hash,
		StepSizeMs:    rep.Sim.StepSizeMs,
		StartStep:     rep.Sim.StartStep,
		EndStep:       rep.Sim.EndStep,
		Commands:      len(rep.Sim.Commands),
		EndChecksum:   rep.Sim.EndStateChecksum,
	}
	if rep.Frames != nil {
		summary.VMFrames = len(rep.Frames.ViewModels)
		summary.RCBFrames = len(rep.Frames.RenderCommandBuffers)
	}
	return summary
}
