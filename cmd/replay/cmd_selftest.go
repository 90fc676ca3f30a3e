package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/codec"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/command"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/replay"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/runtime"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/stubs"
)

// selftest exercises the full pipeline in-process: record a short reference
// run, stream it through the codec, replay it and compare checksums.
func newSelftestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "selftest",
		Short: "Record, encode, decode and re-verify a reference run",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			steps, _ := cmd.Flags().GetInt64("steps")
			if steps <= 0 {
				return fmt.Errorf("steps must be positive")
			}

			pack, err := stubs.Pack()
			if err != nil {
				return fmt.Errorf("build reference pack: %w", err)
			}
			flags := runtime.FeatureFlags{EnableProduction: true, EnableEntities: true}
			world := stubs.NewWorld(100, flags)
			rec, err := replay.NewRecorder(pack, world, replay.RecorderConfig{
				RuntimeVersion: version,
				Flags:          flags,
			})
			if err != nil {
				return fmt.Errorf("new recorder: %w", err)
			}

			queue := world.CommandQueue()
			for step := int64(0); step < steps; step++ {
				if step%2 == 0 {
					collect := command.Command{
						Type:     stubs.CmdCollectResource,
						Priority: command.PriorityPlayer,
						Step:     step,
						Payload:  map[string]any{"resourceId": "gold", "amount": 5.0},
					}
					if !queue.Enqueue(collect) {
						return fmt.Errorf("reference runtime rejected command at step %d", step)
					}
					if err := rec.RecordCommand(collect); err != nil {
						return fmt.Errorf("record command: %w", err)
					}
				}
				world.Tick(100)
			}

			rep, err := rec.Export()
			if err != nil {
				return fmt.Errorf("export trace: %w", err)
			}

			var stream bytes.Buffer
			if err := codec.Encode(&stream, rep, codec.EncodeOptions{}); err != nil {
				return fmt.Errorf("encode trace: %w", err)
			}
			dec := &codec.Decoder{}
			decoded, err := dec.Decode(cmd.Context(), &stream)
			if err != nil {
				return fmt.Errorf("decode trace: %w", err)
			}

			runner := replay.NewRunner(replay.RunnerConfig{Pack: pack, Restore: stubs.Restore})
			result, err := runner.Run(cmd.Context(), decoded)
			if err != nil {
				return fmt.Errorf("replay diverged: %w", err)
			}
			if result.Checksum != rep.Sim.EndStateChecksum {
				return fmt.Errorf("checksum %s does not match recorded %s", result.Checksum, rep.Sim.EndStateChecksum)
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"status":   "ok",
					"steps":    steps,
					"commands": len(rep.Sim.Commands),
					"checksum": result.Checksum,
				})
			}
			fmt.Printf("selftest ok: %d steps, %d commands, end state %s\n", steps, len(rep.Sim.Commands), result.Checksum)
			return nil
		},
	}
	cmd.Flags().Int64("steps", 10, "Number of simulation steps to record")
	return cmd
}
