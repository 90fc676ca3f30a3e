package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/codec"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/replay"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/stubs"
	"github.com/hansjm10/Idle-Game-Engine-sub003/logging"
	"github.com/hansjm10/Idle-Game-Engine-sub003/logging/sinks"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <trace-file>",
		Short: "Re-execute a trace against the reference runtime and check its checksum",
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

			logCfg := logging.DefaultConfig()
			router, err := logging.NewRouter(nil, logCfg, []logging.NamedSink{
				{Name: "console", Sink: sinks.NewConsoleSink(os.Stderr, logCfg.Console)},
			})
			if err != nil {
				return fmt.Errorf("start diagnostics router: %w", err)
			}
			defer router.Close(context.Background())

			dec := &codec.Decoder{Limits: cfg.decodeLimits(), Publisher: router}
			rep, err := dec.Decode(cmd.Context(), file)
			if err != nil {
				return fmt.Errorf("decode trace: %w", err)
			}

			pack, err := stubs.Pack()
			if err != nil {
				return fmt.Errorf("load reference pack: %w", err)
			}
			runner := replay.NewRunner(replay.RunnerConfig{
				Pack:      pack,
				Restore:   stubs.Restore,
				Publisher: router,
			})
			result, err := runner.Run(cmd.Context(), rep)
			if err != nil {
				return fmt.Errorf("verification failed: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"status":   "verified",
					"checksum": result.Checksum,
					"endStep":  result.Snapshot.Runtime.Step,
				})
			}
			fmt.Printf("verified: end state %s at step %d\n", result.Checksum, result.Snapshot.Runtime.Step)
			return nil
		},
	}
}
