// Command schema emits the JSON schema for the replay record stream, one
// schema per record kind, so external tooling can validate trace files
// without linking this module.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/codec"
)

func main() {
	var outPath string
	flag.StringVar(&outPath, "out", "", "path to write the JSON schema")
	flag.Parse()

	if outPath == "" {
		fmt.Fprintln(os.Stderr, "--out is required")
		os.Exit(1)
	}

	if err := writeSchema(outPath, buildSchema()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write schema: %v\n", err)
		os.Exit(1)
	}
}

func buildSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}

	root := &jsonschema.Schema{
		Version:     jsonschema.Version,
		Title:       "Simulation Replay Record Stream",
		Description: "One line of a line-delimited replay trace. Every line matches exactly one record kind.",
		OneOf: []*jsonschema.Schema{
			reflector.Reflect(new(codec.HeaderRecord)),
			reflector.Reflect(new(codec.ContentRecord)),
			reflector.Reflect(new(codec.AssetsRecord)),
			reflector.Reflect(new(codec.SimRecord)),
			reflector.Reflect(new(codec.CommandChunkRecord)),
			reflector.Reflect(new(codec.ViewModelFrameChunkRecord)),
			reflector.Reflect(new(codec.RCBFrameChunkRecord)),
			reflector.Reflect(new(codec.EndRecord)),
		},
	}
	return root
}

func writeSchema(outPath string, schema *jsonschema.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}

	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}

	return nil
}
