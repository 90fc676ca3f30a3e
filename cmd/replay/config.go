package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/codec"
	"github.com/spf13/cobra"
)

// cliConfig is the optional YAML configuration shared by the subcommands.
type cliConfig struct {
	ArchivePath string `yaml:"archivePath"`
	Limits      struct {
		MaxLines           int `yaml:"maxLines"`
		MaxCommands        int `yaml:"maxCommands"`
		MaxViewModelFrames int `yaml:"maxViewModelFrames"`
		MaxRCBFrames       int `yaml:"maxRcbFrames"`
	} `yaml:"limits"`
}

func defaultConfig() cliConfig {
	return cliConfig{ArchivePath: "replays.db"}
}

// loadConfig reads the --config file if one was given, otherwise returns
// defaults.
func loadConfig(cmd *cobra.Command) (cliConfig, error) {
	cfg := defaultConfig()
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cliConfig{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cliConfig{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.ArchivePath == "" {
		cfg.ArchivePath = "replays.db"
	}
	return cfg, nil
}

func (c cliConfig) decodeLimits() codec.DecodeLimits {
	return codec.DecodeLimits{
		MaxLines:           c.Limits.MaxLines,
		MaxCommands:        c.Limits.MaxCommands,
		MaxViewModelFrames: c.Limits.MaxViewModelFrames,
		MaxRCBFrames:       c.Limits.MaxRCBFrames,
	}
}
