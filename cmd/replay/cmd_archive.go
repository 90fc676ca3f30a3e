package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/codec"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/store"
)

func newArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Manage the local replay archive",
	}
	cmd.AddCommand(
		newArchiveSaveCmd(),
		newArchiveListCmd(),
		newArchiveExportCmd(),
		newArchiveDeleteCmd(),
	)
	return cmd
}

func openArchive(cmd *cobra.Command) (*store.Archive, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.ArchivePath)
}

func newArchiveSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save <trace-file>",
		Short: "Decode a trace file and store it in the archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
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

			archive, err := store.Open(cfg.ArchivePath)
			if err != nil {
				return err
			}
			defer archive.Close()

			id, err := archive.Save(cmd.Context(), rep)
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		},
	}
}

func newArchiveListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived replays",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			packID, _ := cmd.Flags().GetString("pack")

			archive, err := openArchive(cmd)
			if err != nil {
				return err
			}
			defer archive.Close()

			entries, err := archive.List(cmd.Context(), packID)
			if err != nil {
				return err
			}
			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(entries)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPACK\tSCHEMA\tWINDOW\tCOMMANDS\tRECORDED")
			for _, entry := range entries {
				fmt.Fprintf(w, "%s\t%s@%s\tv%d\t[%d,%d)\t%d\t%s\n",
					entry.ID, entry.PackID, entry.PackVersion, entry.SchemaVersion,
					entry.StartStep, entry.EndStep, entry.CommandCount,
					entry.RecordedAt.Format("2006-01-02 15:04:05"),
				)
			}
			return w.Flush()
		},
	}
	cmd.Flags().String("pack", "", "Only list replays for this pack id")
	return cmd
}

func newArchiveExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <id>",
		Short: "Write an archived replay to stdout as a record stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := openArchive(cmd)
			if err != nil {
				return err
			}
			defer archive.Close()

			rep, err := archive.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return codec.Encode(os.Stdout, rep, codec.EncodeOptions{})
		},
	}
}

func newArchiveDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an archived replay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := openArchive(cmd)
			if err != nil {
				return err
			}
			defer archive.Close()
			return archive.Delete(cmd.Context(), args[0])
		},
	}
}
