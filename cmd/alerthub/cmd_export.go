package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"alerthub/pkg/command"
	"alerthub/pkg/session"
)

// newExportCmd creates the "alerthub export" subcommand.
func newExportCmd(g *globalFlags) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a fresh snapshot to a JSON file",
		Long: "Reads up to the export limit of events plus email logs and stats and writes\n" +
			"them as one document. --out may be a file, a directory or - for stdout.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := loadEnv(cmd, g)
			if err != nil {
				return err
			}
			s, cleanup, err := env.openSession(nil)
			if err != nil {
				return err
			}
			defer cleanup()

			if out == "-" {
				doc, err := s.Export(cmd.Context())
				if err != nil {
					return err
				}
				return command.WriteExport(cmd.OutOrStdout(), doc)
			}
			path, n, err := exportTo(cmd, s, out, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d events to %s\n", n, path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", ".", "output file, directory, or - for stdout")
	return cmd
}

// exportTo writes an export under target. A directory target gets the
// timestamped default file name.
func exportTo(cmd *cobra.Command, s *session.Session, target string, now time.Time) (string, int, error) {
	doc, err := s.Export(cmd.Context())
	if err != nil {
		return "", 0, err
	}
	path := target
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		path = filepath.Join(target, command.ExportFileName(now))
	}
	if err := writeFileAtomic(path, func(w io.Writer) error { return command.WriteExport(w, doc) }); err != nil {
		return "", 0, err
	}
	return path, len(doc.Events), nil
}

// writeFileAtomic writes through a temp file in the same directory, then renames.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".alerthub-export-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename
	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close export: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename export: %w", err)
	}
	return nil
}
