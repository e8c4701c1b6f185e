package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"alerthub/pkg/command"
	"alerthub/pkg/protocol"
	"alerthub/pkg/session"
)

const (
	importedSuffix = ".imported"
	rejectedSuffix = ".rejected"
	importDebounce = 200 * time.Millisecond
)

var errNotImported = errors.New("document not imported")

// newImportCmd creates the "alerthub import" subcommand.
func newImportCmd(g *globalFlags) *cobra.Command {
	var watchDir string

	cmd := &cobra.Command{
		Use:   "import [file...]",
		Short: "Replay events from JSON documents",
		Long: "Creates every event listed in {\"events\": [...]} documents, continuing past\n" +
			"rejected entries. With --watch DIR, *.json files dropped into DIR are imported\n" +
			"and renamed to *.json.imported (or *.json.rejected when unreadable).",
		RunE: func(cmd *cobra.Command, args []string) error {
			if watchDir == "" && len(args) == 0 {
				return errors.New("import needs at least one file or --watch DIR")
			}
			env, err := loadEnv(cmd, g)
			if err != nil {
				return err
			}
			s, cleanup, err := env.openSession(nil)
			if err != nil {
				return err
			}
			defer cleanup()

			var failed int
			for _, path := range args {
				res, err := importFile(cmd.Context(), s, path, cmd.OutOrStdout())
				switch {
				case err != nil:
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
					failed++
				case res.Failed() > 0:
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d of %d events could not be created\n", path, res.Failed(), res.Attempted)
					failed++
				}
			}
			if watchDir != "" {
				return watchImports(cmd.Context(), s, watchDir, cmd.OutOrStdout(), env.log)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files did not import cleanly", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&watchDir, "watch", "", "import *.json files dropped into this directory")
	return cmd
}

// importFile parses and replays one document. A document that cannot be read or
// parsed is errNotImported; a partially created batch is reported but not an error.
func importFile(ctx context.Context, s *session.Session, path string, w io.Writer) (protocol.BatchResult, error) {
	f, err := os.Open(path) //nolint:gosec // user-supplied import path, intentional
	if err != nil {
		return protocol.BatchResult{}, fmt.Errorf("%w: %w", errNotImported, err)
	}
	doc, err := command.ParseImport(f)
	_ = f.Close()
	if err != nil {
		return protocol.BatchResult{}, fmt.Errorf("%w: %w", errNotImported, err)
	}
	res, err := s.Import(ctx, doc)
	if err != nil {
		return res, err
	}
	fmt.Fprintf(w, "%s: imported %d of %d events\n", filepath.Base(path), res.Created, res.Attempted)
	return res, nil
}

// isImportCandidate reports whether name is a pending import document.
func isImportCandidate(name string) bool {
	return strings.HasSuffix(name, ".json") && !strings.HasPrefix(filepath.Base(name), ".")
}

// watchImports imports existing and newly written documents in dir until ctx is done.
func watchImports(ctx context.Context, s *session.Session, dir string, w io.Writer, log zerolog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	existing, _ := filepath.Glob(filepath.Join(dir, "*.json"))
	sort.Strings(existing)
	for _, path := range existing {
		processImport(ctx, s, path, w, log)
	}
	log.Info().Str("dir", dir).Msg("watching for import documents")

	pending := make(map[string]struct{})
	debounce := newDebounceTimer()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || !isImportCandidate(ev.Name) {
				continue
			}
			pending[ev.Name] = struct{}{}
			resetDebounceTimer(debounce, importDebounce)
		case <-debounce.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			sort.Strings(paths)
			for _, path := range paths {
				processImport(ctx, s, path, w, log)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("import watcher error")
		}
	}
}

// processImport imports path and renames it so it is never replayed twice.
func processImport(ctx context.Context, s *session.Session, path string, w io.Writer, log zerolog.Logger) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	suffix := importedSuffix
	if _, err := importFile(ctx, s, path, w); err != nil {
		if !errors.Is(err, errNotImported) {
			// Interrupted mid-batch; leave it for the next run.
			log.Warn().Err(err).Str("file", path).Msg("import interrupted")
			return
		}
		log.Warn().Err(err).Str("file", path).Msg("import rejected")
		suffix = rejectedSuffix
	}
	if err := os.Rename(path, path+suffix); err != nil {
		log.Warn().Err(err).Str("file", path).Msg("rename import document")
	}
}

func newDebounceTimer() *time.Timer {
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	return timer
}

func resetDebounceTimer(timer *time.Timer, d time.Duration) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(d)
}
