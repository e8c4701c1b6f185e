package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"alerthub/internal/logging"
	"alerthub/pkg/config"
	"alerthub/pkg/faultlog"
	"alerthub/pkg/faults"
	"alerthub/pkg/session"
	"alerthub/pkg/telemetry"
)

// appEnv is what every subcommand needs: resolved paths, settings and a logger.
type appEnv struct {
	paths *config.Paths
	cfg   config.Config
	log   zerolog.Logger
}

// loadEnv resolves config for cmd, applying global flag overrides last.
func loadEnv(cmd *cobra.Command, g *globalFlags) (*appEnv, error) {
	paths, err := config.ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("resolve paths: %w", err)
	}
	cfg, err := config.Load(paths)
	if err != nil {
		return nil, err
	}
	if g.baseURL != "" {
		cfg.BaseURL = g.baseURL
	}
	if g.pushURL != "" {
		cfg.PushURL = g.pushURL
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return &appEnv{paths: paths, cfg: cfg, log: log}, nil
}

// newLogger writes human-readable lines to a terminal and JSON elsewhere.
func newLogger(w io.Writer, level string) (zerolog.Logger, error) {
	if f, ok := w.(*os.File); ok {
		return logging.ForTerminal(f, level)
	}
	return logging.New(w, level, false)
}

// openSession builds a session whose faults are also journaled to disk.
// A journal that cannot be opened is logged and skipped.
func (e *appEnv) openSession(metrics *telemetry.Metrics) (*session.Session, func(), error) {
	id := uuid.NewString()
	var reporter faults.Reporter
	journal, err := faultlog.Open(e.cfg.FaultDB, id, e.log)
	if err != nil {
		e.log.Warn().Err(err).Str("path", e.cfg.FaultDB).Msg("fault journal unavailable")
		journal = nil
	} else {
		reporter = journal
	}

	s, err := session.New(session.Options{
		ID:       id,
		Config:   e.cfg,
		Logger:   e.log,
		Reporter: reporter,
		Metrics:  metrics,
	})
	if err != nil {
		if journal != nil {
			_ = journal.Close()
		}
		return nil, nil, err
	}
	cleanup := func() {
		_ = s.Close()
		if journal != nil {
			_ = journal.Close()
		}
	}
	return s, cleanup, nil
}

// writeJSON pretty-prints v, the format of every --json flag.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
