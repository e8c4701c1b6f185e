// Package main implements the alerthub-dash interactive dashboard.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"alerthub/internal/logging"
	"alerthub/internal/version"
	"alerthub/pkg/config"
	"alerthub/pkg/faultlog"
	"alerthub/pkg/faults"
	"alerthub/pkg/protocol"
	"alerthub/pkg/session"
	"alerthub/pkg/view"
)

type dashFlags struct {
	baseURL   string
	pushURL   string
	exportDir string
	robot     bool
}

// robotSnapshot is what --json prints.
type robotSnapshot struct {
	Events    []protocol.Event         `json:"events"`
	EmailLogs []protocol.EmailLogEntry `json:"email_logs"`
	Stats     protocol.Stats           `json:"stats"`
	KPIs      view.KPIs                `json:"kpis"`
	Audit     []view.Card              `json:"audit"`
}

// robotMode outputs a JSON snapshot of the cache.
func robotMode(b Backend) ([]byte, error) {
	c := b.Cache()
	stats, _ := c.Stats()
	data, err := json.Marshal(robotSnapshot{
		Events:    c.Events(),
		EmailLogs: c.EmailLogs(),
		Stats:     stats,
		KPIs:      view.ComputeKPIs(stats),
		Audit:     view.Audit(stats),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

func newRootCmd() *cobra.Command {
	var f dashFlags

	cmd := &cobra.Command{
		Use:           "alerthub-dash",
		Short:         "Interactive alert hub dashboard",
		Version:       version.String(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, f)
		},
	}
	cmd.Flags().StringVar(&f.baseURL, "base-url", "", "hub REST endpoint (overrides config)")
	cmd.Flags().StringVar(&f.pushURL, "push-url", "", "hub push endpoint (overrides config)")
	cmd.Flags().StringVar(&f.exportDir, "export-dir", ".", "directory for exports")
	cmd.Flags().BoolVar(&f.robot, "json", false, "print one JSON snapshot and exit")
	return cmd
}

func run(cmd *cobra.Command, f dashFlags) error {
	paths, err := config.ResolvePaths()
	if err != nil {
		return fmt.Errorf("resolve paths: %w", err)
	}
	cfg, err := config.Load(paths)
	if err != nil {
		return err
	}
	if f.baseURL != "" {
		cfg.BaseURL = f.baseURL
	}
	if f.pushURL != "" {
		cfg.PushURL = f.pushURL
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// The screen belongs to the TUI; logs go to a file.
	log := zerolog.Nop()
	if err := os.MkdirAll(paths.Home, 0o755); err == nil {
		if lf, err := logging.OpenFile(paths.DashLogPath); err == nil {
			defer lf.Close()
			if l, err := logging.New(lf, cfg.LogLevel, false); err == nil {
				log = l
			}
		}
	}

	id := uuid.NewString()
	var reporter faults.Reporter
	if journal, err := faultlog.Open(cfg.FaultDB, id, log); err == nil {
		defer journal.Close()
		reporter = journal
	} else {
		log.Warn().Err(err).Msg("fault journal unavailable")
	}

	s, err := session.New(session.Options{ID: id, Config: cfg, Logger: log, Reporter: reporter})
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	if f.robot {
		if err := s.Refresh(ctx); err != nil {
			return err
		}
		data, err := robotMode(s)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}

	if err := s.Start(ctx); err != nil {
		return err
	}
	defer s.Close()

	p := tea.NewProgram(newModel(ctx, s, f.exportDir), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run dashboard: %w", err)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running dashboard: %v\n", err)
		os.Exit(1)
	}
}
