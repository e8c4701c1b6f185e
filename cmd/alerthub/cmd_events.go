package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"alerthub/pkg/protocol"
	"alerthub/pkg/session"
	"alerthub/pkg/view"
)

type readConfig struct {
	query  string
	limit  int
	asJSON bool
}

// snapshotSession refreshes once and returns the session; callers read its cache.
func snapshotSession(cmd *cobra.Command, g *globalFlags, limit int) (*session.Session, func(), error) {
	env, err := loadEnv(cmd, g)
	if err != nil {
		return nil, nil, err
	}
	if limit > 0 {
		env.cfg.CacheSize = limit
	}
	s, cleanup, err := env.openSession(nil)
	if err != nil {
		return nil, nil, err
	}
	if err := s.Refresh(cmd.Context()); err != nil {
		cleanup()
		return nil, nil, err
	}
	return s, cleanup, nil
}

// newEventsCmd creates the "alerthub events" subcommand.
func newEventsCmd(g *globalFlags) *cobra.Command {
	var cfg readConfig

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recent events, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, cleanup, err := snapshotSession(cmd, g, cfg.limit)
			if err != nil {
				return err
			}
			defer cleanup()

			events := view.FilterEvents(s.Cache().Events(), cfg.query)
			w := cmd.OutOrStdout()
			if cfg.asJSON {
				return writeJSON(w, events)
			}
			if len(events) == 0 {
				fmt.Fprintln(w, "no events found")
				return nil
			}
			for _, ev := range events {
				formatEvent(w, ev)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&cfg.query, "query", "q", "", "case-insensitive substring filter")
	cmd.Flags().IntVarP(&cfg.limit, "limit", "n", 0, "events to fetch (default: cache size)")
	cmd.Flags().BoolVar(&cfg.asJSON, "json", false, "print as JSON")
	return cmd
}

// formatEvent writes one event: id | time | severity | channel | source | message.
func formatEvent(w io.Writer, ev protocol.Event) {
	fmt.Fprintf(w, "#%-5d | %s | %-8s | %-4s | %-16s | %s\n",
		ev.ID, ev.CreatedAt, ev.Severity, view.ChannelLabel(ev.Channel), ev.Source, ev.Message)
}

// newEmailsCmd creates the "alerthub emails" subcommand.
func newEmailsCmd(g *globalFlags) *cobra.Command {
	var cfg readConfig

	cmd := &cobra.Command{
		Use:   "emails",
		Short: "List recent notification attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, cleanup, err := snapshotSession(cmd, g, 0)
			if err != nil {
				return err
			}
			defer cleanup()

			logs := view.FilterEmailLogs(s.Cache().EmailLogs(), cfg.query)
			w := cmd.OutOrStdout()
			if cfg.asJSON {
				return writeJSON(w, logs)
			}
			if len(logs) == 0 {
				fmt.Fprintln(w, "no email logs found")
				return nil
			}
			for _, l := range logs {
				fmt.Fprintf(w, "%s | event #%-5d | %-7s | %s\n", l.CreatedAt, l.EventID, l.Status, l.Detail)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&cfg.query, "query", "q", "", "case-insensitive substring filter")
	cmd.Flags().BoolVar(&cfg.asJSON, "json", false, "print as JSON")
	return cmd
}

// newStatsCmd creates the "alerthub stats" subcommand.
func newStatsCmd(g *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show headline counters and the audit grid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, cleanup, err := snapshotSession(cmd, g, 0)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, _ := s.Cache().Stats()
			kpis := view.ComputeKPIs(stats)
			cards := view.Audit(stats)
			w := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(w, struct {
					KPIs  view.KPIs   `json:"kpis"`
					Audit []view.Card `json:"audit"`
				}{kpis, cards})
			}
			fmt.Fprintf(w, "total     %d\n", kpis.Total)
			fmt.Fprintf(w, "critical  %d\n", kpis.Critical)
			fmt.Fprintf(w, "error     %d\n", kpis.Error)
			fmt.Fprintf(w, "email     %s\n", kpis.EmailRatio())
			fmt.Fprintln(w)
			for _, c := range cards {
				fmt.Fprintf(w, "%-10s %d\n", c.Label, c.Value)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
