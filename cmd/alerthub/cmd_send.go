package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"alerthub/pkg/command"
	"alerthub/pkg/hubclient"
	"alerthub/pkg/protocol"
)

type sendConfig struct {
	source   string
	severity string
	message  string
	tcp      bool
	tcpAddr  string
	asJSON   bool
}

// newSendCmd creates the "alerthub send" subcommand.
func newSendCmd(g *globalFlags) *cobra.Command {
	var cfg sendConfig

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Create one event",
		Long: "Creates a manual event through the REST API, or through the TCP ingestion\n" +
			"port with --tcp. Blank source and message get the panel defaults.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sev, ok := protocol.ParseSeverity(cfg.severity)
			if !ok {
				return fmt.Errorf("unknown severity %q (want info, warning, error or critical)", cfg.severity)
			}
			env, err := loadEnv(cmd, g)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()

			if cfg.tcp {
				addr, err := resolveTCPAddr(cmd.Context(), env, cfg.tcpAddr)
				if err != nil {
					return err
				}
				sender, err := hubclient.DialTCP(cmd.Context(), addr)
				if err != nil {
					return err
				}
				defer sender.Close()
				ack, err := sender.Send(cmd.Context(), command.BuildRequest(cfg.source, sev, cfg.message))
				if err != nil {
					return err
				}
				if cfg.asJSON {
					return writeJSON(w, ack)
				}
				fmt.Fprintf(w, "sent over tcp: event #%d\n", ack.EventID)
				return nil
			}

			s, cleanup, err := env.openSession(nil)
			if err != nil {
				return err
			}
			defer cleanup()

			ev, err := s.Create(cmd.Context(), cfg.source, sev, cfg.message)
			if err != nil {
				return err
			}
			if cfg.asJSON {
				return writeJSON(w, ev)
			}
			fmt.Fprintf(w, "created event #%d [%s] %s: %s\n", ev.ID, ev.Severity, ev.Source, ev.Message)
			return nil
		},
	}

	cmd.Flags().StringVarP(&cfg.source, "source", "s", "", "event source (default "+protocol.DefaultSource+")")
	cmd.Flags().StringVar(&cfg.severity, "severity", string(protocol.SeverityInfo), "info, warning, error or critical")
	cmd.Flags().StringVarP(&cfg.message, "message", "m", "", "event message, cut to 300 characters")
	cmd.Flags().BoolVar(&cfg.tcp, "tcp", false, "send through the TCP ingestion port")
	cmd.Flags().StringVar(&cfg.tcpAddr, "tcp-addr", "", "TCP ingestion host:port (default: ask the hub)")
	cmd.Flags().BoolVar(&cfg.asJSON, "json", false, "print the result as JSON")

	return cmd
}

// newSeedCmd creates the "alerthub seed" subcommand.
func newSeedCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the demo events",
		Args:  cobra.NoArgs,
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

			res, err := s.Seed(cmd.Context())
			if err != nil {
				return err
			}
			return reportBatch(cmd, "seeded", res)
		},
	}
}

// reportBatch prints a batch summary and fails the command when any item failed.
func reportBatch(cmd *cobra.Command, verb string, res protocol.BatchResult) error {
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d of %d events\n", verb, res.Created, res.Attempted)
	if res.Failed() > 0 {
		return fmt.Errorf("%d of %d events could not be created", res.Failed(), res.Attempted)
	}
	return nil
}
