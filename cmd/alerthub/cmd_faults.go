package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"alerthub/pkg/faultlog"
	"alerthub/pkg/faults"
)

type faultsConfig struct {
	tail      int
	kind      string
	component string
	asJSON    bool
}

// newFaultsCmd creates the "alerthub faults" subcommand.
func newFaultsCmd(g *globalFlags) *cobra.Command {
	var cfg faultsConfig

	cmd := &cobra.Command{
		Use:   "faults",
		Short: "Show journaled sync faults",
		Long: "Displays faults recorded by earlier alerthub runs, newest first.\n" +
			"Kinds: transport, decode, validation, partial_batch, unknown.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.kind != "" {
				if _, ok := faults.ParseKind(cfg.kind); !ok {
					return fmt.Errorf("unknown fault kind %q", cfg.kind)
				}
			}
			env, err := loadEnv(cmd, g)
			if err != nil {
				return err
			}
			r, err := faultlog.NewReader(env.cfg.FaultDB)
			if err != nil {
				return err
			}
			defer r.Close()

			entries, err := r.Query(cmd.Context(), faultlog.QueryOpts{
				Kind:      cfg.kind,
				Component: cfg.component,
				Limit:     cfg.tail,
			})
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if cfg.asJSON {
				return writeJSON(w, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(w, "no faults found")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(w, "%s | %-13s | %-8s | x%-3d | %s\n",
					e.CreatedAt.Format("2006-01-02 15:04:05"), e.Kind, e.Component, e.Count, e.Message)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&cfg.tail, "tail", 20, "number of recent faults to show")
	cmd.Flags().StringVar(&cfg.kind, "kind", "", "only this fault kind")
	cmd.Flags().StringVar(&cfg.component, "component", "", "only this component (push, snapshot, command, import, export)")
	cmd.Flags().BoolVar(&cfg.asJSON, "json", false, "print as JSON")
	return cmd
}
