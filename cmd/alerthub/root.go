package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"alerthub/internal/version"
)

// globalFlags override config values for a single invocation.
type globalFlags struct {
	baseURL  string
	pushURL  string
	logLevel string
}

// newRootCmd creates the root alerthub command with all subcommands attached.
func newRootCmd() *cobra.Command {
	var g globalFlags

	cmd := &cobra.Command{
		Use:   "alerthub",
		Short: "Live client for the network alert hub",
		Long: "alerthub keeps a bounded, newest-first view of the alert hub's events\n" +
			"in sync through periodic snapshots and the live push channel.",
		Version:       fmt.Sprintf("alerthub %s", version.String()),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.PersistentFlags().StringVar(&g.baseURL, "base-url", "", "hub REST endpoint (overrides config)")
	cmd.PersistentFlags().StringVar(&g.pushURL, "push-url", "", "hub push endpoint (overrides config)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error")

	cmd.AddCommand(
		newWatchCmd(&g),
		newSendCmd(&g),
		newSeedCmd(&g),
		newImportCmd(&g),
		newExportCmd(&g),
		newEventsCmd(&g),
		newEmailsCmd(&g),
		newStatsCmd(&g),
		newFaultsCmd(&g),
		newProbeCmd(&g),
		newDemoHubCmd(&g),
		newDashCmd(),
	)
	return cmd
}
