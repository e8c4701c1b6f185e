package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
)

const dashBinary = "alerthub-dash"

func newDashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dash [alerthub-dash flags]",
		Short: "Open the terminal dashboard",
		Long: `Starts alerthub-dash: KPIs, the live event list, notification attempts and
the audit counters in four tabs, with the push channel state and hub health in
the status bar. Flags after "dash" go to alerthub-dash unchanged.`,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			self, _ := os.Executable()
			bin, err := findDash(self)
			if err != nil {
				return err
			}
			c := exec.CommandContext(cmd.Context(), bin, args...)
			c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
			if err := c.Run(); err != nil {
				return fmt.Errorf("%s: %w", dashBinary, err)
			}
			return nil
		},
	}
}

// findDash prefers an alerthub-dash installed beside self, then $PATH.
func findDash(self string) (string, error) {
	if self != "" {
		sibling := filepath.Join(filepath.Dir(self), dashBinary)
		if fi, err := os.Stat(sibling); err == nil && !fi.IsDir() && fi.Mode()&0o111 != 0 {
			return sibling, nil
		}
	}
	bin, err := exec.LookPath(dashBinary)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%s not found beside %q or on PATH", dashBinary, self)
		}
		return "", err
	}
	return bin, nil
}
