// Package cli implements the readiness command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"readiness/internal/store"
)

// Execute runs the command tree with args, writing results to out. The
// backends opened for the command are released even when it fails.
func Execute(ctx context.Context, out io.Writer, args []string) error {
	var a *app
	root := newRootCommand(out, &a)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if a != nil {
		err = errors.Join(err, a.close())
	}
	return err
}

// newRootCommand builds the command tree. The app wired before a
// subcommand runs is stored in *a.
func newRootCommand(out io.Writer, a **app) *cobra.Command {
	var configPath, logLevel string

	root := &cobra.Command{
		Use:           "readiness",
		Short:         "Compute daily training readiness from HRV, sleep and training load.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.RunE == nil {
				return nil // help, completion
			}
			var err error
			*a, err = newApp(cmd.Context(), configPath, logLevel)
			return err
		},
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $READINESS_CONFIG or ~/.readiness/config.yaml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	current := func() *app { return *a }
	root.AddCommand(
		newComputeCommand(current),
		newRangeCommand(current),
		newInvalidateCommand(current),
		newRecordCommand(current),
		newHistoryCommand(current),
		newFitnessCommand(current),
	)
	return root
}

// parseDay parses a YYYY-MM-DD flag. Empty means today in UTC.
func parseDay(flag, value string) (time.Time, error) {
	if value == "" {
		return store.Day(time.Now().UTC()), nil
	}
	d, err := store.ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q: want YYYY-MM-DD", flag, value)
	}
	return d, nil
}

func printAssessment(w io.Writer, a *store.ReadinessAssessment) error {
	_, err := fmt.Fprintf(w, "%s  composite=%5.1f  status=%-9s  hrv=%5.1f  sleep=%5.1f  load=%5.1f\n",
		store.DateKey(a.Date), a.CompositeScore, a.Status, a.HRVScore, a.SleepScore, a.LoadScore)
	return err
}
