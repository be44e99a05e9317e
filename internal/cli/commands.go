package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"readiness/internal/analysis"
	"readiness/internal/stats"
	"readiness/internal/store"
)

func newComputeCommand(current func() *app) *cobra.Command {
	var user, date string
	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Compute the readiness assessment of one day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := parseDay("date", date)
			if err != nil {
				return err
			}
			a, err := current().svc.ComputeReadiness(cmd.Context(), user, d)
			if err != nil {
				return err
			}
			return printAssessment(cmd.OutOrStdout(), a)
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id")
	cmd.Flags().StringVar(&date, "date", "", "day to assess, YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newRangeCommand(current func() *app) *cobra.Command {
	var user, from, to string
	cmd := &cobra.Command{
		Use:   "range",
		Short: "Compute the readiness assessments of consecutive days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, err := parseDay("from", from)
			if err != nil {
				return err
			}
			end, err := parseDay("to", to)
			if err != nil {
				return err
			}
			// Days rejected for data quality come back in err next to the
			// days that were assessed.
			results, err := current().svc.ComputeRange(cmd.Context(), user, start, end)
			for _, a := range results {
				if perr := printAssessment(cmd.OutOrStdout(), a); perr != nil {
					return perr
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id")
	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last day, YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func newInvalidateCommand(current func() *app) *cobra.Command {
	var user, date string
	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Force the next computation of a day to start from scratch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := parseDay("date", date)
			if err != nil {
				return err
			}
			if err := current().svc.Invalidate(cmd.Context(), user, d); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "invalidated %s %s\n", user, store.DateKey(d))
			return err
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id")
	cmd.Flags().StringVar(&date, "date", "", "day, YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

// newRecordCommand appends one raw sample. A value of "none" records an
// explicit no-value marker.
func newRecordCommand(current func() *app) *cobra.Command {
	var user, date, kind, value string
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Append a raw metric sample",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := parseDay("date", date)
			if err != nil {
				return err
			}
			k, err := parseKind(kind)
			if err != nil {
				return err
			}
			sample := store.MetricSample{UserID: user, Date: d, Kind: k}
			if value != "none" {
				v, err := strconv.ParseFloat(value, 64)
				if err != nil {
					return fmt.Errorf("invalid --value %q: %w", value, err)
				}
				sample.Value = &v
			}
			return current().store.AppendSamples(cmd.Context(), []store.MetricSample{sample})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id")
	cmd.Flags().StringVar(&date, "date", "", "day, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&kind, "kind", "", "metric kind, e.g. hrv_rmssd or training_load")
	cmd.Flags().StringVar(&value, "value", "", `sample value, or "none"`)
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

func parseKind(s string) (store.MetricKind, error) {
	k := store.MetricKind(s)
	switch k {
	case store.KindHRV, store.KindRestingHR, store.KindTrainingLoad:
		return k, nil
	}
	for _, sk := range store.SleepKinds {
		if k == sk {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown metric kind %q", s)
}

// newHistoryCommand prints stored assessments with their load snapshots
// without computing anything.
func newHistoryCommand(current func() *app) *cobra.Command {
	var user, from, to string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored assessments and training load snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, err := parseDay("from", from)
			if err != nil {
				return err
			}
			end, err := parseDay("to", to)
			if err != nil {
				return err
			}
			st := current().store
			assessments, err := st.ListAssessments(cmd.Context(), user, start, end)
			if err != nil {
				return err
			}
			snapshots, err := st.ListSnapshots(cmd.Context(), user, start, end)
			if err != nil {
				return err
			}
			byDate := make(map[string]store.TrainingLoadSnapshot, len(snapshots))
			for _, s := range snapshots {
				byDate[store.DateKey(s.Date)] = s
			}
			trends, err := scoreTrends(assessments, start, end)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for i := range assessments {
				a := &assessments[i]
				if err := printAssessment(w, a); err != nil {
					return err
				}
				tr := trends[store.DateKey(a.Date)]
				if _, err := fmt.Fprintf(w, "            avg%d=%s  smoothed=%s\n",
					trendWindowDays, formatValue(tr.Average), formatValue(tr.Smoothed)); err != nil {
					return err
				}
				snap, ok := byDate[store.DateKey(a.Date)]
				if !ok {
					continue
				}
				acwr := "n/a"
				if snap.ACWR != nil {
					acwr = strconv.FormatFloat(*snap.ACWR, 'f', 2, 64)
				}
				if _, err := fmt.Fprintf(w, "            acwr=%s  fitness=%.1f  fatigue=%.1f  form=%.1f  monotony=%.2f\n",
					acwr, snap.Fitness, snap.Fatigue, snap.Form, snap.Monotony); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id")
	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last day, YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

// Composite score smoothing shown by history.
const (
	trendWindowDays = 7
	trendHalflife   = 7.0
)

// scoreTrends smooths the composite scores of assessments over the days of
// [from, to], keyed by date. Days without an assessment are gaps.
func scoreTrends(assessments []store.ReadinessAssessment, from, to time.Time) (map[string]analysis.ScoreTrend, error) {
	scores := make(map[string]float64, len(assessments))
	for _, a := range assessments {
		scores[store.DateKey(a.Date)] = a.CompositeScore
	}

	var days []string
	var series []stats.Value
	for d := store.Day(from); !d.After(to); d = d.AddDate(0, 0, 1) {
		key := store.DateKey(d)
		days = append(days, key)
		if v, ok := scores[key]; ok {
			series = append(series, stats.Some(v))
		} else {
			series = append(series, stats.None())
		}
	}

	smoothed, err := analysis.SmoothScores(series, trendWindowDays, trendHalflife)
	if err != nil {
		return nil, err
	}
	out := make(map[string]analysis.ScoreTrend, len(days))
	for i, key := range days {
		out[key] = smoothed[i]
	}
	return out, nil
}

func formatValue(v stats.Value) string {
	x, ok := v.Get()
	if !ok {
		return "n/a"
	}
	return strconv.FormatFloat(x, 'f', 1, 64)
}

// newFitnessCommand prints the fitness/fatigue curve replayed from the
// recorded training loads.
func newFitnessCommand(current func() *app) *cobra.Command {
	var user, from, to string
	cmd := &cobra.Command{
		Use:   "fitness",
		Short: "Replay the fitness/fatigue curve from recorded training loads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, err := parseDay("from", from)
			if err != nil {
				return err
			}
			end, err := parseDay("to", to)
			if err != nil {
				return err
			}
			curve, err := current().svc.FitnessCurve(cmd.Context(), user, start, end)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, st := range curve {
				if _, err := fmt.Fprintf(w, "%s  fitness=%.1f  fatigue=%.1f  form=%.1f\n",
					store.DateKey(st.Date), st.Fitness, st.Fatigue, st.Form()); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id")
	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last day, YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}
