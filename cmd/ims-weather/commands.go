package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/i474232898/ims-weather/internal/aggregate"
	"github.com/i474232898/ims-weather/internal/collect"
	"github.com/i474232898/ims-weather/internal/common"
	"github.com/i474232898/ims-weather/internal/forecast"
	"github.com/i474232898/ims-weather/internal/sanity"
)

var errChecksFailed = errors.New("checks failed")

func (a *app) stationsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "stations", Short: "Station list"}
	cmd.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Add new stations from the API to the stations file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := a.syncer().SyncStations(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d new stations\n", n)
			return nil
		},
	})
	return cmd
}

func (a *app) regionsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "regions", Short: "Region list"}
	cmd.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Rewrite the regions file from the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := a.syncer().SyncRegions(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d regions\n", n)
			return nil
		},
	})
	return cmd
}

func (a *app) activityCmd() *cobra.Command {
	var fresh bool
	refresh := &cobra.Command{
		Use:   "refresh",
		Short: "Probe first and last readings of the stations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows, err := a.syncer().RefreshActivity(cmd.Context(), fresh)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d stations in activity file\n", len(rows))
			return nil
		},
	}
	refresh.Flags().BoolVar(&fresh, "new", false, "also probe stations with no known latest reading")

	cmd := &cobra.Command{Use: "activity", Short: "Station activity"}
	cmd.AddCommand(refresh)
	return cmd
}

func (a *app) collectCmd() *cobra.Command {
	var stations []string
	cmd := &cobra.Command{
		Use:   "collect <rain|tdmin|tdmax> (<year> | <from> <to>)",
		Short: "Collect hourly values for a year or a date window",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := collect.ParseKind(args[0])
			if err != nil {
				return err
			}
			var req collect.Request
			if len(args) == 2 {
				year, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("invalid year %q", args[1])
				}
				req = collect.YearRequest(kind, year)
			} else {
				req = collect.Request{Kind: kind, From: args[1], To: args[2]}
			}
			req.Stations = stations

			t, err := a.collector().Collect(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d rows, %d stations\n", t.Len(), len(t.Columns()))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&stations, "station", nil, "limit to these station names")
	return cmd
}

func (a *app) updateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "update <rain|temp>",
		Short:     "Extend the current year's files up to now",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"rain", "temp"},
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := a.service(nil)
			if args[0] == "rain" {
				return svc.UpdateRain(cmd.Context())
			}
			return svc.UpdateTemp(cmd.Context())
		},
	}
}

func (a *app) verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <year>",
		Short: "Compare a stored rain year with a fresh collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid year %q", args[0])
			}
			r, err := a.collector().Verify(cmd.Context(), year)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range r.MissingStored {
				fmt.Fprintf(out, "missing in file: %s\n", s)
			}
			for _, s := range r.MissingFresh {
				fmt.Fprintf(out, "missing in API: %s\n", s)
			}
			for _, m := range r.Mismatches {
				fmt.Fprintf(out, "%s: stored %.0f, API %.0f\n", m.Station, m.Stored, m.Fresh)
			}
			if !r.OK() {
				return errChecksFailed
			}
			fmt.Fprintf(out, "rain_%d.csv matches the API\n", year)
			return nil
		},
	}
}

func (a *app) aggregateCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "aggregate", Short: "Monthly and seasonal summaries"}

	var force bool
	rain := &cobra.Command{
		Use:   "regional-rain",
		Short: "Update the regional monthly rain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			updated, err := a.aggregator().RegionalRain(force)
			if err != nil {
				return err
			}
			if updated {
				fmt.Fprintln(cmd.OutOrStdout(), aggregate.RegionalRainFile+" updated")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "no changes")
			}
			return nil
		},
	}
	rain.Flags().BoolVar(&force, "force", false, "recompute every winter")

	temp := &cobra.Command{
		Use:       "regional-temp [min|max]",
		Short:     "Rebuild the regional monthly temperature extremes",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"min", "max"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := []aggregate.TempKind{aggregate.Min, aggregate.Max}
			if len(args) == 1 {
				k, err := aggregate.ParseTempKind(args[0])
				if err != nil {
					return err
				}
				kinds = []aggregate.TempKind{k}
			}
			for _, k := range kinds {
				rows, err := a.aggregator().RegionalTemp(k)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows\n", k.File(), len(rows))
			}
			return nil
		},
	}

	monthly := &cobra.Command{
		Use:   "station-monthly",
		Short: "Rebuild the per-station monthly table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows, err := a.aggregator().StationMonthly()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows\n", aggregate.StationMonthlyFile, len(rows))
			return nil
		},
	}

	var until string
	var kinds []string
	seasons := &cobra.Command{
		Use:   "seasons",
		Short: "Per-season totals and extremes of every station",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range kinds {
				k, err := aggregate.ParseSeasonKind(name)
				if err != nil {
					return err
				}
				t, err := a.aggregator().SeasonTotals(k, until, until == "")
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d seasons, %d stations\n", k, t.Len(), len(t.Columns()))
			}
			return nil
		},
	}
	seasons.Flags().StringVar(&until, "until", "", "cut every season at the end of this day (MM-DD); the result is not saved")
	seasons.Flags().StringSliceVar(&kinds, "kind", []string{"rain", "min", "max"}, "season kinds")

	var ratioUntil string
	ratio := &cobra.Command{
		Use:   "ratio <station>",
		Short: "Compare the season to date with the median of earlier seasons",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if ratioUntil == "" {
				ratioUntil = time.Now().In(common.Israel).Format("01-02")
			}
			r, err := a.aggregator().SeasonToDateRatio(args[0], ratioUntil)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s until %s: %.1f mm, median of %d seasons %.1f mm, ratio %.2f\n",
				r.Station, r.Season, ratioUntil, r.Total, r.Seasons, r.Median, r.Ratio)
			return nil
		},
	}
	ratio.Flags().StringVar(&ratioUntil, "until", "", "last day of the span (MM-DD), default today")

	extremes := &cobra.Command{
		Use:   "extremes",
		Short: "Coldest and hottest station per year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows, err := a.aggregator().Extremes()
			if err != nil {
				return err
			}
			for _, e := range rows {
				fmt.Fprintf(cmd.OutOrStdout(), "%d %s %s %.1f\n", e.Year, e.Measure, e.Station, e.Value)
			}
			return nil
		},
	}

	cmd.AddCommand(rain, temp, monthly, seasons, ratio, extremes)
	return cmd
}

func (a *app) forecastCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "forecast", Short: "City forecasts and their accuracy"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "collect",
			Short: "Store the current forecast",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				res, err := a.forecaster().Collect(cmd.Context())
				if err != nil {
					return err
				}
				if res.Existing {
					fmt.Fprintf(cmd.OutOrStdout(), "forecast %s already stored\n", res.IssueDateTime)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "forecast %s: %d rows\n", res.IssueDateTime, res.Rows)
				return nil
			},
		},
		&cobra.Command{
			Use:   "compare",
			Short: "Pair forecasts with the measured daily extremes",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				rows, err := a.forecaster().Compare()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows\n", forecast.ComparisonFile, len(rows))
				return nil
			},
		},
		&cobra.Command{
			Use:   "stats",
			Short: "Test whether longer leads have larger errors",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				rows, err := forecast.LoadComparison(a.cfg.DataDir)
				if err != nil {
					return err
				}
				printStats(cmd, forecast.PairedStats(rows, forecast.Desert))
				return nil
			},
		},
	)
	return cmd
}

func printStats(cmd *cobra.Command, tests []forecast.TTest) {
	out := cmd.OutOrStdout()
	sep := strings.Repeat("-", 80)
	var measure forecast.Measure
	for _, r := range tests {
		if r.Measure != measure {
			measure = r.Measure
			fmt.Fprintf(out, "\n%s temperature absolute errors, paired t-tests (excluding %s)\n%s\n",
				measure, strings.Join(forecast.Desert, ", "), sep)
		}
		if !r.Enough {
			fmt.Fprintf(out, "%s lead -%d vs -%d: not enough paired data (n=%d)\n", r.Measure, r.Lead, forecast.BaseLead, r.N)
			continue
		}
		fmt.Fprintf(out, "%s lead -%d vs -%d\n", r.Measure, r.Lead, forecast.BaseLead)
		fmt.Fprintf(out, "  n: %d\n  mean abs error (-%d): %.4f\n  mean abs error (-%d): %.4f\n",
			r.N, r.Lead, r.MeanErr, forecast.BaseLead, r.MeanBaseErr)
		fmt.Fprintf(out, "  t: %.4f\n  p: %.4g\n", r.T, r.P)
		if r.Significant {
			fmt.Fprintf(out, "  significant difference (p < %.2f)\n", forecast.Significance)
		} else {
			fmt.Fprintln(out, "  no significant difference")
		}
		fmt.Fprintln(out, sep)
	}
}

func (a *app) plotCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "plot", Short: "Render the HTML charts into DOCS_DIR"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "errors",
			Short: "Forecast error charts",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				written, err := a.service(nil).PlotErrors()
				if err != nil {
					return err
				}
				if !written {
					return fmt.Errorf("no %s yet, run forecast compare first", forecast.ComparisonFile)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "regional",
			Short: "Regional rain and temperature charts",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.service(nil).PlotRegional()
			},
		},
	)
	return cmd
}

func (a *app) sanityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sanity",
		Short: "Check the data files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := sanity.Run(a.cfg.DataDir, time.Now().In(common.Israel), a.logger)
			if err != nil {
				return err
			}
			for _, f := range r.Failures {
				fmt.Fprintln(cmd.OutOrStdout(), "FAIL", f)
			}
			if !r.OK() {
				return fmt.Errorf("%w: %d of %d files", errChecksFailed, len(r.Failures), r.Files)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d files OK\n", r.Files)
			return nil
		},
	}
}
