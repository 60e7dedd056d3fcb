package main

import (
	"fmt"
	"humidcast/internal/config"
	"humidcast/internal/logger"
	"humidcast/internal/models"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"
)

func newRefreshCmd(configPath *string) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Run a single refresh cycle and print the forecasts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if err := cfg.RequireUpstream(); err != nil {
				return err
			}

			log := logger.NewWithWriter(cfg.Logging, cmd.ErrOrStderr())
			if quiet {
				log = logger.Discard()
			}

			a := newApp(cmd.Context(), cfg, log)
			defer a.Close()

			report, err := a.refresher.RunCycle(cmd.Context())
			if err != nil {
				return fmt.Errorf("refresh cycle %s %s: %w", report.CycleID, report.Outcome, err)
			}

			if err := printResults(cmd.OutOrStdout(), a.cache.ReadAll()); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "\n%d sensors, %d ok, %d failed in %s\n",
				report.Sensors, report.Succeeded, report.Failed, report.Duration.Round(time.Millisecond))
			return err
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress log output")
	return cmd
}

// printResults writes one table row per sensor, ordered by sensor id.
func printResults(w io.Writer, snap models.Snapshot) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Sensor", "Label", "Forecast", "MSE", "Train/Test", "Error"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignLeft
	})

	ids := make([]string, 0, len(snap.Results))
	for id := range snap.Results {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var data [][]string
	for _, id := range ids {
		r := snap.Results[id]
		row := []string{id, r.Label, "-", "-", "-", r.Error}
		if r.IsOK() {
			row[2] = strconv.FormatFloat(r.Value, 'f', 2, 64)
			row[3] = strconv.FormatFloat(r.MSE, 'f', 3, 64)
			row[4] = fmt.Sprintf("%d/%d", r.TrainRows, r.TestRows)
		}
		data = append(data, row)
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}
