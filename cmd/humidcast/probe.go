package main

import (
	"fmt"
	"humidcast/internal/api"
	"humidcast/internal/config"
	"humidcast/internal/logger"
	"humidcast/internal/models"
	"io"
	"net/http"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newProbeCmd(configPath *string) *cobra.Command {
	var sensorID string

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Log in to the telemetry API and show what a refresh would read",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if err := cfg.RequireUpstream(); err != nil {
				return err
			}

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			httpClient := &http.Client{Timeout: cfg.Upstream.Timeout}
			session := api.NewSession(cfg.Upstream.BaseURL, cfg.Upstream.Username, cfg.Upstream.Password, httpClient, logger.Discard())
			client := api.NewClient(cfg.Upstream.BaseURL, httpClient, session)

			token, err := session.Acquire(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Logged in to %s as %s\n", cfg.Upstream.BaseURL, cfg.Upstream.Username)

			sensors, err := client.ListSensors(ctx, token)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Catalog lists %d sensors\n", len(sensors))

			if sensorID == "" {
				sensorID = sensors[0]
			}
			series, err := client.FetchHistory(ctx, token, sensorID, cfg.Refresh.WindowDays)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "\n%s %s: %d daily averages over the last %d days\n",
				series.SensorID, series.Label, len(series.Readings), cfg.Refresh.WindowDays)
			return printSeries(out, series)
		},
	}
	cmd.Flags().StringVarP(&sensorID, "sensor", "s", "", "sensor to fetch (default: first in the catalog)")
	return cmd
}

func printSeries(w io.Writer, series models.Series) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Date", "Average"})

	var data [][]string
	for _, r := range series.Readings {
		data = append(data, []string{r.Date.Format("2006-01-02"), strconv.FormatFloat(r.Value, 'f', 2, 64)})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}
