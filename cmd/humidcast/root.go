package main

import (
	"humidcast/internal/config"

	"github.com/spf13/cobra"
)

// All linker flags will be set at build time.
var (
	version = "dev"
	commit  = "none"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "humidcast",
		Short:         "Humidity forecast refresh engine",
		Long:          "humidcast polls a telemetry API, fits a small lag model per sensor and serves the latest forecasts.",
		Version:       version + " (" + commit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigFile, "path to the YAML config file")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newRefreshCmd(&configPath))
	root.AddCommand(newArchiveCmd(&configPath))
	root.AddCommand(newProbeCmd(&configPath))
	return root
}
