// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/hand_rehab/internal/app"
	"github.com/relabs-tech/hand_rehab/internal/config"
	"github.com/relabs-tech/hand_rehab/internal/logging"
)

func main() {
	var (
		configPath  string
		sessions    int
		latest      bool
		minSessions int
		chartPath   string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Forecast when range of motion nears full recovery",
		Long: `forecast reads a snapshot of the CSV log, computes range of motion per
session and fits a capped quadratic trend to predict the session at which the
patient reaches the target fraction of the maximum ROM.

Flags override the FORECAST_* keys of the configuration file.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.InitGlobal(configPath); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg := config.Get()

			// stdout carries the result, so logs go to stderr
			log, err := logging.NewWithOutput(cfg.LogLevel, os.Stderr)
			if err != nil {
				return err
			}

			opts := app.ForecastOptions(cfg)
			if cmd.Flags().Changed("sessions") {
				opts.SessionsToUse = sessions
			}
			if cmd.Flags().Changed("latest") {
				opts.UseLatest = latest
			}
			if cmd.Flags().Changed("min-sessions") {
				opts.MinSessions = minSessions
			}

			return app.RunForecast(os.Stdout, app.ForecastRequest{
				LogPath:   cfg.LogPath,
				Options:   opts,
				ChartPath: chartPath,
				JSON:      asJSON,
			}, log)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "./rehab_config.txt", "path to configuration file")
	cmd.Flags().IntVar(&sessions, "sessions", 0, "number of sessions to analyze (FORECAST_SESSIONS_TO_USE)")
	cmd.Flags().BoolVar(&latest, "latest", false, "analyze the most recent sessions instead of the first (FORECAST_USE_LATEST)")
	cmd.Flags().IntVar(&minSessions, "min-sessions", 0, "minimum sessions required for a forecast (FORECAST_MIN_SESSIONS)")
	cmd.Flags().StringVar(&chartPath, "chart", "", "write the forecast chart to this PNG file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the forecast as JSON")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
