// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/hand_rehab/internal/app"
	"github.com/relabs-tech/hand_rehab/internal/config"
)

func main() {
	var configPath string

	cmd := &cobra.Command{
		Use:   "logger",
		Short: "Log resolved hand-rehab samples from MQTT to CSV",
		Long: `logger subscribes to the device's IMU node on the MQTT broker, resolves
partial updates into complete samples, counts repetitions and appends one
row per sample to the CSV log. Samples are also republished for live views.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.InitGlobal(configPath); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return app.RunLogger(ctx)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "./rehab_config.txt", "path to configuration file")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
