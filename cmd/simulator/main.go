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
		Use:   "simulator",
		Short: "Publish synthetic finger flexion to the IMU node",
		Long: `simulator stands in for the glove: it publishes a flexion signal for the
configured session and mode, either as single-field updates (SIM_PARTIAL_UPDATES=true)
or as full node records.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.InitGlobal(configPath); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return app.RunSimulator(ctx)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "./rehab_config.txt", "path to configuration file")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
