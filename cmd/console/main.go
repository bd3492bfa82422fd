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
		Use:          "console",
		Short:        "Print raw IMU updates and resolved samples from the broker",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.InitGlobal(configPath); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return app.RunConsole(ctx, os.Stdout)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "./rehab_config.txt", "path to configuration file")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
