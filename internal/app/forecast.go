// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/hand_rehab/internal/chart"
	"github.com/relabs-tech/hand_rehab/internal/config"
	"github.com/relabs-tech/hand_rehab/internal/forecast"
	"github.com/relabs-tech/hand_rehab/internal/samplelog"
)

// ForecastRequest is one run of the forecast command.
type ForecastRequest struct {
	LogPath   string
	Options   forecast.Options
	ChartPath string // PNG written here when set
	JSON      bool   // print the result as JSON instead of the summary
}

// ForecastOptions maps the FORECAST_* keys onto forecaster options.
func ForecastOptions(cfg *config.Config) forecast.Options {
	return forecast.Options{
		SessionsToUse:  cfg.ForecastSessionsToUse,
		UseLatest:      cfg.ForecastUseLatest,
		MinSessions:    cfg.ForecastMinSessions,
		ClipMin:        cfg.ForecastClipMin,
		ClipMax:        cfg.ForecastClipMax,
		MaxROM:         cfg.ForecastMaxROM,
		TargetFraction: cfg.ForecastTargetFraction,
		MaxHorizon:     cfg.ForecastMaxHorizon,
	}
}

// loadForecast snapshots the log and runs the forecaster on it. A log that
// does not exist yet holds no sessions.
func loadForecast(logPath string, opts forecast.Options) (*forecast.Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	rows, err := samplelog.ReadFile(logPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return forecast.Run(rows, opts)
}

// RunForecast prints a recovery forecast for the log in req to out.
// Insufficient data is reported on out and is not an error.
func RunForecast(out io.Writer, req ForecastRequest, log logrus.FieldLogger) error {
	res, err := loadForecast(req.LogPath, req.Options)
	var insufficient *forecast.InsufficientDataError
	switch {
	case errors.As(err, &insufficient):
		fmt.Fprintf(out, "Not enough data available to predict recovery progress (%d sessions, need %d).\n",
			insufficient.Have, insufficient.Need)
		return nil
	case err != nil:
		return err
	}

	if res.UsedAllSessions {
		log.WithFields(logrus.Fields{
			"requested": req.Options.SessionsToUse,
			"available": res.SessionsAvailable,
		}).Warn("log has fewer sessions than requested, using all available data")
	}

	if req.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("encode forecast: %w", err)
		}
	} else {
		printSummary(out, res)
	}

	if req.ChartPath != "" {
		if err := writeChart(req.ChartPath, res); err != nil {
			return err
		}
		log.WithField("path", req.ChartPath).Info("wrote forecast chart")
	}
	return nil
}

func printSummary(out io.Writer, res *forecast.Result) {
	if res.UsedAllSessions {
		fmt.Fprintf(out, "Dataset only has %d sessions, using all available data.\n", res.SessionsAvailable)
	}
	fmt.Fprintln(out, "Recovery Progress Prediction:")
	fmt.Fprintf(out, "  Sessions analyzed: %d\n", res.SessionsAnalyzed)
	fmt.Fprintf(out, "  Current ROM: %.2f\n", res.CurrentROM)
	fmt.Fprintf(out, "  Predicted total sessions for near full recovery: %d\n", res.PredictedSession)
	fmt.Fprintf(out, "  Estimated sessions remaining: %d\n", res.RemainingSessions)
	fmt.Fprintf(out, "  Estimated full recovery date: %s\n", res.EstimatedCompletion.Format("2006-01-02"))
	if !res.TargetReached {
		fmt.Fprintf(out, "  Note: trend does not reach %.1f deg within the search horizon\n", res.TargetROM)
	}
}

func writeChart(path string, res *forecast.Result) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close chart file: %w", cerr)
		}
	}()
	return chart.Render(f, res)
}
