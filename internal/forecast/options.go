// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package forecast

import (
	"errors"
	"fmt"
)

// Defaults for a forecast run.
const (
	DefaultSessionsToUse  = 20
	DefaultMinSessions    = 10
	DefaultMaxROM         = 170.0 // degrees, physiological ceiling
	DefaultClipMin        = -70.0
	DefaultClipMax        = 70.0
	DefaultTargetFraction = 0.95
	DefaultMaxHorizon     = 1000 // sessions searched past the last observed one

	// minFitPoints is the fewest sessions a degree-2 fit accepts, whatever
	// MinSessions says.
	minFitPoints = 3
)

// Options configures a forecast run.
type Options struct {
	SessionsToUse  int     `json:"sessions_to_use"`
	UseLatest      bool    `json:"use_latest"`
	MinSessions    int     `json:"min_sessions"`
	ClipMin        float64 `json:"clip_min"`
	ClipMax        float64 `json:"clip_max"`
	MaxROM         float64 `json:"max_rom"`
	TargetFraction float64 `json:"target_fraction"`
	MaxHorizon     int     `json:"max_horizon"`
}

// DefaultOptions returns the clinic defaults.
func DefaultOptions() Options {
	return Options{
		SessionsToUse:  DefaultSessionsToUse,
		MinSessions:    DefaultMinSessions,
		ClipMin:        DefaultClipMin,
		ClipMax:        DefaultClipMax,
		MaxROM:         DefaultMaxROM,
		TargetFraction: DefaultTargetFraction,
		MaxHorizon:     DefaultMaxHorizon,
	}
}

// ConfigError reports an option that cannot be used.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid forecast option %s: %s", e.Field, e.Reason)
}

// IsConfigError reports whether err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// Validate rejects options the forecaster cannot run with.
func (o Options) Validate() error {
	switch {
	case o.SessionsToUse <= 0:
		return &ConfigError{Field: "sessions_to_use", Reason: fmt.Sprintf("must be a positive integer, got %d", o.SessionsToUse)}
	case o.MinSessions <= 0:
		return &ConfigError{Field: "min_sessions", Reason: fmt.Sprintf("must be a positive integer, got %d", o.MinSessions)}
	case o.MaxHorizon <= 0:
		return &ConfigError{Field: "max_horizon", Reason: fmt.Sprintf("must be a positive integer, got %d", o.MaxHorizon)}
	case !(o.MaxROM > 0):
		return &ConfigError{Field: "max_rom", Reason: fmt.Sprintf("must be positive, got %g", o.MaxROM)}
	case !(o.ClipMin < o.ClipMax):
		return &ConfigError{Field: "clip_range", Reason: fmt.Sprintf("min %g must be below max %g", o.ClipMin, o.ClipMax)}
	case !(o.TargetFraction > 0 && o.TargetFraction <= 1):
		return &ConfigError{Field: "target_fraction", Reason: fmt.Sprintf("must be in (0, 1], got %g", o.TargetFraction)}
	}
	return nil
}

// requiredSessions is the effective data-sufficiency threshold.
func (o Options) requiredSessions() int {
	return max(o.MinSessions, minFitPoints)
}

// ErrInsufficientData is matched by every *InsufficientDataError.
var ErrInsufficientData = errors.New("not enough data available to predict recovery progress")

// InsufficientDataError means too few sessions were selected to fit a trend.
type InsufficientDataError struct {
	Have int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: %d sessions, need %d", ErrInsufficientData, e.Have, e.Need)
}

func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}
