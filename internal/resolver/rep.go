// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package resolver

import "math"

// DefaultNeutralThreshold is the half-width of the neutral band, in degrees.
const DefaultNeutralThreshold = 1e-3

// Phase is the side of the neutral band the angle was last seen on.
type Phase int

const (
	PhaseUnknown Phase = iota
	PhaseNeutral
	PhaseNegative
	PhasePositive
)

func (p Phase) String() string {
	switch p {
	case PhaseNeutral:
		return "neutral"
	case PhaseNegative:
		return "negative"
	case PhasePositive:
		return "positive"
	default:
		return "unknown"
	}
}

// RepDetector counts repetitions: a rep completes when the angle returns to the
// neutral band after leaving it. Staying on one side never counts twice.
type RepDetector struct {
	Threshold float64
	Counter   int
	Phase     Phase
}

// NewRepDetector returns a detector whose counter starts at 1.
func NewRepDetector(threshold float64) RepDetector {
	return RepDetector{Threshold: threshold, Counter: 1}
}

// Observe applies one angle value and returns the current rep number.
func (d *RepDetector) Observe(v float64) int {
	switch {
	case math.Abs(v) < d.Threshold:
		if d.Phase == PhaseNegative || d.Phase == PhasePositive {
			d.Counter++
		}
		d.Phase = PhaseNeutral
	case v < 0:
		d.Phase = PhaseNegative
	case v > 0:
		d.Phase = PhasePositive
	}
	return d.Counter
}
