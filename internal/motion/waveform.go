// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package motion generates synthetic finger flexion for the simulator.
package motion

import (
	"fmt"
	"math"
)

// Source is anything that can provide flexion angles over time, in degrees.
type Source interface {
	Next() (float64, error)
}

// Waveform alternates flexion and extension excursions, each shaped as a
// half sine, separated by dwell samples at exactly zero. Every excursion
// followed by its dwell is one repetition.
type Waveform struct {
	amplitude float64
	excursion int // samples per excursion
	dwell     int // zero samples after each excursion
	step      int
}

// NewWaveform returns a waveform peaking at ±amplitude degrees.
func NewWaveform(amplitude float64, excursion, dwell int) (*Waveform, error) {
	if amplitude <= 0 {
		return nil, fmt.Errorf("amplitude must be positive, got %g", amplitude)
	}
	if excursion < 1 || dwell < 1 {
		return nil, fmt.Errorf("excursion and dwell need at least one sample, got %d and %d", excursion, dwell)
	}
	return &Waveform{amplitude: amplitude, excursion: excursion, dwell: dwell}, nil
}

// Next returns the angle for the next sample. It never fails.
func (w *Waveform) Next() (float64, error) {
	half := w.excursion + w.dwell
	i := w.step % (2 * half)
	w.step++

	sign := 1.0
	if i >= half {
		sign = -1
		i -= half
	}
	if i >= w.excursion {
		return 0, nil
	}
	// strictly inside (0, π) so an excursion never touches the neutral band
	return sign * w.amplitude * math.Sin(math.Pi*float64(i+1)/float64(w.excursion+1)), nil
}

// SamplesPerRep is the period of one repetition.
func (w *Waveform) SamplesPerRep() int {
	return w.excursion + w.dwell
}
