// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package resolver rebuilds complete samples from partial IMU updates and
// numbers them by repetition.
package resolver

import (
	"math"
	"time"

	"github.com/relabs-tech/hand_rehab/internal/imu"
	"github.com/relabs-tech/hand_rehab/internal/samplelog"
)

// Modes select which axis carries the clinical angle.
const (
	ModeY = 1
	ModeZ = 2
)

// State is everything the resolver remembers between updates.
// nil means not yet known.
type State struct {
	SessionID *int
	Mode      *int
	Y         *float64
	Z         *float64
	Rep       RepDetector
}

// Config tunes a Resolver.
type Config struct {
	NeutralThreshold float64          // rep neutral band; DefaultNeutralThreshold when zero
	Now              func() time.Time // clock; time.Now when nil
}

// Resolver is not safe for concurrent use. Feed it from a single goroutine
// (see Run).
type Resolver struct {
	state State
	now   func() time.Time
}

func New(cfg Config) *Resolver {
	threshold := cfg.NeutralThreshold
	if threshold <= 0 {
		threshold = DefaultNeutralThreshold
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Resolver{
		state: State{Rep: NewRepDetector(threshold)},
		now:   now,
	}
}

// State returns a copy of the current state.
func (r *Resolver) State() State {
	s := r.state
	s.SessionID = copyPtr(s.SessionID)
	s.Mode = copyPtr(s.Mode)
	s.Y = copyPtr(s.Y)
	s.Z = copyPtr(s.Z)
	return s
}

// Apply merges one update into the state. It returns a sample when the state
// holds a session, a mode and that mode's axis value; the consumed axis values
// are then cleared. Session, mode and rep tracking carry over.
func (r *Resolver) Apply(u imu.RawUpdate) (samplelog.Sample, bool) {
	if u.Empty() {
		return samplelog.Sample{}, false
	}

	if u.Record != nil {
		r.merge(imu.FieldSessionID, u.Record.SessionID)
		r.merge(imu.FieldMode, u.Record.Mode)
		r.merge(imu.FieldY, u.Record.Y)
		r.merge(imu.FieldZ, u.Record.Z)
	} else {
		r.merge(u.Key(), u.Scalar)
	}

	return r.resolve()
}

func (r *Resolver) merge(field string, v *float64) {
	if v == nil {
		return
	}
	switch field {
	case imu.FieldSessionID:
		if id, ok := asInt(*v); ok {
			r.state.SessionID = &id
		}
	case imu.FieldMode:
		if m, ok := asInt(*v); ok {
			r.state.Mode = &m
		}
	case imu.FieldY:
		y := *v
		r.state.Y = &y
	case imu.FieldZ:
		z := *v
		r.state.Z = &z
	}
}

func (r *Resolver) resolve() (samplelog.Sample, bool) {
	if r.state.SessionID == nil || r.state.Mode == nil {
		return samplelog.Sample{}, false
	}

	var angle *float64
	switch *r.state.Mode {
	case ModeY:
		angle = r.state.Y
	case ModeZ:
		angle = r.state.Z
	}
	if angle == nil {
		return samplelog.Sample{}, false
	}

	s := samplelog.Sample{
		SessionID:  *r.state.SessionID,
		Mode:       *r.state.Mode,
		RepNumber:  r.state.Rep.Observe(*angle),
		AngleValue: *angle,
		Timestamp:  r.now().Truncate(time.Millisecond),
	}
	r.state.Y = nil
	r.state.Z = nil
	return s, true
}

// asInt accepts integral floats in int32 range only; ids and modes arrive
// as JSON numbers.
func asInt(v float64) (int, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, false
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, false
	}
	return int(v), true
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
