// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package resolver

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/hand_rehab/internal/imu"
	"github.com/relabs-tech/hand_rehab/internal/samplelog"
)

// Sink receives resolved samples.
type Sink interface {
	Append(samplelog.Sample) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(samplelog.Sample) error

func (f SinkFunc) Append(s samplelog.Sample) error { return f(s) }

type tee []Sink

// Tee delivers every sample to all sinks, in order, even if one fails.
func Tee(sinks ...Sink) Sink {
	return tee(sinks)
}

func (t tee) Append(s samplelog.Sample) error {
	var errs []error
	for _, sink := range t {
		if err := sink.Append(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run is the single consumer of updates: it applies them one at a time and
// hands each resolved sample to sink. It returns when ctx is done or updates
// is closed. A failing sink is logged and the loop continues.
func Run(ctx context.Context, r *Resolver, updates <-chan imu.RawUpdate, sink Sink, log logrus.FieldLogger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			if u.Empty() {
				log.WithField("path", u.Path).Debug("ignored empty update")
				continue
			}
			s, ok := r.Apply(u)
			if !ok {
				continue
			}
			if err := sink.Append(s); err != nil {
				log.WithError(err).WithField("session_id", s.SessionID).Error("sample not stored")
				continue
			}
			log.WithFields(logrus.Fields{
				"session_id":  s.SessionID,
				"mode":        s.Mode,
				"rep_no":      s.RepNumber,
				"angle_value": s.AngleValue,
			}).Debug("logged sample")
		}
	}
}
