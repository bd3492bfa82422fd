// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/hand_rehab/internal/config"
	"github.com/relabs-tech/hand_rehab/internal/imu"
	"github.com/relabs-tech/hand_rehab/internal/logging"
	"github.com/relabs-tech/hand_rehab/internal/motion"
	"github.com/relabs-tech/hand_rehab/internal/resolver"
	"github.com/relabs-tech/hand_rehab/internal/source"
)

const (
	simExcursionSamples = 8
	simDwellSamples     = 3
)

// simulator plays the device: it writes a flexion signal to the IMU node.
type simulator struct {
	client    mqtt.Client
	topic     string
	sessionID float64
	mode      float64
	partial   bool
	src       motion.Source
}

// axis is the node field the configured mode reads.
func (s *simulator) axis() string {
	if int(s.mode) == resolver.ModeZ {
		return imu.FieldZ
	}
	return imu.FieldY
}

// announce publishes the session and mode as retained fields so a logger
// started later still learns them.
func (s *simulator) announce() error {
	if !s.partial {
		return nil
	}
	if err := source.PublishJSON(s.client, s.topic+"/"+imu.FieldSessionID, true, s.sessionID); err != nil {
		return err
	}
	return source.PublishJSON(s.client, s.topic+"/"+imu.FieldMode, true, s.mode)
}

// step publishes the next angle, either as a single field or as the full node.
func (s *simulator) step() (float64, error) {
	angle, err := s.src.Next()
	if err != nil {
		return 0, fmt.Errorf("motion source: %w", err)
	}
	if s.partial {
		return angle, source.PublishJSON(s.client, s.topic+"/"+s.axis(), false, angle)
	}

	rec := imu.Record{SessionID: &s.sessionID, Mode: &s.mode}
	if s.axis() == imu.FieldZ {
		rec.Z = &angle
	} else {
		rec.Y = &angle
	}
	return angle, source.PublishJSON(s.client, s.topic, false, rec)
}

// RunSimulator publishes synthetic IMU updates until ctx is cancelled.
func RunSimulator(ctx context.Context) error {
	cfg := config.Get()
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	log.Info("starting hand-rehab device simulator (motion → MQTT)")
	return runSimulator(ctx, cfg, log)
}

func runSimulator(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) error {
	src, err := motion.NewWaveform(cfg.SimAmplitude, simExcursionSamples, simDwellSamples)
	if err != nil {
		return err
	}

	client, err := source.Connect(source.ClientOptions{
		Broker:   cfg.MQTTBroker,
		ClientID: cfg.MQTTClientIDSimulator,
	}, log)
	if err != nil {
		return err
	}
	defer source.Disconnect(client)

	sim := &simulator{
		client:    client,
		topic:     cfg.TopicIMU,
		sessionID: float64(cfg.SimSessionID),
		mode:      float64(cfg.SimMode),
		partial:   cfg.SimPartialUpdates,
		src:       src,
	}
	if err := sim.announce(); err != nil {
		return err
	}
	perRep := src.SamplesPerRep()
	log.WithFields(logrus.Fields{
		"session_id":      cfg.SimSessionID,
		"mode":            cfg.SimMode,
		"partial":         cfg.SimPartialUpdates,
		"samples_per_rep": perRep,
		"rep_period":      time.Duration(perRep*cfg.SimInterval) * time.Millisecond,
	}).Info("connected to MQTT, starting publish loop")

	ticker := time.NewTicker(time.Duration(cfg.SimInterval) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("simulator stopped")
			return nil
		case <-ticker.C:
			angle, err := sim.step()
			if err != nil {
				log.WithError(err).Warn("publish failed")
				continue
			}
			log.WithField("angle", angle).Debug("published angle")
		}
	}
}
