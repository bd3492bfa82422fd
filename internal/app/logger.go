// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/hand_rehab/internal/config"
	"github.com/relabs-tech/hand_rehab/internal/logging"
	"github.com/relabs-tech/hand_rehab/internal/resolver"
	"github.com/relabs-tech/hand_rehab/internal/samplelog"
	"github.com/relabs-tech/hand_rehab/internal/source"
)

// RunLogger streams device updates from MQTT through the resolver into the
// CSV log until ctx is cancelled.
func RunLogger(ctx context.Context) error {
	cfg := config.Get()
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	log.Info("starting hand-rehab logger (MQTT → CSV)")
	return runLogger(ctx, cfg, log)
}

func runLogger(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) error {
	w, err := samplelog.Open(cfg.LogPath)
	if err != nil {
		return err
	}
	defer w.Close()
	log.WithField("path", w.Path()).Info("appending samples to log")

	sub := source.NewIMUSubscription(cfg.TopicIMU, cfg.UpdateQueueSize, logging.Component(log, "source"))
	client, err := source.Connect(source.ClientOptions{
		Broker:   cfg.MQTTBroker,
		ClientID: cfg.MQTTClientIDLogger,
	}, log, sub)
	if err != nil {
		sub.Close()
		return err
	}
	defer func() {
		// release a delivery blocked on the queue before tearing the client down
		sub.Close()
		if err := sub.Detach(client); err != nil {
			log.WithError(err).Warn("unsubscribe failed")
		}
		source.Disconnect(client)
		log.Info("logger stopped")
	}()

	var sink resolver.Sink = w
	if cfg.TopicSamples != "" {
		sink = resolver.Tee(w, source.NewPublisher(client, cfg.TopicSamples))
	}

	r := resolver.New(resolver.Config{NeutralThreshold: cfg.RepNeutralThreshold})
	if err := resolver.Run(ctx, r, sub.Updates(), sink, logging.Component(log, "resolver")); err != nil {
		return fmt.Errorf("resolver: %w", err)
	}
	return nil
}
