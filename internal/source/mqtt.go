// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package source connects the rehab binaries to the MQTT broker: it turns
// the device's IMU node into a stream of raw updates and carries resolved
// samples between processes.
package source

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/hand_rehab/internal/imu"
	"github.com/relabs-tech/hand_rehab/internal/samplelog"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	disconnectWait = 250 // ms
)

// ClientOptions configures Connect.
type ClientOptions struct {
	Broker   string
	ClientID string
}

// Attacher installs subscriptions on a connected client. Attach runs once
// after the first connect and again after every reconnect.
type Attacher interface {
	Attach(c mqtt.Client) error
}

// Connect dials the broker and attaches subs. The client id gets a short
// random suffix so two instances of the same binary do not kick each other off.
func Connect(opts ClientOptions, log logrus.FieldLogger, subs ...Attacher) (mqtt.Client, error) {
	clientID := opts.ClientID + "-" + uuid.NewString()[:8]

	var connected atomic.Bool
	o := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithError(err).Warn("MQTT connection lost")
		}).
		SetOnConnectHandler(func(c mqtt.Client) {
			// the first connect is handled synchronously below
			if !connected.Swap(true) {
				return
			}
			log.Info("reconnected to MQTT broker, restoring subscriptions")
			attachAll(c, log, subs)
		})

	client := mqtt.NewClient(o)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("MQTT connect to %s timed out", opts.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("MQTT connect to %s: %w", opts.Broker, err)
	}
	log.WithFields(logrus.Fields{"broker": opts.Broker, "client_id": clientID}).Info("connected to MQTT broker")

	for _, s := range subs {
		if err := s.Attach(client); err != nil {
			client.Disconnect(disconnectWait)
			return nil, err
		}
	}
	return client, nil
}

// Disconnect closes the client, letting in-flight work finish briefly.
func Disconnect(c mqtt.Client) {
	c.Disconnect(disconnectWait)
}

func attachAll(c mqtt.Client, log logrus.FieldLogger, subs []Attacher) {
	for _, s := range subs {
		if err := s.Attach(c); err != nil {
			log.WithError(err).Error("failed to restore subscription")
		}
	}
}

func subscribe(c mqtt.Client, filter string, handler mqtt.MessageHandler) error {
	token := c.Subscribe(filter, 1, handler)
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("subscribe to %s timed out", filter)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", filter, err)
	}
	return nil
}

// IMUSubscription watches the device node and every field beneath it and
// queues the parsed updates in arrival order.
type IMUSubscription struct {
	topic   string
	updates chan imu.RawUpdate
	done    chan struct{}
	once    sync.Once
	log     logrus.FieldLogger
}

// NewIMUSubscription returns a subscription for topic with room for queue
// pending updates.
func NewIMUSubscription(topic string, queue int, log logrus.FieldLogger) *IMUSubscription {
	return &IMUSubscription{
		topic:   strings.TrimSuffix(topic, "/"),
		updates: make(chan imu.RawUpdate, queue),
		done:    make(chan struct{}),
		log:     log,
	}
}

// Filter is the MQTT topic filter. "node/#" also matches "node" itself.
func (s *IMUSubscription) Filter() string {
	return s.topic + "/#"
}

// Updates is the ordered update stream for the resolver.
func (s *IMUSubscription) Updates() <-chan imu.RawUpdate {
	return s.updates
}

func (s *IMUSubscription) Attach(c mqtt.Client) error {
	if err := subscribe(c, s.Filter(), func(_ mqtt.Client, msg mqtt.Message) {
		s.Handle(msg.Topic(), msg.Payload())
	}); err != nil {
		return err
	}
	s.log.WithField("topic", s.Filter()).Info("subscribed to IMU updates")
	return nil
}

// Detach unsubscribes from the device node.
func (s *IMUSubscription) Detach(c mqtt.Client) error {
	token := c.Unsubscribe(s.Filter())
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("unsubscribe from %s timed out", s.Filter())
	}
	return token.Error()
}

// Handle parses one message and queues it. A full queue blocks the
// delivering goroutine until the resolver catches up or Close is called.
// That goroutine also processes acks and pings, so the queue size is the
// largest burst the client rides out without stalling.
func (s *IMUSubscription) Handle(topic string, payload []byte) {
	u, err := imu.ParseUpdate(topic, payload)
	if err != nil {
		s.log.WithError(err).WithField("topic", topic).Warn("dropping malformed IMU update")
		return
	}
	if u.Empty() {
		return
	}
	select {
	case s.updates <- u:
	case <-s.done:
	}
}

// Close unblocks pending deliveries. Updates() is not closed since the MQTT
// client may still be delivering.
func (s *IMUSubscription) Close() {
	s.once.Do(func() { close(s.done) })
}

// SampleSubscription delivers samples published by a logger.
type SampleSubscription struct {
	Topic   string
	Handler func(samplelog.Sample)
	Log     logrus.FieldLogger
}

func (s *SampleSubscription) Attach(c mqtt.Client) error {
	if err := subscribe(c, s.Topic, func(_ mqtt.Client, msg mqtt.Message) {
		var sample samplelog.Sample
		if err := json.Unmarshal(msg.Payload(), &sample); err != nil {
			s.Log.WithError(err).Warn("sample payload unmarshal error")
			return
		}
		s.Handler(sample)
	}); err != nil {
		return err
	}
	s.Log.WithField("topic", s.Topic).Info("subscribed to resolved samples")
	return nil
}

// Publisher republishes resolved samples. It satisfies resolver.Sink.
type Publisher struct {
	client mqtt.Client
	topic  string
}

func NewPublisher(c mqtt.Client, topic string) *Publisher {
	return &Publisher{client: c, topic: topic}
}

func (p *Publisher) Append(s samplelog.Sample) error {
	return PublishJSON(p.client, p.topic, false, s)
}

// PublishJSON marshals v and publishes it at QoS 1.
func PublishJSON(c mqtt.Client, topic string, retained bool, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal payload for %s: %w", topic, err)
	}
	token := c.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}
