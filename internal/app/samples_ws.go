// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/hand_rehab/internal/samplelog"
)

const (
	wsWriteWait  = 5 * time.Second
	wsSendBuffer = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// SampleMessage is what live viewers receive for each resolved sample.
type SampleMessage struct {
	Type   string           `json:"type"` // "sample"
	Sample samplelog.Sample `json:"sample"`
}

// sampleSession holds one connected viewer.
type sampleSession struct {
	Conn *websocket.Conn
	send chan samplelog.Sample
	done chan struct{}
	once sync.Once
}

func (s *sampleSession) close() {
	s.once.Do(func() { close(s.done) })
}

// sampleHub fans resolved samples out to every connected viewer.
type sampleHub struct {
	log logrus.FieldLogger

	mu       sync.Mutex
	sessions map[*sampleSession]struct{}
}

func newSampleHub(log logrus.FieldLogger) *sampleHub {
	return &sampleHub{log: log, sessions: make(map[*sampleSession]struct{})}
}

// serve upgrades the request and streams samples until the viewer leaves.
func (h *sampleHub) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade error")
		return
	}
	defer conn.Close()

	session := &sampleSession{
		Conn: conn,
		send: make(chan samplelog.Sample, wsSendBuffer),
		done: make(chan struct{}),
	}
	h.add(session)
	defer h.remove(session)

	// Viewers never send anything meaningful; reading detects disconnects.
	go func() {
		defer session.close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.log.WithError(err).Debug("websocket read error")
				}
				return
			}
		}
	}()

	for {
		select {
		case <-session.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteWait))
			return
		case sample := <-session.send:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(SampleMessage{Type: "sample", Sample: sample}); err != nil {
				h.log.WithError(err).Debug("websocket write error")
				return
			}
		}
	}
}

func (h *sampleHub) add(s *sampleSession) {
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	n := len(h.sessions)
	h.mu.Unlock()
	h.log.WithField("viewers", n).Info("live viewer connected")
}

func (h *sampleHub) remove(s *sampleSession) {
	h.mu.Lock()
	delete(h.sessions, s)
	n := len(h.sessions)
	h.mu.Unlock()
	s.close()
	h.log.WithField("viewers", n).Info("live viewer disconnected")
}

// broadcast never blocks: a viewer whose buffer is full misses the sample.
func (h *sampleHub) broadcast(sample samplelog.Sample) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.sessions {
		select {
		case s.send <- sample:
		default:
			h.log.Debug("slow viewer, dropping sample")
		}
	}
}

func (h *sampleHub) viewers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// closeAll asks every viewer to disconnect.
func (h *sampleHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.sessions {
		s.close()
	}
}
