// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Field names the device writes under the IMU node.
const (
	FieldSessionID = "sessionID"
	FieldMode      = "mode"
	FieldY         = "y"
	FieldZ         = "z"
)

// Record is the full IMU node as the device writes it. Any field may be absent.
type Record struct {
	SessionID *float64 `json:"sessionID,omitempty"`
	Mode      *float64 `json:"mode,omitempty"`
	Y         *float64 `json:"y,omitempty"` // mode 1 axis
	Z         *float64 `json:"z,omitempty"` // mode 2 axis
}

// RawUpdate is one change notification from the event source: either a full
// record or a single scalar addressed by the last segment of Path.
// An update with neither is a deletion and carries no data.
type RawUpdate struct {
	Path   string
	Record *Record
	Scalar *float64
}

// Empty reports whether the update carries no data.
func (u RawUpdate) Empty() bool {
	return u.Record == nil && u.Scalar == nil
}

// Key returns the terminal path segment, e.g. "y" for "IMU/y".
func (u RawUpdate) Key() string {
	p := strings.Trim(u.Path, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// ParseUpdate decodes a payload published at path.
// Empty payloads and JSON null are deletions and yield an empty update.
// Fields of a record that are not numbers are dropped.
func ParseUpdate(path string, payload []byte) (RawUpdate, error) {
	u := RawUpdate{Path: path}

	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return u, nil
	}

	if payload[0] == '{' {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(payload, &fields); err != nil {
			return u, fmt.Errorf("imu record at %q: %w", path, err)
		}
		rec := &Record{
			SessionID: numberField(fields, FieldSessionID),
			Mode:      numberField(fields, FieldMode),
			Y:         numberField(fields, FieldY),
			Z:         numberField(fields, FieldZ),
		}
		u.Record = rec
		return u, nil
	}

	var v float64
	if err := json.Unmarshal(payload, &v); err != nil {
		return u, fmt.Errorf("imu scalar at %q: %w", path, err)
	}
	u.Scalar = &v
	return u, nil
}

func numberField(fields map[string]json.RawMessage, name string) *float64 {
	raw, ok := fields[name]
	if !ok {
		return nil
	}
	var v *float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}
