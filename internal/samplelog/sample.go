// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package samplelog holds the resolved sample type and its append-only CSV log.
package samplelog

import (
	"fmt"
	"strconv"
	"time"
)

// TimestampLayout is the log's timestamp format, millisecond precision.
const TimestampLayout = "2006-01-02 15:04:05.000"

// Column names, in persisted order.
const (
	ColSessionID  = "session_id"
	ColMode       = "mode"
	ColRepNo      = "rep_no"
	ColAngleValue = "angle_value"
	ColTimestamp  = "timestamp"
)

// Sample is one fully resolved reading. It is both the resolver's output and a
// persisted log row.
type Sample struct {
	SessionID  int       `json:"session_id"`
	Mode       int       `json:"mode"`        // 1 = y axis, 2 = z axis
	RepNumber  int       `json:"rep_no"`
	AngleValue float64   `json:"angle_value"` // degrees
	Timestamp  time.Time `json:"timestamp"`
}

// Header returns the CSV header row.
func Header() []string {
	return []string{ColSessionID, ColMode, ColRepNo, ColAngleValue, ColTimestamp}
}

// CSVRow formats the sample in header order.
func (s Sample) CSVRow() []string {
	return []string{
		strconv.Itoa(s.SessionID),
		strconv.Itoa(s.Mode),
		strconv.Itoa(s.RepNumber),
		strconv.FormatFloat(s.AngleValue, 'f', -1, 64),
		s.Timestamp.Format(TimestampLayout),
	}
}

// timestamp layouts accepted on read; the first is what the writer produces.
var readLayouts = []string{
	TimestampLayout,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

func parseTimestamp(v string) (time.Time, error) {
	for _, layout := range readLayouts {
		if ts, err := time.ParseInLocation(layout, v, time.Local); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", v)
}
