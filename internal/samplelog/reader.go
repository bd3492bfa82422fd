// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package samplelog

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ReadFile reads a consistent snapshot of the log at path.
func ReadFile(path string) ([]Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sample log: %w", err)
	}
	return ReadSnapshot(data)
}

// ReadSnapshot parses log bytes. A final line without its newline is a row
// still being written and is dropped.
func ReadSnapshot(data []byte) ([]Sample, error) {
	if i := bytes.LastIndexByte(data, '\n'); i < len(data)-1 {
		data = data[:i+1]
	}
	return Read(bytes.NewReader(data))
}

// Read parses a complete log stream: a header row followed by data rows.
// Columns are located by header name.
func Read(r io.Reader) ([]Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var out []Sample
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		s, err := parseRow(rec, idx)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, s)
	}
	return out, nil
}

type columns struct {
	session, mode, rep, angle, ts int
}

func columnIndex(header []string) (columns, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.TrimSpace(h)] = i
	}
	var c columns
	for _, col := range []struct {
		name string
		dst  *int
	}{
		{ColSessionID, &c.session},
		{ColMode, &c.mode},
		{ColRepNo, &c.rep},
		{ColAngleValue, &c.angle},
		{ColTimestamp, &c.ts},
	} {
		i, ok := pos[col.name]
		if !ok {
			return columns{}, fmt.Errorf("sample log header missing column %q", col.name)
		}
		*col.dst = i
	}
	return c, nil
}

func parseRow(rec []string, c columns) (Sample, error) {
	field := func(i int) (string, error) {
		if i >= len(rec) {
			return "", fmt.Errorf("expected at least %d fields, got %d", i+1, len(rec))
		}
		return strings.TrimSpace(rec[i]), nil
	}

	var s Sample
	v, err := field(c.session)
	if err != nil {
		return s, err
	}
	if s.SessionID, err = strconv.Atoi(v); err != nil {
		return s, fmt.Errorf("invalid %s %q: %w", ColSessionID, v, err)
	}

	if v, err = field(c.mode); err != nil {
		return s, err
	}
	if s.Mode, err = strconv.Atoi(v); err != nil {
		return s, fmt.Errorf("invalid %s %q: %w", ColMode, v, err)
	}

	if v, err = field(c.rep); err != nil {
		return s, err
	}
	if s.RepNumber, err = strconv.Atoi(v); err != nil {
		return s, fmt.Errorf("invalid %s %q: %w", ColRepNo, v, err)
	}

	if v, err = field(c.angle); err != nil {
		return s, err
	}
	if s.AngleValue, err = strconv.ParseFloat(v, 64); err != nil {
		return s, fmt.Errorf("invalid %s %q: %w", ColAngleValue, v, err)
	}

	if v, err = field(c.ts); err != nil {
		return s, err
	}
	if s.Timestamp, err = parseTimestamp(v); err != nil {
		return s, err
	}
	return s, nil
}
