// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package samplelog

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Writer appends samples to a CSV log file. The header is written once, when
// the file is created or empty. Every row is flushed before Append returns.
type Writer struct {
	mu   sync.Mutex
	path string
	f    *os.File
	csv  *csv.Writer
}

// Open opens (or creates) the log at path for appending.
func Open(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open sample log: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat sample log: %w", err)
	}

	w := &Writer{path: path, f: f, csv: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := w.write(Header()); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
		return w, nil
	}

	size, err := dropTornRow(f, info.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	if size == 0 {
		if err := w.write(Header()); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	return w, nil
}

const tailChunk = 4096

// dropTornRow cuts a final line left without its newline by a crash, so the
// next append starts on a fresh line. It returns the resulting file size.
func dropTornRow(f *os.File, size int64) (int64, error) {
	buf := make([]byte, tailChunk)
	end := size
	for end > 0 {
		start := max(0, end-tailChunk)
		chunk := buf[:end-start]
		if _, err := f.ReadAt(chunk, start); err != nil {
			return 0, fmt.Errorf("read sample log tail: %w", err)
		}
		if i := bytes.LastIndexByte(chunk, '\n'); i >= 0 {
			keep := start + int64(i) + 1
			if keep == size {
				return size, nil
			}
			return keep, truncate(f, keep)
		}
		end = start
	}
	return 0, truncate(f, 0)
}

func truncate(f *os.File, size int64) error {
	if err := f.Truncate(size); err != nil {
		return fmt.Errorf("drop torn row: %w", err)
	}
	return nil
}

// Path returns the log file path.
func (w *Writer) Path() string {
	return w.path
}

// Append writes one row.
func (w *Writer) Append(s Sample) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.write(s.CSVRow()); err != nil {
		return fmt.Errorf("append sample: %w", err)
	}
	return nil
}

func (w *Writer) write(record []string) error {
	if err := w.csv.Write(record); err != nil {
		return err
	}
	w.csv.Flush()
	return w.csv.Error()
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
