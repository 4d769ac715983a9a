// Package store persists capture records as individual JSON files using a
// write-then-rename scheme, so directory-polling readers only ever see
// complete files.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
)

// Writer writes one JSON file per record into a capture directory.
// Filenames embed the source label, optional session id, a millisecond
// timestamp, and a process-wide sequence number:
//
//	{source}[_{sessionId}]_{timestampMs}-{sequence:06d}.json
//
// The sequence counter starts at zero and resets on process restart;
// the embedded timestamp makes cross-restart collisions astronomically
// unlikely, which is a documented limitation rather than a guarantee.
type Writer struct {
	dir       string
	source    string
	sessionID string
	seq       atomic.Uint64
}

// NewWriter creates a Writer for the given directory and identity.
// The directory is created lazily on first write.
func NewWriter(dir, source, sessionID string) *Writer {
	return &Writer{dir: dir, source: source, sessionID: sessionID}
}

// Dir returns the capture directory.
func (w *Writer) Dir() string { return w.dir }

// Write persists v as a single JSON file and returns its final path.
// The record is serialized ASCII-safe, written to a hidden temporary file
// in the target directory, then renamed into place. Rename is atomic, so
// a concurrent reader sees either nothing or the complete file.
func (w *Writer) Write(v any) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create capture dir: %w", err)
	}

	data, err := encodeASCII(v)
	if err != nil {
		return "", fmt.Errorf("encode capture: %w", err)
	}

	name := w.filename(time.Now().UnixMilli(), w.nextSeq())
	final := filepath.Join(w.dir, name)
	tmp := filepath.Join(w.dir, "."+name+".tmp")

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write capture: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("publish capture: %w", err)
	}
	return final, nil
}

// nextSeq reserves the next sequence number, starting at zero. Atomic, so
// concurrent same-millisecond writes still get distinct filenames.
func (w *Writer) nextSeq() uint64 {
	return w.seq.Add(1) - 1
}

func (w *Writer) filename(tsMillis int64, seq uint64) string {
	parts := []string{w.source}
	if w.sessionID != "" {
		parts = append(parts, w.sessionID)
	}
	parts = append(parts, fmt.Sprintf("%d-%06d", tsMillis, seq))
	return strings.Join(parts, "_") + ".json"
}
