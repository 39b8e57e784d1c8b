// Package audit writes a durable per-room event trail. Each room gets one
// JSONL file of sequenced events plus a summary written atomically when the
// room closes. The trail is strictly optional; the engine is correct without
// it.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/liaptui/liaptui/internal/fileutil"
)

// Record is one line of the trail.
type Record struct {
	Seq       uint64          `json:"seq"`
	Timestamp time.Time       `json:"ts"`
	RoomID    string          `json:"room_id"`
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Summary is the closing snapshot written next to the trail.
type Summary struct {
	RoomID   string    `json:"room_id"`
	Events   uint64    `json:"events"`
	ClosedAt time.Time `json:"closed_at"`
	Reason   string    `json:"reason"`
}

// Trail appends room events to a JSONL file keyed by room id.
type Trail struct {
	logger *log.Logger
	roomID string
	dir    string

	mu     sync.Mutex
	file   *os.File
	seq    uint64
	closed bool
}

// NewTrail opens (or creates) the trail file for a room.
func NewTrail(logger *log.Logger, dir, roomID string) (*Trail, error) {
	if err := fileutil.EnsureDir(dir); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, roomID+".jsonl")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit trail: %w", err)
	}
	return &Trail{
		logger: logger.WithPrefix("audit"),
		roomID: roomID,
		dir:    dir,
		file:   file,
	}, nil
}

// Append writes one event to the trail. Failures are logged, not propagated:
// the audit trail must never interfere with gameplay.
func (t *Trail) Append(event string, data any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			t.logger.Error("failed to encode audit payload", "event", event, "error", err)
			return
		}
		raw = encoded
	}

	t.seq++
	line, err := json.Marshal(Record{
		Seq:       t.seq,
		Timestamp: time.Now().UTC(),
		RoomID:    t.roomID,
		Event:     event,
		Data:      raw,
	})
	if err != nil {
		t.logger.Error("failed to encode audit record", "event", event, "error", err)
		return
	}
	if _, err := t.file.Write(append(line, '\n')); err != nil {
		t.logger.Error("failed to write audit record", "event", event, "error", err)
	}
}

// Close flushes the trail and writes the room summary atomically.
func (t *Trail) Close(reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true

	summary, err := json.MarshalIndent(Summary{
		RoomID:   t.roomID,
		Events:   t.seq,
		ClosedAt: time.Now().UTC(),
		Reason:   reason,
	}, "", "  ")
	if err == nil {
		path := filepath.Join(t.dir, t.roomID+".summary.json")
		if err := fileutil.WriteFileAtomic(path, summary, 0o644); err != nil {
			t.logger.Error("failed to write audit summary", "error", err)
		}
	}

	if err := t.file.Sync(); err != nil {
		t.file.Close()
		return err
	}
	return t.file.Close()
}
