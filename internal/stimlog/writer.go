// Package stimlog appends one record per stimulus change to a session file,
// so an experiment can be reconstructed offline against the acquisition data.
// Writing is best-effort: a full disk or bad path must never stall or fail
// the scheduling path.
package stimlog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fishlab/gostim/internal/event"
)

type Record struct {
	Timestamp  time.Time      `json:"timestamp"`
	Type       string         `json:"type"`
	Generation uint64         `json:"generation,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Spec       map[string]any `json:"spec,omitempty"`
	Detail     string         `json:"detail,omitempty"`
}

type sessionHeader struct {
	Type       string    `json:"type"`
	SessionID  string    `json:"session_id"`
	SubjectID  string    `json:"subject_id,omitempty"`
	SubjectAge string    `json:"subject_age,omitempty"`
	StartedAt  time.Time `json:"started_at"`
}

type Writer struct {
	logger     *slog.Logger
	dir        string
	sessionID  string
	subjectID  string
	subjectAge string

	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

func NewWriter(dir, subjectID, subjectAge string, logger *slog.Logger) *Writer {
	return &Writer{
		logger:     logger,
		dir:        dir,
		sessionID:  uuid.New().String(),
		subjectID:  subjectID,
		subjectAge: subjectAge,
	}
}

func (w *Writer) SessionID() string {
	return w.sessionID
}

// Handle is registered on the event listener; it maps stimulus lifecycle
// events to log records. It always returns nil: write failures are logged
// locally and swallowed.
func (w *Writer) Handle(_ context.Context, e event.Event) error {
	switch evt := e.(type) {
	case event.StimulusInstalledEvent:
		w.append(Record{
			Timestamp:  evt.OccurredAt(),
			Type:       "install",
			Generation: evt.Generation,
			Spec:       evt.Summary,
		})
	case event.StationaryEndedEvent:
		w.append(Record{
			Timestamp:  evt.OccurredAt(),
			Type:       "stationary_end",
			Generation: evt.Generation,
			Channel:    evt.Channel,
		})
	case event.ChannelStoppedEvent:
		w.append(Record{
			Timestamp:  evt.OccurredAt(),
			Type:       "channel_stop",
			Generation: evt.Generation,
			Channel:    evt.Channel,
		})
	case event.SwitchRejectedEvent:
		w.append(Record{
			Timestamp: evt.OccurredAt(),
			Type:      "switch_rejected",
			Detail:    evt.Reason,
		})
	}
	return nil
}

func (w *Writer) append(rec Record) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.enc == nil {
		if err := w.open(); err != nil {
			w.logger.Error("Could not open stimulus log, dropping record", slog.Any("error", err))
			return
		}
	}
	if err := w.enc.Encode(rec); err != nil {
		w.logger.Error("Could not write stimulus log record", slog.Any("error", err))
	}
}

// open lazily creates the session file on the first record, so sessions that
// never install anything leave no empty files behind.
func (w *Writer) open() error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("creating stimulus log directory: %w", err)
	}
	name := fmt.Sprintf("stim_%s_%s.jsonl", time.Now().Format("20060102_150405"), w.sessionID[:8])
	f, err := os.OpenFile(filepath.Join(w.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("creating stimulus log file: %w", err)
	}
	w.f = f
	w.enc = json.NewEncoder(f)
	return w.enc.Encode(sessionHeader{
		Type:       "session",
		SessionID:  w.sessionID,
		SubjectID:  w.subjectID,
		SubjectAge: w.subjectAge,
		StartedAt:  time.Now(),
	})
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	w.enc = nil
	return err
}
