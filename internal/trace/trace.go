// Package trace records one session's observable history as JSONL under
// .scopedesk/traces/: state transitions, extractions, model calls, decisions,
// and recoverable errors. The trace exists for post-session debugging of the
// state machine; nothing in the session reads it back.
package trace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// EventType classifies a trace entry.
type EventType string

const (
	EventStateTransition EventType = "state_transition"
	EventModelCall       EventType = "model_call"
	EventExtraction      EventType = "extraction"
	EventDecision        EventType = "decision"
	EventError           EventType = "error"
)

// Entry is one line of the trace file.
type Entry struct {
	Timestamp  time.Time         `json:"timestamp"`
	Event      EventType         `json:"event"`
	State      string            `json:"state"`
	Data       map[string]string `json:"data,omitempty"`
	DurationMS int64             `json:"duration_ms,omitempty"`
}

// Summary is the per-session event tally shown in the UI footer.
type Summary struct {
	TotalEvents      int
	StateTransitions int
	ModelCalls       int
	Errors           int
	CurrentState     string
}

// Tracer appends entries for one session. Entries are written as they
// happen, so a crash loses at most the line in flight.
type Tracer struct {
	sessionID string
	file      *os.File
	now       func() time.Time
	summary   Summary
}

// Option customizes a Tracer.
type Option func(*Tracer)

// WithClock overrides the clock used for entry timestamps.
func WithClock(clock func() time.Time) Option {
	return func(t *Tracer) {
		t.now = clock
	}
}

// New opens a trace file named after a fresh session ID in tracesDir.
func New(tracesDir string, opts ...Option) (*Tracer, error) {
	if err := os.MkdirAll(tracesDir, 0o755); err != nil {
		return nil, fmt.Errorf("trace: ensure traces dir: %w", err)
	}
	sessionID := uuid.NewString()[:8]
	path := filepath.Join(tracesDir, fmt.Sprintf("session-%s.jsonl", sessionID))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("trace: open trace file: %w", err)
	}
	t := &Tracer{sessionID: sessionID, file: f, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// SessionID returns the identifier embedded in the trace filename.
func (t *Tracer) SessionID() string {
	if t == nil {
		return ""
	}
	return t.sessionID
}

// Close releases the file handle.
func (t *Tracer) Close() error {
	if t == nil || t.file == nil {
		return nil
	}
	return t.file.Close()
}

func (t *Tracer) add(event EventType, state string, data map[string]string, duration time.Duration) {
	if t == nil || t.file == nil {
		return
	}
	e := Entry{
		Timestamp:  t.now(),
		Event:      event,
		State:      state,
		Data:       data,
		DurationMS: duration.Milliseconds(),
	}
	line, err := json.Marshal(e)
	if err != nil {
		return
	}
	fmt.Fprintf(t.file, "%s\n", line)

	t.summary.TotalEvents++
	switch event {
	case EventStateTransition:
		t.summary.StateTransitions++
		t.summary.CurrentState = data["to"]
	case EventModelCall:
		t.summary.ModelCalls++
	case EventError:
		t.summary.Errors++
	}
}

// StateTransition records one state machine move.
func (t *Tracer) StateTransition(from, to, trigger string) {
	t.add(EventStateTransition, from, map[string]string{
		"from": from, "to": to, "trigger": trigger,
	}, 0)
}

// ModelCall records one round trip to the model.
func (t *Tracer) ModelCall(state, purpose, model string, duration time.Duration, err error) {
	data := map[string]string{"purpose": purpose, "model": model}
	if err != nil {
		data["error"] = err.Error()
	}
	t.add(EventModelCall, state, data, duration)
}

// Extraction records one extracted fact.
func (t *Tracer) Extraction(state, slot, value, confidence, source string) {
	t.add(EventExtraction, state, map[string]string{
		"slot": slot, "value": clip(value, 100), "confidence": confidence, "source": source,
	}, 0)
}

// Decision records a branch the machine took and why.
func (t *Tracer) Decision(state, decision, reason string) {
	t.add(EventDecision, state, map[string]string{
		"decision": decision, "reason": reason,
	}, 0)
}

// Error records a recoverable failure. Unrecoverable failures end the
// process and belong to the logger, not the trace.
func (t *Tracer) Error(state string, err error) {
	t.add(EventError, state, map[string]string{"error": err.Error()}, 0)
}

// Summary returns the running event tally.
func (t *Tracer) Summary() Summary {
	if t == nil {
		return Summary{}
	}
	return t.summary
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
