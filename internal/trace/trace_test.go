package trace

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestTracer(t *testing.T) (*Tracer, string) {
	t.Helper()
	dir := t.TempDir()
	tr, err := New(dir, WithClock(func() time.Time {
		return time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	}))
	if err != nil {
		t.Fatalf("new tracer: %v", err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr, dir
}

func readEntries(t *testing.T, dir, sessionID string) []Entry {
	t.Helper()
	path := filepath.Join(dir, "session-"+sessionID+".jsonl")
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open trace: %v", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("bad trace line %q: %v", scanner.Text(), err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestTracerWritesJSONLines(t *testing.T) {
	tr, dir := newTestTracer(t)

	tr.StateTransition("entry", "intent", "first_message")
	tr.Extraction("intent", "industry", "healthcare", "high", "user_stated")
	tr.ModelCall("intent", "extraction", "gemini-2.0-flash", 1200*time.Millisecond, nil)
	tr.Decision("checkpoint", "proceed", "all blockers resolved")
	tr.Error("research", errors.New("model unreachable"))

	entries := readEntries(t, dir, tr.SessionID())
	if len(entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(entries))
	}
	if entries[0].Event != EventStateTransition || entries[0].Data["to"] != "intent" {
		t.Fatalf("first entry: %+v", entries[0])
	}
	if entries[2].DurationMS != 1200 {
		t.Fatalf("model call duration: %d", entries[2].DurationMS)
	}
	if entries[4].Data["error"] != "model unreachable" {
		t.Fatalf("error entry: %+v", entries[4])
	}
}

func TestSummaryCounts(t *testing.T) {
	tr, _ := newTestTracer(t)

	tr.StateTransition("entry", "intent", "first_message")
	tr.StateTransition("intent", "opportunity", "slot_filled")
	tr.ModelCall("intent", "extraction", "gemini-2.0-flash", 0, nil)
	tr.Error("intent", errors.New("parse failure"))

	s := tr.Summary()
	if s.TotalEvents != 4 || s.StateTransitions != 2 || s.ModelCalls != 1 || s.Errors != 1 {
		t.Fatalf("summary: %+v", s)
	}
	if s.CurrentState != "opportunity" {
		t.Fatalf("current state: %q", s.CurrentState)
	}
}

func TestNilTracerIsSafe(t *testing.T) {
	var tr *Tracer
	tr.StateTransition("entry", "intent", "x")
	tr.Error("intent", errors.New("boom"))
	if tr.Summary().TotalEvents != 0 {
		t.Fatal("nil tracer must be a no-op")
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}

func TestLongValuesAreClipped(t *testing.T) {
	tr, dir := newTestTracer(t)
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	tr.Extraction("intent", "use_case_intent", string(long), "low", "inferred")

	entries := readEntries(t, dir, tr.SessionID())
	if got := len(entries[0].Data["value"]); got != 100 {
		t.Fatalf("expected clipped value of 100 chars, got %d", got)
	}
}
