package judgment

import (
	"sort"
	"time"
)

// Judgment is the current state of one slot.
type Judgment struct {
	Slot       Slot
	Value      string
	Raw        string // the phrasing the value was extracted from, if any
	Confidence Confidence
	Source     Source
	UpdatedAt  time.Time
}

// Set reports whether the slot holds a value.
func (j Judgment) Set() bool {
	return j.Value != ""
}

// Update is one proposed write into the store. Extraction, inference, and
// direct user edits all reduce to this shape.
type Update struct {
	Slot       Slot
	Value      string
	Raw        string
	Confidence Confidence
	Source     Source
}

// ChangeEvent records one applied mutation.
type ChangeEvent struct {
	Slot       Slot
	OldValue   string
	NewValue   string
	Confidence Confidence
	Source     Source
	At         time.Time
}

// Store owns the judgments for a single session. It is not safe for
// concurrent use; the session processes strictly one turn at a time.
type Store struct {
	values map[Slot]Judgment
	log    []ChangeEvent
	now    func() time.Time
}

// StoreOption customizes a Store during construction.
type StoreOption func(*Store)

// WithClock overrides the clock used for change timestamps.
func WithClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = clock
	}
}

// NewStore creates a store with every defined slot present but empty.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		values: make(map[Slot]Judgment, len(Definitions)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, def := range Definitions {
		s.values[def.Slot] = Judgment{
			Slot:       def.Slot,
			Confidence: ConfidenceLow,
			Source:     SourceInferred,
		}
	}
	return s
}

// Get returns the current judgment for a slot.
func (s *Store) Get(slot Slot) Judgment {
	return s.values[slot]
}

// Set applies a single update. It returns true when the stored judgment
// changed. Two rules guard the write:
//
//   - explicit user input is never overwritten by inference
//   - writing an identical value keeps the lower of the two confidences
//     (a repeated weak signal must not launder itself into certainty)
func (s *Store) Set(u Update) bool {
	cur, ok := s.values[u.Slot]
	if !ok {
		return false
	}
	if cur.Source == SourceUserEdited && u.Source == SourceInferred {
		return false
	}
	if cur.Source == SourceUserStated && u.Source == SourceInferred && cur.Set() {
		return false
	}

	next := Judgment{
		Slot:       u.Slot,
		Value:      u.Value,
		Raw:        u.Raw,
		Confidence: u.Confidence,
		Source:     u.Source,
		UpdatedAt:  s.now(),
	}
	if cur.Set() && cur.Value == u.Value {
		next.Confidence = Min(cur.Confidence, u.Confidence)
		if next.Confidence == cur.Confidence && cur.Source == u.Source {
			return false
		}
	}

	s.values[u.Slot] = next
	s.log = append(s.log, ChangeEvent{
		Slot:       u.Slot,
		OldValue:   cur.Value,
		NewValue:   next.Value,
		Confidence: next.Confidence,
		Source:     next.Source,
		At:         next.UpdatedAt,
	})
	return true
}

// Apply applies a batch of updates from one utterance in order and returns
// the slots that actually changed. Conflicting writes to the same slot within
// the batch resolve to the most recently stated value; Set handles the
// equal-value lower-confidence tie.
func (s *Store) Apply(updates []Update) []Slot {
	changed := make([]Slot, 0, len(updates))
	seen := map[Slot]struct{}{}
	for _, u := range updates {
		if !s.Set(u) {
			continue
		}
		if _, dup := seen[u.Slot]; !dup {
			seen[u.Slot] = struct{}{}
			changed = append(changed, u.Slot)
		}
	}
	return changed
}

// ChangeLog returns a copy of the applied mutations in order.
func (s *Store) ChangeLog() []ChangeEvent {
	out := make([]ChangeEvent, len(s.log))
	copy(out, s.log)
	return out
}

// Snapshot returns a copy of every judgment keyed by slot.
func (s *Store) Snapshot() map[Slot]Judgment {
	out := make(map[Slot]Judgment, len(s.values))
	for slot, j := range s.values {
		out[slot] = j
	}
	return out
}

// UnresolvedBlockers returns blocker slots that are not yet user-provided, in
// definition order. A blocker that is merely inferred still counts as
// unresolved: inference alone never satisfies a blocker.
func (s *Store) UnresolvedBlockers() []Slot {
	var out []Slot
	for _, def := range Definitions {
		if def.Criticality != CriticalityBlocker {
			continue
		}
		j := s.values[def.Slot]
		if !j.Set() || !j.Source.UserProvided() {
			out = append(out, def.Slot)
		}
	}
	return out
}

// MissingBlockers returns blocker slots with no value at all.
func (s *Store) MissingBlockers() []Slot {
	var out []Slot
	for _, def := range Definitions {
		if def.Criticality != CriticalityBlocker {
			continue
		}
		if !s.values[def.Slot].Set() {
			out = append(out, def.Slot)
		}
	}
	return out
}

// SetSlots returns the slots that currently hold values, sorted for
// deterministic rendering.
func (s *Store) SetSlots() []Slot {
	var out []Slot
	for slot, j := range s.values {
		if j.Set() {
			out = append(out, slot)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i] < out[k] })
	return out
}
