// Package assumption tracks inferred-but-unconfirmed statements derived from
// judgments. Every inference the engine makes beyond a direct user statement
// lands here so the checkpoint can show it and the user can confirm, correct,
// or invalidate it.
package assumption

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/wthompson1804/scopedesk/internal/judgment"
)

// Status tracks an assumption through its lifecycle.
type Status string

const (
	StatusAssumed   Status = "assumed"
	StatusConfirmed Status = "confirmed"
	StatusCorrected Status = "corrected"
	// StatusStale means a basis judgment changed after the assumption was
	// made. A stale assumption must be re-derived or re-confirmed before it
	// is presented as anything else.
	StatusStale Status = "stale"
)

// Impact grades how much the assessment shifts if the assumption is wrong.
type Impact string

const (
	ImpactHigh   Impact = "high"
	ImpactMedium Impact = "medium"
	ImpactLow    Impact = "low"
)

func (i Impact) score() int {
	switch i {
	case ImpactHigh:
		return 3
	case ImpactMedium:
		return 2
	default:
		return 1
	}
}

func uncertaintyScore(c judgment.Confidence) int {
	switch c {
	case judgment.ConfidenceLow:
		return 3
	case judgment.ConfidenceMedium:
		return 2
	default:
		return 1
	}
}

// Assumption is one derived statement awaiting confirmation.
type Assumption struct {
	ID                string
	Slot              judgment.Slot
	Statement         string
	Basis             []judgment.Slot
	Confidence        judgment.Confidence
	Impact            Impact
	NeedsConfirmation bool
	Status            Status
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Confirmed reports whether the assumption may be presented as settled.
// Stale assumptions are never confirmed regardless of their prior status.
func (a Assumption) Confirmed() bool {
	return a.Status == StatusConfirmed
}

// Ledger owns the assumptions for one session. Like the judgment store it is
// single-session, single-turn state and needs no locking.
type Ledger struct {
	items []*Assumption
	byID  map[string]*Assumption
	now   func() time.Time
	newID func() string
}

// LedgerOption customizes a Ledger during construction.
type LedgerOption func(*Ledger)

// WithClock overrides the clock used for timestamps.
func WithClock(clock func() time.Time) LedgerOption {
	return func(l *Ledger) {
		l.now = clock
	}
}

// WithIDSource overrides ID generation, mainly for deterministic tests.
func WithIDSource(gen func() string) LedgerOption {
	return func(l *Ledger) {
		l.newID = gen
	}
}

// NewLedger builds an empty ledger.
func NewLedger(opts ...LedgerOption) *Ledger {
	l := &Ledger{
		byID: map[string]*Assumption{},
		now:  time.Now,
		newID: func() string {
			return "A-" + uuid.NewString()[:8]
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Upsert records an assumption about a slot. If an assumption for the slot
// already exists it is replaced in place, keeping its ID so the UI reference
// stays stable across re-derivation.
func (l *Ledger) Upsert(slot judgment.Slot, statement string, basis []judgment.Slot, conf judgment.Confidence, impact Impact) *Assumption {
	now := l.now()
	if existing := l.bySlot(slot); existing != nil {
		existing.Statement = statement
		existing.Basis = append([]judgment.Slot(nil), basis...)
		existing.Confidence = conf
		existing.Impact = impact
		existing.NeedsConfirmation = conf != judgment.ConfidenceHigh
		existing.Status = StatusAssumed
		existing.UpdatedAt = now
		return existing
	}
	a := &Assumption{
		ID:                l.newID(),
		Slot:              slot,
		Statement:         statement,
		Basis:             append([]judgment.Slot(nil), basis...),
		Confidence:        conf,
		Impact:            impact,
		NeedsConfirmation: conf != judgment.ConfidenceHigh,
		Status:            StatusAssumed,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	l.items = append(l.items, a)
	l.byID[a.ID] = a
	return a
}

// Get returns the assumption with the given ID.
func (l *Ledger) Get(id string) (*Assumption, bool) {
	a, ok := l.byID[id]
	return a, ok
}

// ForSlot returns the assumption covering a slot, if any.
func (l *Ledger) ForSlot(slot judgment.Slot) (*Assumption, bool) {
	a := l.bySlot(slot)
	return a, a != nil
}

func (l *Ledger) bySlot(slot judgment.Slot) *Assumption {
	for _, a := range l.items {
		if a.Slot == slot {
			return a
		}
	}
	return nil
}

// Confirm marks an assumption as user-confirmed. Stale assumptions must be
// re-derived first; confirming one directly is a programming error surfaced
// as an error return.
func (l *Ledger) Confirm(id string) error {
	a, ok := l.byID[id]
	if !ok {
		return fmt.Errorf("assumption: unknown id %s", id)
	}
	if a.Status == StatusStale {
		return fmt.Errorf("assumption: %s is stale and must be re-derived before confirmation", id)
	}
	a.Status = StatusConfirmed
	a.NeedsConfirmation = false
	a.UpdatedAt = l.now()
	return nil
}

// Correct marks an assumption as corrected by the user.
func (l *Ledger) Correct(id string) error {
	a, ok := l.byID[id]
	if !ok {
		return fmt.Errorf("assumption: unknown id %s", id)
	}
	a.Status = StatusCorrected
	a.NeedsConfirmation = false
	a.UpdatedAt = l.now()
	return nil
}

// MarkStale invalidates assumptions whose basis includes the changed slot and
// returns the IDs it actually transitioned. Assumptions covering one of the
// keep slots are skipped: their judgment was re-derived and still stands, so
// a repeat of the same change must not push them back to stale.
func (l *Ledger) MarkStale(changed judgment.Slot, keep ...judgment.Slot) []string {
	keepSet := map[judgment.Slot]bool{}
	for _, slot := range keep {
		keepSet[slot] = true
	}
	var ids []string
	now := l.now()
	for _, a := range l.items {
		if a.Status == StatusStale || keepSet[a.Slot] {
			continue
		}
		for _, basis := range a.Basis {
			if basis != changed {
				continue
			}
			a.Status = StatusStale
			a.NeedsConfirmation = true
			a.UpdatedAt = now
			ids = append(ids, a.ID)
			break
		}
	}
	return ids
}

// MaximizeUncertainty drops an assumption to low confidence and flags it for
// confirmation. Used when the session finalizes with blockers still open.
func (l *Ledger) MaximizeUncertainty(slot judgment.Slot) {
	if a := l.bySlot(slot); a != nil {
		a.Confidence = judgment.ConfidenceLow
		a.NeedsConfirmation = true
		a.UpdatedAt = l.now()
	}
}

// All returns the assumptions in creation order.
func (l *Ledger) All() []*Assumption {
	out := make([]*Assumption, len(l.items))
	copy(out, l.items)
	return out
}

// Pending returns assumptions that still need user attention.
func (l *Ledger) Pending() []*Assumption {
	var out []*Assumption
	for _, a := range l.items {
		if a.NeedsConfirmation || a.Status == StatusStale {
			out = append(out, a)
		}
	}
	return out
}

// TopByImpact returns at most n assumptions ordered by impact times inverted
// confidence: the riskiest assumptions surface first. Ties keep creation
// order so the listing is deterministic.
func (l *Ledger) TopByImpact(n int) []*Assumption {
	ranked := make([]*Assumption, len(l.items))
	copy(ranked, l.items)
	sort.SliceStable(ranked, func(i, k int) bool {
		si := ranked[i].Impact.score() * uncertaintyScore(ranked[i].Confidence)
		sk := ranked[k].Impact.score() * uncertaintyScore(ranked[k].Confidence)
		return si > sk
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
