// Package pipeline runs the four-stage generation sequence that turns a
// settled intake into assessment documents: research, then requirements, then
// agent design, then capability mapping. Each stage records the judgment
// slots and assumptions it consumed, so a later correction can flag exactly
// the stages whose inputs moved. A failed stage never discards the output of
// the stages before it.
package pipeline

import (
	"time"

	"github.com/wthompson1804/scopedesk/internal/judgment"
)

// Stage identifies one pipeline stage.
type Stage string

const (
	StageResearch     Stage = "research"
	StageRequirements Stage = "requirements"
	StageDesign       Stage = "design"
	StageMapping      Stage = "mapping"
)

// Order is the fixed execution order. A stage may only run when every stage
// before it is complete.
var Order = []Stage{StageResearch, StageRequirements, StageDesign, StageMapping}

// DisplayName returns the stage's human-readable label.
func (s Stage) DisplayName() string {
	switch s {
	case StageResearch:
		return "Research"
	case StageRequirements:
		return "Business Requirements"
	case StageDesign:
		return "Agent Design"
	case StageMapping:
		return "Capability Mapping"
	default:
		return string(s)
	}
}

// Status tracks a stage through its lifecycle.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
	// StatusNeedsRerun means the stage completed but a judgment it consumed
	// changed afterwards. Its output is kept visible, flagged as outdated.
	StatusNeedsRerun Status = "needs_rerun"
)

// Record is the ledger entry for one stage run.
type Record struct {
	Stage         Stage
	Status        Status
	Output        string
	InputSlots    []judgment.Slot
	AssumptionIDs []string
	Attempts      int
	Err           string
	StartedAt     time.Time
	FinishedAt    time.Time

	// Parsed fields. Research fills Recommendation; design fills AgentType.
	Recommendation Recommendation
	AgentType      string
}

// Recommendation is the preliminary assessment parsed from research output.
type Recommendation struct {
	GoNoGo         string // go, caution, no-go
	AgentType      string // T0..T4
	Confidence     judgment.Confidence
	Rationale      string
	KeyRisks       []string
	SuccessFactors []string
}

// Usable reports whether the stage's output may feed a later stage or the
// artifact. Needs-rerun output stays usable; it is shown as outdated, not
// withdrawn.
func (r Record) Usable() bool {
	return r.Status == StatusComplete || r.Status == StatusNeedsRerun
}

// Ledger owns the stage records for one session.
type Ledger struct {
	records map[Stage]*Record
	now     func() time.Time
}

// LedgerOption customizes a Ledger during construction.
type LedgerOption func(*Ledger)

// WithClock overrides the clock used for timestamps.
func WithClock(clock func() time.Time) LedgerOption {
	return func(l *Ledger) {
		l.now = clock
	}
}

// NewLedger builds a ledger with every stage pending.
func NewLedger(opts ...LedgerOption) *Ledger {
	l := &Ledger{
		records: make(map[Stage]*Record, len(Order)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	for _, stage := range Order {
		l.records[stage] = &Record{Stage: stage, Status: StatusPending}
	}
	return l
}

// Record returns a copy of the entry for a stage.
func (l *Ledger) Record(stage Stage) Record {
	if r, ok := l.records[stage]; ok {
		return *r
	}
	return Record{Stage: stage, Status: StatusPending}
}

// Records returns copies of all entries in execution order.
func (l *Ledger) Records() []Record {
	out := make([]Record, 0, len(Order))
	for _, stage := range Order {
		out = append(out, *l.records[stage])
	}
	return out
}

func (l *Ledger) begin(stage Stage, slots []judgment.Slot, assumptionIDs []string) *Record {
	r := l.records[stage]
	r.Status = StatusRunning
	r.InputSlots = append([]judgment.Slot(nil), slots...)
	r.AssumptionIDs = append([]string(nil), assumptionIDs...)
	r.Attempts++
	r.Err = ""
	r.StartedAt = l.now()
	return r
}

func (l *Ledger) complete(stage Stage, output string) {
	r := l.records[stage]
	r.Status = StatusComplete
	r.Output = output
	r.FinishedAt = l.now()
}

// fail marks a stage failed without touching any other stage. Earlier
// completed stages keep their output so the user can retry just this one.
func (l *Ledger) fail(stage Stage, err error) {
	r := l.records[stage]
	r.Status = StatusError
	r.Err = err.Error()
	r.FinishedAt = l.now()
}

// FlagNeedsRerun marks every usable stage whose recorded inputs include the
// changed slot and returns their names. Satisfies the ripple resolver's
// StageFlagger.
func (l *Ledger) FlagNeedsRerun(changed judgment.Slot) []string {
	var flagged []string
	for _, stage := range Order {
		r := l.records[stage]
		if !r.Usable() || r.Status == StatusNeedsRerun {
			continue
		}
		for _, slot := range r.InputSlots {
			if slot != changed {
				continue
			}
			r.Status = StatusNeedsRerun
			flagged = append(flagged, string(stage))
			break
		}
	}
	return flagged
}

// NeedingRerun returns the stages currently flagged as outdated.
func (l *Ledger) NeedingRerun() []Stage {
	var out []Stage
	for _, stage := range Order {
		if l.records[stage].Status == StatusNeedsRerun {
			out = append(out, stage)
		}
	}
	return out
}

// AllComplete reports whether every stage finished and none is outdated.
func (l *Ledger) AllComplete() bool {
	for _, stage := range Order {
		if l.records[stage].Status != StatusComplete {
			return false
		}
	}
	return true
}

func prior(stage Stage) (Stage, bool) {
	for i, s := range Order {
		if s == stage && i > 0 {
			return Order[i-1], true
		}
	}
	return "", false
}
