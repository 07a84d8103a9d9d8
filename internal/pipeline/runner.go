package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/wthompson1804/scopedesk/internal/assumption"
	"github.com/wthompson1804/scopedesk/internal/judgment"
)

// Sentinel errors for gate violations. The UI turns these into next-action
// messages rather than raw failures.
var (
	ErrPriorIncomplete      = errors.New("pipeline: earlier stage has not completed")
	ErrAgentTypeUnconfirmed = errors.New("pipeline: agent type must be confirmed before design")
)

// maxInputAssumptions caps the assumption snapshot recorded per stage run.
const maxInputAssumptions = 8

// StageInput is everything one stage run consumes.
type StageInput struct {
	Snapshot    map[judgment.Slot]judgment.Judgment
	Assumptions []*assumption.Assumption
	Prior       map[Stage]string
}

// Logger is the minimal logging surface the runner needs.
type Logger interface {
	Printf(format string, args ...any)
}

// Runner executes stages in order against one session's state.
type Runner struct {
	gen         Generator
	store       *judgment.Store
	assumptions *assumption.Ledger
	ledger      *Ledger
	log         Logger
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithLogger attaches a logger for stage lifecycle lines.
func WithLogger(log Logger) RunnerOption {
	return func(r *Runner) {
		r.log = log
	}
}

// NewRunner wires a runner over the session's store, assumption ledger, and
// stage ledger.
func NewRunner(gen Generator, store *judgment.Store, assumptions *assumption.Ledger, ledger *Ledger, opts ...RunnerOption) (*Runner, error) {
	if gen == nil {
		return nil, fmt.Errorf("pipeline: generator is required")
	}
	if store == nil || assumptions == nil || ledger == nil {
		return nil, fmt.Errorf("pipeline: store, assumption ledger, and stage ledger are required")
	}
	r := &Runner{gen: gen, store: store, assumptions: assumptions, ledger: ledger}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// inputSlots lists the judgment slots a stage's prompt reads. The ledger
// records them per run so the ripple resolver can flag exactly the stages a
// later correction invalidates.
func inputSlots(stage Stage) []judgment.Slot {
	base := []judgment.Slot{
		judgment.SlotIndustry,
		judgment.SlotIntent,
		judgment.SlotOpportunity,
		judgment.SlotJurisdiction,
		judgment.SlotOrgSize,
		judgment.SlotTimeline,
		judgment.SlotIntegration,
		judgment.SlotRiskPosture,
		judgment.SlotBoundaries,
	}
	if stage == StageDesign || stage == StageMapping {
		base = append(base, judgment.SlotAgentType)
	}
	return base
}

// RunStage executes one stage, gated on its predecessors. A failure marks
// only this stage; completed predecessors keep their output and the stage
// can be retried in isolation by calling RunStage again.
func (r *Runner) RunStage(ctx context.Context, stage Stage) error {
	if p, ok := prior(stage); ok && !r.ledger.Record(p).Usable() {
		return fmt.Errorf("%w: %s before %s", ErrPriorIncomplete, p, stage)
	}
	if stage == StageDesign {
		at := r.store.Get(judgment.SlotAgentType)
		if !at.Set() || !at.Source.UserProvided() {
			return ErrAgentTypeUnconfirmed
		}
	}

	in := r.buildInput(stage)
	rec := r.ledger.begin(stage, inputSlots(stage), assumptionIDs(in.Assumptions))
	r.logf("pipeline: %s starting (attempt %d)", stage, rec.Attempts)

	output, err := r.gen.Generate(ctx, stage, promptFor(stage, in))
	if err != nil {
		r.ledger.fail(stage, err)
		r.logf("pipeline: %s failed: %v", stage, err)
		return fmt.Errorf("pipeline: run %s: %w", stage, err)
	}

	r.ledger.complete(stage, output)
	switch stage {
	case StageResearch:
		r.ledger.records[stage].Recommendation = parseRecommendation(output)
	case StageDesign:
		r.ledger.records[stage].AgentType = parseAgentType(output)
	}
	r.logf("pipeline: %s complete", stage)
	return nil
}

// RunAll executes every stage that is not already complete, in order,
// stopping at the first failure. Outdated stages re-run.
func (r *Runner) RunAll(ctx context.Context) error {
	for _, stage := range Order {
		if r.ledger.Record(stage).Status == StatusComplete {
			continue
		}
		if err := r.RunStage(ctx, stage); err != nil {
			return err
		}
	}
	return nil
}

// Recommendation returns the research stage's parsed assessment, if the
// stage has run.
func (r *Runner) Recommendation() (Recommendation, bool) {
	rec := r.ledger.Record(StageResearch)
	if !rec.Usable() {
		return Recommendation{}, false
	}
	return rec.Recommendation, true
}

func (r *Runner) buildInput(stage Stage) StageInput {
	in := StageInput{
		Snapshot:    r.store.Snapshot(),
		Assumptions: r.assumptions.TopByImpact(maxInputAssumptions),
		Prior:       map[Stage]string{},
	}
	for _, s := range Order {
		if s == stage {
			break
		}
		if rec := r.ledger.Record(s); rec.Usable() {
			in.Prior[s] = rec.Output
		}
	}
	return in
}

func (r *Runner) logf(format string, args ...any) {
	if r.log != nil {
		r.log.Printf(format, args...)
	}
}

func assumptionIDs(list []*assumption.Assumption) []string {
	ids := make([]string, 0, len(list))
	for _, a := range list {
		ids = append(ids, a.ID)
	}
	return ids
}

func promptFor(stage Stage, in StageInput) string {
	switch stage {
	case StageResearch:
		return researchPrompt(in)
	case StageRequirements:
		return requirementsPrompt(in)
	case StageDesign:
		return designPrompt(in)
	default:
		return mappingPrompt(in)
	}
}
