package ripple

import (
	"fmt"
	"strings"

	"github.com/wthompson1804/scopedesk/internal/assumption"
	"github.com/wthompson1804/scopedesk/internal/extract"
	"github.com/wthompson1804/scopedesk/internal/judgment"
)

// Rule derives one judgment from one or more basis judgments. Rules are
// evaluated in declaration order; when two rules target the same slot within
// a single pass, the first one that produces a value wins. That precedence is
// deliberate and fixed so re-derivation is reproducible.
type Rule struct {
	Target judgment.Slot
	Basis  []judgment.Slot
	Impact assumption.Impact
	// Derive inspects the current snapshot and proposes a value. ok=false
	// means the rule has nothing to say with the facts at hand.
	Derive func(snap map[judgment.Slot]judgment.Judgment) (value string, conf judgment.Confidence, ok bool)
}

func (r Rule) reads(slot judgment.Slot) bool {
	for _, b := range r.Basis {
		if b == slot {
			return true
		}
	}
	return false
}

// StageFlagger lets the resolver invalidate pipeline outputs that consumed a
// now-changed judgment. Satisfied by pipeline.Ledger.
type StageFlagger interface {
	FlagNeedsRerun(changed judgment.Slot) []string
}

// Result reports what one ripple pass touched.
type Result struct {
	UpdatedJudgments       []judgment.Slot
	InvalidatedAssumptions []string
	StagesNeedingRerun     []string
}

// Resolver walks the dependency graph for one session.
type Resolver struct {
	store  *judgment.Store
	ledger *assumption.Ledger
	stages StageFlagger
	rules  []Rule
}

// New builds a resolver over the session's store and ledger. stages may be
// nil when no pipeline exists yet (early intake).
func New(store *judgment.Store, ledger *assumption.Ledger, stages StageFlagger, rules []Rule) (*Resolver, error) {
	if store == nil {
		return nil, fmt.Errorf("ripple: judgment store is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ripple: assumption ledger is required")
	}
	for idx, rule := range rules {
		if rule.Target == "" {
			return nil, fmt.Errorf("ripple: rule[%d] target is required", idx)
		}
		if len(rule.Basis) == 0 {
			return nil, fmt.Errorf("ripple: rule for %s needs at least one basis slot", rule.Target)
		}
		if rule.Derive == nil {
			return nil, fmt.Errorf("ripple: rule for %s needs a derive func", rule.Target)
		}
		if rule.reads(rule.Target) {
			return nil, fmt.Errorf("ripple: rule for %s depends on itself", rule.Target)
		}
	}
	return &Resolver{store: store, ledger: ledger, stages: stages, rules: rules}, nil
}

// Ripple propagates one changed judgment. The walk is a worklist over
// changed slots: a derived judgment that changes re-enters the queue so its
// own dependents recompute too. Applying Ripple twice with no intervening
// input changes nothing further: the store refuses identical rewrites, and
// assumptions whose judgment was re-derived to the same value stay current.
func (r *Resolver) Ripple(changed judgment.Slot) Result {
	var res Result
	staleSeen := map[string]struct{}{}
	stageSeen := map[string]struct{}{}
	derivedThisPass := map[judgment.Slot]struct{}{}

	queue := []judgment.Slot{changed}
	for len(queue) > 0 {
		slot := queue[0]
		queue = queue[1:]

		if r.stages != nil {
			for _, stage := range r.stages.FlagNeedsRerun(slot) {
				if _, dup := stageSeen[stage]; !dup {
					stageSeen[stage] = struct{}{}
					res.StagesNeedingRerun = append(res.StagesNeedingRerun, stage)
				}
			}
		}

		snap := r.store.Snapshot()
		// Targets whose derived value stands after this slot moved. Their
		// covering assumptions are current and must survive the stale pass.
		var settled []judgment.Slot
		for _, target := range r.targetsReading(slot) {
			if _, done := derivedThisPass[target]; done {
				settled = append(settled, target)
				continue
			}
			if j := r.store.Get(target); j.Source == judgment.SourceUserEdited {
				// Explicit user input is never overwritten by inference. An
				// assumption matching the pinned value stays current too:
				// the user's own word cannot go stale under it.
				if a, ok := r.ledger.ForSlot(target); ok && a.Statement == statementFor(target, j.Value) {
					settled = append(settled, target)
				}
				continue
			}
			// A moved basis recomputes the whole target, not just the rule
			// that read the moved slot: every rule for the target runs in
			// declaration order and the first to produce a value wins.
			rule, value, conf, ok := r.derive(target, snap)
			if !ok {
				continue
			}
			derivedThisPass[target] = struct{}{}
			applied := r.store.Set(judgment.Update{
				Slot:       target,
				Value:      value,
				Confidence: conf,
				Source:     judgment.SourceInferred,
			})
			// Re-deriving the same value is a no-op: the judgment and its
			// assumption stand, so repeated ripples change nothing.
			if !applied {
				settled = append(settled, target)
				continue
			}
			// Rewriting a derived judgment invalidates whatever assumption
			// covered it, even when that assumption rested on a different
			// basis. The upsert below re-derives it in place.
			if prior, found := r.ledger.ForSlot(target); found {
				if _, dup := staleSeen[prior.ID]; !dup {
					staleSeen[prior.ID] = struct{}{}
					res.InvalidatedAssumptions = append(res.InvalidatedAssumptions, prior.ID)
				}
			}
			r.ledger.Upsert(target, statementFor(target, value), rule.Basis, conf, rule.Impact)
			settled = append(settled, target)
			res.UpdatedJudgments = append(res.UpdatedJudgments, target)
			queue = append(queue, target)
			snap = r.store.Snapshot()
		}

		// Stale pass: anything still resting on the moved slot. An assumption
		// about the slot itself that matches the stored value is current, not
		// stale, so re-rippling an unchanged slot touches nothing.
		if a, ok := r.ledger.ForSlot(slot); ok && a.Statement == statementFor(slot, r.store.Get(slot).Value) {
			settled = append(settled, slot)
		}
		for _, id := range r.ledger.MarkStale(slot, settled...) {
			if _, dup := staleSeen[id]; !dup {
				staleSeen[id] = struct{}{}
				res.InvalidatedAssumptions = append(res.InvalidatedAssumptions, id)
			}
		}
	}
	return res
}

// targetsReading returns, in declaration order without duplicates, the target
// slots whose rules read the changed slot.
func (r *Resolver) targetsReading(changed judgment.Slot) []judgment.Slot {
	var out []judgment.Slot
	seen := map[judgment.Slot]struct{}{}
	for _, rule := range r.rules {
		if !rule.reads(changed) {
			continue
		}
		if _, dup := seen[rule.Target]; dup {
			continue
		}
		seen[rule.Target] = struct{}{}
		out = append(out, rule.Target)
	}
	return out
}

// derive evaluates the rules for a target in declaration order and returns
// the first value produced.
func (r *Resolver) derive(target judgment.Slot, snap map[judgment.Slot]judgment.Judgment) (Rule, string, judgment.Confidence, bool) {
	for _, rule := range r.rules {
		if rule.Target != target {
			continue
		}
		if value, conf, ok := rule.Derive(snap); ok {
			return rule, value, conf, true
		}
	}
	return Rule{}, "", "", false
}

// RippleAll runs Ripple for each changed slot, merging results.
func (r *Resolver) RippleAll(changed []judgment.Slot) Result {
	var merged Result
	seenJ := map[judgment.Slot]struct{}{}
	seenA := map[string]struct{}{}
	seenS := map[string]struct{}{}
	for _, slot := range changed {
		res := r.Ripple(slot)
		for _, j := range res.UpdatedJudgments {
			if _, dup := seenJ[j]; !dup {
				seenJ[j] = struct{}{}
				merged.UpdatedJudgments = append(merged.UpdatedJudgments, j)
			}
		}
		for _, id := range res.InvalidatedAssumptions {
			if _, dup := seenA[id]; !dup {
				seenA[id] = struct{}{}
				merged.InvalidatedAssumptions = append(merged.InvalidatedAssumptions, id)
			}
		}
		for _, st := range res.StagesNeedingRerun {
			if _, dup := seenS[st]; !dup {
				seenS[st] = struct{}{}
				merged.StagesNeedingRerun = append(merged.StagesNeedingRerun, st)
			}
		}
	}
	return merged
}

func statementFor(slot judgment.Slot, value string) string {
	return fmt.Sprintf("%s is %s", judgment.DisplayName(slot), value)
}

// DefaultRules is the static rule table for the intake domain. Two rules
// target risk posture on purpose: the industry signal outranks the intent
// signal, and declaration order encodes that precedence.
func DefaultRules() []Rule {
	return []Rule{
		{
			Target: judgment.SlotRiskPosture,
			Basis:  []judgment.Slot{judgment.SlotIndustry},
			Impact: assumption.ImpactHigh,
			Derive: func(snap map[judgment.Slot]judgment.Judgment) (string, judgment.Confidence, bool) {
				industry := snap[judgment.SlotIndustry]
				if !industry.Set() {
					return "", "", false
				}
				if extract.Regulated(industry.Value) {
					return "high", judgment.ConfidenceMedium, true
				}
				return "", "", false
			},
		},
		{
			Target: judgment.SlotRiskPosture,
			Basis:  []judgment.Slot{judgment.SlotIntent},
			Impact: assumption.ImpactHigh,
			Derive: func(snap map[judgment.Slot]judgment.Judgment) (string, judgment.Confidence, bool) {
				intent := snap[judgment.SlotIntent]
				if !intent.Set() {
					return "", "", false
				}
				text := strings.ToLower(intent.Value)
				for _, kw := range []string{"autonom", "decision", "approve", "critical"} {
					if strings.Contains(text, kw) {
						return "high", judgment.ConfidenceMedium, true
					}
				}
				for _, kw := range []string{"assist", "recommend", "suggest", "support"} {
					if strings.Contains(text, kw) {
						return "low", judgment.ConfidenceMedium, true
					}
				}
				return "medium", judgment.ConfidenceLow, true
			},
		},
		{
			Target: judgment.SlotStakeholders,
			Basis:  []judgment.Slot{judgment.SlotOrgSize},
			Impact: assumption.ImpactLow,
			Derive: func(snap map[judgment.Slot]judgment.Judgment) (string, judgment.Confidence, bool) {
				size := snap[judgment.SlotOrgSize]
				if !size.Set() {
					return "", "", false
				}
				switch size.Value {
				case "1-50":
					return "founder-led, short decision chain", judgment.ConfidenceLow, true
				case "51-200":
					return "department heads own adoption", judgment.ConfidenceLow, true
				default:
					return "multiple approval layers, IT and compliance involved", judgment.ConfidenceLow, true
				}
			},
		},
	}
}
