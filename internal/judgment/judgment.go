// Package judgment tracks the facts the intake conversation is trying to
// establish. Each tracked fact is a named slot with a value, a confidence
// level, and a provenance source. Slots are created empty at session start,
// never deleted, and every mutation is recorded in a change log.
package judgment

import "fmt"

// Slot identifies one tracked fact.
type Slot string

const (
	SlotIndustry     Slot = "industry"
	SlotIntent       Slot = "use_case_intent"
	SlotOpportunity  Slot = "opportunity_shape"
	SlotJurisdiction Slot = "jurisdiction"
	SlotTimeline     Slot = "timeline"
	SlotOrgSize      Slot = "organization_size"
	SlotStakeholders Slot = "stakeholder_reality"
	SlotIntegration  Slot = "integration_surface"
	SlotRiskPosture  Slot = "risk_posture"
	SlotBoundaries   Slot = "boundaries"
	SlotAgentType    Slot = "confirmed_agent_type"
)

// Confidence grades how certain we are about a value.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// rank orders confidence for tie-breaking. Lower rank = lower confidence.
func (c Confidence) rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	default:
		return 1
	}
}

// Min returns the lower of two confidence levels.
func Min(a, b Confidence) Confidence {
	if a.rank() <= b.rank() {
		return a
	}
	return b
}

// Source records where a value came from.
type Source string

const (
	// SourceUserStated means the user told us directly in conversation.
	SourceUserStated Source = "user-stated"
	// SourceInferred means the engine derived the value without the user
	// stating it. Inferred values always carry a companion assumption.
	SourceInferred Source = "inferred"
	// SourceUserEdited means the user corrected a value after the fact.
	// User edits are never overwritten by inference.
	SourceUserEdited Source = "user-edited"
)

// UserProvided reports whether the source counts as direct user input.
func (s Source) UserProvided() bool {
	return s == SourceUserStated || s == SourceUserEdited
}

// Criticality classifies how much a slot matters to the assessment.
type Criticality string

const (
	// CriticalityBlocker slots must be user-provided before the pipeline runs.
	CriticalityBlocker   Criticality = "blocker"
	CriticalityImportant Criticality = "important"
	CriticalityOptional  Criticality = "optional"
)

// Policy describes how the conversation acquires a slot.
type Policy string

const (
	PolicyMustAsk       Policy = "must-ask"
	PolicyInferConfirm  Policy = "infer-then-confirm"
	PolicyInferSilently Policy = "infer-silently"
)

// Definition declares the static metadata for a slot.
type Definition struct {
	Slot        Slot
	Name        string
	Criticality Criticality
	Policy      Policy
}

// Definitions lists every tracked slot in display order. The order is stable
// and drives both checkpoint summaries and the change-log replay.
var Definitions = []Definition{
	{SlotIndustry, "Industry", CriticalityBlocker, PolicyMustAsk},
	{SlotIntent, "Use case intent", CriticalityBlocker, PolicyMustAsk},
	{SlotOpportunity, "Opportunity shape", CriticalityImportant, PolicyInferConfirm},
	{SlotJurisdiction, "Jurisdiction", CriticalityBlocker, PolicyMustAsk},
	{SlotTimeline, "Timeline", CriticalityImportant, PolicyInferConfirm},
	{SlotOrgSize, "Organization size", CriticalityImportant, PolicyInferConfirm},
	{SlotStakeholders, "Stakeholder reality", CriticalityOptional, PolicyInferSilently},
	{SlotIntegration, "Integration surface", CriticalityImportant, PolicyInferConfirm},
	{SlotRiskPosture, "Risk posture", CriticalityImportant, PolicyInferConfirm},
	{SlotBoundaries, "Boundaries", CriticalityOptional, PolicyInferSilently},
	{SlotAgentType, "Confirmed agent type", CriticalityBlocker, PolicyMustAsk},
}

// Lookup returns the definition for a slot.
func Lookup(slot Slot) (Definition, bool) {
	for _, def := range Definitions {
		if def.Slot == slot {
			return def, true
		}
	}
	return Definition{}, false
}

// DisplayName returns the human-readable name for a slot.
func DisplayName(slot Slot) string {
	if def, ok := Lookup(slot); ok {
		return def.Name
	}
	return string(slot)
}

// Validate ensures the definition table stays well-formed. Exercised by tests
// so a bad edit to Definitions fails fast.
func ValidateDefinitions(defs []Definition) error {
	seen := map[Slot]struct{}{}
	for idx, def := range defs {
		if def.Slot == "" {
			return fmt.Errorf("judgment: definition[%d] slot is required", idx)
		}
		if def.Name == "" {
			return fmt.Errorf("judgment: definition for %s needs a name", def.Slot)
		}
		if _, dup := seen[def.Slot]; dup {
			return fmt.Errorf("judgment: duplicate definition for %s", def.Slot)
		}
		seen[def.Slot] = struct{}{}
		if def.Criticality == CriticalityBlocker && def.Policy == PolicyInferSilently {
			return fmt.Errorf("judgment: blocker slot %s cannot be infer-silently", def.Slot)
		}
	}
	return nil
}
