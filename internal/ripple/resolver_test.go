package ripple

import (
	"testing"

	"github.com/wthompson1804/scopedesk/internal/assumption"
	"github.com/wthompson1804/scopedesk/internal/judgment"
)

type stubFlagger struct {
	flagged map[judgment.Slot][]string
}

func (s *stubFlagger) FlagNeedsRerun(changed judgment.Slot) []string {
	return s.flagged[changed]
}

func newHarness(t *testing.T) (*judgment.Store, *assumption.Ledger, *Resolver, *stubFlagger) {
	t.Helper()
	store := judgment.NewStore()
	ledger := assumption.NewLedger()
	flagger := &stubFlagger{flagged: map[judgment.Slot][]string{}}
	res, err := New(store, ledger, flagger, DefaultRules())
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	return store, ledger, res, flagger
}

func TestRippleDerivesRiskPostureFromIndustry(t *testing.T) {
	store, ledger, res, _ := newHarness(t)
	store.Set(judgment.Update{Slot: judgment.SlotIndustry, Value: "healthcare", Confidence: judgment.ConfidenceHigh, Source: judgment.SourceUserStated})

	result := res.Ripple(judgment.SlotIndustry)
	if len(result.UpdatedJudgments) != 1 || result.UpdatedJudgments[0] != judgment.SlotRiskPosture {
		t.Fatalf("unexpected updates: %v", result.UpdatedJudgments)
	}
	risk := store.Get(judgment.SlotRiskPosture)
	if risk.Value != "high" || risk.Source != judgment.SourceInferred {
		t.Fatalf("unexpected risk posture: %+v", risk)
	}
	if a, ok := ledger.ForSlot(judgment.SlotRiskPosture); !ok {
		t.Fatal("inferred write must produce an assumption")
	} else if a.Status != assumption.StatusAssumed {
		t.Fatalf("expected assumed status, got %s", a.Status)
	}
}

func TestRippleIsIdempotent(t *testing.T) {
	store, _, res, _ := newHarness(t)
	store.Set(judgment.Update{Slot: judgment.SlotIndustry, Value: "finance", Confidence: judgment.ConfidenceHigh, Source: judgment.SourceUserStated})

	first := res.Ripple(judgment.SlotIndustry)
	if len(first.UpdatedJudgments) == 0 {
		t.Fatal("first ripple should derive something")
	}
	logLen := len(store.ChangeLog())

	second := res.Ripple(judgment.SlotIndustry)
	if len(second.UpdatedJudgments) != 0 {
		t.Fatalf("second ripple changed judgments: %v", second.UpdatedJudgments)
	}
	if len(store.ChangeLog()) != logLen {
		t.Fatal("second ripple grew the change log")
	}
}

func TestSecondRippleLeavesAssumptionsUntouched(t *testing.T) {
	store, ledger, res, _ := newHarness(t)
	store.Set(judgment.Update{Slot: judgment.SlotIndustry, Value: "finance", Confidence: judgment.ConfidenceMedium, Source: judgment.SourceInferred})
	ledger.Upsert(judgment.SlotIndustry, "Industry is finance",
		[]judgment.Slot{judgment.SlotIndustry}, judgment.ConfidenceMedium, assumption.ImpactHigh)

	res.Ripple(judgment.SlotIndustry)
	risk, ok := ledger.ForSlot(judgment.SlotRiskPosture)
	if !ok || risk.Status != assumption.StatusAssumed {
		t.Fatalf("setup: expected a derived risk assumption, got %+v", risk)
	}

	second := res.Ripple(judgment.SlotIndustry)
	if len(second.InvalidatedAssumptions) != 0 {
		t.Fatalf("second ripple invalidated assumptions: %v", second.InvalidatedAssumptions)
	}
	if risk.Status != assumption.StatusAssumed {
		t.Fatalf("derived assumption went %s on an unchanged basis", risk.Status)
	}
	if a, _ := ledger.ForSlot(judgment.SlotIndustry); a.Status != assumption.StatusAssumed {
		t.Fatalf("assumption covering the unchanged slot went %s", a.Status)
	}
}

func TestRippleNeverOverwritesUserEditedTarget(t *testing.T) {
	store, _, res, _ := newHarness(t)
	store.Set(judgment.Update{Slot: judgment.SlotRiskPosture, Value: "low", Confidence: judgment.ConfidenceHigh, Source: judgment.SourceUserEdited})
	store.Set(judgment.Update{Slot: judgment.SlotIndustry, Value: "healthcare", Confidence: judgment.ConfidenceHigh, Source: judgment.SourceUserStated})

	result := res.Ripple(judgment.SlotIndustry)
	for _, slot := range result.UpdatedJudgments {
		if slot == judgment.SlotRiskPosture {
			t.Fatal("ripple overwrote a user-edited judgment")
		}
	}
	if got := store.Get(judgment.SlotRiskPosture).Value; got != "low" {
		t.Fatalf("user-edited risk posture changed to %q", got)
	}
}

// Correcting industry from retail to healthcare after risk posture was
// inferred low must mark the risk assumption stale and re-derive it.
func TestIndustryCorrectionRipplesToRiskPosture(t *testing.T) {
	store, ledger, res, _ := newHarness(t)
	store.Set(judgment.Update{Slot: judgment.SlotIntent, Value: "assist our support team", Confidence: judgment.ConfidenceMedium, Source: judgment.SourceUserStated})
	store.Set(judgment.Update{Slot: judgment.SlotIndustry, Value: "retail", Confidence: judgment.ConfidenceHigh, Source: judgment.SourceUserStated})
	res.Ripple(judgment.SlotIntent)
	res.Ripple(judgment.SlotIndustry)

	if got := store.Get(judgment.SlotRiskPosture).Value; got != "low" {
		t.Fatalf("setup: expected low risk posture, got %q", got)
	}
	riskAssumption, _ := ledger.ForSlot(judgment.SlotRiskPosture)

	store.Set(judgment.Update{Slot: judgment.SlotIndustry, Value: "healthcare", Confidence: judgment.ConfidenceHigh, Source: judgment.SourceUserEdited})
	result := res.Ripple(judgment.SlotIndustry)

	found := false
	for _, id := range result.InvalidatedAssumptions {
		if id == riskAssumption.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("risk assumption %s not invalidated: %v", riskAssumption.ID, result.InvalidatedAssumptions)
	}
	if got := store.Get(judgment.SlotRiskPosture).Value; got != "high" {
		t.Fatalf("expected re-derived high risk posture, got %q", got)
	}
	if a, _ := ledger.ForSlot(judgment.SlotRiskPosture); a.Status != assumption.StatusAssumed || !a.NeedsConfirmation {
		t.Fatalf("re-derived assumption should be re-offered: %+v", a)
	}
}

func TestRulePrecedenceIsDeclarationOrder(t *testing.T) {
	store, _, res, _ := newHarness(t)
	// Both risk rules can fire: regulated industry says high, assist-style
	// intent says low. Industry is declared first, so high wins.
	store.Set(judgment.Update{Slot: judgment.SlotIntent, Value: "assist nurses with scheduling", Confidence: judgment.ConfidenceMedium, Source: judgment.SourceUserStated})
	store.Set(judgment.Update{Slot: judgment.SlotIndustry, Value: "healthcare", Confidence: judgment.ConfidenceHigh, Source: judgment.SourceUserStated})

	res.RippleAll([]judgment.Slot{judgment.SlotIndustry, judgment.SlotIntent})
	if got := store.Get(judgment.SlotRiskPosture).Value; got != "high" {
		t.Fatalf("expected industry rule to outrank intent rule, got %q", got)
	}
}

func TestRippleFlagsPipelineStages(t *testing.T) {
	store, _, res, flagger := newHarness(t)
	flagger.flagged[judgment.SlotJurisdiction] = []string{"research"}
	store.Set(judgment.Update{Slot: judgment.SlotJurisdiction, Value: "EU", Confidence: judgment.ConfidenceHigh, Source: judgment.SourceUserEdited})

	result := res.Ripple(judgment.SlotJurisdiction)
	if len(result.StagesNeedingRerun) != 1 || result.StagesNeedingRerun[0] != "research" {
		t.Fatalf("expected research stage flagged, got %v", result.StagesNeedingRerun)
	}
}

func TestNewRejectsMalformedRules(t *testing.T) {
	store := judgment.NewStore()
	ledger := assumption.NewLedger()
	_, err := New(store, ledger, nil, []Rule{{Target: judgment.SlotRiskPosture}})
	if err == nil {
		t.Fatal("expected error for rule without basis")
	}
	_, err = New(store, ledger, nil, []Rule{{
		Target: judgment.SlotRiskPosture,
		Basis:  []judgment.Slot{judgment.SlotRiskPosture},
		Derive: func(map[judgment.Slot]judgment.Judgment) (string, judgment.Confidence, bool) { return "", "", false },
	}})
	if err == nil {
		t.Fatal("expected error for self-dependent rule")
	}
}
