package assumption

import (
	"fmt"
	"testing"
	"time"

	"github.com/wthompson1804/scopedesk/internal/judgment"
)

func newTestLedger() *Ledger {
	n := 0
	tick := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	return NewLedger(
		WithClock(func() time.Time {
			tick = tick.Add(time.Second)
			return tick
		}),
		WithIDSource(func() string {
			n++
			return fmt.Sprintf("A%d", n)
		}),
	)
}

func TestUpsertKeepsIDAcrossRederivation(t *testing.T) {
	l := newTestLedger()
	first := l.Upsert(judgment.SlotRiskPosture, "Risk posture is low", []judgment.Slot{judgment.SlotIndustry}, judgment.ConfidenceMedium, ImpactHigh)
	second := l.Upsert(judgment.SlotRiskPosture, "Risk posture is high", []judgment.Slot{judgment.SlotIndustry}, judgment.ConfidenceMedium, ImpactHigh)
	if first.ID != second.ID {
		t.Fatalf("expected stable ID, got %s then %s", first.ID, second.ID)
	}
	if len(l.All()) != 1 {
		t.Fatalf("expected a single ledger entry, got %d", len(l.All()))
	}
	if second.Statement != "Risk posture is high" {
		t.Fatalf("expected replacement statement, got %q", second.Statement)
	}
}

func TestMarkStaleHitsBasisOnly(t *testing.T) {
	l := newTestLedger()
	risk := l.Upsert(judgment.SlotRiskPosture, "Risk posture is low", []judgment.Slot{judgment.SlotIndustry}, judgment.ConfidenceMedium, ImpactHigh)
	timeline := l.Upsert(judgment.SlotTimeline, "Timeline is 0-3mo", []judgment.Slot{judgment.SlotIntent}, judgment.ConfidenceMedium, ImpactMedium)

	ids := l.MarkStale(judgment.SlotIndustry)
	if len(ids) != 1 || ids[0] != risk.ID {
		t.Fatalf("expected only the risk assumption to go stale, got %v", ids)
	}
	if risk.Status != StatusStale || !risk.NeedsConfirmation {
		t.Fatalf("stale transition incomplete: %+v", risk)
	}
	if timeline.Status != StatusAssumed {
		t.Fatalf("unrelated assumption touched: %+v", timeline)
	}
}

func TestMarkStaleReportsOnlyFreshTransitions(t *testing.T) {
	l := newTestLedger()
	risk := l.Upsert(judgment.SlotRiskPosture, "Risk posture is low", []judgment.Slot{judgment.SlotIndustry}, judgment.ConfidenceMedium, ImpactHigh)

	if ids := l.MarkStale(judgment.SlotIndustry); len(ids) != 1 || ids[0] != risk.ID {
		t.Fatalf("first transition should be reported, got %v", ids)
	}
	if ids := l.MarkStale(judgment.SlotIndustry); len(ids) != 0 {
		t.Fatalf("already-stale assumptions must not be reported again, got %v", ids)
	}
}

func TestMarkStaleSkipsKeptSlots(t *testing.T) {
	l := newTestLedger()
	risk := l.Upsert(judgment.SlotRiskPosture, "Risk posture is high", []judgment.Slot{judgment.SlotIndustry}, judgment.ConfidenceMedium, ImpactHigh)
	stake := l.Upsert(judgment.SlotStakeholders, "Stakeholder reality is founder-led", []judgment.Slot{judgment.SlotIndustry}, judgment.ConfidenceLow, ImpactLow)

	ids := l.MarkStale(judgment.SlotIndustry, judgment.SlotRiskPosture)
	if len(ids) != 1 || ids[0] != stake.ID {
		t.Fatalf("only the unkept assumption should transition, got %v", ids)
	}
	if risk.Status != StatusAssumed {
		t.Fatalf("kept assumption touched: %+v", risk)
	}
}

func TestStaleCannotBeConfirmedDirectly(t *testing.T) {
	l := newTestLedger()
	a := l.Upsert(judgment.SlotRiskPosture, "Risk posture is low", []judgment.Slot{judgment.SlotIndustry}, judgment.ConfidenceMedium, ImpactHigh)
	l.MarkStale(judgment.SlotIndustry)
	if err := l.Confirm(a.ID); err == nil {
		t.Fatal("expected confirmation of a stale assumption to fail")
	}
	if a.Confirmed() {
		t.Fatal("stale assumption reported as confirmed")
	}
}

func TestConfirmClearsNeedsConfirmation(t *testing.T) {
	l := newTestLedger()
	a := l.Upsert(judgment.SlotOrgSize, "Organization size is 51-200", []judgment.Slot{judgment.SlotIntent}, judgment.ConfidenceMedium, ImpactMedium)
	if err := l.Confirm(a.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if a.NeedsConfirmation || a.Status != StatusConfirmed {
		t.Fatalf("confirmation incomplete: %+v", a)
	}
}

func TestTopByImpactRanksRiskiestFirst(t *testing.T) {
	l := newTestLedger()
	l.Upsert(judgment.SlotTimeline, "Timeline is 12mo+", nil, judgment.ConfidenceHigh, ImpactLow)
	risky := l.Upsert(judgment.SlotJurisdiction, "Jurisdiction is EU", nil, judgment.ConfidenceLow, ImpactHigh)
	l.Upsert(judgment.SlotOrgSize, "Organization size is 1-50", nil, judgment.ConfidenceMedium, ImpactMedium)

	top := l.TopByImpact(2)
	if len(top) != 2 {
		t.Fatalf("expected 2 results, got %d", len(top))
	}
	if top[0].ID != risky.ID {
		t.Fatalf("expected high-impact low-confidence assumption first, got %+v", top[0])
	}
}

func TestMaximizeUncertainty(t *testing.T) {
	l := newTestLedger()
	a := l.Upsert(judgment.SlotIndustry, "Industry is retail", nil, judgment.ConfidenceMedium, ImpactHigh)
	a.NeedsConfirmation = false
	l.MaximizeUncertainty(judgment.SlotIndustry)
	if a.Confidence != judgment.ConfidenceLow || !a.NeedsConfirmation {
		t.Fatalf("expected maximum uncertainty, got %+v", a)
	}
}
