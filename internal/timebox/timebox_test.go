package timebox

import (
	"testing"
	"time"

	"github.com/wthompson1804/scopedesk/internal/config"
)

func defaults() config.TimeboxConfig {
	return config.TimeboxConfig{SoftLimitTurns: 10, HardCapTurns: 18, HardQuestionsMax: 4}
}

func TestTurnsAreMonotonic(t *testing.T) {
	tr := New(defaults())
	prev := tr.Turns()
	for i := 0; i < 25; i++ {
		tr.RegisterTurn(false)
		if tr.Turns() < prev {
			t.Fatalf("turn count decreased: %d -> %d", prev, tr.Turns())
		}
		prev = tr.Turns()
	}
}

func TestHardStopIsPermanentAtCap(t *testing.T) {
	tr := New(defaults())
	for i := 0; i < 17; i++ {
		tr.RegisterTurn(false)
	}
	if tr.ReachedHardStop() {
		t.Fatal("hard stop before the cap")
	}
	tr.RegisterTurn(false) // turn 18
	if !tr.ReachedHardStop() {
		t.Fatal("expected hard stop at 18 turns")
	}
	for i := 0; i < 5; i++ {
		tr.RegisterTurn(false)
		if !tr.ReachedHardStop() {
			t.Fatal("hard stop flag must stay set")
		}
	}
}

func TestFastPathOfferedOncePastSoftLimit(t *testing.T) {
	tr := New(defaults())
	for i := 0; i < 9; i++ {
		tr.RegisterTurn(false)
	}
	if tr.ShouldOfferFastPath() {
		t.Fatal("fast path offered before soft limit")
	}
	tr.RegisterTurn(false) // turn 10
	if !tr.ShouldOfferFastPath() {
		t.Fatal("fast path not offered at soft limit")
	}
	tr.MarkFastPathOffered()
	if tr.ShouldOfferFastPath() {
		t.Fatal("fast path offered twice")
	}
}

func TestFastPathOfferedWhenHardQuestionBudgetSpent(t *testing.T) {
	tr := New(defaults())
	for i := 0; i < 4; i++ {
		tr.RegisterTurn(true)
	}
	if !tr.ShouldOfferFastPath() {
		t.Fatal("expected fast path offer after 4 hard questions")
	}
}

func TestForceFinalizeAfterExtensionWindow(t *testing.T) {
	tr := New(defaults())
	for i := 0; i < 18; i++ {
		tr.RegisterTurn(false)
	}
	if tr.ShouldForceFinalize() {
		t.Fatal("force-finalize before extension turns used")
	}
	tr.RegisterTurn(false)
	tr.RegisterTurn(false)
	if !tr.ShouldForceFinalize() {
		t.Fatal("expected force-finalize after 2 extension turns")
	}
}

func TestBudgetStatusProgression(t *testing.T) {
	tr := New(defaults())
	if got := tr.BudgetStatus(); got != StatusNormal {
		t.Fatalf("fresh tracker status = %s", got)
	}
	for i := 0; i < 8; i++ {
		tr.RegisterTurn(false)
	}
	if got := tr.BudgetStatus(); got != StatusApproaching {
		t.Fatalf("status at 8 turns = %s", got)
	}
	for i := 0; i < 2; i++ {
		tr.RegisterTurn(false)
	}
	if got := tr.BudgetStatus(); got != StatusAtLimit {
		t.Fatalf("status at 10 turns = %s", got)
	}
	for i := 0; i < 8; i++ {
		tr.RegisterTurn(false)
	}
	if got := tr.BudgetStatus(); got != StatusExceeded {
		t.Fatalf("status at 18 turns = %s", got)
	}
}

func TestSessionDurationUsesClock(t *testing.T) {
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	current := base
	tr := New(defaults(), WithClock(func() time.Time { return current }))
	current = base.Add(3 * time.Minute)
	if got := tr.SessionDuration(); got != 3*time.Minute {
		t.Fatalf("duration = %s", got)
	}
}
