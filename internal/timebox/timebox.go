// Package timebox enforces the attention budget for one intake session. The
// conversation gets a soft limit of turns before the fast-path is offered, a
// hard cap after which only a bounded finalize-or-extend choice remains, and
// a separate cap on effortful "hard" questions.
package timebox

import (
	"time"

	"github.com/wthompson1804/scopedesk/internal/config"
)

// maxExtensionTurns bounds how far past the hard cap the user may push.
const maxExtensionTurns = 2

// Status summarizes budget pressure for display.
type Status string

const (
	StatusNormal      Status = "normal"
	StatusApproaching Status = "approaching_limit"
	StatusAtLimit     Status = "at_limit"
	StatusExceeded    Status = "exceeded"
)

// Tracker counts turns and hard questions against the configured limits.
// Turns only ever increase within a session; Reset builds a fresh tracker.
type Tracker struct {
	cfg config.TimeboxConfig

	turns           int
	hardQuestions   int
	extensionTurns  int
	fastPathOffered bool
	hardStopReached bool

	startedAt  time.Time
	lastTurnAt time.Time
	now        func() time.Time
}

// Option customizes a Tracker during construction.
type Option func(*Tracker)

// WithClock overrides the clock, for tests.
func WithClock(clock func() time.Time) Option {
	return func(t *Tracker) {
		t.now = clock
	}
}

// New builds a tracker from config. Zero-valued config fields fall back to
// the documented defaults (soft 10, cap 18, hard questions 4).
func New(cfg config.TimeboxConfig, opts ...Option) *Tracker {
	if cfg.SoftLimitTurns <= 0 {
		cfg.SoftLimitTurns = 10
	}
	if cfg.HardCapTurns <= 0 {
		cfg.HardCapTurns = 18
	}
	if cfg.HardQuestionsMax <= 0 {
		cfg.HardQuestionsMax = 4
	}
	t := &Tracker{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	t.startedAt = t.now()
	t.lastTurnAt = t.startedAt
	return t
}

// RegisterTurn records one user+system exchange. isHard marks turns whose
// system question demanded real effort from the user. Once the hard stop is
// reached, further turns accrue to the bounded extension window.
func (t *Tracker) RegisterTurn(isHard bool) {
	t.turns++
	t.lastTurnAt = t.now()
	if isHard {
		t.hardQuestions++
	}
	if t.hardStopReached {
		t.extensionTurns++
		return
	}
	if t.turns >= t.cfg.HardCapTurns {
		t.hardStopReached = true
	}
}

// Turns returns the count of completed turns.
func (t *Tracker) Turns() int {
	return t.turns
}

// HardQuestions returns how many hard questions have been asked.
func (t *Tracker) HardQuestions() int {
	return t.hardQuestions
}

// ShouldOfferFastPath reports whether the next system turn should surface the
// fast-path escape. It fires once, past the soft limit or once the hard
// question budget is spent, and never forces termination.
func (t *Tracker) ShouldOfferFastPath() bool {
	if t.fastPathOffered {
		return false
	}
	return t.turns >= t.cfg.SoftLimitTurns || t.hardQuestions >= t.cfg.HardQuestionsMax
}

// MarkFastPathOffered records that the offer was shown.
func (t *Tracker) MarkFastPathOffered() {
	t.fastPathOffered = true
}

// ReachedHardStop reports whether the hard cap has been hit. Once true it
// stays true for the life of the session.
func (t *Tracker) ReachedHardStop() bool {
	return t.hardStopReached
}

// ShouldForceFinalize reports whether the extension window after the hard
// stop is spent and the session must finalize regardless of user choice.
func (t *Tracker) ShouldForceFinalize() bool {
	return t.hardStopReached && t.extensionTurns >= maxExtensionTurns
}

// ExtensionTurnsLeft returns how many bounded extension turns remain.
func (t *Tracker) ExtensionTurnsLeft() int {
	left := maxExtensionTurns - t.extensionTurns
	if left < 0 {
		return 0
	}
	return left
}

// BudgetStatus classifies current pressure for the UI.
func (t *Tracker) BudgetStatus() Status {
	switch {
	case t.turns >= t.cfg.HardCapTurns:
		return StatusExceeded
	case t.turns >= t.cfg.SoftLimitTurns:
		return StatusAtLimit
	case t.turns >= t.cfg.SoftLimitTurns-2:
		return StatusApproaching
	default:
		return StatusNormal
	}
}

// TurnsRemaining returns turns left before the hard cap.
func (t *Tracker) TurnsRemaining() int {
	left := t.cfg.HardCapTurns - t.turns
	if left < 0 {
		return 0
	}
	return left
}

// SessionDuration returns wall-clock time since the tracker was created.
func (t *Tracker) SessionDuration() time.Duration {
	return t.now().Sub(t.startedAt)
}
