// Package extract defines the contract between the conversation state
// machine and whatever turns free text into judgment updates. The machine
// never parses raw model output itself; it sees only typed results from an
// Extractor. Two implementations ship: a keyword matcher for closed-enum
// slots and a Gemini-backed classifier for open ones. Both are producers of
// the same (slot, value, confidence, source) tuples.
package extract

import (
	"context"
	"errors"

	"github.com/wthompson1804/scopedesk/internal/judgment"
)

// ErrNothingExtracted is returned when the collaborator answered but nothing
// parseable came back. The state machine treats this the same as a transport
// failure: re-ask once, then move on with the slot unset.
var ErrNothingExtracted = errors.New("extract: nothing parseable extracted")

// Request carries one utterance plus the slots the current state cares
// about and a snapshot of what is already known.
type Request struct {
	Utterance string
	// Asked lists the slot(s) the system question directly solicited.
	// Values found for these slots are user-stated; anything else the
	// extractor picks up on the side is inferred.
	Asked []judgment.Slot
	// Candidates limits which slots the extractor may report on. Empty
	// means all defined slots.
	Candidates []judgment.Slot
	// Prior is the current judgment snapshot, so extractors can avoid
	// re-reporting settled facts and can condition open-slot prompts.
	Prior map[judgment.Slot]judgment.Judgment
}

func (r Request) asked(slot judgment.Slot) bool {
	for _, s := range r.Asked {
		if s == slot {
			return true
		}
	}
	return false
}

func (r Request) candidate(slot judgment.Slot) bool {
	if len(r.Candidates) == 0 {
		return true
	}
	for _, s := range r.Candidates {
		if s == slot {
			return true
		}
	}
	return false
}

// sourceFor tags a found value with provenance: a direct answer to the
// question is user-stated, an incidental find is inferred.
func (r Request) sourceFor(slot judgment.Slot) judgment.Source {
	if r.asked(slot) {
		return judgment.SourceUserStated
	}
	return judgment.SourceInferred
}

// Extractor proposes judgment updates for one utterance. Implementations
// must be safe to call once per turn from a single goroutine and must
// respect ctx cancellation.
type Extractor interface {
	Extract(ctx context.Context, req Request) ([]judgment.Update, error)
}

// Fallback tries primary and falls back to secondary when primary fails or
// extracts nothing. The keyword matcher backstops the model this way, so a
// flaky network degrades quality instead of stalling the conversation.
type Fallback struct {
	Primary   Extractor
	Secondary Extractor
}

// Extract implements Extractor.
func (f Fallback) Extract(ctx context.Context, req Request) ([]judgment.Update, error) {
	updates, err := f.Primary.Extract(ctx, req)
	if err == nil && len(updates) > 0 {
		return updates, nil
	}
	if f.Secondary == nil {
		if err != nil {
			return nil, err
		}
		return nil, ErrNothingExtracted
	}
	sec, secErr := f.Secondary.Extract(ctx, req)
	if secErr != nil {
		if err != nil {
			return nil, err
		}
		return nil, secErr
	}
	if len(sec) == 0 {
		return nil, ErrNothingExtracted
	}
	return sec, nil
}
