package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wthompson1804/scopedesk/internal/judgment"
)

// stubExtractor returns canned results, standing in for the model-backed path.
type stubExtractor struct {
	updates []judgment.Update
	err     error
	calls   int
}

func (s *stubExtractor) Extract(_ context.Context, _ Request) ([]judgment.Update, error) {
	s.calls++
	return s.updates, s.err
}

func TestKeywordExtractorFindsClosedSlots(t *testing.T) {
	k := NewKeywordExtractor()
	updates, err := k.Extract(context.Background(), Request{
		Utterance: "We run three hospitals in the US and use SAP plus a CRM for scheduling",
		Asked:     []judgment.Slot{judgment.SlotIndustry},
	})
	require.NoError(t, err)

	bySlot := map[judgment.Slot]judgment.Update{}
	for _, u := range updates {
		bySlot[u.Slot] = u
	}
	require.Contains(t, bySlot, judgment.SlotIndustry)
	assert.Equal(t, "healthcare", bySlot[judgment.SlotIndustry].Value)
	assert.Equal(t, judgment.SourceUserStated, bySlot[judgment.SlotIndustry].Source)

	require.Contains(t, bySlot, judgment.SlotJurisdiction)
	assert.Equal(t, "US", bySlot[judgment.SlotJurisdiction].Value)
	assert.Equal(t, judgment.SourceInferred, bySlot[judgment.SlotJurisdiction].Source)

	require.Contains(t, bySlot, judgment.SlotIntegration)
	assert.Contains(t, bySlot[judgment.SlotIntegration].Value, "SAP")
	assert.Contains(t, bySlot[judgment.SlotIntegration].Value, "CRM System")
}

func TestKeywordExtractorSkipsUserProvidedPrior(t *testing.T) {
	k := NewKeywordExtractor()
	updates, err := k.Extract(context.Background(), Request{
		Utterance: "our retail stores",
		Prior: map[judgment.Slot]judgment.Judgment{
			judgment.SlotIndustry: {
				Slot: judgment.SlotIndustry, Value: "healthcare",
				Source: judgment.SourceUserStated, Confidence: judgment.ConfidenceHigh,
			},
		},
	})
	require.NoError(t, err)
	for _, u := range updates {
		assert.NotEqual(t, judgment.SlotIndustry, u.Slot, "settled user-provided slot must not be re-reported")
	}
}

func TestKeywordExtractorIntentNeedsDirectQuestion(t *testing.T) {
	k := NewKeywordExtractor()
	msg := "I want to predict machine failures before they take a production line down"

	updates, err := k.Extract(context.Background(), Request{Utterance: msg})
	require.NoError(t, err)
	for _, u := range updates {
		assert.NotEqual(t, judgment.SlotIntent, u.Slot)
	}

	updates, err = k.Extract(context.Background(), Request{Utterance: msg, Asked: []judgment.Slot{judgment.SlotIntent}})
	require.NoError(t, err)
	var found bool
	for _, u := range updates {
		if u.Slot == judgment.SlotIntent {
			found = true
			assert.Equal(t, judgment.SourceUserStated, u.Source)
		}
	}
	assert.True(t, found, "asked intent slot should be captured")
}

func TestAmbiguousIndustryIsDeterministic(t *testing.T) {
	k := NewKeywordExtractor()
	req := Request{Utterance: "a bank building software for hospitals"}
	first, err := k.Extract(context.Background(), req)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := k.Extract(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestParseExtractionTypedContract(t *testing.T) {
	raw := "```json\n{\"industry\": {\"value\": \"finance\", \"confidence\": \"high\"}, \"timeline\": {\"value\": \"0-3mo\", \"confidence\": \"med\"}, \"bogus\": {\"value\": \"x\"}}\n```"
	updates, err := ParseExtraction(raw, Request{Asked: []judgment.Slot{judgment.SlotIndustry}})
	require.NoError(t, err)
	require.Len(t, updates, 2)
	assert.Equal(t, judgment.SlotIndustry, updates[0].Slot)
	assert.Equal(t, judgment.ConfidenceHigh, updates[0].Confidence)
	assert.Equal(t, judgment.SourceUserStated, updates[0].Source)
	assert.Equal(t, judgment.SlotTimeline, updates[1].Slot)
	assert.Equal(t, judgment.ConfidenceMedium, updates[1].Confidence)
}

func TestParseExtractionRejectsGarbage(t *testing.T) {
	_, err := ParseExtraction("I could not find anything.", Request{})
	require.Error(t, err)

	_, err = ParseExtraction(`{"industry": {"value": ""}}`, Request{})
	require.ErrorIs(t, err, ErrNothingExtracted)
}

func TestFallbackUsesSecondaryOnFailure(t *testing.T) {
	primary := &stubExtractor{err: errors.New("deadline exceeded")}
	secondary := &stubExtractor{updates: []judgment.Update{{
		Slot: judgment.SlotIndustry, Value: "retail",
		Confidence: judgment.ConfidenceMedium, Source: judgment.SourceInferred,
	}}}
	f := Fallback{Primary: primary, Secondary: secondary}

	updates, err := f.Extract(context.Background(), Request{Utterance: "retail stores"})
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, "retail", updates[0].Value)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestFallbackSurfacesPrimaryErrorWhenBothFail(t *testing.T) {
	wantErr := errors.New("model unreachable")
	f := Fallback{
		Primary:   &stubExtractor{err: wantErr},
		Secondary: &stubExtractor{err: errors.New("secondary down")},
	}
	_, err := f.Extract(context.Background(), Request{Utterance: "anything"})
	require.ErrorIs(t, err, wantErr)
}

func TestRegulatedSet(t *testing.T) {
	assert.True(t, Regulated("Healthcare"))
	assert.True(t, Regulated("finance"))
	assert.False(t, Regulated("retail"))
}
