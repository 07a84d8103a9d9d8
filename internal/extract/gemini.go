package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	genai "google.golang.org/genai"

	"github.com/wthompson1804/scopedesk/internal/judgment"
)

// extractionPrompt asks for one JSON object keyed by slot. Kept deliberately
// simple so smaller model tiers answer it reliably.
const extractionPrompt = `You extract structured facts from one message a user sent while scoping an AI agent project.

Report ONLY facts the message supports. For each fact use one of these keys:
%s

Respond with a single JSON object of the form:
{"<key>": {"value": "<short canonical value>", "confidence": "high"|"medium"|"low"}, ...}

Omit keys the message says nothing about. Do not invent values.

Known so far (do not re-report unless the message changes them):
%s

USER MESSAGE:
%s`

// GeminiExtractor classifies open slots with the Gemini API. Calls carry a
// timeout and a small bounded retry with backoff; on exhaustion the caller
// falls back or degrades per the state machine's failure policy.
type GeminiExtractor struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	retries int
	backoff time.Duration
}

// GeminiOption customizes the extractor.
type GeminiOption func(*GeminiExtractor)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) GeminiOption {
	return func(g *GeminiExtractor) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithRetries sets the retry count after the first attempt.
func WithRetries(n int) GeminiOption {
	return func(g *GeminiExtractor) {
		if n >= 0 {
			g.retries = n
		}
	}
}

// WithBackoff sets the base backoff between attempts.
func WithBackoff(d time.Duration) GeminiOption {
	return func(g *GeminiExtractor) {
		if d > 0 {
			g.backoff = d
		}
	}
}

// NewGeminiExtractor builds an extractor backed by the Gemini API. The genai
// client reads GEMINI_API_KEY from the environment.
func NewGeminiExtractor(ctx context.Context, model string, opts ...GeminiOption) (*GeminiExtractor, error) {
	if model == "" {
		return nil, fmt.Errorf("extract: model name is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("extract: create genai client: %w", err)
	}
	g := &GeminiExtractor{
		client:  client,
		model:   model,
		timeout: 45 * time.Second,
		retries: 2,
		backoff: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Extract implements Extractor.
func (g *GeminiExtractor) Extract(ctx context.Context, req Request) ([]judgment.Update, error) {
	if strings.TrimSpace(req.Utterance) == "" {
		return nil, nil
	}
	prompt := buildExtractionPrompt(req)

	var lastErr error
	for attempt := 0; attempt <= g.retries; attempt++ {
		if attempt > 0 {
			wait := g.backoff * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
		raw, err := g.generate(ctx, prompt)
		if err != nil {
			lastErr = err
			continue
		}
		updates, err := ParseExtraction(raw, req)
		if err != nil {
			lastErr = err
			continue
		}
		return updates, nil
	}
	return nil, fmt.Errorf("extract: gemini extraction failed after %d attempts: %w", g.retries+1, lastErr)
}

func (g *GeminiExtractor) generate(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Models.GenerateContent(callCtx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrNothingExtracted
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

func buildExtractionPrompt(req Request) string {
	slots := req.Candidates
	if len(slots) == 0 {
		for _, def := range judgment.Definitions {
			slots = append(slots, def.Slot)
		}
	}
	var keys []string
	for _, slot := range slots {
		keys = append(keys, fmt.Sprintf("- %s (%s)", slot, judgment.DisplayName(slot)))
	}

	var known []string
	for _, def := range judgment.Definitions {
		if j, ok := req.Prior[def.Slot]; ok && j.Set() {
			known = append(known, fmt.Sprintf("- %s: %s", def.Slot, j.Value))
		}
	}
	if len(known) == 0 {
		known = append(known, "- (nothing yet)")
	}

	return fmt.Sprintf(extractionPrompt, strings.Join(keys, "\n"), strings.Join(known, "\n"), req.Utterance)
}

// extractionPayload is the wire shape the model returns.
type extractionPayload map[string]struct {
	Value      string `json:"value"`
	Confidence string `json:"confidence"`
}

// ParseExtraction converts a model JSON response into typed updates. It is
// exported separately so the parsing contract can be tested without a live
// client. Unknown slots and empty values are dropped rather than erroring:
// a partially useful answer still moves the conversation forward.
func ParseExtraction(raw string, req Request) ([]judgment.Update, error) {
	raw = strings.TrimSpace(raw)
	// Models occasionally wrap JSON in a fence despite the MIME hint.
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var payload extractionPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("extract: parse model response: %w", err)
	}
	var updates []judgment.Update
	for _, def := range judgment.Definitions {
		entry, ok := payload[string(def.Slot)]
		if !ok {
			continue
		}
		value := strings.TrimSpace(entry.Value)
		if value == "" || !req.candidate(def.Slot) {
			continue
		}
		updates = append(updates, judgment.Update{
			Slot:       def.Slot,
			Value:      value,
			Raw:        req.Utterance,
			Confidence: parseConfidence(entry.Confidence),
			Source:     req.sourceFor(def.Slot),
		})
	}
	if len(updates) == 0 {
		return nil, ErrNothingExtracted
	}
	return updates, nil
}

func parseConfidence(s string) judgment.Confidence {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return judgment.ConfidenceHigh
	case "medium", "med":
		return judgment.ConfidenceMedium
	default:
		return judgment.ConfidenceLow
	}
}

var _ Extractor = (*GeminiExtractor)(nil)
