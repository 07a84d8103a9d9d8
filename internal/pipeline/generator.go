package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	genai "google.golang.org/genai"
)

// Generator produces one stage's document from its prompt.
type Generator interface {
	Generate(ctx context.Context, stage Stage, prompt string) (string, error)
}

// GeminiGenerator runs stage prompts against the Gemini API. Unlike the
// extraction path there is no MIME constraint: stages produce markdown.
type GeminiGenerator struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	retries int
	backoff time.Duration
}

// GeminiOption customizes the generator.
type GeminiOption func(*GeminiGenerator)

// WithTimeout sets the per-call timeout. Generation calls run long, so the
// default is well above the extraction timeout.
func WithTimeout(d time.Duration) GeminiOption {
	return func(g *GeminiGenerator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithRetries sets the retry count after the first attempt.
func WithRetries(n int) GeminiOption {
	return func(g *GeminiGenerator) {
		if n >= 0 {
			g.retries = n
		}
	}
}

// NewGeminiGenerator builds a generator backed by the Gemini API. The genai
// client reads GEMINI_API_KEY from the environment.
func NewGeminiGenerator(ctx context.Context, model string, opts ...GeminiOption) (*GeminiGenerator, error) {
	if model == "" {
		return nil, fmt.Errorf("pipeline: model name is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("pipeline: create genai client: %w", err)
	}
	g := &GeminiGenerator{
		client:  client,
		model:   model,
		timeout: 3 * time.Minute,
		retries: 1,
		backoff: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate implements Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, stage Stage, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= g.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(g.backoff * time.Duration(attempt)):
			}
		}
		out, err := g.generate(ctx, prompt)
		if err != nil {
			lastErr = err
			continue
		}
		return out, nil
	}
	return "", fmt.Errorf("pipeline: %s generation failed after %d attempts: %w", stage, g.retries+1, lastErr)
}

func (g *GeminiGenerator) generate(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Models.GenerateContent(callCtx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}}, nil)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("pipeline: empty model response")
	}
	out := strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text)
	if out == "" {
		return "", fmt.Errorf("pipeline: empty model response")
	}
	return out, nil
}

// StubGenerator produces deterministic placeholder documents. Used when no
// API key is configured and throughout the tests.
type StubGenerator struct{}

// Generate implements Generator.
func (StubGenerator) Generate(_ context.Context, stage Stage, _ string) (string, error) {
	switch stage {
	case StageResearch:
		return `**Summary:** Offline mode; research synthesized from intake only.

- **Go/No-Go Recommendation:** Caution
- **Recommended Agent Type:** T2
- **Confidence Level:** Low
- **Recommendation Rationale:** Generated without external research; validate the regulatory and integration findings before relying on them.`, nil
	case StageDesign:
		return "**Agent Type:** T2\n\nProcedural workflow design with human checkpoints at every irreversible action.", nil
	default:
		return fmt.Sprintf("# %s\n\nGenerated offline from intake context; review before sharing.", stage.DisplayName()), nil
	}
}

var (
	_ Generator = (*GeminiGenerator)(nil)
	_ Generator = StubGenerator{}
)
