package session

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wthompson1804/scopedesk/internal/config"
	"github.com/wthompson1804/scopedesk/internal/extract"
	"github.com/wthompson1804/scopedesk/internal/intake"
	"github.com/wthompson1804/scopedesk/internal/judgment"
	"github.com/wthompson1804/scopedesk/internal/pipeline"
)

type scriptedExtractor struct {
	replies [][]judgment.Update
}

func (s *scriptedExtractor) Extract(_ context.Context, _ extract.Request) ([]judgment.Update, error) {
	if len(s.replies) == 0 {
		return nil, extract.ErrNothingExtracted
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r, nil
}

func stated(slot judgment.Slot, value string) judgment.Update {
	return judgment.Update{Slot: slot, Value: value,
		Confidence: judgment.ConfidenceHigh, Source: judgment.SourceUserStated}
}

func newSession(t *testing.T, ex extract.Extractor) (*Session, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	if err := config.InitScopedeskDir(dir); err != nil {
		t.Fatalf("init project dir: %v", err)
	}
	cfg, err := config.NewConfig(dir)
	if err != nil {
		t.Fatalf("new config: %v", err)
	}
	s, err := New(cfg, ex, pipeline.StubGenerator{}, nil)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, cfg
}

func TestSessionRunsEndToEnd(t *testing.T) {
	ex := &scriptedExtractor{replies: [][]judgment.Update{
		{stated(judgment.SlotIntent, "summarize weekly sales reports for regional managers")},
		{stated(judgment.SlotOpportunity, "cost")},
		{stated(judgment.SlotIndustry, "retail"), stated(judgment.SlotJurisdiction, "US")},
	}}
	s, _ := newSession(t, ex)
	ctx := context.Background()

	if r := s.Greeting(); r.State != intake.StateIntent {
		t.Fatalf("greeting should open at intent, got %s", r.State)
	}
	s.Handle(ctx, intake.Input{Message: "report prep eats every Monday"})
	s.Handle(ctx, intake.Input{Message: "save manager time"})
	r := s.Handle(ctx, intake.Input{Message: "retail, US"})
	if r.State != intake.StateCheckpoint {
		t.Fatalf("expected checkpoint, got %s", r.State)
	}
	if len(s.Progress().Filled) == 0 {
		t.Fatal("artifact should fill as intake progresses")
	}

	r = s.Handle(ctx, intake.Input{Action: intake.ActionProceed})
	if !r.RunResearch {
		t.Fatalf("proceed should request research, got %+v", r)
	}
	r = s.RunResearch(ctx)
	if r.State != intake.StateConfirmType {
		t.Fatalf("research completion should ask for the type, got %s: %v", r.State, r.Messages)
	}

	r = s.Handle(ctx, intake.Input{Message: "T2"})
	if !r.RunPipeline {
		t.Fatalf("confirmed type should request generation, got %+v", r)
	}
	r = s.RunPipeline(ctx)
	if r.State != intake.StateExports || !r.WriteExports {
		t.Fatalf("generation should finalize exports, got %+v", r)
	}

	paths, err := s.WriteExports()
	if err != nil {
		t.Fatalf("write exports: %v", err)
	}
	if len(paths) != 4 {
		t.Fatalf("expected 4 export documents, got %v", paths)
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("missing export %s: %v", p, err)
		}
	}
	if !strings.Contains(s.Artifact(), "retail") {
		t.Fatal("artifact should reflect captured judgments")
	}
}

func TestSessionWritesRecoverySnapshot(t *testing.T) {
	ex := &scriptedExtractor{replies: [][]judgment.Update{
		{stated(judgment.SlotIntent, "draft follow-up emails after sales calls")},
		{stated(judgment.SlotOpportunity, "revenue")},
		{stated(judgment.SlotIndustry, "retail"), stated(judgment.SlotJurisdiction, "US")},
	}}
	s, cfg := newSession(t, ex)
	ctx := context.Background()
	s.Greeting()

	// Default snapshot interval is 3 turns.
	s.Handle(ctx, intake.Input{Message: "reps forget to follow up"})
	s.Handle(ctx, intake.Input{Message: "close more deals"})
	s.Handle(ctx, intake.Input{Message: "retail, US"})

	path := filepath.Join(cfg.StateDir(), "session.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}
	for _, want := range []string{"\"turns\": 3", "retail", "checkpoint"} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("snapshot missing %q:\n%s", want, data)
		}
	}
}

func TestResetStartsClean(t *testing.T) {
	ex := &scriptedExtractor{replies: [][]judgment.Update{
		{stated(judgment.SlotIntent, "answer product questions on our website")},
		{stated(judgment.SlotIntent, "route warranty claims to the right team")},
	}}
	s, _ := newSession(t, ex)
	ctx := context.Background()
	s.Greeting()

	s.Handle(ctx, intake.Input{Message: "support backlog keeps growing"})
	r := s.Handle(ctx, intake.Input{Action: intake.ActionStartOver})
	if !r.Restart || r.State != intake.StateIntent {
		t.Fatalf("start over should restart at the greeting, got %+v", r)
	}
	if got := s.TurnsRemaining(); got != 18 {
		t.Fatalf("turn budget should reset to the full cap, got %d", got)
	}
	if len(s.Progress().Filled) != 0 {
		t.Fatal("artifact should be empty after reset")
	}
}
