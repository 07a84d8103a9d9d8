// Package session assembles one intake conversation end to end: judgment
// store, assumption ledger, turn budget, ripple resolver, pipeline, artifact
// document, trace, and exports, behind a single facade the UI drives. The UI
// never touches the components directly; it hands user turns in and renders
// what comes back.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wthompson1804/scopedesk/internal/artifact"
	"github.com/wthompson1804/scopedesk/internal/assumption"
	"github.com/wthompson1804/scopedesk/internal/config"
	"github.com/wthompson1804/scopedesk/internal/export"
	"github.com/wthompson1804/scopedesk/internal/extract"
	"github.com/wthompson1804/scopedesk/internal/intake"
	"github.com/wthompson1804/scopedesk/internal/judgment"
	"github.com/wthompson1804/scopedesk/internal/logging"
	"github.com/wthompson1804/scopedesk/internal/pipeline"
	"github.com/wthompson1804/scopedesk/internal/ripple"
	"github.com/wthompson1804/scopedesk/internal/timebox"
	"github.com/wthompson1804/scopedesk/internal/trace"
)

// Session owns all per-conversation state. It is driven from a single
// goroutine; long-running stage work is started by the caller in response to
// the Run* flags on a Reply and reported back via the *Complete methods.
type Session struct {
	cfg       *config.Config
	log       *logging.Logger
	extractor extract.Extractor
	generator pipeline.Generator

	store    *judgment.Store
	ledger   *assumption.Ledger
	tracker  *timebox.Tracker
	resolver *ripple.Resolver
	stages   *pipeline.Ledger
	runner   *pipeline.Runner
	machine  *intake.Machine
	doc      *artifact.Document
	tracer   *trace.Tracer

	turnsAtSnapshot int
}

// New builds a fresh session over the project's configuration.
func New(cfg *config.Config, extractor extract.Extractor, gen pipeline.Generator, log *logging.Logger) (*Session, error) {
	if cfg == nil {
		return nil, fmt.Errorf("session: config is required")
	}
	if extractor == nil || gen == nil {
		return nil, fmt.Errorf("session: extractor and generator are required")
	}
	s := &Session{cfg: cfg, log: log, extractor: extractor, generator: gen}
	if err := s.build(); err != nil {
		return nil, err
	}
	return s, nil
}

// build constructs every component from scratch. Reset reuses it so a restart
// is indistinguishable from a fresh launch.
func (s *Session) build() error {
	store := judgment.NewStore()
	ledger := assumption.NewLedger()
	tracker := timebox.New(s.cfg.Project.Timebox)
	stages := pipeline.NewLedger()

	resolver, err := ripple.New(store, ledger, stages, ripple.DefaultRules())
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	runner, err := pipeline.NewRunner(s.generator, store, ledger, stages, pipeline.WithLogger(s.log))
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	tracer, err := trace.New(s.cfg.TracesDir())
	if err != nil {
		// Tracing is diagnostics, not function; run without it.
		s.log.Printf("session: tracing disabled: %v", err)
		tracer = nil
	}
	machine, err := intake.New(store, ledger, tracker, resolver, s.extractor,
		intake.WithTracer(tracer), intake.WithLogger(s.log))
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}

	s.store = store
	s.ledger = ledger
	s.tracker = tracker
	s.resolver = resolver
	s.stages = stages
	s.runner = runner
	s.machine = machine
	s.doc = artifact.New()
	s.tracer = tracer
	s.turnsAtSnapshot = 0
	return nil
}

// Greeting opens the conversation.
func (s *Session) Greeting() intake.Reply {
	reply := s.machine.Greeting()
	s.refreshArtifact()
	return reply
}

// Handle processes one user turn, refreshes the artifact, and snapshots the
// session if the interval has elapsed.
func (s *Session) Handle(ctx context.Context, in intake.Input) intake.Reply {
	reply := s.machine.Step(ctx, in)
	if reply.Restart {
		if err := s.Reset(); err != nil {
			s.log.Printf("session: reset failed: %v", err)
		}
		greeting := s.Greeting()
		greeting.Restart = true
		greeting.Messages = append(reply.Messages, greeting.Messages...)
		return greeting
	}
	s.refreshArtifact()
	s.maybeSnapshot()
	return reply
}

// RunResearch executes the research stage and feeds the outcome back into the
// conversation. Call it when a Reply sets RunResearch.
func (s *Session) RunResearch(ctx context.Context) intake.Reply {
	err := s.runner.RunStage(ctx, pipeline.StageResearch)
	rec, _ := s.runner.Recommendation()
	reply := s.machine.ResearchComplete(rec, err)
	s.refreshArtifact()
	s.snapshot()
	return reply
}

// RunPipeline executes the remaining stages. Call it when a Reply sets
// RunPipeline.
func (s *Session) RunPipeline(ctx context.Context) intake.Reply {
	err := s.runner.RunAll(ctx)
	reply := s.machine.GenerateComplete(err)
	s.refreshArtifact()
	s.snapshot()
	return reply
}

// WriteExports renders and persists all four export documents.
func (s *Session) WriteExports() ([]string, error) {
	w, err := export.NewWriter(s.cfg.ExportsDir())
	if err != nil {
		return nil, err
	}
	paths, err := w.WriteAll(export.Input{
		Doc:         s.doc,
		Snapshot:    s.store.Snapshot(),
		Assumptions: s.ledger.All(),
		Stages:      s.stageMap(),
		Now:         time.Now(),
	})
	if err != nil {
		s.log.Printf("session: export failed: %v", err)
		return nil, err
	}
	s.log.Printf("session: wrote %d export documents", len(paths))
	return paths, nil
}

// Artifact renders the living document for the side panel.
func (s *Session) Artifact() string {
	return s.doc.Render()
}

// Progress reports artifact completeness for the status line.
func (s *Session) Progress() artifact.Progress {
	return s.doc.Progress()
}

// BudgetStatus exposes turn-budget pressure for the status line.
func (s *Session) BudgetStatus() timebox.Status {
	return s.tracker.BudgetStatus()
}

// TurnsRemaining reports turns left before the hard cap.
func (s *Session) TurnsRemaining() int {
	return s.tracker.TurnsRemaining()
}

// State returns the current conversation state.
func (s *Session) State() intake.State {
	return s.machine.State()
}

// Reset atomically rebuilds the session. The old trace file is closed; a new
// session ID is minted. Judgments, assumptions, and turn counts all restart
// from zero.
func (s *Session) Reset() error {
	if s.tracer != nil {
		if err := s.tracer.Close(); err != nil {
			s.log.Printf("session: close trace: %v", err)
		}
	}
	return s.build()
}

// Close flushes and releases session resources.
func (s *Session) Close() error {
	if s.tracer != nil {
		return s.tracer.Close()
	}
	return nil
}

func (s *Session) refreshArtifact() {
	s.doc.Apply(artifact.Inputs{
		Snapshot:    s.store.Snapshot(),
		Assumptions: s.ledger.All(),
		Stages:      s.stageMap(),
		Complete:    s.machine.State() == intake.StateExports,
	})
}

func (s *Session) stageMap() map[pipeline.Stage]pipeline.Record {
	out := make(map[pipeline.Stage]pipeline.Record)
	for _, rec := range s.stages.Records() {
		out[rec.Stage] = rec
	}
	return out
}

// snapshotState is the crash-recovery record written to .scopedesk/state/.
type snapshotState struct {
	SavedAt     time.Time                       `json:"saved_at"`
	State       string                          `json:"state"`
	Turns       int                             `json:"turns"`
	Judgments   map[judgment.Slot]judgmentState `json:"judgments"`
	Assumptions []assumptionState               `json:"assumptions"`
}

type judgmentState struct {
	Value      string `json:"value"`
	Confidence string `json:"confidence"`
	Source     string `json:"source"`
}

type assumptionState struct {
	ID         string `json:"id"`
	Slot       string `json:"slot"`
	Statement  string `json:"statement"`
	Confidence string `json:"confidence"`
	Impact     string `json:"impact"`
	Status     string `json:"status"`
}

// maybeSnapshot writes a snapshot once the configured turn interval has
// elapsed. Interval 0 disables snapshotting.
func (s *Session) maybeSnapshot() {
	interval := s.cfg.Project.Snapshot.IntervalTurns
	if interval <= 0 {
		return
	}
	if s.tracker.Turns()-s.turnsAtSnapshot < interval {
		return
	}
	s.snapshot()
}

// snapshot writes the recovery record. Failures are logged, never fatal: a
// missing snapshot costs recovery, not the session.
func (s *Session) snapshot() {
	state := snapshotState{
		SavedAt:   time.Now(),
		State:     string(s.machine.State()),
		Turns:     s.tracker.Turns(),
		Judgments: map[judgment.Slot]judgmentState{},
	}
	for slot, j := range s.store.Snapshot() {
		if !j.Set() {
			continue
		}
		state.Judgments[slot] = judgmentState{
			Value:      j.Value,
			Confidence: string(j.Confidence),
			Source:     string(j.Source),
		}
	}
	for _, a := range s.ledger.All() {
		state.Assumptions = append(state.Assumptions, assumptionState{
			ID:         a.ID,
			Slot:       string(a.Slot),
			Statement:  a.Statement,
			Confidence: string(a.Confidence),
			Impact:     string(a.Impact),
			Status:     string(a.Status),
		})
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		s.log.Printf("session: marshal snapshot: %v", err)
		return
	}
	if err := os.MkdirAll(s.cfg.StateDir(), 0o755); err != nil {
		s.log.Printf("session: ensure state dir: %v", err)
		return
	}
	path := filepath.Join(s.cfg.StateDir(), "session.json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.log.Printf("session: write snapshot: %v", err)
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		s.log.Printf("session: rename snapshot: %v", err)
		return
	}
	s.turnsAtSnapshot = s.tracker.Turns()
}
