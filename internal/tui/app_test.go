package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/wthompson1804/scopedesk/internal/config"
	"github.com/wthompson1804/scopedesk/internal/extract"
	"github.com/wthompson1804/scopedesk/internal/intake"
	"github.com/wthompson1804/scopedesk/internal/pipeline"
	"github.com/wthompson1804/scopedesk/internal/session"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	dir := t.TempDir()
	if err := config.InitScopedeskDir(dir); err != nil {
		t.Fatalf("init project dir: %v", err)
	}
	cfg, err := config.NewConfig(dir)
	if err != nil {
		t.Fatalf("new config: %v", err)
	}
	sess, err := session.New(cfg, extract.NewKeywordExtractor(), pipeline.StubGenerator{}, nil)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	app, err := NewApp(dir, WithSession(sess))
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return app
}

func TestGreetingLandsInTranscript(t *testing.T) {
	app := newTestApp(t)
	if len(app.transcript) < 2 {
		t.Fatalf("greeting should seed the transcript, got %d lines", len(app.transcript))
	}
	if app.transcript[0].role != roleSystem {
		t.Fatal("greeting lines are system lines")
	}
}

func TestViewRendersAfterResize(t *testing.T) {
	app := newTestApp(t)
	model, _ := app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	app = model.(*App)

	view := app.View()
	for _, want := range []string{"SCOPEDESK", "ASSESSMENT", "Turns left"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q", want)
		}
	}
}

func TestNumberSelectsMatchingButton(t *testing.T) {
	app := newTestApp(t)
	app.buttons = []intake.Button{
		{ID: "proceed", Label: "Looks right — proceed", Action: intake.ActionProceed},
		{ID: "fast", Label: "Just run it", Action: intake.ActionFastPath},
	}

	in, echo, handled := app.parseInput("2")
	if !handled || in.Action != intake.ActionFastPath {
		t.Fatalf("2 should select the second button, got %+v", in)
	}
	if echo != "Just run it" {
		t.Fatalf("echo should carry the label, got %q", echo)
	}

	// Out-of-range numbers are ordinary messages.
	in, _, handled = app.parseInput("7")
	if !handled || in.Message != "7" || in.Action != "" {
		t.Fatalf("7 should fall through to a message, got %+v", in)
	}
}

func TestFixSyntaxParsesIDAndValue(t *testing.T) {
	app := newTestApp(t)

	in, _, handled := app.parseInput("fix A-12345678 healthcare, not retail")
	if !handled || in.Action != intake.ActionFixAssumption {
		t.Fatalf("fix syntax should map to a correction, got %+v", in)
	}
	if in.AssumptionID != "A-12345678" || !strings.Contains(in.NewValue, "healthcare") {
		t.Fatalf("bad parse: %+v", in)
	}

	before := len(app.transcript)
	if _, _, handled := app.parseInput("fix A-12345678"); handled {
		t.Fatal("fix without a value should be rejected with a hint")
	}
	if len(app.transcript) != before+1 {
		t.Fatal("rejection should explain the usage")
	}
}

func TestFixButtonShowsUsageHint(t *testing.T) {
	app := newTestApp(t)
	app.buttons = []intake.Button{
		{ID: "fix", Label: "Fix one thing", Action: intake.ActionFixAssumption},
	}

	before := len(app.transcript)
	if _, _, handled := app.parseInput("1"); handled {
		t.Fatal("fix button needs a follow-up, not a bare action")
	}
	if len(app.transcript) != before+1 {
		t.Fatal("fix button should append the usage hint")
	}
}

func TestJustRunItShortcut(t *testing.T) {
	app := newTestApp(t)
	in, _, handled := app.parseInput("just run it")
	if !handled || in.Action != intake.ActionFastPath {
		t.Fatalf("shortcut should map to the fast path, got %+v", in)
	}
}

func TestSubmitIgnoredWhileBusy(t *testing.T) {
	app := newTestApp(t)
	app.busy = true
	app.input.SetValue("hello?")

	if cmd := app.submit(); cmd != nil {
		t.Fatal("submit must be a no-op while a stage runs")
	}
	if app.statusMsg == "" {
		t.Fatal("the user should be told to wait")
	}
}

func TestReplyWithResearchFlagStartsWork(t *testing.T) {
	app := newTestApp(t)
	cmd := app.applyReply(intake.Reply{
		State:       intake.StateResearch,
		Messages:    []string{"Running the research now."},
		RunResearch: true,
	})
	if cmd == nil {
		t.Fatal("research flag should produce a command")
	}
	if !app.busy || app.busyLabel == "" {
		t.Fatal("research should mark the app busy")
	}
}
