// Package intake drives the conversation: a bounded state machine that asks
// questions, hands utterances to an extractor, records judgments and
// assumptions, and decides when the session has earned the right to generate.
// The machine never parses free text itself; everything it knows arrives as
// typed judgment updates.
package intake

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/wthompson1804/scopedesk/internal/assumption"
	"github.com/wthompson1804/scopedesk/internal/extract"
	"github.com/wthompson1804/scopedesk/internal/judgment"
	"github.com/wthompson1804/scopedesk/internal/pipeline"
	"github.com/wthompson1804/scopedesk/internal/ripple"
	"github.com/wthompson1804/scopedesk/internal/timebox"
	"github.com/wthompson1804/scopedesk/internal/trace"
)

// Input is one user turn: either free text or a button press.
type Input struct {
	Message string
	Action  Action
	// AssumptionID and NewValue carry a fix-assumption correction.
	AssumptionID string
	NewValue     string
}

// Reply is the machine's response to one turn. Run* flags tell the caller to
// start long-running work; the machine transitions again when the caller
// reports completion.
type Reply struct {
	State        State
	Messages     []string
	Buttons      []Button
	RunResearch  bool
	RunPipeline  bool
	WriteExports bool
	Restart      bool
}

// Logger is the minimal logging surface the machine needs.
type Logger interface {
	Printf(format string, args ...any)
}

// Machine is the conversation orchestrator for one session.
type Machine struct {
	store       *judgment.Store
	assumptions *assumption.Ledger
	tracker     *timebox.Tracker
	resolver    *ripple.Resolver
	extractor   extract.Extractor
	tracer      *trace.Tracer
	log         Logger

	state     State
	followups map[State]int
	reasked   map[State]bool
	// pendingAsk overrides the state's default asked slots for the next
	// message, set by checkpoint questions and the most-important-question.
	pendingAsk  []judgment.Slot
	pendingHard bool

	hardStopPrompted bool

	recommendation pipeline.Recommendation
	hasRecommend   bool
	confirmReasked bool
}

// Option customizes a Machine.
type Option func(*Machine)

// WithTracer attaches a session tracer.
func WithTracer(t *trace.Tracer) Option {
	return func(m *Machine) {
		m.tracer = t
	}
}

// WithLogger attaches a logger.
func WithLogger(log Logger) Option {
	return func(m *Machine) {
		m.log = log
	}
}

// New wires a machine over the session's state.
func New(store *judgment.Store, assumptions *assumption.Ledger, tracker *timebox.Tracker,
	resolver *ripple.Resolver, extractor extract.Extractor, opts ...Option) (*Machine, error) {
	if store == nil || assumptions == nil || tracker == nil || resolver == nil || extractor == nil {
		return nil, fmt.Errorf("intake: store, ledger, tracker, resolver, and extractor are required")
	}
	m := &Machine{
		store:       store,
		assumptions: assumptions,
		tracker:     tracker,
		resolver:    resolver,
		extractor:   extractor,
		state:       StateEntry,
		followups:   map[State]int{},
		reasked:     map[State]bool{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// State returns the current conversation state.
func (m *Machine) State() State {
	return m.state
}

// Greeting opens the session: the welcome plus the first question.
func (m *Machine) Greeting() Reply {
	m.transition(StateIntent, "session_start")
	return Reply{
		State:    m.state,
		Messages: []string{uxCopy[StateEntry], uxCopy[StateIntent]},
	}
}

// Step processes one user turn.
func (m *Machine) Step(ctx context.Context, in Input) Reply {
	switch in.Action {
	case ActionStartOver:
		return Reply{State: StateEntry, Restart: true,
			Messages: []string{"Starting over with a clean slate."}}
	case ActionFastPath:
		return m.fastPath()
	case ActionProceed:
		return m.proceed()
	case ActionAskQuestion:
		return m.askMostImportant()
	case ActionFixAssumption:
		return m.fixAssumption(in.AssumptionID, in.NewValue)
	case ActionOneMore:
		return Reply{State: m.state,
			Messages: []string{fmt.Sprintf("Go ahead — what else should I know? (%d extra turns left)",
				m.tracker.ExtensionTurnsLeft())}}
	case ActionRetry:
		switch m.state {
		case StateResearch:
			return Reply{State: m.state, RunResearch: true, Messages: []string{"Retrying the research…"}}
		case StateGenerate:
			return Reply{State: m.state, RunPipeline: true, Messages: []string{"Retrying the generation…"}}
		}
		return Reply{State: m.state}
	default:
		return m.handleMessage(ctx, in.Message)
	}
}

func (m *Machine) handleMessage(ctx context.Context, message string) Reply {
	switch m.state {
	case StateResearch, StateGenerate:
		return Reply{State: m.state, Messages: []string{"Still working — one moment."}}
	case StateExports:
		return Reply{State: m.state,
			Messages: []string{"This session is complete. Start over to scope another project."}}
	case StateConfirmType:
		return m.confirmType(message)
	}

	wasHard := m.pendingHard
	m.pendingHard = false
	m.tracker.RegisterTurn(wasHard)

	asked := m.pendingAsk
	if asked == nil {
		asked = askedSlots(m.state)
	}
	m.pendingAsk = nil

	updates, err := m.extractor.Extract(ctx, extract.Request{
		Utterance: message,
		Asked:     asked,
		Prior:     m.store.Snapshot(),
	})
	if err != nil {
		m.tracer.Error(string(m.state), err)
		m.logf("intake: extraction failed in %s: %v", m.state, err)
	}

	changed := m.store.Apply(updates)
	m.traceExtractions(updates)
	result := m.resolver.RippleAll(changed)
	m.recordAssumptions(updates, changed)
	for _, id := range result.InvalidatedAssumptions {
		m.tracer.Decision(string(m.state), "assumption_stale", id)
	}

	// Nothing usable came back: re-ask the same question once, then move on
	// with the slot unset rather than trapping the user in a loop.
	if len(updates) == 0 && intakeStates[m.state] {
		if !m.reasked[m.state] {
			m.reasked[m.state] = true
			return m.withBudgetNotes(Reply{State: m.state,
				Messages: []string{reaskPreamble + uxCopy[m.state]}})
		}
		m.tracer.Decision(string(m.state), "advance_unset", "extraction failed twice")
	}

	if m.tracker.ShouldForceFinalize() && intakeStates[m.state] {
		m.flagUnresolvedBlockers()
		m.transition(StateCheckpoint, "forced_finalize")
		reply := m.checkpointReply()
		reply.Messages = append([]string{"That's all the time we can spend — here's what I'll work with:"},
			reply.Messages...)
		return reply
	}
	if m.tracker.ReachedHardStop() && intakeStates[m.state] {
		if m.hardStopPrompted {
			// One grace turn was already spent; finalize now.
			m.flagUnresolvedBlockers()
			m.transition(StateCheckpoint, "hard_stop_auto_finalize")
			return m.checkpointReply()
		}
		m.hardStopPrompted = true
		return Reply{State: m.state, Messages: []string{hardStopCopy}, Buttons: hardStopButtons}
	}

	return m.advance()
}

// advance moves through the question sequence based on what is now known.
func (m *Machine) advance() Reply {
	snap := m.store.Snapshot()

	switch m.state {
	case StateEntry:
		m.transition(StateIntent, "greeting_done")
		return m.withBudgetNotes(Reply{State: m.state, Messages: []string{uxCopy[StateIntent]}})

	case StateIntent:
		if !snap[judgment.SlotIntent].Set() && m.followups[StateIntent] < followupCaps[StateIntent] {
			m.followups[StateIntent]++
			m.pendingHard = true
			return m.withBudgetNotes(Reply{State: m.state, Messages: []string{intentFollowupCopy}})
		}
		m.transition(StateOpportunity, "intent_captured")
		return m.withBudgetNotes(Reply{State: m.state, Messages: []string{uxCopy[StateOpportunity]}})

	case StateOpportunity:
		m.transition(StateContext, "opportunity_captured")
		return m.withBudgetNotes(Reply{State: m.state, Messages: []string{uxCopy[StateContext]}})

	case StateContext:
		if snap[judgment.SlotIndustry].Set() && !snap[judgment.SlotJurisdiction].Set() &&
			m.followups[StateContext] < followupCaps[StateContext] {
			m.followups[StateContext]++
			m.pendingAsk = []judgment.Slot{judgment.SlotJurisdiction}
			return m.withBudgetNotes(Reply{State: m.state, Messages: []string{jurisdictionFollowupCopy}})
		}
		if m.needsIntegrationBranch(snap) {
			m.transition(StateIntegration, "decision_critical_branch")
			return m.withBudgetNotes(Reply{State: m.state, Messages: []string{uxCopy[StateIntegration]}})
		}
		m.transition(StateCheckpoint, "context_captured")
		return m.checkpointReply()

	case StateIntegration:
		if !snap[judgment.SlotIntegration].Set() && m.followups[StateIntegration] < followupCaps[StateIntegration] {
			m.followups[StateIntegration]++
			return m.withBudgetNotes(Reply{State: m.state, Messages: []string{integrationFollowupCopy}})
		}
		m.transition(StateRisk, "integration_captured")
		return m.withBudgetNotes(Reply{State: m.state, Messages: []string{uxCopy[StateRisk]}})

	case StateRisk:
		if !snap[judgment.SlotRiskPosture].Set() && m.followups[StateRisk] < followupCaps[StateRisk] {
			m.followups[StateRisk]++
			m.pendingHard = true
			return m.withBudgetNotes(Reply{State: m.state, Messages: []string{riskFollowupCopy}})
		}
		m.transition(StateCheckpoint, "risk_captured")
		return m.checkpointReply()

	case StateCheckpoint:
		// Free text at the checkpoint is a correction; re-show the summary.
		return m.checkpointReply()
	}
	return Reply{State: m.state}
}

// needsIntegrationBranch reports whether the deeper integration/risk
// questions are decision-critical for this session.
func (m *Machine) needsIntegrationBranch(snap map[judgment.Slot]judgment.Judgment) bool {
	if extract.Regulated(snap[judgment.SlotIndustry].Value) {
		return true
	}
	return snap[judgment.SlotIntegration].Set()
}

// proceed handles the confirm button: checkpoint to research, or finalize
// from the hard-stop menu.
func (m *Machine) proceed() Reply {
	if intakeStates[m.state] {
		// Hard-stop "run the analysis": settle at the checkpoint first.
		m.flagUnresolvedBlockers()
		m.transition(StateCheckpoint, "hard_stop_finalize")
		return m.checkpointReply()
	}
	if m.state != StateCheckpoint {
		return Reply{State: m.state}
	}
	if unresolved := m.unresolvedPreResearch(); len(unresolved) > 0 {
		slot := unresolved[0]
		m.pendingAsk = []judgment.Slot{slot}
		m.pendingHard = true
		m.tracer.Decision(string(m.state), "blocked", string(slot))
		return Reply{State: m.state, Messages: []string{mustAskQuestion(slot)}}
	}
	m.transition(StateResearch, "checkpoint_confirmed")
	return Reply{State: m.state, RunResearch: true,
		Messages: []string{"Running the research now — this takes a minute."}}
}

// fastPath short-circuits to the checkpoint from any intake state, with every
// unresolved blocker downgraded to an explicit low-confidence assumption
// needing confirmation. From the checkpoint it runs research outright, unless
// a blocker has no value at all to assume.
func (m *Machine) fastPath() Reply {
	m.flagUnresolvedBlockers()
	m.tracer.Decision(string(m.state), "fast_path", "user escape")

	if m.state == StateCheckpoint {
		if missing := m.missingPreResearch(); len(missing) > 0 {
			slot := missing[0]
			m.pendingAsk = []judgment.Slot{slot}
			m.pendingHard = true
			return Reply{State: m.state, Messages: []string{
				"I can run with assumptions for most things, but I need one fact first.",
				mustAskQuestion(slot),
			}}
		}
		m.transition(StateResearch, "fast_path_run")
		return Reply{State: m.state, RunResearch: true,
			Messages: []string{"Running with my best assumptions — you can correct anything afterward."}}
	}
	m.transition(StateCheckpoint, "fast_path")
	return m.checkpointReply()
}

// flagUnresolvedBlockers records a lowest-confidence assumption for every
// blocker the user never settled, so the checkpoint shows each one as an open
// risk instead of quietly proceeding on it. A blocker with no value at all
// gets an explicit unknown.
func (m *Machine) flagUnresolvedBlockers() {
	for _, slot := range m.unresolvedPreResearch() {
		if _, ok := m.assumptions.ForSlot(slot); !ok {
			j := m.store.Get(slot)
			statement := statementFor(slot, j.Value)
			if !j.Set() {
				statement = fmt.Sprintf("%s is not yet known", judgment.DisplayName(slot))
			}
			def, _ := judgment.Lookup(slot)
			m.assumptions.Upsert(slot, statement, []judgment.Slot{slot},
				judgment.ConfidenceLow, impactFor(def.Criticality))
		}
		m.assumptions.MaximizeUncertainty(slot)
	}
}

func (m *Machine) askMostImportant() Reply {
	question, slot := m.mostImportantQuestion()
	if slot != "" {
		m.pendingAsk = []judgment.Slot{slot}
	}
	m.pendingHard = true
	return Reply{State: m.state, Messages: []string{question}}
}

// mostImportantQuestion picks the single question with the highest expected
// information value: a missing blocker first, then the riskiest shaky
// assumption, then boundaries.
func (m *Machine) mostImportantQuestion() (string, judgment.Slot) {
	if unresolved := m.unresolvedPreResearch(); len(unresolved) > 0 {
		return mustAskQuestion(unresolved[0]), unresolved[0]
	}
	for _, a := range m.assumptions.TopByImpact(0) {
		if a.Confidence == judgment.ConfidenceLow && a.Impact == assumption.ImpactHigh {
			return fmt.Sprintf("I assumed %s. Is that right?", strings.ToLower(a.Statement)), a.Slot
		}
	}
	return "Is there anything this agent must never do — hard boundaries I should respect?",
		judgment.SlotBoundaries
}

func (m *Machine) fixAssumption(id, newValue string) Reply {
	a, ok := m.assumptions.Get(id)
	if !ok {
		return Reply{State: m.state,
			Messages: []string{fmt.Sprintf("I don't have an assumption %q — pick one from the summary.", id)}}
	}
	if strings.TrimSpace(newValue) == "" {
		return Reply{State: m.state,
			Messages: []string{fmt.Sprintf("What should %s be instead?", judgment.DisplayName(a.Slot))}}
	}
	m.store.Set(judgment.Update{
		Slot:       a.Slot,
		Value:      newValue,
		Confidence: judgment.ConfidenceHigh,
		Source:     judgment.SourceUserEdited,
	})
	// Ripple first: MarkStale runs inside it and must not clobber the
	// corrected status we are about to record.
	result := m.resolver.Ripple(a.Slot)
	if err := m.assumptions.Correct(id); err != nil {
		m.logf("intake: correct assumption %s: %v", id, err)
	}
	m.tracer.Decision(string(m.state), "assumption_corrected", id)

	reply := m.checkpointReply()
	note := fmt.Sprintf("Updated %s to %q.", judgment.DisplayName(a.Slot), newValue)
	if len(result.UpdatedJudgments) > 0 {
		note += " I re-derived what depended on it."
	}
	reply.Messages = append([]string{note}, reply.Messages...)
	return reply
}

func (m *Machine) confirmType(message string) Reply {
	m.tracker.RegisterTurn(false)
	text := strings.ToLower(strings.TrimSpace(message))

	chosen := ""
	if match := agentTypeRe.FindString(strings.ToUpper(message)); match != "" {
		chosen = match
	} else if m.hasRecommend && isAffirmative(text) {
		chosen = m.recommendation.AgentType
	}
	if chosen == "" {
		if !m.confirmReasked {
			m.confirmReasked = true
			return Reply{State: m.state, Messages: []string{
				"Sorry — I need an explicit choice. Reply with an agent type (T0–T4), or \"yes\" to accept the recommendation."}}
		}
		return Reply{State: m.state, Messages: []string{
			"Which agent type should I design for? T0 (static automation), T1 (conversational), " +
				"T2 (procedural workflows), T3 (cognitive autonomy), or T4 (multi-agent)."}}
	}

	m.store.Set(judgment.Update{
		Slot:       judgment.SlotAgentType,
		Value:      chosen,
		Raw:        message,
		Confidence: judgment.ConfidenceHigh,
		Source:     judgment.SourceUserStated,
	})
	m.tracer.Decision(string(m.state), "agent_type_confirmed", chosen)
	m.transition(StateGenerate, "type_confirmed")
	return Reply{State: m.state, RunPipeline: true,
		Messages: []string{fmt.Sprintf("Locked in %s. Generating the full assessment now — this takes a few minutes.", chosen)}}
}

// ResearchComplete is called by the session when the research stage finishes.
func (m *Machine) ResearchComplete(rec pipeline.Recommendation, err error) Reply {
	if err != nil {
		m.tracer.Error(string(m.state), err)
		return Reply{State: m.state,
			Messages: []string{"The research run failed. Your answers are safe — want to retry?"},
			Buttons:  []Button{{ID: "retry", Label: "Retry research", Action: ActionRetry}}}
	}
	if rec.GoNoGo == "" {
		rec.GoNoGo = "caution"
	}
	m.recommendation = rec
	m.hasRecommend = true
	m.transition(StateConfirmType, "research_done")

	msg := fmt.Sprintf("Research is in. Preliminary read: **%s**, suggested agent type **%s** (confidence: %s).",
		strings.ToUpper(rec.GoNoGo[:1])+rec.GoNoGo[1:], rec.AgentType, rec.Confidence)
	if rec.Rationale != "" {
		msg += "\n\n" + rec.Rationale
	}
	return Reply{State: m.state, Messages: []string{msg,
		fmt.Sprintf("Does %s sound right? Reply with \"yes\" or the type you'd rather design for (T0–T4).", rec.AgentType)}}
}

// GenerateComplete is called by the session when the remaining stages finish.
func (m *Machine) GenerateComplete(err error) Reply {
	if err != nil {
		m.tracer.Error(string(m.state), err)
		return Reply{State: m.state,
			Messages: []string{"Generation hit a problem partway through. Completed stages are preserved — retry the rest?"},
			Buttons:  []Button{{ID: "retry", Label: "Retry generation", Action: ActionRetry}}}
	}
	m.transition(StateExports, "generation_done")
	return Reply{State: m.state, WriteExports: true,
		Messages: []string{"Assessment complete. I've written the internal brief, executive brief, " +
			"email draft, and slide outline to .scopedesk/exports/."}}
}

// checkpointReply renders the summary of everything captured plus the
// assumptions under consideration, with the four checkpoint choices.
func (m *Machine) checkpointReply() Reply {
	var parts []string
	snap := m.store.Snapshot()
	for _, def := range judgment.Definitions {
		if j := snap[def.Slot]; j.Set() && def.Slot != judgment.SlotAgentType {
			parts = append(parts, fmt.Sprintf("**%s:** %s", def.Name, clipText(j.Value, 200)))
		}
	}
	messages := []string{uxCopy[StateCheckpoint]}
	if len(parts) > 0 {
		messages = append(messages, strings.Join(parts, "\n"))
	}
	if pending := m.assumptions.TopByImpact(5); len(pending) > 0 {
		var lines []string
		lines = append(lines, "**Assumptions I'm making:**")
		for _, a := range pending {
			marker := ""
			if a.Confidence == judgment.ConfidenceLow {
				marker = " (?)"
			}
			lines = append(lines, fmt.Sprintf("- [%s] %s%s", a.ID, a.Statement, marker))
		}
		messages = append(messages, strings.Join(lines, "\n"))
	}
	return Reply{State: m.state, Messages: messages, Buttons: checkpointButtons}
}

// withBudgetNotes appends the one-time fast-path offer when the budget says
// it is due.
func (m *Machine) withBudgetNotes(reply Reply) Reply {
	if m.tracker.ShouldOfferFastPath() && intakeStates[m.state] {
		m.tracker.MarkFastPathOffered()
		reply.Messages = append(reply.Messages, fastPathOffer)
	}
	return reply
}

func (m *Machine) transition(to State, trigger string) {
	from := m.state
	m.state = to
	if hardQuestionStates[to] {
		m.pendingHard = true
	}
	m.tracer.StateTransition(string(from), string(to), trigger)
	m.logf("intake: %s -> %s (%s)", from, to, trigger)
}

// recordAssumptions upserts a ledger entry for every inferred update that
// actually landed. Inference never writes a judgment silently. Runs after the
// ripple so a fresh inference's companion entry is born assumed, not stale.
func (m *Machine) recordAssumptions(updates []judgment.Update, changed []judgment.Slot) {
	changedSet := map[judgment.Slot]bool{}
	for _, slot := range changed {
		changedSet[slot] = true
	}
	for _, u := range updates {
		if u.Source != judgment.SourceInferred || !changedSet[u.Slot] {
			continue
		}
		// The ripple may have re-derived the slot past the extracted value;
		// the companion entry must describe what the store actually holds.
		if m.store.Get(u.Slot).Value != u.Value {
			continue
		}
		def, _ := judgment.Lookup(u.Slot)
		m.assumptions.Upsert(u.Slot, statementFor(u.Slot, u.Value), []judgment.Slot{u.Slot},
			u.Confidence, impactFor(def.Criticality))
	}
}

func (m *Machine) traceExtractions(updates []judgment.Update) {
	for _, u := range updates {
		m.tracer.Extraction(string(m.state), string(u.Slot), u.Value,
			string(u.Confidence), string(u.Source))
	}
}

func (m *Machine) unresolvedPreResearch() []judgment.Slot {
	var out []judgment.Slot
	for _, slot := range preResearchBlockers {
		j := m.store.Get(slot)
		if !j.Set() || !j.Source.UserProvided() {
			out = append(out, slot)
		}
	}
	return out
}

func (m *Machine) missingPreResearch() []judgment.Slot {
	var out []judgment.Slot
	for _, slot := range preResearchBlockers {
		if !m.store.Get(slot).Set() {
			out = append(out, slot)
		}
	}
	return out
}

func (m *Machine) logf(format string, args ...any) {
	if m.log != nil {
		m.log.Printf(format, args...)
	}
}

var agentTypeRe = regexp.MustCompile(`\bT[0-4]\b`)

var affirmatives = []string{"yes", "yep", "yeah", "sure", "ok", "okay", "sounds right", "correct", "that works"}

func isAffirmative(text string) bool {
	for _, a := range affirmatives {
		if strings.Contains(text, a) {
			return true
		}
	}
	return false
}

func mustAskQuestion(slot judgment.Slot) string {
	return fmt.Sprintf("What's the %s for this use case?", strings.ToLower(judgment.DisplayName(slot)))
}

func statementFor(slot judgment.Slot, value string) string {
	return fmt.Sprintf("%s is %s", judgment.DisplayName(slot), value)
}

func impactFor(c judgment.Criticality) assumption.Impact {
	switch c {
	case judgment.CriticalityBlocker:
		return assumption.ImpactHigh
	case judgment.CriticalityImportant:
		return assumption.ImpactMedium
	default:
		return assumption.ImpactLow
	}
}

func clipText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "…"
}
