// Package artifact assembles the progressive two-pager that grows alongside
// the conversation. Eight ordered sections update from a static trigger
// table; rendering is a pure function of the document, and anything not yet
// known renders as an explicit placeholder rather than being omitted.
package artifact

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wthompson1804/scopedesk/internal/assumption"
	"github.com/wthompson1804/scopedesk/internal/judgment"
	"github.com/wthompson1804/scopedesk/internal/pipeline"
)

// Section numbers. The order is fixed; titles come from the two-pager
// layout the assessment has always used.
const (
	SectionIntent      = 1 // What You're Trying to Do
	SectionOpportunity = 2 // Opportunity Shape
	SectionContext     = 3 // Operating Context
	SectionBehavior    = 4 // What the Agent Would Actually Do
	SectionFeasibility = 5 // Initial Feasibility & Direction
	SectionRisks       = 6 // Key Risks & Success Factors
	SectionAssumptions = 7 // Assumptions & Uncertainties
	SectionNextSteps   = 8 // What Happens Next
)

var sectionTitles = map[int]string{
	SectionIntent:      "What You're Trying to Do",
	SectionOpportunity: "Opportunity Shape",
	SectionContext:     "Operating Context",
	SectionBehavior:    "What the Agent Would Actually Do",
	SectionFeasibility: "Initial Feasibility & Direction",
	SectionRisks:       "Key Risks & Success Factors",
	SectionAssumptions: "Assumptions & Uncertainties",
	SectionNextSteps:   "What Happens Next",
}

const sectionCount = 8

// maxDisplayedAssumptions caps the assumptions section.
const maxDisplayedAssumptions = 8

// placeholder renders for any section with no content yet.
const placeholder = "*Not yet captured*"

// Section is one block of the two-pager.
type Section struct {
	ID         int
	Title      string
	Content    string
	Confidence judgment.Confidence
	// Locked marks system-generated content the user cannot edit directly.
	Locked    bool
	Source    string
	UpdatedAt time.Time
}

// Filled reports whether the section has content.
func (s Section) Filled() bool {
	return s.Content != ""
}

// slotSections is the trigger table from judgment slots to the sections
// they feed. A changed slot re-renders exactly these sections.
var slotSections = map[judgment.Slot][]int{
	judgment.SlotIntent:       {SectionIntent, SectionBehavior},
	judgment.SlotOpportunity:  {SectionOpportunity},
	judgment.SlotIndustry:     {SectionContext},
	judgment.SlotJurisdiction: {SectionContext},
	judgment.SlotOrgSize:      {SectionContext},
	judgment.SlotTimeline:     {SectionContext},
	judgment.SlotIntegration:  {SectionContext},
	judgment.SlotRiskPosture:  {SectionRisks},
	judgment.SlotBoundaries:   {SectionBehavior},
	judgment.SlotAgentType:    {SectionFeasibility},
}

// stageSections is the trigger table from pipeline stages to sections.
var stageSections = map[pipeline.Stage][]int{
	pipeline.StageResearch: {SectionFeasibility, SectionRisks},
	pipeline.StageDesign:   {SectionBehavior},
	pipeline.StageMapping:  {SectionNextSteps},
}

// slotsFeeding returns, in display order, the slots the trigger table routes
// to a section.
func slotsFeeding(section int) []judgment.Slot {
	var out []judgment.Slot
	for _, def := range judgment.Definitions {
		for _, id := range slotSections[def.Slot] {
			if id == section {
				out = append(out, def.Slot)
			}
		}
	}
	return out
}

// stageFeeding returns the pipeline stage the trigger table routes to a
// section, if any.
func stageFeeding(section int) (pipeline.Stage, bool) {
	for _, stage := range []pipeline.Stage{
		pipeline.StageResearch,
		pipeline.StageRequirements,
		pipeline.StageDesign,
		pipeline.StageMapping,
	} {
		for _, id := range stageSections[stage] {
			if id == section {
				return stage, true
			}
		}
	}
	return "", false
}

// opportunityDescriptions expands the opportunity-shape enum for display.
var opportunityDescriptions = map[string]string{
	"revenue":   "Generate new revenue or increase sales",
	"cost":      "Reduce costs or improve efficiency",
	"risk":      "Mitigate risks or improve compliance",
	"transform": "Transform how the business operates",
}

// Inputs is everything one rebuild of the document reads.
type Inputs struct {
	Snapshot    map[judgment.Slot]judgment.Judgment
	Assumptions []*assumption.Assumption
	Stages      map[pipeline.Stage]pipeline.Record
	// Complete marks the end of the flow; it fills the next-steps section.
	Complete bool
}

// Document is the progressive two-pager for one session.
type Document struct {
	sections  map[int]*Section
	createdAt time.Time
	updatedAt time.Time
	now       func() time.Time
}

// Option customizes a Document during construction.
type Option func(*Document)

// WithClock overrides the clock used for timestamps.
func WithClock(clock func() time.Time) Option {
	return func(d *Document) {
		d.now = clock
	}
}

// New builds an empty document with every section present.
func New(opts ...Option) *Document {
	d := &Document{
		sections: make(map[int]*Section, sectionCount),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.createdAt = d.now()
	d.updatedAt = d.createdAt
	for id := 1; id <= sectionCount; id++ {
		d.sections[id] = &Section{
			ID:         id,
			Title:      sectionTitles[id],
			Confidence: judgment.ConfidenceLow,
			UpdatedAt:  d.createdAt,
		}
	}
	return d
}

// Section returns a copy of one section.
func (d *Document) Section(id int) Section {
	if s, ok := d.sections[id]; ok {
		return *s
	}
	return Section{ID: id}
}

// Sections returns copies of all sections in order.
func (d *Document) Sections() []Section {
	out := make([]Section, 0, sectionCount)
	for id := 1; id <= sectionCount; id++ {
		out = append(out, *d.sections[id])
	}
	return out
}

// Edit applies a direct user edit to a section. Locked sections refuse the
// edit: their content came from a pipeline stage and changes only by
// re-running it.
func (d *Document) Edit(id int, content string) error {
	s, ok := d.sections[id]
	if !ok {
		return fmt.Errorf("artifact: no section %d", id)
	}
	if s.Locked {
		return fmt.Errorf("artifact: section %d (%s) is system-generated; re-run its stage to change it", id, s.Title)
	}
	d.set(id, content, judgment.ConfidenceHigh, "user_edit", false)
	return nil
}

func (d *Document) set(id int, content string, conf judgment.Confidence, source string, lock bool) {
	s := d.sections[id]
	s.Content = content
	s.Confidence = conf
	s.Source = source
	if lock {
		s.Locked = true
	}
	s.UpdatedAt = d.now()
	d.updatedAt = s.UpdatedAt
}

// Apply rebuilds every triggered section from the current session state.
// It is deterministic: the same inputs always produce the same document.
func (d *Document) Apply(in Inputs) {
	snap := in.Snapshot
	if snap == nil {
		snap = map[judgment.Slot]judgment.Judgment{}
	}

	for _, slot := range slotsFeeding(SectionIntent) {
		if j := snap[slot]; j.Set() {
			d.set(SectionIntent, j.Value, j.Confidence, "intake", false)
		}
	}

	for _, slot := range slotsFeeding(SectionOpportunity) {
		j := snap[slot]
		if !j.Set() {
			continue
		}
		content, ok := opportunityDescriptions[j.Value]
		if !ok {
			content = j.Value
		}
		d.set(SectionOpportunity, content, j.Confidence, "intake", false)
	}

	d.applyContext(snap)
	d.applyBehavior(snap, in.Stages)
	d.applyFeasibility(in.Stages)
	d.applyRisks(snap, in.Stages)
	d.applyAssumptions(in.Assumptions)
	d.applyNextSteps(in)
}

func (d *Document) applyContext(snap map[judgment.Slot]judgment.Judgment) {
	var parts []string
	for _, slot := range slotsFeeding(SectionContext) {
		if j := snap[slot]; j.Set() {
			parts = append(parts, fmt.Sprintf("**%s:** %s", judgment.DisplayName(slot), j.Value))
		}
	}
	if len(parts) == 0 {
		return
	}
	// Overall confidence is the weaker of the two anchor facts.
	conf := judgment.Min(snap[judgment.SlotIndustry].Confidence, snap[judgment.SlotJurisdiction].Confidence)
	d.set(SectionContext, strings.Join(parts, "\n"), conf, "intake", false)
}

func (d *Document) applyBehavior(snap map[judgment.Slot]judgment.Judgment, stages map[pipeline.Stage]pipeline.Record) {
	if stage, ok := stageFeeding(SectionBehavior); ok {
		if design, found := stages[stage]; found && design.Usable() {
			d.set(SectionBehavior, design.Output, judgment.ConfidenceHigh, string(stage), true)
			return
		}
	}
	intent := snap[judgment.SlotIntent]
	if !intent.Set() {
		return
	}
	content := intent.Value
	if b := snap[judgment.SlotBoundaries]; b.Set() {
		content += fmt.Sprintf("\n\n**Boundaries:** %s", b.Value)
	}
	d.set(SectionBehavior, content, judgment.ConfidenceMedium, "intake", false)
}

func (d *Document) applyFeasibility(stages map[pipeline.Stage]pipeline.Record) {
	stage, ok := stageFeeding(SectionFeasibility)
	if !ok {
		return
	}
	research, found := stages[stage]
	if !found || !research.Usable() {
		return
	}
	rec := research.Recommendation
	parts := []string{
		fmt.Sprintf("**Recommendation:** %s", capitalize(rec.GoNoGo)),
		fmt.Sprintf("**Suggested Agent Type:** %s", rec.AgentType),
	}
	if rec.Rationale != "" {
		parts = append(parts, "", rec.Rationale)
	}
	d.set(SectionFeasibility, strings.Join(parts, "\n"), rec.Confidence, string(stage), true)
}

func (d *Document) applyRisks(snap map[judgment.Slot]judgment.Judgment, stages map[pipeline.Stage]pipeline.Record) {
	stage, hasStage := stageFeeding(SectionRisks)
	research, found := stages[stage]
	if !hasStage || !found || !research.Usable() {
		for _, slot := range slotsFeeding(SectionRisks) {
			if j := snap[slot]; j.Set() {
				d.set(SectionRisks, fmt.Sprintf("**%s:** %s", judgment.DisplayName(slot), j.Value), j.Confidence, "intake", false)
			}
		}
		return
	}
	rec := research.Recommendation
	var parts []string
	if len(rec.KeyRisks) > 0 {
		parts = append(parts, "**Risk Factors:**")
		for _, r := range rec.KeyRisks {
			parts = append(parts, "- "+r)
		}
	}
	if len(rec.SuccessFactors) > 0 {
		if len(parts) > 0 {
			parts = append(parts, "")
		}
		parts = append(parts, "**Success Factors:**")
		for _, s := range rec.SuccessFactors {
			parts = append(parts, "- "+s)
		}
	}
	if len(parts) == 0 {
		d.set(SectionRisks, "None identified yet", judgment.ConfidenceLow, string(stage), false)
		return
	}
	d.set(SectionRisks, strings.Join(parts, "\n"), judgment.ConfidenceHigh, string(stage), false)
}

func (d *Document) applyAssumptions(assumptions []*assumption.Assumption) {
	if len(assumptions) == 0 {
		return
	}
	shown := assumptions
	if len(shown) > maxDisplayedAssumptions {
		shown = shown[:maxDisplayedAssumptions]
	}
	var lines []string
	for _, a := range shown {
		marker := "?"
		if a.Confirmed() {
			marker = "confirmed"
		} else if a.Status == assumption.StatusStale {
			marker = "stale"
		}
		lines = append(lines, fmt.Sprintf("- [%s] %s (confidence: %s, impact: %s) [%s]",
			a.ID, a.Statement, a.Confidence, a.Impact, marker))
	}
	d.set(SectionAssumptions, strings.Join(lines, "\n"), judgment.ConfidenceMedium, "assumptions", false)
}

// applyNextSteps fills the closing section once the mapping stage has usable
// output, or when the flow completes without one.
func (d *Document) applyNextSteps(in Inputs) {
	source := ""
	if stage, ok := stageFeeding(SectionNextSteps); ok {
		if mapping, found := in.Stages[stage]; found && mapping.Usable() {
			source = string(stage)
		}
	}
	if in.Complete {
		source = "exports"
	}
	if source == "" {
		return
	}
	d.set(SectionNextSteps, strings.Join([]string{
		"1. Review the capability mapping and adjust priorities as needed",
		"2. Share the executive brief with stakeholders",
		"3. Use the internal assessment for detailed planning",
		"4. Consider pilot scope based on essential capabilities",
	}, "\n"), judgment.ConfidenceHigh, source, false)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Render produces the two-pager as markdown. Empty sections render the
// placeholder so gaps are visible rather than silent.
func (d *Document) Render() string {
	var sb strings.Builder
	sb.WriteString("# AI Agent Assessment - 2-Pager\n\n---\n\n")
	for id := 1; id <= sectionCount; id++ {
		s := d.sections[id]
		marker := ""
		switch s.Confidence {
		case judgment.ConfidenceMedium:
			marker = " (!)"
		case judgment.ConfidenceLow:
			marker = " (?)"
		}
		if s.Locked {
			marker += " [locked]"
		}
		fmt.Fprintf(&sb, "## %d. %s%s\n\n", id, s.Title, marker)
		if s.Filled() {
			sb.WriteString(s.Content)
		} else {
			sb.WriteString(placeholder)
		}
		sb.WriteString("\n\n---\n\n")
	}
	return sb.String()
}

// Progress is the completeness summary shown beside the chat.
type Progress struct {
	Filled  []int
	Missing []int
	Percent int
}

// Progress reports which sections are filled and the overall percentage.
func (d *Document) Progress() Progress {
	var p Progress
	for id := 1; id <= sectionCount; id++ {
		if d.sections[id].Filled() {
			p.Filled = append(p.Filled, id)
		} else {
			p.Missing = append(p.Missing, id)
		}
	}
	sort.Ints(p.Filled)
	sort.Ints(p.Missing)
	p.Percent = len(p.Filled) * 100 / sectionCount
	return p
}
