package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/wthompson1804/scopedesk/internal/assumption"
	"github.com/wthompson1804/scopedesk/internal/extract"
	"github.com/wthompson1804/scopedesk/internal/judgment"
)

// agentTypeNames describes the T0-T4 taxonomy used by the design stage.
var agentTypeNames = map[string]string{
	"T0": "Static Automation: pre-programmed rule-based systems, no learning",
	"T1": "Conversational Agents: NLP interaction with basic context awareness",
	"T2": "Procedural Workflow Agents: multi-step execution with tool integration",
	"T3": "Cognitive Autonomous Agents: self-directed planning with learning",
	"T4": "Multi-Agent Generative Systems: distributed collaborative intelligence",
}

// maxPromptAssumptions caps how many high-impact assumptions a stage prompt
// carries. Stages reason from the riskiest few, not the whole ledger.
const maxPromptAssumptions = 3

func slotLine(snap map[judgment.Slot]judgment.Judgment, slot judgment.Slot) string {
	j := snap[slot]
	if !j.Set() {
		return fmt.Sprintf("**%s:** not specified", judgment.DisplayName(slot))
	}
	return fmt.Sprintf("**%s:** %s", judgment.DisplayName(slot), j.Value)
}

func contextBlock(snap map[judgment.Slot]judgment.Judgment) string {
	lines := []string{"## Use Case Context", ""}
	for _, slot := range []judgment.Slot{
		judgment.SlotIndustry,
		judgment.SlotIntent,
		judgment.SlotOpportunity,
		judgment.SlotJurisdiction,
		judgment.SlotOrgSize,
		judgment.SlotTimeline,
		judgment.SlotIntegration,
		judgment.SlotRiskPosture,
	} {
		lines = append(lines, slotLine(snap, slot))
	}
	return strings.Join(lines, "\n")
}

func boundariesBlock(snap map[judgment.Slot]judgment.Judgment) string {
	b := snap[judgment.SlotBoundaries]
	if !b.Set() {
		return ""
	}
	return fmt.Sprintf(`
### Explicit Boundaries (Non-Goals)
The following boundaries are fixed. Do not produce output that violates them.
%s
`, b.Value)
}

// integrationBlock calls out each named system so the research and
// requirements stages treat them as fixed integration targets rather than
// one opaque sentence.
func integrationBlock(snap map[judgment.Slot]judgment.Judgment) string {
	systems := extract.SystemsList(snap[judgment.SlotIntegration].Value)
	if len(systems) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\n### Named Integration Targets\n")
	for _, s := range systems {
		fmt.Fprintf(&sb, "- %s\n", s)
	}
	return sb.String()
}

func assumptionsBlock(assumptions []*assumption.Assumption) string {
	var picked []*assumption.Assumption
	for _, a := range assumptions {
		if a.Impact == assumption.ImpactHigh {
			picked = append(picked, a)
		}
		if len(picked) == maxPromptAssumptions {
			break
		}
	}
	if len(picked) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\n### Key Assumptions\nOutput should be conditional on these holding:\n")
	for _, a := range picked {
		fmt.Fprintf(&sb, "- %s (confidence: %s)\n", a.Statement, a.Confidence)
	}
	return sb.String()
}

func researchPrompt(in StageInput) string {
	return fmt.Sprintf(`You are a research analyst assessing the viability of one AI agent project.

%s%s%s%s

Research the following areas for this use case and jurisdiction:
1. Industry AI adoption: current maturity and comparable deployments
2. Regulatory environment: applicable regulations, standards, and oversight
3. Technical integration: typical integration surface and known pitfalls
4. Risk and failure modes: what goes wrong with this class of system
5. Economic viability: where the value actually accrues

For each area start with a "**Summary:**" line of 2-3 sentences, then detail.

Close with a Preliminary Assessment containing exactly these fields:
- **Go/No-Go Recommendation:** Go, Caution, or No-Go
- **Recommended Agent Type:** T0, T1, T2, T3, or T4
- **Confidence Level:** High, Medium, or Low
- **Key Risk Factors:** a bullet list of 3-5 specific risks
- **Critical Success Factors:** a bullet list of 3-5 specific success factors
- **Recommendation Rationale:** one paragraph explaining the key factors

Agent type reference:
%s

Be honest about uncertainty. Do not invent sources.`,
		contextBlock(in.Snapshot), integrationBlock(in.Snapshot), boundariesBlock(in.Snapshot),
		assumptionsBlock(in.Assumptions), agentTypeReference())
}

func requirementsPrompt(in StageInput) string {
	return fmt.Sprintf(`You are a systems architect writing business requirements for one AI agent project.

%s%s%s%s

## Research Findings
%s

Generate business requirements as structured markdown with these sections:
Business Context, Problem Analysis, Objectives, Operational Requirements,
Data Requirements, User Experience, Technical Considerations,
Implementation Approach.

Each requirement must be specific and testable. Quantify where possible.
Requirements must not violate the stated boundaries.`,
		contextBlock(in.Snapshot), integrationBlock(in.Snapshot), boundariesBlock(in.Snapshot),
		assumptionsBlock(in.Assumptions), priorOutput(in, StageResearch))
}

func designPrompt(in StageInput) string {
	confirmed := in.Snapshot[judgment.SlotAgentType].Value
	return fmt.Sprintf(`You are a systems architect producing the agent design for one AI agent project.

%s%s

The user has confirmed the agent type: **%s**.

Agent type reference:
%s

## Research Findings
%s

## Business Requirements
%s

Produce a design document for the confirmed type: architecture summary,
component responsibilities, human oversight points, data flows, and the
justification for why the confirmed type fits this use case. If the
requirements strain the confirmed type, say so explicitly rather than
silently designing for a different one.

Open with a line of exactly this form:
**Agent Type:** %s`,
		contextBlock(in.Snapshot), assumptionsBlock(in.Assumptions),
		confirmed, agentTypeReference(),
		priorOutput(in, StageResearch), priorOutput(in, StageRequirements), confirmed)
}

func mappingPrompt(in StageInput) string {
	return fmt.Sprintf(`You are mapping one AI agent project onto a capability framework.

%s%s%s

## Agent Design
%s

## Business Requirements
%s

For the designed agent, list the capabilities it requires grouped as
Essential, Advanced, and Optional. For each capability give a one-line
justification tied to a specific requirement. Respect the stated boundaries:
do not map capabilities that serve excluded scope.`,
		contextBlock(in.Snapshot), boundariesBlock(in.Snapshot), assumptionsBlock(in.Assumptions),
		priorOutput(in, StageDesign), priorOutput(in, StageRequirements))
}

func priorOutput(in StageInput, stage Stage) string {
	if out, ok := in.Prior[stage]; ok && out != "" {
		return out
	}
	return "(not available)"
}

func agentTypeReference() string {
	var lines []string
	for _, t := range []string{"T0", "T1", "T2", "T3", "T4"} {
		lines = append(lines, fmt.Sprintf("- %s — %s", t, agentTypeNames[t]))
	}
	return strings.Join(lines, "\n")
}

var (
	goNoGoRe    = regexp.MustCompile(`(?i)go/no-go recommendation:\**\s*(go|caution|no-go)`)
	agentTypeRe = regexp.MustCompile(`(?i)(?:recommended\s+)?agent type:\**\s*(T[0-4])`)
	confRe      = regexp.MustCompile(`(?i)confidence level:\**\s*(high|medium|low)`)
	rationaleRe = regexp.MustCompile(`(?i)recommendation rationale:\**\s*\n?([^\n]+)`)
)

// parseRecommendation pulls the preliminary assessment out of research
// output. Missing fields get conservative defaults rather than failing the
// stage: a research document without a clean assessment line is still worth
// showing.
func parseRecommendation(output string) Recommendation {
	rec := Recommendation{
		GoNoGo:     "caution",
		AgentType:  "T2",
		Confidence: judgment.ConfidenceLow,
	}
	if m := goNoGoRe.FindStringSubmatch(output); m != nil {
		rec.GoNoGo = strings.ToLower(m[1])
	}
	if m := agentTypeRe.FindStringSubmatch(output); m != nil {
		rec.AgentType = strings.ToUpper(m[1])
	}
	if m := confRe.FindStringSubmatch(output); m != nil {
		switch strings.ToLower(m[1]) {
		case "high":
			rec.Confidence = judgment.ConfidenceHigh
		case "medium":
			rec.Confidence = judgment.ConfidenceMedium
		}
	}
	if m := rationaleRe.FindStringSubmatch(output); m != nil {
		rec.Rationale = strings.TrimSpace(m[1])
	}
	rec.KeyRisks = bulletsUnder(output, "key risk factors")
	rec.SuccessFactors = bulletsUnder(output, "critical success factors")
	return rec
}

// bulletsUnder collects the bullet lines immediately following a heading,
// capped at five the way the assessment template asks for them.
func bulletsUnder(output, heading string) []string {
	var out []string
	collecting := false
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.Contains(strings.ToLower(trimmed), heading) {
			collecting = true
			continue
		}
		if !collecting {
			continue
		}
		// A bolded line after the heading starts the next assessment field.
		if strings.Contains(trimmed, "**") {
			break
		}
		if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") {
			out = append(out, strings.TrimSpace(trimmed[2:]))
			if len(out) == 5 {
				break
			}
			continue
		}
		if trimmed != "" {
			break
		}
	}
	return out
}

// parseAgentType pulls the designed type out of design output.
func parseAgentType(output string) string {
	if m := agentTypeRe.FindStringSubmatch(output); m != nil {
		return strings.ToUpper(m[1])
	}
	return ""
}
