// Package export renders the finished assessment into shareable documents:
// an internal team brief, an executive brief, an email draft, and a slide
// outline. Renderers are pure functions of the session snapshot. The internal
// brief is the full record; the public variants are sanitized summaries and
// must never contradict it.
package export

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/wthompson1804/scopedesk/internal/artifact"
	"github.com/wthompson1804/scopedesk/internal/assumption"
	"github.com/wthompson1804/scopedesk/internal/judgment"
	"github.com/wthompson1804/scopedesk/internal/pipeline"
)

// Input is everything the renderers read.
type Input struct {
	Doc         *artifact.Document
	Snapshot    map[judgment.Slot]judgment.Judgment
	Assumptions []*assumption.Assumption
	Stages      map[pipeline.Stage]pipeline.Record
	Now         time.Time
}

func (in Input) slot(slot judgment.Slot) string {
	if j, ok := in.Snapshot[slot]; ok && j.Set() {
		return j.Value
	}
	return "not yet determined"
}

func (in Input) section(id int) string {
	if in.Doc != nil {
		if s := in.Doc.Section(id); s.Filled() {
			return s.Content
		}
	}
	return "Not yet captured"
}

func (in Input) stageOutput(stage pipeline.Stage) (pipeline.Record, bool) {
	rec, ok := in.Stages[stage]
	return rec, ok && rec.Usable()
}

// agentType returns the confirmed type, falling back to the research
// recommendation, then T2.
func (in Input) agentType() string {
	if j, ok := in.Snapshot[judgment.SlotAgentType]; ok && j.Set() {
		return j.Value
	}
	if rec, ok := in.stageOutput(pipeline.StageResearch); ok && rec.Recommendation.AgentType != "" {
		return rec.Recommendation.AgentType
	}
	return "T2"
}

func (in Input) recommendation() string {
	if rec, ok := in.stageOutput(pipeline.StageResearch); ok && rec.Recommendation.GoNoGo != "" {
		return rec.Recommendation.GoNoGo
	}
	return "pending"
}

// recommendationPhrase keeps the public wording honest: a caution or no-go
// research verdict must read as such everywhere.
func recommendationPhrase(goNoGo, agentType string) string {
	switch goNoGo {
	case "go":
		return fmt.Sprintf("Proceed with a %s agent implementation", agentType)
	case "caution":
		return fmt.Sprintf("Proceed with caution toward a %s agent; resolve the flagged risks first", agentType)
	case "no-go":
		return "Do not proceed as scoped; revisit the use case before committing"
	default:
		return "Assessment in progress"
	}
}

func complexityFor(agentType string) string {
	switch agentType {
	case "T3", "T4":
		return "High"
	case "T2":
		return "Moderate"
	default:
		return "Low"
	}
}

// InternalBrief renders the full-detail document for the team that owns the
// assessment, including the complete assumption ledger.
func InternalBrief(in Input) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `# Internal Team Brief: AI Agent Assessment

**Generated:** %s
**Status:** Internal Use Only

---

## Overview

**Industry:** %s
**Jurisdiction:** %s

### What You're Trying to Do
%s

### What the Agent Would Actually Do
%s

---

## Direction

### Feasibility & Recommended Type
%s

### Key Risks & Success Factors
%s
`,
		in.Now.Format("2006-01-02 15:04"),
		in.slot(judgment.SlotIndustry), in.slot(judgment.SlotJurisdiction),
		in.section(artifact.SectionIntent), in.section(artifact.SectionBehavior),
		in.section(artifact.SectionFeasibility), in.section(artifact.SectionRisks))

	if len(in.Assumptions) > 0 {
		sb.WriteString("\n---\n\n## Working Assumptions\n\n")
		for i, a := range in.Assumptions {
			marker := "?"
			switch a.Status {
			case assumption.StatusConfirmed:
				marker = "confirmed"
			case assumption.StatusCorrected:
				marker = "corrected"
			case assumption.StatusStale:
				marker = "stale"
			}
			fmt.Fprintf(&sb, "%d. [%s] **%s**\n   - Impact: %s | Confidence: %s | ID: %s\n\n",
				i+1, marker, a.Statement, a.Impact, a.Confidence, a.ID)
		}
	}

	fmt.Fprintf(&sb, `---

## Next Steps

%s

---

*For external distribution, use the executive brief.*
`, in.section(artifact.SectionNextSteps))
	return sb.String()
}

// ExecutiveBrief renders the high-level public variant. It carries no
// assumption IDs and no unconfirmed assumption statements.
func ExecutiveBrief(in Input) string {
	agentType := in.agentType()
	return fmt.Sprintf(`# Executive Brief: AI Agent Initiative

**Date:** %s
**Industry:** %s

---

## Executive Summary

**Recommendation:** %s

### The Opportunity
%s

### Proposed Approach
%s

---

## Risk Summary

%s

---

## Investment Considerations

| Aspect | Assessment |
|--------|------------|
| Complexity | %s |
| Timeline | %s |
| Agent Type | %s |

---

## Recommended Next Steps

%s
`,
		in.Now.Format("2006-01-02"), in.slot(judgment.SlotIndustry),
		recommendationPhrase(in.recommendation(), agentType),
		clip(in.section(artifact.SectionIntent), 500),
		clip(in.section(artifact.SectionBehavior), 500),
		clip(in.section(artifact.SectionRisks), 400),
		complexityFor(agentType), in.slot(judgment.SlotTimeline), agentType,
		clip(in.section(artifact.SectionNextSteps), 400))
}

// EmailDraft renders a short email-ready summary.
func EmailDraft(in Input) string {
	return fmt.Sprintf(`Hello,

I wanted to share a summary of the AI agent capability assessment we completed for our %s initiative.

**Overview**

%s

**Recommendation**

%s

**Next Steps**

%s

I'd be happy to schedule time to discuss this in more detail.

Best,
`,
		in.slot(judgment.SlotIndustry),
		clip(in.section(artifact.SectionIntent), 300),
		recommendationPhrase(in.recommendation(), in.agentType()),
		clip(in.section(artifact.SectionNextSteps), 200))
}

// SlideOutline renders a slide-by-slide presentation outline.
func SlideOutline(in Input) string {
	agentType := in.agentType()
	return fmt.Sprintf(`# Presentation Outline: AI Agent Capability Assessment

**Industry:** %s

---

## Slide 1: Title

**AI Agent Capability Assessment**
- Industry: %s
- Date: %s

---

## Slide 2: The Challenge

%s

*Speaker notes: emphasize business impact and urgency*

---

## Slide 3: Proposed Solution

%s

*Speaker notes: focus on the value proposition*

---

## Slide 4: Agent Architecture

**Recommended: %s**

%s

*Speaker notes: explain why this type was selected*

---

## Slide 5: Key Risks

%s

---

## Slide 6: Scope Boundaries

**What this initiative will NOT do**

%s

*Speaker notes: set clear expectations*

---

## Slide 7: Implementation Roadmap

%s

---

## Slide 8: Q&A
`,
		in.slot(judgment.SlotIndustry), in.slot(judgment.SlotIndustry),
		in.Now.Format("January 2006"),
		clip(in.section(artifact.SectionIntent), 400),
		clip(in.section(artifact.SectionBehavior), 400),
		agentType,
		clip(in.section(artifact.SectionFeasibility), 300),
		clip(in.section(artifact.SectionRisks), 300),
		in.slot(judgment.SlotBoundaries),
		clip(in.section(artifact.SectionNextSteps), 300))
}

var (
	agentTypeTokenRe = regexp.MustCompile(`\bT[0-4]\b`)
	assumptionIDRe   = regexp.MustCompile(`\bA-[0-9a-f]{8}\b`)
)

// VerifyConsistency checks that a public variant does not contradict or leak
// the internal brief: every agent type it names must appear in the internal
// brief, it must not carry assumption IDs, and it must not upgrade a caution
// or no-go verdict into an unqualified go.
func VerifyConsistency(internal, public string) error {
	internalTypes := map[string]struct{}{}
	for _, t := range agentTypeTokenRe.FindAllString(internal, -1) {
		internalTypes[t] = struct{}{}
	}
	// Nothing to contradict if the internal brief names no type yet.
	if len(internalTypes) > 0 {
		for _, t := range agentTypeTokenRe.FindAllString(public, -1) {
			if _, ok := internalTypes[t]; !ok {
				return fmt.Errorf("export: public document names agent type %s absent from the internal brief", t)
			}
		}
	}
	if id := assumptionIDRe.FindString(public); id != "" {
		return fmt.Errorf("export: public document leaks assumption id %s", id)
	}

	lowerInternal := strings.ToLower(internal)
	lowerPublic := strings.ToLower(public)
	guarded := strings.Contains(lowerInternal, "caution") ||
		strings.Contains(lowerInternal, "no-go") ||
		strings.Contains(lowerInternal, "do not proceed")
	if guarded && strings.Contains(lowerPublic, "proceed") &&
		!strings.Contains(lowerPublic, "caution") &&
		!strings.Contains(lowerPublic, "no-go") &&
		!strings.Contains(lowerPublic, "do not proceed") {
		return fmt.Errorf("export: public document drops the caution the internal brief carries")
	}
	return nil
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "…"
}
