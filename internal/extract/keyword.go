package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/wthompson1804/scopedesk/internal/judgment"
)

// industryKeywords maps canonical industry values to trigger substrings.
var industryKeywords = map[string][]string{
	"healthcare":    {"health", "medical", "hospital", "patient", "clinical", "pharma", "drug"},
	"finance":       {"bank", "financial", "trading", "investment", "insurance", "fintech", "payment"},
	"manufacturing": {"manufactur", "factory", "production", "assembly", "industrial"},
	"retail":        {"retail", "ecommerce", "e-commerce", "shop", "store", "consumer"},
	"technology":    {"tech", "software", "saas", "platform", "app", "digital"},
	"energy":        {"energy", "utility", "power", "electric", "oil", "gas", "renewable"},
	"logistics":     {"logistics", "supply chain", "shipping", "transport", "warehouse"},
	"education":     {"education", "learning", "school", "university", "training"},
	"government":    {"government", "public sector", "federal", "municipal", "civic"},
	"agriculture":   {"agriculture", "farming", "crop", "livestock", "agri"},
}

var opportunityKeywords = map[string][]string{
	"revenue":   {"revenue", "sales", "growth", "monetize", "profit", "income", "sell"},
	"cost":      {"cost", "save", "efficiency", "reduce", "automate", "streamline", "cut"},
	"risk":      {"risk", "compliance", "security", "protect", "prevent", "safety", "audit"},
	"transform": {"transform", "innovate", "disrupt", "reimagine", "new way", "change"},
}

var jurisdictionKeywords = []struct {
	value    string
	keywords []string
}{
	{"US", []string{"united states", "usa", "u.s.", "america", "federal"}},
	{"EU", []string{"europe", "european union", "eu", "gdpr"}},
	{"UK", []string{"united kingdom", "uk", "britain", "england"}},
	{"global", []string{"global", "worldwide", "international", "multi-jurisdictional"}},
	{"Canada", []string{"canada", "canadian"}},
	{"Australia", []string{"australia", "australian"}},
	{"Germany", []string{"germany", "german"}},
	{"Singapore", []string{"singapore"}},
}

var timelineBuckets = []struct {
	bucket   string
	conf     judgment.Confidence
	keywords []string
}{
	{"0-3mo", judgment.ConfidenceHigh, []string{"poc", "proof of concept", "1-3 month", "quick", "pilot"}},
	{"3-6mo", judgment.ConfidenceHigh, []string{"3-6 month", "pilot project", "trial"}},
	{"6-12mo", judgment.ConfidenceHigh, []string{"6-12 month", "production", "deploy", "rollout"}},
	{"12mo+", judgment.ConfidenceMedium, []string{"year", "long term", "scale", "enterprise"}},
	{"exploratory", judgment.ConfidenceMedium, []string{"exploring", "research", "investigate", "feasibility"}},
}

var orgSizeBuckets = []struct {
	bucket   string
	keywords []string
}{
	{"1-50", []string{"startup", "small team", "5 people", "10 people"}},
	{"51-200", []string{"mid-size", "medium", "growing", "100 people", "200 people"}},
	{"1001-5000", []string{"large", "enterprise", "1000", "thousand", "corporation"}},
	{"5000+", []string{"fortune 500", "multinational", "global company", "10000"}},
}

var systemPatterns = []struct {
	pattern *regexp.Regexp
	name    string
}{
	{regexp.MustCompile(`salesforce`), "Salesforce"},
	{regexp.MustCompile(`\bsap\b`), "SAP"},
	{regexp.MustCompile(`oracle`), "Oracle"},
	{regexp.MustCompile(`workday`), "Workday"},
	{regexp.MustCompile(`servicenow`), "ServiceNow"},
	{regexp.MustCompile(`slack`), "Slack"},
	{regexp.MustCompile(`jira`), "Jira"},
	{regexp.MustCompile(`confluence`), "Confluence"},
	{regexp.MustCompile(`sharepoint`), "SharePoint"},
	{regexp.MustCompile(`dynamics`), "Microsoft Dynamics"},
	{regexp.MustCompile(`hubspot`), "HubSpot"},
	{regexp.MustCompile(`zendesk`), "Zendesk"},
	{regexp.MustCompile(`\berp\b`), "ERP System"},
	{regexp.MustCompile(`\bcrm\b`), "CRM System"},
	{regexp.MustCompile(`database`), "Database"},
	{regexp.MustCompile(`\bapi\b`), "API Integration"},
}

// RegulatedIndustries trigger the integration/risk branch and push the
// inferred risk posture to high.
var RegulatedIndustries = map[string]bool{
	"healthcare": true,
	"finance":    true,
	"government": true,
	"energy":     true,
}

// KeywordExtractor resolves closed-enum slots by substring and pattern
// matching. It is deterministic, needs no network, and doubles as the
// fallback when the model-backed extractor fails.
type KeywordExtractor struct{}

// NewKeywordExtractor returns a ready extractor.
func NewKeywordExtractor() *KeywordExtractor {
	return &KeywordExtractor{}
}

// Extract implements Extractor.
func (k *KeywordExtractor) Extract(_ context.Context, req Request) ([]judgment.Update, error) {
	text := strings.ToLower(req.Utterance)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	var updates []judgment.Update

	add := func(slot judgment.Slot, value, raw string, conf judgment.Confidence) {
		if !req.candidate(slot) {
			return
		}
		if prior, ok := req.Prior[slot]; ok && prior.Set() && prior.Source.UserProvided() {
			return
		}
		updates = append(updates, judgment.Update{
			Slot:       slot,
			Value:      value,
			Raw:        raw,
			Confidence: conf,
			Source:     req.sourceFor(slot),
		})
	}

	if value, conf, ok := matchIndustry(text); ok {
		add(judgment.SlotIndustry, value, req.Utterance, conf)
	}
	if value, conf, ok := matchOpportunity(text); ok {
		add(judgment.SlotOpportunity, value, req.Utterance, conf)
	}
	if value, ok := matchJurisdiction(text); ok {
		add(judgment.SlotJurisdiction, value, req.Utterance, judgment.ConfidenceHigh)
	}
	if bucket, conf, ok := matchTimeline(text); ok {
		add(judgment.SlotTimeline, bucket, req.Utterance, conf)
	}
	if bucket, ok := matchOrgSize(text); ok {
		add(judgment.SlotOrgSize, bucket, req.Utterance, judgment.ConfidenceMedium)
	}
	if systems := matchSystems(text); len(systems) > 0 {
		add(judgment.SlotIntegration, strings.Join(systems, ", "), req.Utterance, judgment.ConfidenceMedium)
	}

	// Intent is an open slot: a substantial direct answer is taken verbatim.
	if req.asked(judgment.SlotIntent) && len(strings.TrimSpace(req.Utterance)) > 20 {
		add(judgment.SlotIntent, clip(req.Utterance, 500), req.Utterance, judgment.ConfidenceMedium)
	}
	if req.asked(judgment.SlotRiskPosture) && len(strings.TrimSpace(req.Utterance)) > 0 {
		add(judgment.SlotRiskPosture, riskFromWorstCase(text), req.Utterance, judgment.ConfidenceMedium)
	}

	return updates, nil
}

func matchIndustry(text string) (string, judgment.Confidence, bool) {
	var matches []string
	for industry, keywords := range industryKeywords {
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				matches = append(matches, industry)
				break
			}
		}
	}
	switch len(matches) {
	case 0:
		return "", "", false
	case 1:
		return matches[0], judgment.ConfidenceHigh, true
	default:
		// Ambiguous mentions: pick the one with the most keyword hits so
		// the result does not depend on map iteration order.
		best, bestHits := "", -1
		for _, industry := range matches {
			hits := 0
			for _, kw := range industryKeywords[industry] {
				if strings.Contains(text, kw) {
					hits++
				}
			}
			if hits > bestHits || (hits == bestHits && industry < best) {
				best, bestHits = industry, hits
			}
		}
		return best, judgment.ConfidenceMedium, true
	}
}

func matchOpportunity(text string) (string, judgment.Confidence, bool) {
	bestShape, bestScore := "", 0
	for _, shape := range []string{"revenue", "cost", "risk", "transform"} {
		score := 0
		for _, kw := range opportunityKeywords[shape] {
			if strings.Contains(text, kw) {
				score++
			}
		}
		if score > bestScore {
			bestShape, bestScore = shape, score
		}
	}
	if bestScore == 0 {
		return "", "", false
	}
	conf := judgment.ConfidenceMedium
	if bestScore >= 2 {
		conf = judgment.ConfidenceHigh
	}
	return bestShape, conf, true
}

func matchJurisdiction(text string) (string, bool) {
	for _, entry := range jurisdictionKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(text, kw) {
				return entry.value, true
			}
		}
	}
	return "", false
}

func matchTimeline(text string) (string, judgment.Confidence, bool) {
	for _, entry := range timelineBuckets {
		for _, kw := range entry.keywords {
			if strings.Contains(text, kw) {
				return entry.bucket, entry.conf, true
			}
		}
	}
	return "", "", false
}

func matchOrgSize(text string) (string, bool) {
	for _, entry := range orgSizeBuckets {
		for _, kw := range entry.keywords {
			if strings.Contains(text, kw) {
				return entry.bucket, true
			}
		}
	}
	return "", false
}

func matchSystems(text string) []string {
	var systems []string
	for _, entry := range systemPatterns {
		if entry.pattern.MatchString(text) {
			systems = append(systems, entry.name)
		}
	}
	return systems
}

func riskFromWorstCase(text string) string {
	for _, kw := range []string{"danger", "injur", "death", "lawsuit", "regulator", "fine", "breach"} {
		if strings.Contains(text, kw) {
			return "high"
		}
	}
	for _, kw := range []string{"annoy", "minor", "inconvenien", "cosmetic", "low"} {
		if strings.Contains(text, kw) {
			return "low"
		}
	}
	return "medium"
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Regulated reports whether the industry value falls in a regulated domain.
func Regulated(industry string) bool {
	return RegulatedIndustries[strings.ToLower(strings.TrimSpace(industry))]
}

// SystemsList splits an integration-surface value back into system names.
func SystemsList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

var _ Extractor = (*KeywordExtractor)(nil)
