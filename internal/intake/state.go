package intake

import "github.com/wthompson1804/scopedesk/internal/judgment"

// State names one position in the conversation.
type State string

const (
	StateEntry       State = "entry"
	StateIntent      State = "intent"
	StateOpportunity State = "opportunity"
	StateContext     State = "context"
	StateIntegration State = "integration"
	StateRisk        State = "risk"
	StateCheckpoint  State = "checkpoint"
	StateResearch    State = "research"
	StateConfirmType State = "confirm_type"
	StateGenerate    State = "generate"
	StateExports     State = "exports"
)

// intakeStates are the question-asking states the fast path can escape from
// and the hard stop can interrupt.
var intakeStates = map[State]bool{
	StateEntry:       true,
	StateIntent:      true,
	StateOpportunity: true,
	StateContext:     true,
	StateIntegration: true,
	StateRisk:        true,
}

// Action is what the user did this turn.
type Action string

const (
	ActionMessage       Action = "message"
	ActionProceed       Action = "proceed"
	ActionFixAssumption Action = "fix_assumption"
	ActionAskQuestion   Action = "ask_question"
	ActionFastPath      Action = "fast_path"
	ActionOneMore       Action = "one_more"
	ActionStartOver     Action = "start_over"
	ActionRetry         Action = "retry"
)

// Button is one numbered choice offered alongside a system message.
type Button struct {
	ID     string
	Label  string
	Action Action
}

// checkpointButtons are offered at the assumptions checkpoint.
var checkpointButtons = []Button{
	{ID: "proceed", Label: "Looks right — proceed", Action: ActionProceed},
	{ID: "fix", Label: "Fix one thing", Action: ActionFixAssumption},
	{ID: "ask", Label: "Ask me the most important question", Action: ActionAskQuestion},
	{ID: "fast", Label: "Just run it", Action: ActionFastPath},
}

// hardStopButtons are the only three choices once the turn budget is spent.
var hardStopButtons = []Button{
	{ID: "finalize", Label: "Yes, run the analysis", Action: ActionProceed},
	{ID: "more", Label: "Let me add one more thing", Action: ActionOneMore},
	{ID: "restart", Label: "Start over", Action: ActionStartOver},
}

// uxCopy holds the system question for each asking state. Example answers
// ship with the questions so users know the expected register.
var uxCopy = map[State]string{
	StateEntry: "Hi! I'm here to help you scope an AI agent project. I'll ask a few questions " +
		"to understand what you're trying to do, then generate a detailed assessment.\n\n" +
		"You don't need to be precise — I'll make reasonable assumptions and show them " +
		"to you before anything runs.",
	StateIntent: "What problem are you trying to solve with an AI agent?\n\n" +
		"_Example: \"I want to predict when our factory machines will need maintenance " +
		"before they break down.\"_",
	StateOpportunity: "What would success look like? Are you mainly trying to:\n" +
		"- **Grow revenue** (sell more, reach more customers)\n" +
		"- **Save money or time** (efficiency, automation)\n" +
		"- **Reduce risk** (errors, compliance, safety)\n" +
		"- **Transform operations** (fundamentally change how you work)\n\n" +
		"_Example: \"Mainly saving money — avoiding unplanned downtime and emergency repairs.\"_",
	StateContext: "Quick context: where does this operate, and roughly how big is your organization?\n\n" +
		"_Example: \"Three manufacturing plants in the Midwest US, about 200 employees.\"_",
	StateIntegration: "Will this agent need to connect to any existing systems?\n\n" +
		"Things like: CRM, calendar, payment processor, inventory system, databases, " +
		"sensors, ERP, etc.\n\n" +
		"_Example: \"Our machines have sensors feeding into a SCADA system, and we use " +
		"SAP for maintenance scheduling.\"_",
	StateRisk: "If the agent made a mistake, what's the worst that could happen?\n\n" +
		"_Example: \"If it misses a prediction, a machine could fail unexpectedly — " +
		"that's costly but not dangerous since we have safety shutoffs.\"_",
	StateCheckpoint: "Let me summarize what I've understood. Please correct anything that's off — " +
		"this is what I'll base the research on:",
}

const (
	intentFollowupCopy = "That's helpful. If this worked perfectly, what would be different?\n\n" +
		"_Example: \"We'd catch problems days in advance instead of discovering them " +
		"when the machine stops working.\"_"
	jurisdictionFollowupCopy = "One more thing on context: which jurisdiction does this primarily operate in? " +
		"That drives the regulatory research."
	integrationFollowupCopy = "Even a rough list helps — any systems this would read from or write to? " +
		"If it's fully standalone, just say so."
	riskFollowupCopy = "Roughly how bad would a wrong answer be: an inconvenience, costly, or actually dangerous?"
	hardStopCopy  = "We've covered a lot of ground. I have enough to work with — ready to proceed?"
	fastPathOffer = "_We can also skip ahead any time — say \"just run it\" and I'll proceed with " +
		"my best assumptions._"
	reaskPreamble = "Sorry, I didn't catch that. "
)

// followupCaps bounds how many times a state re-asks before moving on with
// what it has.
var followupCaps = map[State]int{
	StateIntent:      2,
	StateContext:     1, // jurisdiction follow-up
	StateIntegration: 2,
	StateRisk:        2,
}

// hardQuestionStates mark states whose question demands real effort from the
// user; they draw down the hard-question budget.
var hardQuestionStates = map[State]bool{
	StateIntent: true,
	StateRisk:   true,
}

// askedSlots lists the slot(s) each state's question directly solicits.
// Answers for these slots count as user-stated.
func askedSlots(state State) []judgment.Slot {
	switch state {
	case StateIntent:
		return []judgment.Slot{judgment.SlotIntent}
	case StateOpportunity:
		return []judgment.Slot{judgment.SlotOpportunity}
	case StateContext:
		return []judgment.Slot{judgment.SlotIndustry, judgment.SlotJurisdiction, judgment.SlotOrgSize}
	case StateIntegration:
		return []judgment.Slot{judgment.SlotIntegration}
	case StateRisk:
		return []judgment.Slot{judgment.SlotRiskPosture, judgment.SlotBoundaries}
	default:
		return nil
	}
}

// preResearchBlockers are the blocker slots that must hold values before the
// research stage may run. The agent type is also a blocker but is confirmed
// after research, not before.
var preResearchBlockers = []judgment.Slot{
	judgment.SlotIndustry,
	judgment.SlotIntent,
	judgment.SlotJurisdiction,
}
