// Package persona holds the static prompt+policy bundles (§4.10) selected
// per outgoing message to the subprocess peer.
package persona

import "strings"

// Persona is a static prompt bundle fed to the subprocess peer as its
// system prompt.
type Persona struct {
	Name             string
	Category         string
	Description      string
	BaseInstructions string
	Triggers         []string
	SandboxOverride  string
}

// Architect is the default persona: general-purpose collaboration.
var Architect = Persona{
	Name:        "architect",
	Category:    "general",
	Description: "General-purpose collaborator for implementation and design tasks.",
	BaseInstructions: "You are acting as a focused engineering collaborator responding to a " +
		"message from another AI assistant. Be direct, cite file paths and line numbers when " +
		"relevant, and prefer concrete next steps over open-ended discussion.",
	Triggers: nil,
}

// oracleTriggers are the keyword substrings (matched against the lowercased
// message content) that select the Oracle persona over Architect.
var oracleTriggers = []string{
	"why", "debug", "investigate", "root cause", "understand",
	"explain", "failing", "broken", "not working", "error", "bug",
}

// Oracle is the diagnostic persona: root-cause investigation.
var Oracle = Persona{
	Name:        "oracle",
	Category:    "diagnostic",
	Description: "Root-cause investigator for failures, bugs, and confusing behavior.",
	BaseInstructions: "You are acting as a root-cause investigator responding to a message from " +
		"another AI assistant. Read the available context closely, form a hypothesis, verify it " +
		"against evidence before answering, and state your confidence explicitly.",
	Triggers: oracleTriggers,
}

// Select implements §4.9 step 4's auto-selection: scan content, lowercased,
// for any oracle trigger as a substring; the first hit selects Oracle, else
// Architect.
func Select(content string) Persona {
	lower := strings.ToLower(content)
	for _, trigger := range oracleTriggers {
		if strings.Contains(lower, trigger) {
			return Oracle
		}
	}
	return Architect
}

// ByName looks up a persona explicitly requested via the `agent` parameter.
func ByName(name string) (Persona, bool) {
	switch name {
	case Architect.Name:
		return Architect, true
	case Oracle.Name:
		return Oracle, true
	default:
		return Persona{}, false
	}
}
