package orchestrator

import (
	"strings"

	"github.com/DoorwiseAI/doorwise-mvp/engine/agent"
)

// Intent is a coarse classification of what the user wants this turn.
type Intent string

const (
	IntentInstallation    Intent = "installation"
	IntentTroubleshooting Intent = "troubleshooting"
	IntentToolComponent   Intent = "tool_component"
	IntentSafety          Intent = "safety"
)

var intentKeywords = map[Intent][]string{
	IntentInstallation: {
		"install", "installation", "how to", "how do i", "steps",
		"mount", "hang", "fit", "put in", "replace", "set up", "assemble",
	},
	IntentTroubleshooting: {
		"problem", "issue", "fix", "repair", "stuck", "won't", "wont",
		"doesn't", "doesnt", "not working", "broken", "sticking",
		"rubbing", "squeak", "misaligned", "gap", "sagging", "drafty",
	},
	IntentToolComponent: {
		"tool", "tools", "screwdriver", "drill", "hammer", "shim",
		"level", "hinge", "hardware", "component", "part", "parts",
		"what do i need", "equipment", "materials",
	},
	IntentSafety: {
		"safe", "safety", "danger", "dangerous", "hazard", "injury",
		"precaution", "protective", "careful",
	},
}

// ClassifyIntents matches the query against keyword rules. A query can carry
// several intents at once; no match means the turn needs clarification.
func ClassifyIntents(query string) []Intent {
	q := strings.ToLower(query)
	var intents []Intent
	for _, intent := range []Intent{IntentInstallation, IntentTroubleshooting, IntentToolComponent, IntentSafety} {
		for _, kw := range intentKeywords[intent] {
			if strings.Contains(q, kw) {
				intents = append(intents, intent)
				break
			}
		}
	}
	return intents
}

// rolesFor maps intents onto agent roles. Safety always rides along with
// procedural or troubleshooting work, even unasked.
func rolesFor(intents []Intent) []agent.Role {
	set := make(map[agent.Role]bool, len(intents))
	for _, intent := range intents {
		switch intent {
		case IntentInstallation:
			set[agent.RoleProcedure] = true
		case IntentTroubleshooting:
			set[agent.RoleTroubleshoot] = true
		case IntentToolComponent:
			set[agent.RoleTool] = true
		case IntentSafety:
			set[agent.RoleSafety] = true
		}
	}
	if set[agent.RoleProcedure] || set[agent.RoleTroubleshoot] {
		set[agent.RoleSafety] = true
	}

	// Priority order keeps composition deterministic.
	var roles []agent.Role
	for _, r := range agent.Roles {
		if set[r] {
			roles = append(roles, r)
		}
	}
	return roles
}
