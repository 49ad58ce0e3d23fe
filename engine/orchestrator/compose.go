package orchestrator

import (
	"fmt"
	"strings"

	"github.com/DoorwiseAI/doorwise-mvp/engine/agent"
	"github.com/DoorwiseAI/doorwise-mvp/engine/domain"
	"github.com/DoorwiseAI/doorwise-mvp/engine/memory"
	"github.com/DoorwiseAI/doorwise-mvp/pkg/fn"
)

const (
	// degradedNotice is appended when an agent's section is missing.
	degradedNotice = "Note: some information sources were unavailable for this answer. Details may be incomplete."

	// noInfoAnswer is returned when no agent produced anything useful.
	noInfoAnswer = "I don't have information about that. I can help with door installation: identifying your door type, installation steps, tools and components, troubleshooting, and safety. What door are you working on?"
)

var sectionTitles = map[agent.Role]string{
	agent.RoleProcedure:    "Installation",
	agent.RoleTool:         "Tools and Components",
	agent.RoleTroubleshoot: "Troubleshooting",
	agent.RoleSafety:       "Safety",
}

// Compose merges agent responses into one answer. Substantive sections keep
// their role headers and follow role priority order. When the turn also
// resolved the door, a one-line identification lead opens the answer; the
// identifier's full conversational reply only stands alone. A degraded turn
// carries the unavailability notice on every shape of answer.
func Compose(responses []agent.Response, degraded bool) string {
	answered := fn.Filter(responses, func(r agent.Response) bool { return r.Answer != "" })
	byRole := make(map[agent.Role]agent.Response, len(answered))
	for _, r := range answered {
		byRole[r.Role] = r
	}

	var sections []string
	for _, role := range agent.Roles {
		if role == agent.RoleDoorIdentifier {
			continue
		}
		if r, ok := byRole[role]; ok {
			sections = append(sections, "## "+sectionTitles[role]+"\n\n"+r.Answer)
		}
	}

	var answer string
	if len(sections) == 0 {
		answer = noInfoAnswer
		if id, ok := byRole[agent.RoleDoorIdentifier]; ok {
			answer = id.Answer
		}
	} else {
		answer = strings.Join(sections, "\n\n")
		if id, ok := byRole[agent.RoleDoorIdentifier]; ok {
			if lead := identificationLead(id.SlotUpdates); lead != "" {
				answer = lead + "\n\n" + answer
			}
		}
	}

	if degraded {
		answer += "\n\n" + degradedNotice
	}
	return answer
}

// identificationLead is the one-line opener used when the same turn both
// identified the door and produced substantive sections.
func identificationLead(slots memory.Slots) string {
	typeKnown := slots.DoorType != "" && slots.DoorType != domain.TypeUnknown
	categoryKnown := slots.DoorCategory != "" && slots.DoorCategory != domain.CategoryUnknown
	switch {
	case typeKnown && categoryKnown:
		return fmt.Sprintf("For your %s (%s):", slots.DoorType, slots.DoorCategory)
	case typeKnown:
		return fmt.Sprintf("For your %s:", slots.DoorType)
	case categoryKnown:
		return fmt.Sprintf("For your %s door:", slots.DoorCategory)
	default:
		return ""
	}
}
