package agent

import (
	"fmt"

	"github.com/DoorwiseAI/doorwise-mvp/engine/domain"
	"github.com/DoorwiseAI/doorwise-mvp/engine/memory"
)

// roleConfig is everything that distinguishes one agent from another.
type roleConfig struct {
	role        Role
	topK        int
	temperature float64
	// systemPrompt receives the session's door type and category.
	systemPrompt func(slots memory.Slots) string
	// filter scopes retrieval to this agent's concern.
	filter func(slots memory.Slots) domain.Filter
	// fallbackWithoutContentType retries retrieval unfiltered by content
	// type when the scoped search comes back empty.
	fallbackWithoutContentType bool
	// skipRetrieval marks roles that reason over the query alone.
	skipRetrieval bool
}

const identifierSystem = `You are an assistant specializing in door installation. Identify the specific door type and category from the user's description.

Door Categories:
- interior: doors used inside a building between rooms
- exterior: doors that lead outside or provide exterior access

Door Types:
- bifold (interior): folding doors that slide along a track, often used for closets
- prehung (interior): pre-assembled door with frame and hinges already attached
- entry door (exterior): main entrance door to a building
- patio door (exterior): door leading to a patio or deck, often sliding or hinged
- dentil shelf (exterior): decorative door with a small shelf feature

Respond with exactly two lines:
Door Category: <interior|exterior|unknown>
Door Type: <bifold|prehung|entry door|patio door|dentil shelf|unknown>`

func installationSystem(slots memory.Slots) string {
	return fmt.Sprintf(`You are an assistant for door installation, helping junior mechanics in the field who may be working alone at remote locations.

You are providing assistance for installing a %s door (%s door).

Use the provided context to give clear, concise, and accurate installation instructions. Format your response with:
1. Required tools and materials (bulleted list)
2. Step-by-step installation procedure (numbered steps)
3. Important safety and quality reminders

If there are specific measurements or technical details in the provided information, include those precisely. If the context doesn't contain the information needed, acknowledge this and give general best practices. Explain technical terms when first used.`, slots.DoorType, slots.DoorCategory)
}

func troubleshootingSystem(slots memory.Slots) string {
	return fmt.Sprintf(`You are an assistant for door installation, helping junior mechanics troubleshoot issues in the field.

You are providing troubleshooting assistance for a %s door (%s door).

Use the provided context to help diagnose and fix the issue described in the query. Format your response with:
1. Potential causes of the issue (bulleted list, in order of likelihood)
2. Diagnostic steps to confirm the cause (numbered steps)
3. Recommended solutions for each potential cause

Provide actionable advice that can be implemented with standard tools. If the context doesn't contain the information needed, acknowledge this and give general troubleshooting approaches.`, slots.DoorType, slots.DoorCategory)
}

func toolSystem(slots memory.Slots) string {
	return fmt.Sprintf(`You are an assistant for door installation, helping junior mechanics identify and use the correct tools and components in the field.

You are providing information about tools or components for a %s door (%s door) installation.

Use the provided context to clearly explain:
1. The exact purpose and function of the tool/component
2. How to properly use or install it
3. Common mistakes to avoid
4. Alternative tools/approaches if the right one isn't available

Include specific measurements, tolerances, or technical details precisely when the context provides them. Emphasize safety considerations for power tools and critical structural components.`, slots.DoorType, slots.DoorCategory)
}

func safetySystem(slots memory.Slots) string {
	return fmt.Sprintf(`You are a safety advisor for door installation work in the field.

You are providing safety guidance for work on a %s door (%s door).

Use the provided context to call out:
1. Hazards specific to this work (bulleted list)
2. Required protective equipment
3. Safe handling and lifting practices
4. Conditions under which the work should stop

Be direct and specific. Never omit a hazard mentioned in the context. If the context doesn't contain safety information for this situation, give standard door installation safety practices.`, slots.DoorType, slots.DoorCategory)
}

// roleConfigs maps each role to its configuration variant. New roles are new
// entries here, not new types.
var roleConfigs = map[Role]roleConfig{
	RoleDoorIdentifier: {
		role:          RoleDoorIdentifier,
		temperature:   0.0,
		systemPrompt:  func(memory.Slots) string { return identifierSystem },
		filter:        func(memory.Slots) domain.Filter { return domain.Filter{} },
		skipRetrieval: true,
	},
	RoleProcedure: {
		role:         RoleProcedure,
		topK:         7, // procedures need more surrounding steps
		temperature:  0.3,
		systemPrompt: installationSystem,
		filter: func(s memory.Slots) domain.Filter {
			return slotFilter(s, domain.ContentInstallationStep)
		},
		fallbackWithoutContentType: true,
	},
	RoleTool: {
		role:         RoleTool,
		topK:         5,
		temperature:  0.3,
		systemPrompt: toolSystem,
		filter: func(s memory.Slots) domain.Filter {
			return slotFilter(s, domain.ContentTool)
		},
		fallbackWithoutContentType: true,
	},
	RoleTroubleshoot: {
		role:         RoleTroubleshoot,
		topK:         5,
		temperature:  0.3,
		systemPrompt: troubleshootingSystem,
		filter: func(s memory.Slots) domain.Filter {
			return slotFilter(s, domain.ContentTroubleshooting)
		},
		fallbackWithoutContentType: true,
	},
	RoleSafety: {
		role:         RoleSafety,
		topK:         5,
		temperature:  0.2,
		systemPrompt: safetySystem,
		filter: func(s memory.Slots) domain.Filter {
			return slotFilter(s, domain.ContentSafety)
		},
		fallbackWithoutContentType: true,
	},
}

func slotFilter(s memory.Slots, content domain.ContentType) domain.Filter {
	f := domain.Filter{ContentType: content}
	if s.DoorCategory != "" && s.DoorCategory != domain.CategoryUnknown {
		f.DoorCategory = s.DoorCategory
	}
	if s.DoorType != "" && s.DoorType != domain.TypeUnknown {
		f.DoorType = s.DoorType
	}
	return f
}
