package agent

import (
	"strings"

	"github.com/DoorwiseAI/doorwise-mvp/engine/domain"
	"github.com/DoorwiseAI/doorwise-mvp/engine/memory"
)

// ExtractDoorInfo identifies door category and type from text by pattern
// matching. This is the cheap first pass; the LLM only runs for what stays
// unknown.
func ExtractDoorInfo(text string) memory.Slots {
	t := strings.ToLower(text)
	slots := memory.EmptySlots()

	switch {
	case strings.Contains(t, "interior"):
		slots.DoorCategory = domain.CategoryInterior
	case strings.Contains(t, "exterior"):
		slots.DoorCategory = domain.CategoryExterior
	}

	switch {
	case strings.Contains(t, "bifold"):
		slots.DoorType = domain.TypeBifold
	case strings.Contains(t, "prehung"):
		slots.DoorType = domain.TypePrehung
		// Prehung exists in both categories; exterior prehung units are
		// sold as entry doors.
		if slots.DoorCategory == domain.CategoryExterior {
			slots.DoorType = domain.TypeEntry
		}
	case strings.Contains(t, "entry") || strings.Contains(t, "front door"):
		slots.DoorType = domain.TypeEntry
	case strings.Contains(t, "patio") || strings.Contains(t, "sliding"):
		slots.DoorType = domain.TypePatio
	case strings.Contains(t, "dentil"):
		slots.DoorType = domain.TypeDentilShelf
	}

	// A known door type pins its category.
	if cat := domain.CategoryFor(slots.DoorType); cat != domain.CategoryUnknown {
		slots.DoorCategory = cat
	}
	return slots
}

// ParseDoorInfoReply parses the identifier LLM's two-line reply. The model's
// output is untrusted: anything outside the enumerated values stays unknown.
func ParseDoorInfoReply(reply string) memory.Slots {
	slots := memory.EmptySlots()

	for _, line := range strings.Split(reply, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.ToLower(strings.TrimSpace(value))
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "door category":
			if c := domain.DoorCategory(value); domain.ValidDoorCategories[c] {
				slots.DoorCategory = c
			}
		case "door type":
			if t := domain.DoorType(value); domain.ValidDoorTypes[t] {
				slots.DoorType = t
			}
		}
	}

	// Reject contradictions like "interior entry door".
	if cat := domain.CategoryFor(slots.DoorType); cat != domain.CategoryUnknown {
		slots.DoorCategory = cat
	}
	return slots
}

// identifyConfidence scores how the identification was reached.
func identifyConfidence(slots memory.Slots, fromPattern bool) float64 {
	known := 0
	if slots.DoorCategory != domain.CategoryUnknown {
		known++
	}
	if slots.DoorType != domain.TypeUnknown {
		known++
	}
	switch {
	case known == 2 && fromPattern:
		return 0.9
	case known == 2:
		return 0.7
	case known == 1:
		return 0.5
	default:
		return 0.1
	}
}
