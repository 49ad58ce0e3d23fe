package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/DoorwiseAI/doorwise-mvp/engine/domain"
	"github.com/DoorwiseAI/doorwise-mvp/engine/memory"
)

// historyWindow is how many recent turns each agent sees.
const historyWindow = 6

// roleAgent is the shared agent implementation, specialized by roleConfig.
type roleAgent struct {
	cfg       roleConfig
	retriever Retriever
	llm       LLMClient
	logger    *slog.Logger
}

func (a *roleAgent) Role() Role { return a.cfg.role }

// Handle retrieves context, prompts the LLM, and post-processes the answer
// for this role.
func (a *roleAgent) Handle(ctx context.Context, req Request) (Response, error) {
	if a.cfg.role == RoleDoorIdentifier {
		return a.identify(ctx, req)
	}

	passages, err := a.retrieve(ctx, req)
	if err != nil {
		// Retrieval trouble degrades the context, not the agent: the LLM
		// still answers from general knowledge and says what's missing.
		a.logger.Warn("agent retrieval degraded", "role", a.cfg.role, "err", err)
	}

	system := a.cfg.systemPrompt(req.Slots)
	if req.ExtraInstruction != "" {
		system += "\n\n" + req.ExtraInstruction
	}

	messages := historyMessages(req.History)
	messages = append(messages, Message{
		Role:    "user",
		Content: fmt.Sprintf("Context information for reference:\n%s\n\nMy question is: %s", formatContext(passages), req.Query),
	})

	answer, err := a.llm.Complete(ctx, CompletionRequest{
		System:      system,
		Messages:    messages,
		Temperature: a.cfg.temperature,
	})
	if err != nil {
		return Response{}, fmt.Errorf("agent %s: complete: %w", a.cfg.role, err)
	}

	resp := Response{
		Role:       a.cfg.role,
		Answer:     strings.TrimSpace(answer),
		Confidence: answerConfidence(len(passages)),
		Sources:    sourceIDs(passages),
	}

	switch a.cfg.role {
	case RoleProcedure:
		resp.Steps = extractNumbered(answer)
	case RoleTool:
		resp.Tools = extractBullets(answer)
	case RoleSafety:
		resp.SafetyFlags = extractBullets(answer)
	}

	// Retrieved passages tagged with a concrete door type can resolve an
	// unknown slot even when the user never named the door.
	resp.SlotUpdates = slotsFromPassages(req.Slots, passages)

	return resp, nil
}

// identify runs the door identification flow: pattern extraction first, LLM
// fallback only for fields that stay unknown.
func (a *roleAgent) identify(ctx context.Context, req Request) (Response, error) {
	slots := ExtractDoorInfo(req.Query)
	fromPattern := true

	if slots.DoorCategory == domain.CategoryUnknown || slots.DoorType == domain.TypeUnknown {
		reply, err := a.llm.Complete(ctx, CompletionRequest{
			System:      a.cfg.systemPrompt(req.Slots),
			Messages:    append(historyMessages(req.History), Message{Role: "user", Content: req.Query}),
			Temperature: a.cfg.temperature,
		})
		if err != nil {
			return Response{}, fmt.Errorf("agent %s: complete: %w", a.cfg.role, err)
		}
		llmSlots := ParseDoorInfoReply(reply)
		if slots.DoorCategory == domain.CategoryUnknown {
			slots.DoorCategory = llmSlots.DoorCategory
		}
		if slots.DoorType == domain.TypeUnknown {
			slots.DoorType = llmSlots.DoorType
		}
		fromPattern = false
	}

	return Response{
		Role:        RoleDoorIdentifier,
		Answer:      identificationAnswer(slots),
		Confidence:  identifyConfidence(slots, fromPattern),
		SlotUpdates: slots,
	}, nil
}

func (a *roleAgent) retrieve(ctx context.Context, req Request) ([]domain.FusedResult, error) {
	if a.cfg.skipRetrieval {
		return nil, nil
	}

	filter := a.cfg.filter(req.Slots)
	passages, err := a.retriever.Retrieve(ctx, req.Query, a.cfg.topK, filter)
	if err != nil && !errors.Is(err, domain.ErrNoResults) {
		return nil, err
	}

	// The scoped search found nothing; widen to all content types before
	// giving up. ContentAny, not "", so the pipeline's filter inference
	// cannot narrow the retry back down.
	if len(passages) == 0 && a.cfg.fallbackWithoutContentType && filter.ContentType != "" {
		filter.ContentType = domain.ContentAny
		passages, err = a.retriever.Retrieve(ctx, req.Query, a.cfg.topK, filter)
		if err != nil && !errors.Is(err, domain.ErrNoResults) {
			return nil, err
		}
	}
	return passages, nil
}

// identificationAnswer words the identifier's reply, asking for what is
// still missing.
func identificationAnswer(slots memory.Slots) string {
	switch {
	case slots.DoorCategory != domain.CategoryUnknown && slots.DoorType != domain.TypeUnknown:
		return fmt.Sprintf("I understand you're asking about a %s door (%s door). How can I help you with this door type?", slots.DoorType, slots.DoorCategory)
	case slots.DoorCategory != domain.CategoryUnknown:
		return fmt.Sprintf("I understand you're asking about an %s door. Could you specify which type of %s door you're working with?", slots.DoorCategory, slots.DoorCategory)
	case slots.DoorType != domain.TypeUnknown:
		return fmt.Sprintf("I understand you're asking about a %s door. How can I help you with this door type?", slots.DoorType)
	default:
		return "I'm not sure which type of door you're asking about. Are you working with an interior door (like a bifold or prehung) or an exterior door (like an entry door, patio door, or dentil shelf)?"
	}
}

// formatContext renders passages as numbered, metadata-tagged blocks.
func formatContext(passages []domain.FusedResult) string {
	if len(passages) == 0 {
		return "No relevant documents found."
	}
	var b strings.Builder
	for i, p := range passages {
		fmt.Fprintf(&b, "Document %d [%s %s, %s]:\n%s\n\n",
			i+1, p.Metadata.DoorCategory, p.Metadata.DoorType, p.Metadata.ContentType, p.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

func historyMessages(history []memory.Turn) []Message {
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	msgs := make([]Message, 0, len(history))
	for _, t := range history {
		msgs = append(msgs, Message{Role: string(t.Role), Content: t.Content})
	}
	return msgs
}

// slotsFromPassages infers door slots from retrieved metadata when the
// session doesn't know them yet. Only a unanimous door type across passages
// counts; mixed evidence proves nothing.
func slotsFromPassages(current memory.Slots, passages []domain.FusedResult) memory.Slots {
	updates := memory.EmptySlots()
	if len(passages) == 0 {
		return updates
	}

	if current.DoorType == domain.TypeUnknown || current.DoorType == "" {
		unanimous := passages[0].Metadata.DoorType
		for _, p := range passages[1:] {
			if p.Metadata.DoorType != unanimous {
				unanimous = domain.TypeUnknown
				break
			}
		}
		if unanimous != domain.TypeUnknown && unanimous != "" {
			updates.DoorType = unanimous
			updates.DoorCategory = domain.CategoryFor(unanimous)
		}
	}
	return updates
}

func answerConfidence(passageCount int) float64 {
	switch {
	case passageCount >= 3:
		return 0.8
	case passageCount > 0:
		return 0.6
	default:
		return 0.3
	}
}

func sourceIDs(passages []domain.FusedResult) []string {
	if len(passages) == 0 {
		return nil
	}
	ids := make([]string, len(passages))
	for i, p := range passages {
		ids[i] = p.ChunkID
	}
	return ids
}
