// Package agent implements the role-specialized reasoning agents. All five
// roles share one implementation: a role is a configuration variant (system
// prompt plus retrieval filter), not a separate type.
package agent

import (
	"context"

	"github.com/DoorwiseAI/doorwise-mvp/engine/domain"
	"github.com/DoorwiseAI/doorwise-mvp/engine/memory"
)

// Role identifies a specialized agent.
type Role string

const (
	RoleDoorIdentifier Role = "door_identifier"
	RoleProcedure      Role = "procedure"
	RoleTool           Role = "tool"
	RoleTroubleshoot   Role = "troubleshoot"
	RoleSafety         Role = "safety"
)

// Roles lists every known role in composition priority order:
// identification > procedure > tools > troubleshooting > safety.
var Roles = []Role{RoleDoorIdentifier, RoleProcedure, RoleTool, RoleTroubleshoot, RoleSafety}

// Request is the contract passed from the orchestrator to an agent.
type Request struct {
	// Query is the user's question for this turn.
	Query string
	// Slots is the current session slot state.
	Slots memory.Slots
	// History is the recent turn window for conversational context.
	History []memory.Turn
	// ExtraInstruction is appended to the system prompt, e.g. a
	// clarification-seeking instruction when no intent matched.
	ExtraInstruction string
}

// Response is one agent's structured partial answer. Responses from multiple
// agents in a turn compose without loss: the Role tag lets the orchestrator
// interleave and prioritize them.
type Response struct {
	Role       Role    `json:"role"`
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`

	// SlotUpdates carries identified door attributes; unknown fields are
	// no-ops on merge.
	SlotUpdates memory.Slots `json:"slot_updates"`

	// Structured payloads, populated per role.
	Steps       []string `json:"steps,omitempty"`
	Tools       []string `json:"tools,omitempty"`
	SafetyFlags []string `json:"safety_flags,omitempty"`

	// Sources are the chunk IDs that backed the answer.
	Sources []string `json:"sources,omitempty"`
}

// Agent is the single capability every role implements.
type Agent interface {
	Role() Role
	Handle(ctx context.Context, req Request) (Response, error)
}

// Message is one turn of an LLM conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the LLM client contract.
type CompletionRequest struct {
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// LLMClient abstracts the chat completion backend. Output may be malformed;
// callers must validate structured fields extracted from it.
type LLMClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Retriever is the slice of the retrieval pipeline agents consume.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int, filter domain.Filter) ([]domain.FusedResult, error)
}
