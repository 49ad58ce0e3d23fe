// Package memory owns conversation state: per-session turn history and
// extracted slot state. The store is the single source of truth; callers
// hold session IDs, never session objects.
package memory

import (
	"context"
	"time"

	"github.com/DoorwiseAI/doorwise-mvp/engine/domain"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one message in a session. Append-only; never mutated after creation.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Slots is the extracted conversation state. Unknown/empty fields carry no
// information and never overwrite a known value on update.
type Slots struct {
	DoorCategory domain.DoorCategory `json:"door_category"`
	DoorType     domain.DoorType     `json:"door_type"`
}

// EmptySlots returns slots with both fields unknown.
func EmptySlots() Slots {
	return Slots{DoorCategory: domain.CategoryUnknown, DoorType: domain.TypeUnknown}
}

// Merge applies non-unknown fields of update over s, last writer wins per key.
func (s Slots) Merge(update Slots) Slots {
	out := s
	if update.DoorCategory != "" && update.DoorCategory != domain.CategoryUnknown {
		out.DoorCategory = update.DoorCategory
	}
	if update.DoorType != "" && update.DoorType != domain.TypeUnknown {
		out.DoorType = update.DoorType
	}
	return out
}

// Session is the stored conversation state for one session ID.
type Session struct {
	ID    string `json:"id"`
	Turns []Turn `json:"turns"`
	Slots Slots  `json:"slots"`
}

// MaxTurns bounds per-session history; the oldest turns are trimmed first.
const MaxTurns = 20

// Store is the conversation memory contract. Operations on one session ID are
// linearizable; operations on different session IDs never block each other.
// Get creates an empty session when absent (idempotent get-or-create), so
// domain.ErrSessionNotFound indicates an implementation bug if ever returned.
type Store interface {
	Get(ctx context.Context, sessionID string) (Session, error)
	Append(ctx context.Context, sessionID string, turns ...Turn) error
	UpdateSlots(ctx context.Context, sessionID string, update Slots) error
	Clear(ctx context.Context, sessionID string) error
}

// trimTurns drops the oldest turns beyond MaxTurns.
func trimTurns(turns []Turn) []Turn {
	if len(turns) > MaxTurns {
		return turns[len(turns)-MaxTurns:]
	}
	return turns
}
