package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DoorwiseAI/doorwise-mvp/engine/domain"
)

func turn(role Role, content string) Turn {
	return Turn{Role: role, Content: content, Timestamp: time.Now().UTC()}
}

func TestGet_CreatesEmptySession(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	sess, err := s.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sess.ID != "s1" {
		t.Errorf("ID = %q, want s1", sess.ID)
	}
	if len(sess.Turns) != 0 {
		t.Errorf("new session has %d turns", len(sess.Turns))
	}
	if sess.Slots != EmptySlots() {
		t.Errorf("new session slots = %+v, want empty", sess.Slots)
	}

	// Get is idempotent: a second get sees the same (still empty) session.
	again, _ := s.Get(ctx, "s1")
	if again.ID != sess.ID || len(again.Turns) != 0 {
		t.Errorf("second get differs: %+v", again)
	}
}

func TestAppend_OrderAndAtomicity(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	if err := s.Append(ctx, "s1", turn(RoleUser, "q1"), turn(RoleAssistant, "a1")); err != nil {
		t.Fatalf("append: %v", err)
	}
	sess, _ := s.Get(ctx, "s1")
	if len(sess.Turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(sess.Turns))
	}
	if sess.Turns[0].Content != "q1" || sess.Turns[1].Content != "a1" {
		t.Errorf("turn order wrong: %+v", sess.Turns)
	}
}

func TestAppend_TrimsToMaxTurns(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	for i := 0; i < MaxTurns+5; i++ {
		if err := s.Append(ctx, "s1", turn(RoleUser, fmt.Sprintf("m%d", i))); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	sess, _ := s.Get(ctx, "s1")
	if len(sess.Turns) != MaxTurns {
		t.Fatalf("turns = %d, want %d", len(sess.Turns), MaxTurns)
	}
	// Oldest dropped first.
	if sess.Turns[0].Content != "m5" {
		t.Errorf("oldest surviving turn = %q, want m5", sess.Turns[0].Content)
	}
}

func TestUpdateSlots_UnknownNeverOverwrites(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	if err := s.UpdateSlots(ctx, "s1", Slots{DoorCategory: domain.CategoryInterior, DoorType: domain.TypeBifold}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := s.UpdateSlots(ctx, "s1", EmptySlots()); err != nil {
		t.Fatalf("update empty: %v", err)
	}

	sess, _ := s.Get(ctx, "s1")
	if sess.Slots.DoorType != domain.TypeBifold || sess.Slots.DoorCategory != domain.CategoryInterior {
		t.Errorf("slots degraded by unknown update: %+v", sess.Slots)
	}
}

func TestClear_ResetsTurnsAndSlots(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	s.Append(ctx, "s1", turn(RoleUser, "hello"))
	s.UpdateSlots(ctx, "s1", Slots{DoorType: domain.TypePatio, DoorCategory: domain.CategoryExterior})
	if err := s.Clear(ctx, "s1"); err != nil {
		t.Fatalf("clear: %v", err)
	}

	sess, _ := s.Get(ctx, "s1")
	if len(sess.Turns) != 0 {
		t.Errorf("turns survived clear: %+v", sess.Turns)
	}
	if sess.Slots != EmptySlots() {
		t.Errorf("slots survived clear: %+v", sess.Slots)
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	s.Append(ctx, "s1", turn(RoleUser, "original"))

	sess, _ := s.Get(ctx, "s1")
	sess.Turns[0].Content = "mutated"

	again, _ := s.Get(ctx, "s1")
	if again.Turns[0].Content != "original" {
		t.Errorf("stored turn mutated through returned copy")
	}
}

func TestConcurrentSessions_NoLostTurns(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	const perSession = 10
	var wg sync.WaitGroup
	for _, id := range []string{"s1", "s2", "s3"} {
		for i := 0; i < perSession; i++ {
			wg.Add(1)
			go func(id string, i int) {
				defer wg.Done()
				s.Append(ctx, id, turn(RoleUser, fmt.Sprintf("%s-%d", id, i)))
			}(id, i)
		}
	}
	wg.Wait()

	for _, id := range []string{"s1", "s2", "s3"} {
		sess, _ := s.Get(ctx, id)
		if len(sess.Turns) != perSession {
			t.Errorf("session %s has %d turns, want %d", id, len(sess.Turns), perSession)
		}
	}
}

func TestSlotsMerge(t *testing.T) {
	cases := []struct {
		name   string
		base   Slots
		update Slots
		want   Slots
	}{
		{
			"fill empty",
			EmptySlots(),
			Slots{DoorCategory: domain.CategoryInterior, DoorType: domain.TypeBifold},
			Slots{DoorCategory: domain.CategoryInterior, DoorType: domain.TypeBifold},
		},
		{
			"last writer wins per key",
			Slots{DoorCategory: domain.CategoryInterior, DoorType: domain.TypeBifold},
			Slots{DoorCategory: domain.CategoryUnknown, DoorType: domain.TypePrehung},
			Slots{DoorCategory: domain.CategoryInterior, DoorType: domain.TypePrehung},
		},
		{
			"unknown is a no-op",
			Slots{DoorCategory: domain.CategoryExterior, DoorType: domain.TypeEntry},
			EmptySlots(),
			Slots{DoorCategory: domain.CategoryExterior, DoorType: domain.TypeEntry},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.base.Merge(tc.update); got != tc.want {
				t.Errorf("Merge = %+v, want %+v", got, tc.want)
			}
		})
	}
}
