package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/DoorwiseAI/doorwise-mvp/engine/agent"
	"github.com/DoorwiseAI/doorwise-mvp/engine/domain"
	"github.com/DoorwiseAI/doorwise-mvp/engine/memory"
	"github.com/DoorwiseAI/doorwise-mvp/pkg/fn"
)

// --- mocks ---

type mockAgent struct {
	role  agent.Role
	resp  agent.Response
	err   error
	fails int32 // fail this many calls before succeeding
	calls atomic.Int32
}

func (m *mockAgent) Role() agent.Role { return m.role }

func (m *mockAgent) Handle(_ context.Context, _ agent.Request) (agent.Response, error) {
	n := m.calls.Add(1)
	if m.err != nil && n <= m.fails {
		return agent.Response{}, m.err
	}
	return m.resp, nil
}

type mockPipeline struct {
	results []domain.FusedResult
	err     error
}

func (m *mockPipeline) Retrieve(_ context.Context, _ string, _ int, _ domain.Filter) ([]domain.FusedResult, error) {
	return m.results, m.err
}

type mockPublisher struct {
	events [][]byte
}

func (m *mockPublisher) Publish(_ context.Context, _ string, data []byte) error {
	m.events = append(m.events, data)
	return nil
}

func identifierAgent(slots memory.Slots) *mockAgent {
	return &mockAgent{
		role: agent.RoleDoorIdentifier,
		resp: agent.Response{Role: agent.RoleDoorIdentifier, Answer: "identified", Confidence: 0.9, SlotUpdates: slots},
	}
}

func roleAgentMock(role agent.Role, answer string) *mockAgent {
	return &mockAgent{role: role, resp: agent.Response{Role: role, Answer: answer, Confidence: 0.8}}
}

func fullAgentSet(identifier *mockAgent) map[agent.Role]agent.Agent {
	return map[agent.Role]agent.Agent{
		agent.RoleDoorIdentifier: identifier,
		agent.RoleProcedure:      roleAgentMock(agent.RoleProcedure, "1. Do the steps."),
		agent.RoleTool:           roleAgentMock(agent.RoleTool, "- A drill"),
		agent.RoleTroubleshoot:   roleAgentMock(agent.RoleTroubleshoot, "Check the hinges."),
		agent.RoleSafety:         roleAgentMock(agent.RoleSafety, "- Wear gloves"),
	}
}

func fastRetry() Config {
	cfg := DefaultConfig()
	cfg.AgentRetry = fn.RetryOpts{MaxAttempts: 2, InitialWait: 0, MaxWait: 0}
	return cfg
}

func newTestOrchestrator(t *testing.T, agents map[agent.Role]agent.Agent, pub Publisher) (*Orchestrator, memory.Store) {
	t.Helper()
	store := memory.NewInMemoryStore()
	o, err := New(agents, store, &mockPipeline{}, pub, nil, fastRetry())
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}
	return o, store
}

// --- intent classification ---

func TestClassifyIntents(t *testing.T) {
	cases := []struct {
		query string
		want  []Intent
	}{
		{"how do I install a bifold door", []Intent{IntentInstallation}},
		{"my door is sticking", []Intent{IntentTroubleshooting}},
		{"what tools do I need", []Intent{IntentToolComponent}},
		{"is this dangerous", []Intent{IntentSafety}},
		{"how to install and what tools do I need", []Intent{IntentInstallation, IntentToolComponent}},
		{"tell me about doors", nil},
	}
	for _, tc := range cases {
		got := ClassifyIntents(tc.query)
		if len(got) != len(tc.want) {
			t.Errorf("ClassifyIntents(%q) = %v, want %v", tc.query, got, tc.want)
			continue
		}
		for i := range tc.want {
			if got[i] != tc.want[i] {
				t.Errorf("ClassifyIntents(%q)[%d] = %s, want %s", tc.query, i, got[i], tc.want[i])
			}
		}
	}
}

func TestRolesFor_SafetyJoinsProcedural(t *testing.T) {
	roles := rolesFor([]Intent{IntentInstallation})
	if len(roles) != 2 || roles[0] != agent.RoleProcedure || roles[1] != agent.RoleSafety {
		t.Errorf("roles = %v, want [procedure safety]", roles)
	}

	roles = rolesFor([]Intent{IntentTroubleshooting})
	found := false
	for _, r := range roles {
		if r == agent.RoleSafety {
			found = true
		}
	}
	if !found {
		t.Errorf("safety missing from troubleshooting roles: %v", roles)
	}

	// Tool-only questions don't drag safety in.
	roles = rolesFor([]Intent{IntentToolComponent})
	if len(roles) != 1 || roles[0] != agent.RoleTool {
		t.Errorf("roles = %v, want [tool]", roles)
	}
}

// --- turns ---

func TestHandleTurn_InstallationComposesProcedureAndSafety(t *testing.T) {
	id := identifierAgent(memory.Slots{DoorCategory: domain.CategoryInterior, DoorType: domain.TypeBifold})
	o, store := newTestOrchestrator(t, fullAgentSet(id), nil)

	result, err := o.HandleTurn(context.Background(), "s1", "how do I install a bifold door")
	if err != nil {
		t.Fatalf("turn: %v", err)
	}

	if !strings.Contains(result.Answer, "Do the steps") {
		t.Errorf("answer missing procedure section: %q", result.Answer)
	}
	if !strings.Contains(result.Answer, "Wear gloves") {
		t.Errorf("answer missing safety section: %q", result.Answer)
	}
	if result.Slots.DoorType != domain.TypeBifold {
		t.Errorf("slots = %+v", result.Slots)
	}

	// Both turns committed, user first.
	sess, _ := store.Get(context.Background(), "s1")
	if len(sess.Turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(sess.Turns))
	}
	if sess.Turns[0].Role != memory.RoleUser || sess.Turns[1].Role != memory.RoleAssistant {
		t.Errorf("turn roles = %s, %s", sess.Turns[0].Role, sess.Turns[1].Role)
	}
	if sess.Slots.DoorType != domain.TypeBifold {
		t.Errorf("session slots not committed: %+v", sess.Slots)
	}
}

func TestHandleTurn_IdentificationOnlyTurn(t *testing.T) {
	id := identifierAgent(memory.Slots{DoorCategory: domain.CategoryExterior, DoorType: domain.TypePatio})
	o, _ := newTestOrchestrator(t, fullAgentSet(id), nil)

	result, err := o.HandleTurn(context.Background(), "s1", "I have a patio door")
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if result.Answer != "identified" {
		t.Errorf("answer = %q, want identifier reply", result.Answer)
	}
	if result.Slots.DoorType != domain.TypePatio {
		t.Errorf("slots = %+v", result.Slots)
	}
}

func TestHandleTurn_KnownSlotsSkipIdentifier(t *testing.T) {
	id := identifierAgent(memory.Slots{DoorCategory: domain.CategoryInterior, DoorType: domain.TypeBifold})
	o, store := newTestOrchestrator(t, fullAgentSet(id), nil)
	ctx := context.Background()

	store.UpdateSlots(ctx, "s1", memory.Slots{DoorCategory: domain.CategoryInterior, DoorType: domain.TypeBifold})

	if _, err := o.HandleTurn(ctx, "s1", "what tools do I need"); err != nil {
		t.Fatalf("turn: %v", err)
	}
	if id.calls.Load() != 0 {
		t.Errorf("identifier ran %d times with fully known slots", id.calls.Load())
	}
}

func TestHandleTurn_AgentRetriesOnceThenDegrades(t *testing.T) {
	agents := fullAgentSet(identifierAgent(memory.EmptySlots()))
	flaky := &mockAgent{
		role:  agent.RoleProcedure,
		resp:  agent.Response{Role: agent.RoleProcedure, Answer: "recovered", Confidence: 0.8},
		err:   errors.New("transient"),
		fails: 1,
	}
	agents[agent.RoleProcedure] = flaky
	o, _ := newTestOrchestrator(t, agents, nil)

	result, err := o.HandleTurn(context.Background(), "s1", "how to install a door")
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if flaky.calls.Load() != 2 {
		t.Errorf("flaky agent called %d times, want 2", flaky.calls.Load())
	}
	if !strings.Contains(result.Answer, "recovered") {
		t.Errorf("answer = %q", result.Answer)
	}
	if result.Degraded {
		t.Error("turn marked degraded despite recovery")
	}
}

func TestHandleTurn_PersistentAgentFailureDegrades(t *testing.T) {
	agents := fullAgentSet(identifierAgent(memory.EmptySlots()))
	agents[agent.RoleProcedure] = &mockAgent{
		role:  agent.RoleProcedure,
		err:   errors.New("always down"),
		fails: 100,
	}
	o, store := newTestOrchestrator(t, agents, nil)

	result, err := o.HandleTurn(context.Background(), "s1", "how to install a door")
	if err != nil {
		t.Fatalf("turn failed instead of degrading: %v", err)
	}
	if !result.Degraded {
		t.Error("turn not marked degraded")
	}
	// Safety still answered, so the turn has content plus a notice.
	if !strings.Contains(result.Answer, "Wear gloves") {
		t.Errorf("surviving section missing: %q", result.Answer)
	}
	if !strings.Contains(result.Answer, "unavailable") {
		t.Errorf("degraded notice missing: %q", result.Answer)
	}

	// The failed turn is still committed.
	sess, _ := store.Get(context.Background(), "s1")
	if len(sess.Turns) != 2 {
		t.Errorf("turns = %d, want 2", len(sess.Turns))
	}
}

func TestHandleTurn_IdentifiedTurnStillCarriesDegradedNotice(t *testing.T) {
	id := identifierAgent(memory.Slots{DoorCategory: domain.CategoryInterior, DoorType: domain.TypeBifold})
	agents := fullAgentSet(id)
	for _, role := range []agent.Role{agent.RoleProcedure, agent.RoleSafety} {
		agents[role] = &mockAgent{role: role, err: errors.New("down"), fails: 100}
	}
	o, _ := newTestOrchestrator(t, agents, nil)

	result, err := o.HandleTurn(context.Background(), "s1", "how do I install a bifold door")
	if err != nil {
		t.Fatalf("turn failed instead of degrading: %v", err)
	}
	if !result.Degraded {
		t.Error("turn not marked degraded")
	}
	if !strings.Contains(result.Answer, "identified") {
		t.Errorf("identifier reply missing: %q", result.Answer)
	}
	if !strings.Contains(result.Answer, "unavailable") {
		t.Errorf("identifier-only answer hides the degradation: %q", result.Answer)
	}
}

func TestHandleTurn_AllAgentsFailedIsTurnError(t *testing.T) {
	agents := fullAgentSet(identifierAgent(memory.EmptySlots()))
	for _, role := range []agent.Role{agent.RoleProcedure, agent.RoleSafety} {
		agents[role] = &mockAgent{role: role, err: errors.New("down"), fails: 100}
	}
	o, store := newTestOrchestrator(t, agents, nil)

	_, err := o.HandleTurn(context.Background(), "s1", "how to install a door")
	if !errors.Is(err, domain.ErrOrchestrationFailure) {
		t.Fatalf("err = %v, want orchestration failure", err)
	}

	// The user turn survives; no assistant turn is recorded.
	sess, _ := store.Get(context.Background(), "s1")
	if len(sess.Turns) != 1 || sess.Turns[0].Role != memory.RoleUser {
		t.Errorf("turns = %+v, want the user turn only", sess.Turns)
	}
}

func TestHandleTurn_OutOfDomainGetsNoInfoAnswer(t *testing.T) {
	agents := fullAgentSet(identifierAgent(memory.EmptySlots()))
	// No intent matches and every agent returns nothing useful.
	agents[agent.RoleProcedure] = &mockAgent{role: agent.RoleProcedure, resp: agent.Response{Role: agent.RoleProcedure}}
	o, store := newTestOrchestrator(t, agents, nil)

	result, err := o.HandleTurn(context.Background(), "s1", "what is the capital of France")
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if result.Answer != noInfoAnswer {
		t.Errorf("answer = %q, want the no-information reply", result.Answer)
	}

	sess, _ := store.Get(context.Background(), "s1")
	if len(sess.Turns) != 2 {
		t.Errorf("out-of-domain turn not committed: %d turns", len(sess.Turns))
	}
}

func TestHandleTurn_RejectsInvalidQuery(t *testing.T) {
	o, _ := newTestOrchestrator(t, fullAgentSet(identifierAgent(memory.EmptySlots())), nil)

	_, err := o.HandleTurn(context.Background(), "s1", "DROP TABLE sessions; SELECT * FROM users")
	if !errors.Is(err, domain.ErrQueryInjection) {
		t.Errorf("err = %v, want ErrQueryInjection", err)
	}

	_, err = o.HandleTurn(context.Background(), "s1", "   ")
	if !errors.Is(err, domain.ErrInvalidQuery) {
		t.Errorf("err = %v, want ErrInvalidQuery", err)
	}
}

func TestHandleTurn_PublishesTurnEvent(t *testing.T) {
	pub := &mockPublisher{}
	o, _ := newTestOrchestrator(t, fullAgentSet(identifierAgent(memory.EmptySlots())), pub)

	if _, err := o.HandleTurn(context.Background(), "s1", "how to install a door"); err != nil {
		t.Fatalf("turn: %v", err)
	}
	if len(pub.events) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.events))
	}
	if !strings.Contains(string(pub.events[0]), `"session_id":"s1"`) {
		t.Errorf("event payload = %s", pub.events[0])
	}
}

func TestClearHistory_ResetsSession(t *testing.T) {
	o, store := newTestOrchestrator(t, fullAgentSet(identifierAgent(memory.Slots{DoorCategory: domain.CategoryInterior, DoorType: domain.TypeBifold})), nil)
	ctx := context.Background()

	if _, err := o.HandleTurn(ctx, "s1", "how do I install a bifold door"); err != nil {
		t.Fatalf("turn: %v", err)
	}
	if err := o.ClearHistory(ctx, "s1"); err != nil {
		t.Fatalf("clear: %v", err)
	}

	sess, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(sess.Turns) != 0 || sess.Slots != memory.EmptySlots() {
		t.Errorf("session not reset: %+v", sess)
	}
}

// --- composition ---

func TestCompose_PriorityOrder(t *testing.T) {
	responses := []agent.Response{
		{Role: agent.RoleSafety, Answer: "safety text"},
		{Role: agent.RoleProcedure, Answer: "procedure text"},
		{Role: agent.RoleTool, Answer: "tool text"},
	}
	answer := Compose(responses, false)

	pi := strings.Index(answer, "procedure text")
	ti := strings.Index(answer, "tool text")
	si := strings.Index(answer, "safety text")
	if pi < 0 || ti < 0 || si < 0 {
		t.Fatalf("missing sections: %q", answer)
	}
	if !(pi < ti && ti < si) {
		t.Errorf("section order wrong: procedure=%d tool=%d safety=%d", pi, ti, si)
	}
}

func TestCompose_SingleSectionKeepsHeader(t *testing.T) {
	answer := Compose([]agent.Response{{Role: agent.RoleTroubleshoot, Answer: "check hinges"}}, false)
	if answer != "## Troubleshooting\n\ncheck hinges" {
		t.Errorf("answer = %q, want headed troubleshooting section", answer)
	}
}

func TestCompose_IdentifierLeadsSectionsWithoutItsProse(t *testing.T) {
	responses := []agent.Response{
		{
			Role:        agent.RoleDoorIdentifier,
			Answer:      "I understand you have a bifold door.",
			SlotUpdates: memory.Slots{DoorCategory: domain.CategoryInterior, DoorType: domain.TypeBifold},
		},
		{Role: agent.RoleProcedure, Answer: "steps here"},
	}
	answer := Compose(responses, false)
	if strings.Contains(answer, "I understand") {
		t.Errorf("identifier prose leaked into composed answer: %q", answer)
	}
	if !strings.HasPrefix(answer, "For your bifold (interior):") {
		t.Errorf("identification lead missing: %q", answer)
	}
	if !strings.Contains(answer, "## Installation\n\nsteps here") {
		t.Errorf("procedure section missing: %q", answer)
	}

	// Nothing learned, nothing to lead with.
	answer = Compose([]agent.Response{
		{Role: agent.RoleDoorIdentifier, Answer: "Which door?", SlotUpdates: memory.EmptySlots()},
		{Role: agent.RoleProcedure, Answer: "steps here"},
	}, false)
	if strings.HasPrefix(answer, "For your") {
		t.Errorf("lead present without learned slots: %q", answer)
	}
}

func TestCompose_DegradedNoticeOnEveryAnswerShape(t *testing.T) {
	cases := []struct {
		name      string
		responses []agent.Response
	}{
		{"sections", []agent.Response{{Role: agent.RoleSafety, Answer: "- Wear gloves"}}},
		{"identifier only", []agent.Response{{Role: agent.RoleDoorIdentifier, Answer: "I understand you have a bifold door."}}},
		{"nothing useful", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			answer := Compose(tc.responses, true)
			if !strings.Contains(answer, "unavailable") {
				t.Errorf("degraded notice missing: %q", answer)
			}
			if Compose(tc.responses, false) != strings.TrimSuffix(answer, "\n\n"+degradedNotice) {
				t.Errorf("notice changed more than the suffix: %q", answer)
			}
		})
	}
}
