// Package orchestrator coordinates a conversation turn: slot resolution,
// agent selection, concurrent agent execution, response composition, and the
// memory commit.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/DoorwiseAI/doorwise-mvp/engine/agent"
	"github.com/DoorwiseAI/doorwise-mvp/engine/domain"
	"github.com/DoorwiseAI/doorwise-mvp/engine/memory"
	"github.com/DoorwiseAI/doorwise-mvp/engine/retrieval"
	"github.com/DoorwiseAI/doorwise-mvp/pkg/fn"
)

// clarifyInstruction steers the default agent when no intent matched.
const clarifyInstruction = "The user's intent is unclear. Answer as best you can, then ask one short clarifying question about what they want to do with the door."

// Publisher sends turn events to interested subscribers. Publishing is
// best-effort; a failed publish never fails the turn.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Config tunes turn handling.
type Config struct {
	// AgentRetry governs per-agent retries before degrading.
	AgentRetry fn.RetryOpts
	// EventSubject is where completed turns are published. Empty disables
	// publishing.
	EventSubject string
}

// DefaultConfig retries each agent once, quickly.
func DefaultConfig() Config {
	return Config{
		AgentRetry: fn.RetryOpts{
			MaxAttempts: 2,
			InitialWait: 200 * time.Millisecond,
			MaxWait:     time.Second,
			Jitter:      true,
		},
		EventSubject: "doorwise.turns",
	}
}

// Orchestrator is the conversation engine's front door.
type Orchestrator struct {
	agents    map[agent.Role]agent.Agent
	store     memory.Store
	retriever agent.Retriever
	publisher Publisher
	logger    *slog.Logger
	cfg       Config
}

// New wires an orchestrator. publisher may be nil.
func New(agents map[agent.Role]agent.Agent, store memory.Store, retriever agent.Retriever, publisher Publisher, logger *slog.Logger, cfg Config) (*Orchestrator, error) {
	if store == nil {
		return nil, fmt.Errorf("orchestrator: nil memory store")
	}
	for _, role := range agent.Roles {
		if agents[role] == nil {
			return nil, fmt.Errorf("orchestrator: missing agent %s", role)
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		agents:    agents,
		store:     store,
		retriever: retriever,
		publisher: publisher,
		logger:    logger,
		cfg:       cfg,
	}, nil
}

// TurnResult is the composed outcome of one conversation turn.
type TurnResult struct {
	SessionID string           `json:"session_id"`
	Answer    string           `json:"answer"`
	Slots     memory.Slots     `json:"slots"`
	Responses []agent.Response `json:"responses"`
	// Degraded is set when at least one selected agent failed after retry
	// and its section is missing from the answer.
	Degraded bool `json:"degraded"`
}

// TurnEvent is the message published after each committed turn.
type TurnEvent struct {
	SessionID string    `json:"session_id"`
	Query     string    `json:"query"`
	Answer    string    `json:"answer"`
	Roles     []string  `json:"roles"`
	Degraded  bool      `json:"degraded"`
	Timestamp time.Time `json:"timestamp"`
}

// HandleTurn runs one full conversation turn for the session.
func (o *Orchestrator) HandleTurn(ctx context.Context, sessionID, query string) (TurnResult, error) {
	if err := domain.ValidateQuery(domain.Query{Text: query, SessionID: sessionID, AskedAt: time.Now().UTC()}); err != nil {
		return TurnResult{}, err
	}
	query = retrieval.PreprocessQuery(query)
	if query == "" {
		return TurnResult{}, fmt.Errorf("orchestrator: %w: empty query", domain.ErrInvalidQuery)
	}

	sess, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return TurnResult{}, fmt.Errorf("orchestrator: load session: %w", err)
	}

	// The user turn commits as soon as the query is accepted, so even a
	// failed turn leaves the question on record.
	userTurn := memory.Turn{Role: memory.RoleUser, Content: query, Timestamp: time.Now().UTC()}
	if err := o.store.Append(ctx, sessionID, userTurn); err != nil {
		return TurnResult{}, fmt.Errorf("orchestrator: record user turn: %w", err)
	}

	slots := sess.Slots
	responses := make([]agent.Response, 0, len(agent.Roles))

	// Identification runs first so its slot updates steer every other agent
	// in the same turn.
	idResp, identified, err := o.identify(ctx, query, slots, sess.Turns)
	if err != nil {
		o.logger.Warn("identification failed", "session", sessionID, "err", err)
	}
	if identified {
		slots = slots.Merge(idResp.SlotUpdates)
		responses = append(responses, idResp)
	}

	roles := rolesFor(ClassifyIntents(query))
	extra := ""
	if len(roles) == 0 && !onlyIdentification(query, identified) {
		roles = []agent.Role{agent.RoleProcedure}
		extra = clarifyInstruction
	}

	req := agent.Request{Query: query, Slots: slots, History: sess.Turns, ExtraInstruction: extra}
	outcomes := fn.ParMap(roles, 0, func(role agent.Role) fn.Result[agent.Response] {
		return o.runAgent(ctx, role, req)
	})
	degraded := false
	for _, outcome := range outcomes {
		resp, err := outcome.Unwrap()
		if err != nil {
			degraded = true
			continue
		}
		responses = append(responses, resp)
	}
	if len(roles) > 0 && len(responses) == 0 {
		return TurnResult{}, fmt.Errorf("orchestrator: every agent failed: %w", domain.ErrOrchestrationFailure)
	}

	// Commit slot updates learned anywhere this turn.
	for _, resp := range responses {
		slots = slots.Merge(resp.SlotUpdates)
	}
	if slots != sess.Slots {
		if err := o.store.UpdateSlots(ctx, sessionID, slots); err != nil {
			o.logger.Warn("slot update failed", "session", sessionID, "err", err)
		}
	}

	answer := Compose(responses, degraded)

	assistantTurn := memory.Turn{Role: memory.RoleAssistant, Content: answer, Timestamp: time.Now().UTC()}
	if err := o.store.Append(ctx, sessionID, assistantTurn); err != nil {
		return TurnResult{}, fmt.Errorf("orchestrator: record assistant turn: %w", err)
	}

	result := TurnResult{
		SessionID: sessionID,
		Answer:    answer,
		Slots:     slots,
		Responses: responses,
		Degraded:  degraded,
	}
	o.publishTurn(ctx, query, result)
	return result, nil
}

// identify runs the door identifier when the session still lacks door info.
// Returns identified=false when identification was skipped or learned nothing.
func (o *Orchestrator) identify(ctx context.Context, query string, slots memory.Slots, history []memory.Turn) (agent.Response, bool, error) {
	if slots.DoorCategory != domain.CategoryUnknown && slots.DoorType != domain.TypeUnknown {
		return agent.Response{}, false, nil
	}
	resp, err := o.agents[agent.RoleDoorIdentifier].Handle(ctx, agent.Request{
		Query:   query,
		Slots:   slots,
		History: history,
	})
	if err != nil {
		return agent.Response{}, false, err
	}
	learned := resp.SlotUpdates.DoorCategory != domain.CategoryUnknown ||
		resp.SlotUpdates.DoorType != domain.TypeUnknown
	return resp, learned, nil
}

// onlyIdentification reports whether the turn is a pure door statement like
// "I have a bifold door", where the identifier's reply is the whole answer.
func onlyIdentification(query string, identified bool) bool {
	return identified && len(ClassifyIntents(query)) == 0
}

// runAgent executes one agent with retry. A final failure degrades the turn
// rather than failing it, unless every selected agent fails.
func (o *Orchestrator) runAgent(ctx context.Context, role agent.Role, req agent.Request) fn.Result[agent.Response] {
	result := fn.Retry(ctx, o.cfg.AgentRetry, func(ctx context.Context) fn.Result[agent.Response] {
		return fn.FromPair(o.agents[role].Handle(ctx, req))
	})
	if _, err := result.Unwrap(); err != nil {
		o.logger.Error("agent failed after retry", "role", role, "err", err)
		return fn.Err[agent.Response](fmt.Errorf("orchestrator: agent %s: %w: %w", role, domain.ErrAgentUnavailable, err))
	}
	return result
}

func (o *Orchestrator) publishTurn(ctx context.Context, query string, result TurnResult) {
	if o.publisher == nil || o.cfg.EventSubject == "" {
		return
	}
	event := TurnEvent{
		SessionID: result.SessionID,
		Query:     query,
		Answer:    result.Answer,
		Roles: fn.Map(result.Responses, func(r agent.Response) string {
			return string(r.Role)
		}),
		Degraded:  result.Degraded,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		o.logger.Warn("encode turn event", "err", err)
		return
	}
	if err := o.publisher.Publish(ctx, o.cfg.EventSubject, data); err != nil {
		o.logger.Warn("publish turn event", "subject", o.cfg.EventSubject, "err", err)
	}
}

// Search exposes raw retrieval for the search API: no agents, no memory.
func (o *Orchestrator) Search(ctx context.Context, query string, topK int, filter domain.Filter) ([]domain.FusedResult, error) {
	if err := domain.ValidateQuery(domain.Query{Text: query}); err != nil {
		return nil, err
	}
	query = retrieval.PreprocessQuery(query)
	filter = retrieval.InferFilter(query, filter)
	return o.retriever.Retrieve(ctx, query, topK, filter)
}

// GetHistory returns the session's stored turns and slots.
func (o *Orchestrator) GetHistory(ctx context.Context, sessionID string) (memory.Session, error) {
	return o.store.Get(ctx, sessionID)
}

// ClearHistory wipes the session's turns and slot state.
func (o *Orchestrator) ClearHistory(ctx context.Context, sessionID string) error {
	return o.store.Clear(ctx, sessionID)
}
