package agent

import (
	"fmt"
	"log/slog"

	"github.com/DoorwiseAI/doorwise-mvp/engine/domain"
)

// Deps are the collaborators shared by every agent.
type Deps struct {
	Retriever Retriever
	LLM       LLMClient
	Logger    *slog.Logger
}

// Factory builds agents on demand from their role configuration.
type Factory struct {
	deps Deps
}

// NewFactory validates the dependency set once so Create never has to.
func NewFactory(deps Deps) (*Factory, error) {
	if deps.LLM == nil {
		return nil, fmt.Errorf("agent: factory: nil llm client")
	}
	if deps.Retriever == nil {
		return nil, fmt.Errorf("agent: factory: nil retriever")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Factory{deps: deps}, nil
}

// Create returns the agent for the given role.
func (f *Factory) Create(role Role) (Agent, error) {
	cfg, ok := roleConfigs[role]
	if !ok {
		return nil, fmt.Errorf("agent: %q: %w", role, domain.ErrUnknownRole)
	}
	return &roleAgent{
		cfg:       cfg,
		retriever: f.deps.Retriever,
		llm:       f.deps.LLM,
		logger:    f.deps.Logger.With("agent", string(role)),
	}, nil
}

// CreateAll instantiates every known role.
func (f *Factory) CreateAll() map[Role]Agent {
	agents := make(map[Role]Agent, len(Roles))
	for _, role := range Roles {
		a, err := f.Create(role)
		if err != nil {
			// Roles only come from the package's own list.
			panic(err)
		}
		agents[role] = a
	}
	return agents
}
