package agent

import (
	"errors"
	"log/slog"

	"github.com/sanchobuendia/tickets/internal/provider"
	"github.com/sanchobuendia/tickets/internal/tool"
)

const defaultMaxIterations = 20

// ErrMalformedExchange reports a model exchange that went off the
// rails: an empty assistant turn, or a tool-calling loop that never
// converged. Callers may retry the turn on a fresh context.
var ErrMalformedExchange = errors.New("malformed model exchange")

// Spec identifies an agent and carries its standing instructions.
type Spec struct {
	ID           string
	Role         string
	Instructions string
}

// Agent is a single AI agent with its own spec, provider, and tools.
type Agent struct {
	Spec          Spec
	Provider      provider.Provider
	Tools         *tool.Registry
	Logger        *slog.Logger
	MaxIterations int
}

// New creates a new Agent with sensible defaults.
func New(spec Spec, prov provider.Provider, tools *tool.Registry) *Agent {
	return &Agent{
		Spec:          spec,
		Provider:      prov,
		Tools:         tools,
		Logger:        slog.Default(),
		MaxIterations: defaultMaxIterations,
	}
}
