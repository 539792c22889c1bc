package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/sanchobuendia/tickets/pkg/protocol"
)

// Team is an orchestrator agent plus the specialists it can delegate
// to. The orchestrator is the only agent that talks to the user.
type Team struct {
	Orchestrator *Agent
	Logger       *slog.Logger

	mu          sync.RWMutex
	specialists map[string]*Agent
}

// NewTeam wraps an orchestrator and registers the delegate tool on it.
func NewTeam(orchestrator *Agent, logger *slog.Logger) *Team {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Team{
		Orchestrator: orchestrator,
		Logger:       logger,
		specialists:  make(map[string]*Agent),
	}
	orchestrator.Tools.Register(&DelegateTool{Team: t})
	return t
}

// AddSpecialist makes an agent reachable through the delegate tool.
func (t *Team) AddSpecialist(a *Agent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.specialists[a.Spec.ID] = a
}

// Specialist returns a registered specialist by id.
func (t *Team) Specialist(id string) (*Agent, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	a, ok := t.specialists[id]
	return a, ok
}

// SpecialistIDs returns the registered specialist ids, sorted.
func (t *Team) SpecialistIDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0, len(t.specialists))
	for id := range t.specialists {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Respond runs one orchestrator turn over the given history. The
// history carries user and assistant turns only; the system prompt is
// rebuilt here every turn so PromptInfo changes take effect.
func (t *Team) Respond(ctx context.Context, history []protocol.ChatMessage, info PromptInfo) (string, error) {
	messages := make([]protocol.ChatMessage, 0, len(history)+1)
	messages = append(messages, protocol.ChatMessage{
		Role:    "system",
		Content: t.Orchestrator.BuildSystemPrompt(info),
	})
	messages = append(messages, history...)
	return t.Orchestrator.RunWithHistory(ctx, messages)
}

// DelegateTool hands a task to a named specialist and returns its
// answer to the orchestrator.
type DelegateTool struct {
	Team *Team
}

func (d *DelegateTool) Name() string { return "delegate" }
func (d *DelegateTool) Description() string {
	return "Delegate a task to a specialist agent and get its answer back"
}
func (d *DelegateTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"agent": map[string]any{"type": "string", "description": "Specialist agent ID to delegate to"},
			"task":  map[string]any{"type": "string", "description": "Self-contained task description, including all context the specialist needs"},
		},
		"required": []string{"agent", "task"},
	}
}

func (d *DelegateTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	agentID, _ := params["agent"].(string)
	task, _ := params["task"].(string)
	if agentID == "" || task == "" {
		return "", fmt.Errorf("delegate: agent and task are required")
	}

	specialist, ok := d.Team.Specialist(agentID)
	if !ok {
		return "", fmt.Errorf("delegate: unknown agent %q (available: %s)",
			agentID, strings.Join(d.Team.SpecialistIDs(), ", "))
	}

	d.Team.Logger.Info("delegating task",
		"agent", agentID,
		"task_len", len(task),
	)

	result, err := specialist.Run(ctx, task)
	if err != nil {
		return "", fmt.Errorf("delegate: %s: %w", agentID, err)
	}
	return result, nil
}
