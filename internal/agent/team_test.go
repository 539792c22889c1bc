package agent

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/sanchobuendia/tickets/internal/tool"
	"github.com/sanchobuendia/tickets/pkg/protocol"
)

func newTestTeam(orchResponses, specResponses []*protocol.ChatResponse) (*Team, *mockProvider, *mockProvider) {
	orchProv := &mockProvider{responses: orchResponses}
	specProv := &mockProvider{responses: specResponses}

	orchestrator := New(Spec{ID: "orchestrator", Instructions: OrchestratorInstructions}, orchProv, tool.NewRegistry())
	team := NewTeam(orchestrator, slog.Default())

	specialist := New(Spec{ID: "knowledge_base", Instructions: KnowledgeBaseInstructions}, specProv, tool.NewRegistry())
	team.AddSpecialist(specialist)

	return team, orchProv, specProv
}

func TestTeam_RegistersDelegateTool(t *testing.T) {
	team, _, _ := newTestTeam(nil, nil)
	if !team.Orchestrator.Tools.Has("delegate") {
		t.Fatal("delegate tool not registered on orchestrator")
	}
	ids := team.SpecialistIDs()
	if len(ids) != 1 || ids[0] != "knowledge_base" {
		t.Errorf("specialists = %v", ids)
	}
}

func TestTeam_DelegateRunsSpecialist(t *testing.T) {
	team, orchProv, specProv := newTestTeam(
		[]*protocol.ChatResponse{
			{ToolCalls: []protocol.ToolCall{{
				ID:   "c1",
				Name: "delegate",
				Arguments: map[string]any{
					"agent": "knowledge_base",
					"task":  "procure solução para impressora travada",
				},
			}}},
			{Content: "Tente reiniciar o spooler de impressão."},
		},
		[]*protocol.ChatResponse{
			{Content: "Artigo: reinicie o spooler."},
		},
	)

	history := []protocol.ChatMessage{{Role: "user", Content: "minha impressora travou"}}
	out, err := team.Respond(context.Background(), history, PromptInfo{UserName: "Ana"})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if out != "Tente reiniciar o spooler de impressão." {
		t.Errorf("response = %q", out)
	}

	// Specialist received the delegated task.
	if len(specProv.calls) != 1 {
		t.Fatalf("specialist calls = %d, want 1", len(specProv.calls))
	}
	specMsgs := specProv.calls[0].Messages
	if specMsgs[len(specMsgs)-1].Content != "procure solução para impressora travada" {
		t.Errorf("specialist task = %q", specMsgs[len(specMsgs)-1].Content)
	}

	// The delegate result flowed back into the orchestrator's second call.
	orchMsgs := orchProv.calls[1].Messages
	last := orchMsgs[len(orchMsgs)-1]
	if last.Role != "tool" || !strings.Contains(last.Content, "spooler") {
		t.Errorf("delegate result message = %+v", last)
	}
}

func TestTeam_DelegateUnknownAgent(t *testing.T) {
	team, _, _ := newTestTeam(nil, nil)
	d := &DelegateTool{Team: team}

	_, err := d.Execute(context.Background(), map[string]any{
		"agent": "nonexistent",
		"task":  "anything",
	})
	if err == nil {
		t.Fatal("expected error for unknown specialist")
	}
	if !strings.Contains(err.Error(), "knowledge_base") {
		t.Errorf("error should list available specialists: %v", err)
	}
}

func TestTeam_DelegateRequiresParams(t *testing.T) {
	team, _, _ := newTestTeam(nil, nil)
	d := &DelegateTool{Team: team}

	if _, err := d.Execute(context.Background(), map[string]any{"agent": "knowledge_base"}); err == nil {
		t.Error("expected error for missing task")
	}
	if _, err := d.Execute(context.Background(), map[string]any{"task": "x"}); err == nil {
		t.Error("expected error for missing agent")
	}
}

func TestTeam_SystemPromptRebuiltPerTurn(t *testing.T) {
	team, orchProv, _ := newTestTeam(
		[]*protocol.ChatResponse{{Content: "ok"}, {Content: "ok"}},
		nil,
	)

	history := []protocol.ChatMessage{{Role: "user", Content: "novo problema"}}
	if _, err := team.Respond(context.Background(), history, PromptInfo{}); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if _, err := team.Respond(context.Background(), history, PromptInfo{ForceFullWorkflow: true}); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	first := orchProv.calls[0].Messages[0].Content
	second := orchProv.calls[1].Messages[0].Content
	if strings.Contains(first, "# New Session") {
		t.Error("new-session section present without the flag")
	}
	if !strings.Contains(second, "# New Session") {
		t.Error("new-session section missing with the flag set")
	}
}

func TestBuildSystemPrompt_Sections(t *testing.T) {
	reg := tool.NewRegistry()
	reg.Register(&echoTool{})
	a := New(Spec{ID: "support", Role: "analyst", Instructions: SupportInstructions}, &mockProvider{}, reg)

	prompt := a.BuildSystemPrompt(PromptInfo{UserName: "Ana"})
	for _, want := range []string{"# Agent: support", "Role: analyst", "# Current Time", "Ana", "**echo**", "# Rules"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, "# New Session") {
		t.Error("new-session section should be absent by default")
	}
}
