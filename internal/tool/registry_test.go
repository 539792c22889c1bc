package tool

import (
	"context"
	"testing"
)

// stubTool is a minimal Tool for testing.
type stubTool struct {
	name   string
	result string
}

func (s *stubTool) Name() string              { return s.name }
func (s *stubTool) Description() string       { return "stub tool" }
func (s *stubTool) Parameters() map[string]any { return map[string]any{"type": "object"} }
func (s *stubTool) Execute(_ context.Context, params map[string]any) (string, error) {
	return s.result, nil
}

func TestRegistry_RegisterAndExecute(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubTool{name: "echo", result: "hello"})

	if !reg.Has("echo") {
		t.Fatal("expected registry to have 'echo'")
	}
	if reg.Has("missing") {
		t.Fatal("expected registry to not have 'missing'")
	}
	if reg.Len() != 1 {
		t.Fatalf("expected len 1, got %d", reg.Len())
	}

	result, err := reg.Execute(context.Background(), "echo", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "hello" {
		t.Errorf("expected 'hello', got %q", result)
	}
}

func TestRegistry_ExecuteUnknown(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Execute(context.Background(), "nope", nil)
	if err == nil {
		t.Fatal("expected error for unknown tool")
	}
}

func TestRegistry_DefinitionsSorted(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubTool{name: "zeta"})
	reg.Register(&stubTool{name: "alpha"})
	reg.Register(&stubTool{name: "mid"})

	defs := reg.Definitions()
	if len(defs) != 3 {
		t.Fatalf("expected 3 definitions, got %d", len(defs))
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, d := range defs {
		if d.Type != "function" {
			t.Errorf("expected type 'function', got %q", d.Type)
		}
		if d.Function.Name != want[i] {
			t.Errorf("defs[%d] = %q, want %q", i, d.Function.Name, want[i])
		}
	}
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubTool{name: "echo", result: "old"})
	reg.Register(&stubTool{name: "echo", result: "new"})

	if reg.Len() != 1 {
		t.Fatalf("expected len 1, got %d", reg.Len())
	}
	result, _ := reg.Execute(context.Background(), "echo", nil)
	if result != "new" {
		t.Errorf("expected replacement to win, got %q", result)
	}
}
