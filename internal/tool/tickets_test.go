package tool

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sanchobuendia/tickets/internal/ticket"
	"github.com/sanchobuendia/tickets/pkg/protocol"
)

// completerSpy records MarkCompleted calls.
type completerSpy struct {
	userID   string
	ticketID string
	calls    int
}

func (c *completerSpy) MarkCompleted(userID, ticketID string) {
	c.userID = userID
	c.ticketID = ticketID
	c.calls++
}

func decodeResult(t *testing.T, raw string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("result is not JSON: %v\n%s", err, raw)
	}
	return m
}

func TestCreateTicket_SavesAndCompletesSession(t *testing.T) {
	store := ticket.NewMemoryStore()
	spy := &completerSpy{}
	tool := &CreateTicketTool{Store: store, Sessions: spy}

	ctx := WithCurrentUser(context.Background(), "u1")
	raw, err := tool.Execute(ctx, map[string]any{
		"user_name":         "Ana",
		"issue_description": "impressora não imprime",
		"priority":          "high",
		"category_code":     "HW-001",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	result := decodeResult(t, raw)
	if result["success"] != true {
		t.Fatalf("success = %v", result["success"])
	}
	id, _ := result["ticket_id"].(string)
	if !strings.HasPrefix(id, "TKT-") {
		t.Errorf("ticket_id = %q", id)
	}

	tk, err := store.Get(id)
	if err != nil {
		t.Fatalf("stored ticket missing: %v", err)
	}
	if tk.Priority != protocol.PriorityHigh || tk.CategoryCode != "HW-001" {
		t.Errorf("stored ticket = %+v", tk)
	}

	if spy.calls != 1 || spy.userID != "u1" || spy.ticketID != id {
		t.Errorf("completion = %+v, want one call for u1/%s", spy, id)
	}
}

func TestCreateTicket_NoUserInContext(t *testing.T) {
	store := ticket.NewMemoryStore()
	spy := &completerSpy{}
	tool := &CreateTicketTool{Store: store, Sessions: spy}

	_, err := tool.Execute(context.Background(), map[string]any{
		"user_name":         "Ana",
		"issue_description": "PC lento",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if spy.calls != 0 {
		t.Errorf("MarkCompleted called %d times without a context user", spy.calls)
	}
}

func TestCreateTicket_RequiresDescription(t *testing.T) {
	tool := &CreateTicketTool{Store: ticket.NewMemoryStore()}
	_, err := tool.Execute(context.Background(), map[string]any{"user_name": "Ana"})
	if err == nil {
		t.Fatal("expected error for missing issue_description")
	}
}

func TestCreateTicket_MergesContextAttachments(t *testing.T) {
	store := ticket.NewMemoryStore()
	tool := &CreateTicketTool{Store: store}

	ctx := WithAttachments(context.Background(), []string{"photo.jpg"})
	raw, err := tool.Execute(ctx, map[string]any{
		"user_name":         "Ana",
		"issue_description": "tela quebrada",
		"attachments":       []any{"nota-fiscal.pdf"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	id := decodeResult(t, raw)["ticket_id"].(string)
	tk, _ := store.Get(id)
	if len(tk.Attachments) != 2 {
		t.Fatalf("attachments = %v, want both param and context entries", tk.Attachments)
	}
}

func TestCreateTicket_ClosedGetsDefaultResolution(t *testing.T) {
	store := ticket.NewMemoryStore()
	tool := &CreateTicketTool{Store: store}

	raw, err := tool.Execute(context.Background(), map[string]any{
		"user_name":         "Ana",
		"issue_description": "resolvido na conversa",
		"status":            "closed",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	result := decodeResult(t, raw)
	if result["status"] != "closed" {
		t.Errorf("status = %v", result["status"])
	}
	if result["resolution"] != ticket.DefaultResolution {
		t.Errorf("resolution = %v, want default", result["resolution"])
	}
}

func TestCloseTicket_Success(t *testing.T) {
	store := ticket.NewMemoryStore()
	tk := ticket.New(ticket.Params{UserName: "Ana", Description: "PC lento"})
	store.Save(tk)

	spy := &completerSpy{}
	tool := &CloseTicketTool{Store: store, Sessions: spy}

	ctx := WithCurrentUser(context.Background(), "u1")
	raw, err := tool.Execute(ctx, map[string]any{
		"ticket_id":        tk.ID,
		"resolution_notes": "memória substituída",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	result := decodeResult(t, raw)
	if result["success"] != true || result["status"] != "closed" {
		t.Errorf("result = %v", result)
	}
	if result["resolution"] != "memória substituída" {
		t.Errorf("resolution = %v", result["resolution"])
	}
	if spy.calls != 1 || spy.ticketID != tk.ID {
		t.Errorf("completion = %+v", spy)
	}
}

func TestCloseTicket_NotFoundIsReportedNotFatal(t *testing.T) {
	store := ticket.NewMemoryStore()
	spy := &completerSpy{}
	tool := &CloseTicketTool{Store: store, Sessions: spy}

	raw, err := tool.Execute(context.Background(), map[string]any{"ticket_id": "TKT-DEADBEEF"})
	if err != nil {
		t.Fatalf("unknown id must not be an execution error: %v", err)
	}
	result := decodeResult(t, raw)
	if result["success"] != false {
		t.Errorf("success = %v, want false", result["success"])
	}
	if spy.calls != 0 {
		t.Error("session completed for a failed close")
	}
}

func TestGetTicketStatus(t *testing.T) {
	store := ticket.NewMemoryStore()
	tk := ticket.New(ticket.Params{UserName: "Ana", Description: "email fora do ar", Priority: "critical"})
	store.Save(tk)

	tool := &GetTicketStatusTool{Store: store}
	raw, err := tool.Execute(context.Background(), map[string]any{"ticket_id": tk.ID})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	result := decodeResult(t, raw)
	if result["status"] != "open" || result["priority"] != "critical" {
		t.Errorf("result = %v", result)
	}

	raw, err = tool.Execute(context.Background(), map[string]any{"ticket_id": "TKT-00000000"})
	if err != nil {
		t.Fatalf("unknown id must not be an execution error: %v", err)
	}
	if decodeResult(t, raw)["success"] != false {
		t.Error("expected success=false for unknown id")
	}
}

func TestListTickets_Totals(t *testing.T) {
	store := ticket.NewMemoryStore()
	store.Save(ticket.New(ticket.Params{UserName: "Ana", Description: "PC lento"}))
	store.Save(ticket.New(ticket.Params{UserName: "Bia", Description: "sem rede"}))
	store.Save(ticket.New(ticket.Params{UserName: "Ana", Description: "resolvido", Status: "closed"}))

	tool := &ListTicketsTool{Store: store}
	out, err := tool.Execute(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "Total: 3 | Abertos: 2 | Fechados: 1") {
		t.Errorf("totals missing: %q", out)
	}
}

func TestListTickets_StatusFilter(t *testing.T) {
	store := ticket.NewMemoryStore()
	store.Save(ticket.New(ticket.Params{UserName: "Ana", Description: "PC lento"}))
	store.Save(ticket.New(ticket.Params{UserName: "Ana", Description: "resolvido", Status: "closed"}))

	tool := &ListTicketsTool{Store: store}
	out, err := tool.Execute(context.Background(), map[string]any{"status": "closed"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "Total: 1 | Abertos: 0 | Fechados: 1") {
		t.Errorf("totals = %q", out)
	}
	if strings.Contains(out, "PC lento") {
		t.Errorf("open ticket leaked into closed listing: %q", out)
	}

	if _, err := tool.Execute(context.Background(), map[string]any{"status": "bogus"}); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestListTickets_Empty(t *testing.T) {
	tool := &ListTicketsTool{Store: ticket.NewMemoryStore()}
	out, err := tool.Execute(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "Nenhum ticket encontrado.") {
		t.Errorf("output = %q", out)
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	if CurrentUserFromContext(ctx) != "" {
		t.Error("expected empty user on bare context")
	}
	ctx = WithCurrentUser(ctx, "u9")
	if CurrentUserFromContext(ctx) != "u9" {
		t.Error("user round trip failed")
	}
	if AttachmentsFromContext(ctx) != nil {
		t.Error("expected nil attachments on bare context")
	}
	ctx = WithAttachments(ctx, []string{"a", "b"})
	if got := AttachmentsFromContext(ctx); len(got) != 2 {
		t.Errorf("attachments = %v", got)
	}
}

func TestGetInt(t *testing.T) {
	params := map[string]any{"n": float64(7), "zero": float64(0), "s": "x"}
	if getInt(params, "n", 3) != 7 {
		t.Error("float64 not decoded")
	}
	if getInt(params, "zero", 3) != 3 {
		t.Error("non-positive value should fall back")
	}
	if getInt(params, "s", 3) != 3 || getInt(params, "missing", 3) != 3 {
		t.Error("fallback not applied")
	}
}
