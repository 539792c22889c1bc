package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sanchobuendia/tickets/internal/ticket"
	"github.com/sanchobuendia/tickets/pkg/protocol"
)

// SessionCompleter is notified when a tool resolves the problem the
// current session is about. The session coordinator implements it.
type SessionCompleter interface {
	MarkCompleted(userID, ticketID string)
}

// markCompleted tells the coordinator the current user's problem is
// resolved. Tools call it after a ticket is created or closed; without
// a user in the context it is a no-op.
func markCompleted(ctx context.Context, sessions SessionCompleter, ticketID string) {
	if sessions == nil {
		return
	}
	if userID := CurrentUserFromContext(ctx); userID != "" {
		sessions.MarkCompleted(userID, ticketID)
	}
}

// toolJSON renders a tool result map as JSON for the model.
func toolJSON(v map[string]any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"success": false, "error": %q}`, err.Error())
	}
	return string(data)
}

// --- CreateTicketTool ---

// CreateTicketTool registers a support ticket and closes out the
// current session.
type CreateTicketTool struct {
	Store    ticket.Store
	Sessions SessionCompleter
	Logger   *slog.Logger
}

func (t *CreateTicketTool) Name() string { return "create_ticket" }
func (t *CreateTicketTool) Description() string {
	return "Create a support ticket for the user's problem. Call this once the problem and its category are known."
}
func (t *CreateTicketTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"user_name":         map[string]any{"type": "string", "description": "Name of the user reporting the problem"},
			"issue_description": map[string]any{"type": "string", "description": "Full description of the problem"},
			"priority":          map[string]any{"type": "string", "enum": []string{"low", "medium", "high", "critical"}, "description": "Ticket priority (default medium)"},
			"status":            map[string]any{"type": "string", "enum": []string{"open", "closed"}, "description": "Initial status. Use closed when the problem was already resolved during the conversation."},
			"resolution":        map[string]any{"type": "string", "description": "Resolution notes, when the ticket is created already closed"},
			"category_code":     map[string]any{"type": "string", "description": "Category code from search_category_code"},
			"group_code":        map[string]any{"type": "string", "description": "Solution group the category belongs to"},
			"attachments":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Attachment references supplied by the user"},
		},
		"required": []string{"user_name", "issue_description"},
	}
}

func (t *CreateTicketTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	description := getString(params, "issue_description")
	if description == "" {
		return "", fmt.Errorf("create_ticket: issue_description is required")
	}

	// Attachments received out of band (connector uploads) are merged
	// with whatever the model passed.
	attachments := getStringSlice(params, "attachments")
	attachments = append(attachments, AttachmentsFromContext(ctx)...)

	tk := ticket.New(ticket.Params{
		UserName:     getString(params, "user_name"),
		Description:  description,
		Priority:     getString(params, "priority"),
		Status:       getString(params, "status"),
		Resolution:   getString(params, "resolution"),
		CategoryCode: getString(params, "category_code"),
		GroupCode:    getString(params, "group_code"),
		Attachments:  attachments,
	})
	if err := t.Store.Save(tk); err != nil {
		return "", fmt.Errorf("create_ticket: %w", err)
	}

	markCompleted(ctx, t.Sessions, tk.ID)

	if t.Logger != nil {
		t.Logger.Info("ticket created",
			"ticket_id", tk.ID,
			"user", tk.UserName,
			"status", tk.Status,
			"priority", tk.Priority,
			"category", tk.CategoryCode,
		)
	}

	return toolJSON(map[string]any{
		"success":       true,
		"ticket_id":     tk.ID,
		"status":        string(tk.Status),
		"priority":      string(tk.Priority),
		"category_code": tk.CategoryCode,
		"group_code":    tk.GroupCode,
		"resolution":    tk.ResolutionNotes,
		"summary":       tk.Summary(),
		"message":       fmt.Sprintf("Ticket %s criado com sucesso", tk.ID),
	}), nil
}

// --- CloseTicketTool ---

// CloseTicketTool closes an existing ticket with resolution notes. An
// unknown ticket id is reported back to the model, not surfaced as an
// execution error.
type CloseTicketTool struct {
	Store    ticket.Store
	Sessions SessionCompleter
}

func (t *CloseTicketTool) Name() string { return "close_ticket" }
func (t *CloseTicketTool) Description() string {
	return "Close an open ticket, recording how the problem was resolved"
}
func (t *CloseTicketTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"ticket_id":        map[string]any{"type": "string", "description": "Ticket ID to close (format TKT-XXXXXXXX)"},
			"resolution_notes": map[string]any{"type": "string", "description": "How the problem was resolved"},
		},
		"required": []string{"ticket_id"},
	}
}

func (t *CloseTicketTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	ticketID := getString(params, "ticket_id")
	if ticketID == "" {
		return "", fmt.Errorf("close_ticket: ticket_id is required")
	}

	tk, err := t.Store.Close(ticketID, getString(params, "resolution_notes"))
	if errors.Is(err, ticket.ErrNotFound) {
		return toolJSON(map[string]any{
			"success": false,
			"error":   fmt.Sprintf("ticket %s not found", ticketID),
		}), nil
	}
	if err != nil {
		return "", fmt.Errorf("close_ticket: %w", err)
	}

	markCompleted(ctx, t.Sessions, tk.ID)

	return toolJSON(map[string]any{
		"success":    true,
		"ticket_id":  tk.ID,
		"status":     string(tk.Status),
		"resolution": tk.ResolutionNotes,
		"message":    fmt.Sprintf("Ticket %s fechado com sucesso", tk.ID),
	}), nil
}

// --- GetTicketStatusTool ---

// GetTicketStatusTool looks a ticket up by id.
type GetTicketStatusTool struct {
	Store ticket.Store
}

func (t *GetTicketStatusTool) Name() string { return "get_ticket_status" }
func (t *GetTicketStatusTool) Description() string {
	return "Look up the current status and details of a ticket by its ID"
}
func (t *GetTicketStatusTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"ticket_id": map[string]any{"type": "string", "description": "Ticket ID (format TKT-XXXXXXXX)"},
		},
		"required": []string{"ticket_id"},
	}
}

func (t *GetTicketStatusTool) Execute(_ context.Context, params map[string]any) (string, error) {
	ticketID := getString(params, "ticket_id")
	if ticketID == "" {
		return "", fmt.Errorf("get_ticket_status: ticket_id is required")
	}

	tk, err := t.Store.Get(ticketID)
	if errors.Is(err, ticket.ErrNotFound) {
		return toolJSON(map[string]any{
			"success": false,
			"error":   fmt.Sprintf("ticket %s not found", ticketID),
		}), nil
	}
	if err != nil {
		return "", fmt.Errorf("get_ticket_status: %w", err)
	}

	result := map[string]any{
		"success":       true,
		"ticket_id":     tk.ID,
		"user_name":     tk.UserName,
		"status":        string(tk.Status),
		"priority":      string(tk.Priority),
		"description":   tk.Description,
		"category_code": tk.CategoryCode,
		"resolution":    tk.ResolutionNotes,
		"created_at":    tk.CreatedAt.Format("2006-01-02 15:04"),
	}
	if tk.ClosedAt != nil {
		result["closed_at"] = tk.ClosedAt.Format("2006-01-02 15:04")
	}
	return toolJSON(result), nil
}

// --- ListTicketsTool ---

// ListTicketsTool summarizes the tickets on record, optionally
// filtered.
type ListTicketsTool struct {
	Store ticket.Store
}

func (t *ListTicketsTool) Name() string { return "list_all_tickets" }
func (t *ListTicketsTool) Description() string {
	return "List tickets on record with open/closed totals. Supports filtering by status, user and free text."
}
func (t *ListTicketsTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"status":    map[string]any{"type": "string", "enum": []string{"open", "closed"}, "description": "Filter by ticket status"},
			"user_name": map[string]any{"type": "string", "description": "Filter by the reporting user's name"},
			"query":     map[string]any{"type": "string", "description": "Text search on ticket descriptions"},
			"limit":     map[string]any{"type": "integer", "description": "Max tickets to return (default 20)"},
		},
	}
}

func (t *ListTicketsTool) Execute(_ context.Context, params map[string]any) (string, error) {
	filter := ticket.Filter{
		UserName: getString(params, "user_name"),
		Query:    getString(params, "query"),
		Limit:    getInt(params, "limit", 20),
	}
	if status := getString(params, "status"); status != "" {
		s := protocol.TicketStatus(status)
		if !protocol.ValidStatus(s) {
			return "", fmt.Errorf("list_all_tickets: unknown status %q", status)
		}
		filter.Status = &s
	}

	countFilter := filter
	countFilter.Limit = 0

	total, err := t.Store.Count(countFilter)
	if err != nil {
		return "", fmt.Errorf("list_all_tickets: count: %w", err)
	}
	open := total
	closed := 0
	if filter.Status == nil {
		openStatus := protocol.TicketOpen
		openFilter := countFilter
		openFilter.Status = &openStatus
		open, err = t.Store.Count(openFilter)
		if err != nil {
			return "", fmt.Errorf("list_all_tickets: count open: %w", err)
		}
		closed = total - open
	} else if *filter.Status == protocol.TicketClosed {
		open, closed = 0, total
	}

	tickets, err := t.Store.List(filter)
	if err != nil {
		return "", fmt.Errorf("list_all_tickets: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Total: %d | Abertos: %d | Fechados: %d", total, open, closed)
	if total > len(tickets) {
		fmt.Fprintf(&b, " (mostrando %d)", len(tickets))
	}
	b.WriteString("\n\n")
	if len(tickets) == 0 {
		b.WriteString("Nenhum ticket encontrado.")
		return b.String(), nil
	}
	for _, tk := range tickets {
		fmt.Fprintf(&b, "- %s\n  user: %s | created: %s\n",
			tk.Summary(), tk.UserName, tk.CreatedAt.Format("2006-01-02 15:04"))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
