package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sanchobuendia/tickets/internal/chat"
	"github.com/sanchobuendia/tickets/internal/session"
	"github.com/sanchobuendia/tickets/internal/ticket"
)

// mockChatService implements ChatService for testing.
type mockChatService struct {
	reply    chat.Reply
	err      error
	handled  []chat.Message
	resets   []string
	snapshot session.Snapshot
	users    []string
}

func (m *mockChatService) HandleMessage(_ context.Context, msg chat.Message) (chat.Reply, error) {
	m.handled = append(m.handled, msg)
	return m.reply, m.err
}
func (m *mockChatService) State(userID string) session.Snapshot {
	s := m.snapshot
	s.UserID = userID
	return s
}
func (m *mockChatService) Reset(userID string) { m.resets = append(m.resets, userID) }
func (m *mockChatService) Users() []string     { return m.users }

func newTestServer(svc ChatService, store ticket.Store, key string) *Server {
	if store == nil {
		store = ticket.NewMemoryStore()
	}
	return NewServer(svc, store, Config{Host: "127.0.0.1", Port: 0, Key: key}, nil, nil)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&mockChatService{users: []string{"telegram:1", "slack:U1"}}, nil, "")
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	var body map[string]any
	json.NewDecoder(w.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
	if body["active_users"] != float64(2) {
		t.Errorf("active_users = %v, want 2", body["active_users"])
	}
}

func TestChat(t *testing.T) {
	svc := &mockChatService{reply: chat.Reply{Text: "Tente reiniciar.", TicketIDs: []string{"TKT-AAAA1111", "TKT-BBBB2222"}}}
	srv := newTestServer(svc, nil, "")

	payload := `{"user_id": "u1", "user_name": "Ana", "message": "impressora parou"}`
	req := httptest.NewRequest("POST", "/chat", strings.NewReader(payload))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var body chatResponse
	json.NewDecoder(w.Body).Decode(&body)
	if body.Response != "Tente reiniciar." || !body.NewTicket {
		t.Errorf("body = %+v", body)
	}
	if len(body.Tickets) != 2 || body.Tickets[0] != "TKT-AAAA1111" || body.Tickets[1] != "TKT-BBBB2222" {
		t.Errorf("tickets = %v", body.Tickets)
	}
	if len(svc.handled) != 1 || svc.handled[0].UserName != "Ana" {
		t.Errorf("handled = %+v", svc.handled)
	}
}

func TestChat_Validation(t *testing.T) {
	srv := newTestServer(&mockChatService{}, nil, "")

	for _, payload := range []string{
		`{`,
		`{"user_id": "", "message": "x"}`,
		`{"user_id": "u1", "message": ""}`,
	} {
		req := httptest.NewRequest("POST", "/chat", strings.NewReader(payload))
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("payload %q: status = %d, want 400", payload, w.Code)
		}
	}
}

func TestUserState(t *testing.T) {
	svc := &mockChatService{snapshot: session.Snapshot{State: session.StateDiagnosing, MessageCount: 2}}
	srv := newTestServer(svc, nil, "")

	req := httptest.NewRequest("GET", "/user/u1/state", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var snap session.Snapshot
	json.NewDecoder(w.Body).Decode(&snap)
	if snap.UserID != "u1" || snap.State != session.StateDiagnosing {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestDeleteUser(t *testing.T) {
	svc := &mockChatService{}
	srv := newTestServer(svc, nil, "")

	req := httptest.NewRequest("DELETE", "/user/u1", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(svc.resets) != 1 || svc.resets[0] != "u1" {
		t.Errorf("resets = %v", svc.resets)
	}
}

func TestListTickets(t *testing.T) {
	store := ticket.NewMemoryStore()
	store.Save(ticket.New(ticket.Params{UserName: "Ana", Description: "PC lento"}))
	store.Save(ticket.New(ticket.Params{UserName: "Bia", Description: "resolvido", Status: "closed"}))
	srv := newTestServer(&mockChatService{}, store, "")

	req := httptest.NewRequest("GET", "/api/tickets?status=open", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var tickets []map[string]any
	json.NewDecoder(w.Body).Decode(&tickets)
	if len(tickets) != 1 {
		t.Fatalf("tickets = %d, want 1", len(tickets))
	}

	req = httptest.NewRequest("GET", "/api/tickets?status=bogus", nil)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bogus status: code = %d, want 400", w.Code)
	}
}

func TestGetTicket(t *testing.T) {
	store := ticket.NewMemoryStore()
	tk := ticket.New(ticket.Params{UserName: "Ana", Description: "PC lento"})
	store.Save(tk)
	srv := newTestServer(&mockChatService{}, store, "")

	req := httptest.NewRequest("GET", "/api/tickets/"+tk.ID, nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/tickets/TKT-00000000", nil)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing ticket: status = %d, want 404", w.Code)
	}
}

func TestAuth(t *testing.T) {
	srv := newTestServer(&mockChatService{}, nil, "secret")

	// Health stays open.
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("health with auth enabled: status = %d", w.Code)
	}

	// Chat requires the key.
	req = httptest.NewRequest("POST", "/chat", strings.NewReader(`{"user_id":"u1","message":"oi"}`))
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest("POST", "/chat", strings.NewReader(`{"user_id":"u1","message":"oi"}`))
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest("POST", "/chat", strings.NewReader(`{"user_id":"u1","message":"oi"}`))
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(&mockChatService{}, nil, "secret")
	req := httptest.NewRequest("OPTIONS", "/chat", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS headers")
	}
}

func TestGetLogs_NilQuerier(t *testing.T) {
	srv := newTestServer(&mockChatService{}, nil, "")
	req := httptest.NewRequest("GET", "/api/logs", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("body = %q, want empty array", w.Body.String())
	}
}
