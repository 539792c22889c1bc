package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sanchobuendia/tickets/internal/chat"
	"github.com/sanchobuendia/tickets/internal/logbuf"
	"github.com/sanchobuendia/tickets/internal/session"
	"github.com/sanchobuendia/tickets/internal/ticket"
	"github.com/sanchobuendia/tickets/pkg/protocol"
)

// ChatService is the interface the API server needs from the chat
// router.
type ChatService interface {
	HandleMessage(ctx context.Context, msg chat.Message) (chat.Reply, error)
	State(userID string) session.Snapshot
	Reset(userID string)
	Users() []string
}

// LogQuerier abstracts log entry querying so tests don't need a real
// ring buffer.
type LogQuerier interface {
	Query(f logbuf.Filter) []logbuf.Entry
}

// Config holds API server configuration.
type Config struct {
	Host string
	Port int
	Key  string // API key for Bearer auth
}

// Server is the support service's REST API server.
type Server struct {
	svc     ChatService
	tickets ticket.Store
	cfg     Config
	logger  *slog.Logger
	logs    LogQuerier
	srv     *http.Server
}

// NewServer creates a new API server. logs may be nil.
func NewServer(svc ChatService, tickets ticket.Store, cfg Config, logger *slog.Logger, logs LogQuerier) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		svc:     svc,
		tickets: tickets,
		cfg:     cfg,
		logger:  logger,
		logs:    logs,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /chat", s.requireAuth(s.handleChat))
	mux.HandleFunc("GET /user/{id}/state", s.requireAuth(s.handleUserState))
	mux.HandleFunc("DELETE /user/{id}", s.requireAuth(s.handleDeleteUser))
	mux.HandleFunc("GET /api/tickets", s.requireAuth(s.handleListTickets))
	mux.HandleFunc("GET /api/tickets/{id}", s.requireAuth(s.handleGetTicket))
	mux.HandleFunc("GET /api/logs", s.requireAuth(s.handleGetLogs))

	s.srv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.corsMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start begins listening. Blocks until context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutCtx)
	}()

	s.logger.Info("api server starting", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// --- Middleware ---

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Key == "" {
			next(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.cfg.Key {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next(w, r)
	}
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"active_users": len(s.svc.Users()),
	})
}

type chatRequest struct {
	UserID      string   `json:"user_id"`
	UserName    string   `json:"user_name"`
	Message     string   `json:"message"`
	Attachments []string `json:"attachments,omitempty"`
}

type chatResponse struct {
	Response  string   `json:"response"`
	Tickets   []string `json:"tickets,omitempty"`
	NewTicket bool     `json:"new_ticket"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.UserID == "" || req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id and message are required"})
		return
	}

	reply, err := s.svc.HandleMessage(r.Context(), chat.Message{
		UserID:      req.UserID,
		UserName:    req.UserName,
		Text:        req.Message,
		Attachments: req.Attachments,
	})
	if err != nil {
		s.logger.Error("chat turn failed", "user", req.UserID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{
		Response:  reply.Text,
		Tickets:   reply.TicketIDs,
		NewTicket: reply.NewTicket(),
	})
}

func (s *Server) handleUserState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.State(r.PathValue("id")))
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.svc.Reset(id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "user_id": id})
}

func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	filter := ticket.Filter{}
	if status := r.URL.Query().Get("status"); status != "" {
		ts := protocol.TicketStatus(status)
		if !protocol.ValidStatus(ts) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown status"})
			return
		}
		filter.Status = &ts
	}
	if user := r.URL.Query().Get("user"); user != "" {
		filter.UserName = user
	}
	if q := r.URL.Query().Get("q"); q != "" {
		filter.Query = q
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = n
		}
	}

	tickets, err := s.tickets.List(filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if tickets == nil {
		tickets = []*protocol.Ticket{}
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (s *Server) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	t, err := s.tickets.Get(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "ticket not found"})
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		writeJSON(w, http.StatusOK, []logbuf.Entry{})
		return
	}

	f := logbuf.Filter{Limit: 200, MinLevel: slog.LevelDebug}
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			f.Limit = n
		}
	}
	if lvl := r.URL.Query().Get("level"); lvl != "" {
		switch strings.ToLower(lvl) {
		case "info":
			f.MinLevel = slog.LevelInfo
		case "warn":
			f.MinLevel = slog.LevelWarn
		case "error":
			f.MinLevel = slog.LevelError
		}
	}
	if since := r.URL.Query().Get("since"); since != "" {
		if ms, err := strconv.ParseInt(since, 10, 64); err == nil {
			f.Since = time.UnixMilli(ms)
		}
	}

	entries := s.logs.Query(f)
	if entries == nil {
		entries = []logbuf.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
