package ticket

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sanchobuendia/tickets/pkg/protocol"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database and runs migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ticket store: open: %w", err)
	}

	// WAL mode for better concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("ticket store: wal: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS tickets (
			id               TEXT PRIMARY KEY,
			user_name        TEXT NOT NULL,
			description      TEXT NOT NULL,
			priority         TEXT NOT NULL DEFAULT 'medium',
			status           TEXT NOT NULL DEFAULT 'open',
			category_code    TEXT NOT NULL DEFAULT '',
			group_code       TEXT NOT NULL DEFAULT '',
			attachments      TEXT NOT NULL DEFAULT '[]',
			resolution_notes TEXT NOT NULL DEFAULT '',
			created_at       TEXT NOT NULL,
			closed_at        TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(status);
		CREATE INDEX IF NOT EXISTS idx_tickets_user ON tickets(user_name);
	`)
	if err != nil {
		return fmt.Errorf("ticket store: migrate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Save(t *protocol.Ticket) error {
	attachments, _ := json.Marshal(t.Attachments)
	var closedAt *string
	if t.ClosedAt != nil {
		v := t.ClosedAt.Format(time.RFC3339)
		closedAt = &v
	}

	_, err := s.db.Exec(`
		INSERT INTO tickets (id, user_name, description, priority, status, category_code, group_code, attachments, resolution_notes, created_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_name=excluded.user_name, description=excluded.description, priority=excluded.priority,
			status=excluded.status, category_code=excluded.category_code, group_code=excluded.group_code,
			attachments=excluded.attachments, resolution_notes=excluded.resolution_notes, closed_at=excluded.closed_at
	`, t.ID, t.UserName, t.Description, string(t.Priority), string(t.Status), t.CategoryCode, t.GroupCode,
		string(attachments), t.ResolutionNotes, t.CreatedAt.Format(time.RFC3339), closedAt)
	if err != nil {
		return fmt.Errorf("ticket store: save: %w", err)
	}
	return nil
}

const ticketColumns = "id, user_name, description, priority, status, category_code, group_code, attachments, resolution_notes, created_at, closed_at"

func (s *SQLiteStore) Get(id string) (*protocol.Ticket, error) {
	row := s.db.QueryRow(`SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id)

	t, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("ticket %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("ticket store: get: %w", err)
	}
	return t, nil
}

func (s *SQLiteStore) Close(id, resolution string) (*protocol.Ticket, error) {
	if strings.TrimSpace(resolution) == "" {
		resolution = DefaultResolution
	}
	now := time.Now().Format(time.RFC3339)
	result, err := s.db.Exec(`UPDATE tickets SET status = 'closed', resolution_notes = ?, closed_at = ? WHERE id = ?`,
		resolution, now, id)
	if err != nil {
		return nil, fmt.Errorf("ticket store: close: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return nil, fmt.Errorf("ticket %q: %w", id, ErrNotFound)
	}
	return s.Get(id)
}

func (s *SQLiteStore) List(filter Filter) ([]*protocol.Ticket, error) {
	query := "SELECT " + ticketColumns + " FROM tickets WHERE 1=1"
	query, args := applyFilter(query, filter)
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("ticket store: list: %w", err)
	}
	defer rows.Close()

	var tickets []*protocol.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("ticket store: list scan: %w", err)
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func (s *SQLiteStore) Count(filter Filter) (int, error) {
	query := "SELECT COUNT(*) FROM tickets WHERE 1=1"
	query, args := applyFilter(query, filter)

	var count int
	if err := s.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ticket store: count: %w", err)
	}
	return count, nil
}

// DB returns the underlying database connection (for tests and shutdown).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// --- helpers ---

func applyFilter(query string, f Filter) (string, []any) {
	var args []any
	if f.Status != nil {
		query += " AND status = ?"
		args = append(args, string(*f.Status))
	}
	if f.UserName != "" {
		query += " AND user_name = ?"
		args = append(args, f.UserName)
	}
	if f.Query != "" {
		query += " AND description LIKE ?"
		args = append(args, fmt.Sprintf("%%%s%%", f.Query))
	}
	return query, args
}

type scannable interface {
	Scan(dest ...any) error
}

func scanTicket(row scannable) (*protocol.Ticket, error) {
	var t protocol.Ticket
	var priority, status, attachmentsJSON, createdAtStr string
	var closedAtStr *string

	err := row.Scan(&t.ID, &t.UserName, &t.Description, &priority, &status, &t.CategoryCode,
		&t.GroupCode, &attachmentsJSON, &t.ResolutionNotes, &createdAtStr, &closedAtStr)
	if err != nil {
		return nil, err
	}

	t.Priority = protocol.Priority(priority)
	t.Status = protocol.TicketStatus(status)
	json.Unmarshal([]byte(attachmentsJSON), &t.Attachments)
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAtStr)
	if closedAtStr != nil {
		ct, _ := time.Parse(time.RFC3339, *closedAtStr)
		t.ClosedAt = &ct
	}
	return &t, nil
}
