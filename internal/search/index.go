package search

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"unicode"

	_ "modernc.org/sqlite"
)

// Index is a SQLite database holding one FTS5 table per collection.
type Index struct {
	db *sql.DB
}

// NewIndex opens (or creates) the search database.
func NewIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("search index: open: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("search index: wal: %w", err)
	}
	return &Index{db: db}, nil
}

// DB returns the underlying database connection (for tests and shutdown).
func (ix *Index) DB() *sql.DB { return ix.db }

// Collection creates (if needed) and returns the named full-text
// collection. Collection names become table names and must be plain
// identifiers.
func (ix *Index) Collection(name string) (*Collection, error) {
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return nil, fmt.Errorf("search index: invalid collection name %q", name)
		}
	}
	table := "fts_" + name
	_, err := ix.db.Exec(fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING fts5(content, code UNINDEXED, doc_group UNINDEXED)`, table))
	if err != nil {
		return nil, fmt.Errorf("search index: create collection %s: %w", name, err)
	}
	return &Collection{db: ix.db, table: table}, nil
}

// Collection is one searchable document set.
type Collection struct {
	db    *sql.DB
	table string
}

// Document is one entry in a collection. Code and Group are opaque
// metadata carried through to results.
type Document struct {
	Content string
	Code    string
	Group   string
}

// Result is one ranked hit. Relevance is a 0-100 score derived from the
// bm25 rank; it orders hits, it is not a calibrated probability.
type Result struct {
	Document
	Relevance int
}

// Add inserts a document.
func (c *Collection) Add(doc Document) error {
	_, err := c.db.Exec(
		fmt.Sprintf(`INSERT INTO %s (content, code, doc_group) VALUES (?, ?, ?)`, c.table),
		doc.Content, doc.Code, doc.Group)
	if err != nil {
		return fmt.Errorf("search index: add to %s: %w", c.table, err)
	}
	return nil
}

// Count returns the number of documents in the collection.
func (c *Collection) Count() (int, error) {
	var n int
	err := c.db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %s`, c.table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("search index: count %s: %w", c.table, err)
	}
	return n, nil
}

// Query returns up to n ranked matches. An optional group restricts
// results to documents with that group tag. A query with no indexable
// tokens returns no results, not an error.
func (c *Collection) Query(ctx context.Context, query string, n int, group string) ([]Result, error) {
	match := matchExpr(query)
	if match == "" {
		return nil, nil
	}
	if n <= 0 {
		n = 3
	}

	sqlQuery := fmt.Sprintf(
		`SELECT content, code, doc_group, bm25(%s) FROM %s WHERE %s MATCH ?`,
		c.table, c.table, c.table)
	args := []any{match}
	if group != "" {
		sqlQuery += " AND doc_group = ?"
		args = append(args, group)
	}
	sqlQuery += fmt.Sprintf(" ORDER BY bm25(%s) LIMIT %d", c.table, n)

	rows, err := c.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("search index: query %s: %w", c.table, err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var r Result
		var rank float64
		if err := rows.Scan(&r.Content, &r.Code, &r.Group, &rank); err != nil {
			return nil, fmt.Errorf("search index: scan %s: %w", c.table, err)
		}
		r.Relevance = relevance(rank)
		out = append(out, r)
	}
	return out, rows.Err()
}

// matchExpr turns free text into an OR-joined FTS5 match expression.
// Tokens are quoted so user input cannot inject FTS syntax.
func matchExpr(query string) string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tokens = append(tokens, `"`+f+`"`)
	}
	return strings.Join(tokens, " OR ")
}

// relevance maps a bm25 rank (lower is better, typically negative) to a
// bounded 0-100 score.
func relevance(rank float64) int {
	score := 100.0 * math.Abs(rank) / (1.0 + math.Abs(rank))
	if score > 100 {
		score = 100
	}
	return int(math.Round(score))
}
