package search

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// NoResults is the text returned when a search finds nothing or the
// backing index fails. Search is advisory: its failure is never fatal
// to the turn that asked.
const NoResults = "Nenhum resultado encontrado."

// Searcher answers free-text knowledge lookups with a formatted,
// relevance-ranked text block.
type Searcher interface {
	Search(ctx context.Context, query string, numResults int) (string, error)
}

// CategorySearcher classifies a problem description into category
// codes, optionally restricted to one solution group.
type CategorySearcher interface {
	SearchCategory(ctx context.Context, problem string, numResults int, filterGroup string) (string, error)
}

// KnowledgeBase is the FTS-backed help-article collection.
type KnowledgeBase struct {
	col    *Collection
	logger *slog.Logger
}

// NewKnowledgeBase opens the "knowledge" collection in the index.
func NewKnowledgeBase(ix *Index, logger *slog.Logger) (*KnowledgeBase, error) {
	if logger == nil {
		logger = slog.Default()
	}
	col, err := ix.Collection("knowledge")
	if err != nil {
		return nil, err
	}
	return &KnowledgeBase{col: col, logger: logger}, nil
}

// LoadCSV ingests a semicolon-separated dataset. Every column is kept:
// each row becomes one document of "Header: value" lines. Returns the
// number of documents loaded.
func (kb *KnowledgeBase) LoadCSV(path string) (int, error) {
	rows, header, err := readCSV(path)
	if err != nil {
		return 0, fmt.Errorf("knowledge base: %w", err)
	}

	n := 0
	for _, row := range rows {
		var b strings.Builder
		for i, v := range row {
			if i >= len(header) || strings.TrimSpace(v) == "" {
				continue
			}
			fmt.Fprintf(&b, "%s: %s\n", header[i], strings.TrimSpace(v))
		}
		if b.Len() == 0 {
			continue
		}
		if err := kb.col.Add(Document{Content: strings.TrimRight(b.String(), "\n")}); err != nil {
			return n, err
		}
		n++
	}
	kb.logger.Info("knowledge base loaded", "path", path, "documents", n)
	return n, nil
}

// Search returns a ranked text block of matching articles. Index
// failures degrade to NoResults.
func (kb *KnowledgeBase) Search(ctx context.Context, query string, numResults int) (string, error) {
	results, err := kb.col.Query(ctx, query, numResults, "")
	if err != nil {
		kb.logger.Warn("knowledge search failed", "query", query, "error", err)
		return NoResults, nil
	}
	if len(results) == 0 {
		return NoResults, nil
	}

	var b strings.Builder
	b.WriteString("Resultados da base de conhecimento:\n\n")
	for i, r := range results {
		fmt.Fprintf(&b, "--- Resultado %d (relevância: %d%%) ---\n%s\n\n", i+1, r.Relevance, r.Content)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// readCSV parses a semicolon-separated file, tolerating a UTF-8 BOM and
// ragged rows. Returns data rows and the header.
func readCSV(path string) ([][]string, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	text := strings.TrimPrefix(string(data), "\ufeff")

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = ';'
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("parse %s: empty file", path)
	}
	header := records[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	return records[1:], header, nil
}
