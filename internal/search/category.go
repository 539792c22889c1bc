package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// CategoryCodes is the FTS-backed category-classification collection.
// Documents carry the routing code and solution group as metadata.
type CategoryCodes struct {
	col    *Collection
	logger *slog.Logger
}

// NewCategoryCodes opens the "categories" collection in the index.
func NewCategoryCodes(ix *Index, logger *slog.Logger) (*CategoryCodes, error) {
	if logger == nil {
		logger = slog.Default()
	}
	col, err := ix.Collection("categories")
	if err != nil {
		return nil, err
	}
	return &CategoryCodes{col: col, logger: logger}, nil
}

// LoadCSV ingests the category dataset. Expected columns (semicolon
// separated): codigo_categoria, grupo_solucao, descricao. Extra columns
// are appended to the searchable text. Returns the number of documents
// loaded.
func (cc *CategoryCodes) LoadCSV(path string) (int, error) {
	rows, header, err := readCSV(path)
	if err != nil {
		return 0, fmt.Errorf("category codes: %w", err)
	}

	idx := func(name string) int {
		for i, h := range header {
			if strings.EqualFold(h, name) {
				return i
			}
		}
		return -1
	}
	codeIdx := idx("codigo_categoria")
	groupIdx := idx("grupo_solucao")
	descIdx := idx("descricao")
	if codeIdx < 0 || descIdx < 0 {
		return 0, fmt.Errorf("category codes: %s: missing codigo_categoria/descricao columns", path)
	}

	n := 0
	for _, row := range rows {
		get := func(i int) string {
			if i < 0 || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		doc := Document{
			Code:    get(codeIdx),
			Group:   get(groupIdx),
			Content: get(descIdx),
		}
		if doc.Code == "" || doc.Content == "" {
			continue
		}
		if err := cc.col.Add(doc); err != nil {
			return n, err
		}
		n++
	}
	cc.logger.Info("category codes loaded", "path", path, "documents", n)
	return n, nil
}

// SearchCategory returns a ranked text block of candidate category
// codes for a problem description. filterGroup, when non-empty,
// restricts candidates to one solution group. Index failures degrade
// to NoResults.
func (cc *CategoryCodes) SearchCategory(ctx context.Context, problem string, numResults int, filterGroup string) (string, error) {
	results, err := cc.col.Query(ctx, problem, numResults, filterGroup)
	if err != nil {
		cc.logger.Warn("category search failed", "problem", problem, "error", err)
		return NoResults, nil
	}
	if len(results) == 0 {
		return NoResults, nil
	}

	var b strings.Builder
	b.WriteString("Códigos de categoria candidatos:\n\n")
	for i, r := range results {
		fmt.Fprintf(&b, "%d. Código: %s | Grupo: %s | Relevância: %d%%\n   Descrição: %s\n",
			i+1, r.Code, r.Group, r.Relevance, r.Content)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
