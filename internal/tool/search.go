package tool

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sanchobuendia/tickets/internal/search"
)

// --- SearchKnowledgeBaseTool ---

// SearchKnowledgeBaseTool queries the help-article index. Lookups are
// advisory: a failed or empty search reports "no results" to the model
// rather than aborting the turn.
type SearchKnowledgeBaseTool struct {
	Searcher search.Searcher
	Logger   *slog.Logger
}

func (t *SearchKnowledgeBaseTool) Name() string { return "search_knowledge_base" }
func (t *SearchKnowledgeBaseTool) Description() string {
	return "Search the internal knowledge base for articles about a problem. Always try this before creating a ticket."
}
func (t *SearchKnowledgeBaseTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":       map[string]any{"type": "string", "description": "The user's problem, in their own words"},
			"num_results": map[string]any{"type": "integer", "description": "How many articles to return (default 3)"},
		},
		"required": []string{"query"},
	}
}

func (t *SearchKnowledgeBaseTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	query := getString(params, "query")
	if query == "" {
		return "", fmt.Errorf("search_knowledge_base: query is required")
	}

	out, err := t.Searcher.Search(ctx, query, getInt(params, "num_results", 3))
	if err != nil {
		if t.Logger != nil {
			t.Logger.Warn("knowledge base unavailable", "query", query, "error", err)
		}
		return search.NoResults, nil
	}
	return out, nil
}

// --- SearchCategoryCodeTool ---

// SearchCategoryCodeTool classifies a problem description into
// candidate routing category codes.
type SearchCategoryCodeTool struct {
	Searcher search.CategorySearcher
	Logger   *slog.Logger
}

func (t *SearchCategoryCodeTool) Name() string { return "search_category_code" }
func (t *SearchCategoryCodeTool) Description() string {
	return "Find candidate category codes for a problem description. Pick the best match before creating a ticket."
}
func (t *SearchCategoryCodeTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"problem_description": map[string]any{"type": "string", "description": "Description of the problem to classify"},
			"num_results":         map[string]any{"type": "integer", "description": "How many candidates to return (default 3)"},
			"filter_group":        map[string]any{"type": "string", "description": "Restrict candidates to one solution group"},
		},
		"required": []string{"problem_description"},
	}
}

func (t *SearchCategoryCodeTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	problem := getString(params, "problem_description")
	if problem == "" {
		return "", fmt.Errorf("search_category_code: problem_description is required")
	}

	out, err := t.Searcher.SearchCategory(ctx, problem,
		getInt(params, "num_results", 3), getString(params, "filter_group"))
	if err != nil {
		if t.Logger != nil {
			t.Logger.Warn("category search unavailable", "problem", problem, "error", err)
		}
		return search.NoResults, nil
	}
	return out, nil
}
