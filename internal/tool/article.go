package tool

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "codeberg.org/readeck/go-readability/v2"
)

const (
	maxFetchSize = 50 * 1024 // 50KB text output
	fetchTimeout = 30 * time.Second
)

// FetchArticleTool fetches a linked help article or vendor page and
// extracts its readable text, so the model can work with documentation
// the knowledge base only references by URL.
type FetchArticleTool struct {
	// Client overrides the HTTP client (tests). Nil means a default
	// client with fetchTimeout.
	Client *http.Client
}

func (t *FetchArticleTool) Name() string { return "fetch_article" }
func (t *FetchArticleTool) Description() string {
	return "Fetch a URL and extract its readable text content"
}
func (t *FetchArticleTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{"type": "string", "description": "URL to fetch"},
		},
		"required": []string{"url"},
	}
}

func (t *FetchArticleTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	rawURL := getString(params, "url")
	if rawURL == "" {
		return "", fmt.Errorf("fetch_article: url is required")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("fetch_article: invalid URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("fetch_article: %w", err)
	}
	req.Header.Set("User-Agent", "supportd/1.0")

	client := t.Client
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch_article: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch_article: HTTP %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")

	// For non-HTML content, return raw text (truncated)
	if !strings.Contains(contentType, "text/html") {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, int64(maxFetchSize)))
		return string(body), nil
	}

	article, err := readability.FromReader(resp.Body, parsedURL)
	if err != nil {
		return "", fmt.Errorf("fetch_article: parse: %w", err)
	}

	var textBuf bytes.Buffer
	if err := article.RenderText(&textBuf); err != nil {
		return "", fmt.Errorf("fetch_article: render: %w", err)
	}

	text := textBuf.String()
	wordCount := len(strings.Fields(text))

	if len(text) > maxFetchSize {
		text = text[:maxFetchSize] + "\n... [truncated]"
	}

	return fmt.Sprintf("Title: %s\nURL: %s\nWords: %d\n\n%s", article.Title(), rawURL, wordCount, text), nil
}
