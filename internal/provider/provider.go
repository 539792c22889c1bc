package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sanchobuendia/tickets/pkg/protocol"
)

// Provider is the abstraction over LLM APIs.
type Provider interface {
	Chat(ctx context.Context, req protocol.ChatRequest) (*protocol.ChatResponse, error)
	Name() string
}

// retryDelay is how long a provider waits before retrying a
// rate-limited or failing API call. One retry only; a chat turn is
// interactive and the connector is holding the user's reply.
const retryDelay = 1 * time.Second

// retryable reports whether a status code is worth one more attempt.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// apiErrorMessage pulls the human-readable message out of an error
// body shaped like {"error": {"message": "..."}}, which both vendors
// use. Falls back to the raw body.
func apiErrorMessage(body []byte) string {
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return string(body)
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func statusError(vendor string, status int, body []byte) error {
	return fmt.Errorf("%s: api error (status %d): %s", vendor, status, apiErrorMessage(body))
}

// doWithRetry posts a request built by build, retrying once on a
// retryable status. build is called per attempt because request bodies
// are single-use.
func doWithRetry(ctx context.Context, client *http.Client, vendor string, build func() (*http.Request, error)) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, retryDelay); err != nil {
				return nil, err
			}
		}

		req, err := build()
		if err != nil {
			return nil, fmt.Errorf("%s: create request: %w", vendor, err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s: http request: %w", vendor, err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: read response: %w", vendor, err)
		}

		if resp.StatusCode == http.StatusOK {
			return body, nil
		}
		lastErr = statusError(vendor, resp.StatusCode, body)
		if !retryable(resp.StatusCode) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}
