package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/sanchobuendia/tickets/internal/tool"
	"github.com/sanchobuendia/tickets/pkg/protocol"
)

// Run executes the ReAct loop for a single task: send the task to the
// LLM, execute any requested tool calls, and loop until the LLM returns
// a final text response or the iteration limit is reached.
func (a *Agent) Run(ctx context.Context, task string) (string, error) {
	messages := []protocol.ChatMessage{
		{Role: "system", Content: a.Spec.Instructions},
		{Role: "user", Content: task},
	}
	return a.runLoop(ctx, messages)
}

// RunWithHistory executes the ReAct loop with an existing conversation
// history. The caller supplies the system prompt as the first message.
func (a *Agent) RunWithHistory(ctx context.Context, messages []protocol.ChatMessage) (string, error) {
	return a.runLoop(ctx, messages)
}

func (a *Agent) runLoop(ctx context.Context, messages []protocol.ChatMessage) (string, error) {
	maxIter := a.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}

	toolDefs := a.Tools.Definitions()
	userID := tool.CurrentUserFromContext(ctx)

	for i := 0; i < maxIter; i++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("agent %s: context cancelled: %w", a.Spec.ID, err)
		}

		req := protocol.ChatRequest{
			Messages: messages,
			Tools:    toolDefs,
		}

		a.Logger.Debug("agent chat request",
			"agent", a.Spec.ID,
			"user", userID,
			"iteration", i+1,
			"messages", len(messages),
		)

		resp, err := a.Provider.Chat(ctx, req)
		if err != nil {
			return "", fmt.Errorf("agent %s: provider error: %w", a.Spec.ID, err)
		}

		if !resp.HasToolCalls() {
			if strings.TrimSpace(resp.Content) == "" {
				return "", fmt.Errorf("agent %s: empty assistant turn: %w", a.Spec.ID, ErrMalformedExchange)
			}
			a.Logger.Debug("agent final response",
				"agent", a.Spec.ID,
				"user", userID,
				"iteration", i+1,
				"content_len", len(resp.Content),
			)
			return resp.Content, nil
		}

		// Append assistant message with tool calls
		messages = append(messages, protocol.ChatMessage{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		// Execute each tool call and append results
		for _, tc := range resp.ToolCalls {
			a.Logger.Info(fmt.Sprintf("tool call: %s", tc.Name),
				"agent", a.Spec.ID,
				"user", userID,
				"call_id", tc.ID,
			)

			result, err := a.Tools.Execute(ctx, tc.Name, tc.Arguments)
			if err != nil {
				// Return error as tool result so the LLM can recover
				result = fmt.Sprintf("Error: %v", err)
				a.Logger.Warn(fmt.Sprintf("tool error: %s", tc.Name),
					"agent", a.Spec.ID,
					"user", userID,
					"error", err,
				)
			} else {
				a.Logger.Info(fmt.Sprintf("tool result: %s", tc.Name),
					"agent", a.Spec.ID,
					"user", userID,
					"result_len", len(result),
				)
			}

			messages = append(messages, protocol.ChatMessage{
				Role:       "tool",
				Content:    result,
				ToolCallID: tc.ID,
				Name:       tc.Name,
			})
		}
	}

	return "", fmt.Errorf("agent %s: exceeded max iterations (%d): %w", a.Spec.ID, maxIter, ErrMalformedExchange)
}
