package tool

import "context"

// Tool is one capability an agent can invoke during a chat turn.
// Execute returns the model-visible output; a non-nil error is fed back
// to the model as a recoverable tool failure, not surfaced to the user.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any // JSON Schema
	Execute(ctx context.Context, params map[string]any) (string, error)
}
