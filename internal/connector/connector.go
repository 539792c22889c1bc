package connector

import "context"

// Connector is the interface for external messaging platforms
// (Telegram, Slack, etc.).
type Connector interface {
	// Name returns the connector type (e.g., "telegram", "slack").
	Name() string
	// Start begins listening for inbound messages. Blocks until context is cancelled.
	Start(ctx context.Context) error
	// Stop gracefully shuts down the connector.
	Stop() error
	// Send delivers an outbound message to the external platform.
	Send(ctx context.Context, msg OutboundMessage) error
}

// OutboundMessage is a message sent from the support service to an
// external platform.
type OutboundMessage struct {
	ChatID  string   // Platform-specific chat identifier
	Content string   // Message text (Markdown)
	Media   []string // Optional media file paths
}

// InboundMessage is a message received from an external platform.
type InboundMessage struct {
	Channel     string   // Connector name (e.g., "telegram")
	SenderID    string   // Platform-specific sender identifier
	SenderName  string   // Display name, when the platform provides one
	ChatID      string   // Platform-specific chat identifier
	Content     string   // Message text
	Attachments []string // File references received with the message
}

// InboundHandler processes a message received from an external platform
// and returns the reply text to send back. A "/new" message drops the
// sender's conversation instead of producing an assistant turn.
type InboundHandler func(ctx context.Context, msg InboundMessage) (string, error)
