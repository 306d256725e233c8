package types

import "context"

const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
	MessageRoleSystem    = "system"
)

// Message represents a user input or an assistant reply crossing a channel.
type Message struct {
	ID             string
	Content        string
	Role           string // "user", "assistant", "system"
	ChannelID      string // source channel identifier (e.g., "http", "cli")
	UserID         string
	ConversationID string // correlates multi-turn exchanges per user
	RequestID      string
	Meta           map[string]interface{}
}

// Agent turns an inbound message into a reply.
type Agent interface {
	Process(ctx context.Context, msg Message) (Message, error)
	Name() string
}

// Channel is an input/output surface (HTTP, CLI).
type Channel interface {
	Start(ctx context.Context, handler func(Message)) error
	Send(ctx context.Context, msg Message) error
	ID() string
}

// Gateway wires channels to the agent.
type Gateway interface {
	RegisterChannel(c Channel)
	Start(ctx context.Context) error
}
