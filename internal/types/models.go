// internal/types/models.go
package types

import (
	"encoding/json"
	"io"
	"time"
)

// Content block type constants.
const (
	BlockTypeText       = "text"
	BlockTypeThinking   = "thinking"
	BlockTypeToolUse    = "tool_use"
	BlockTypeToolResult = "tool_result"
)

// ContentBlock is one unit of structured output within an assistant turn.
// Type selects which fields are meaningful: text/thinking carry Text,
// tool_use carries ID/Name/Input, tool_result carries ToolCallID/Result.
type ContentBlock struct {
	Type string `json:"type"`

	// Text content for text and thinking blocks.
	Text string `json:"text,omitempty"`

	// Tool invocation fields (tool_use blocks).
	ID               string          `json:"id,omitempty"`
	Name             string          `json:"name,omitempty"`
	Input            json.RawMessage `json:"input,omitempty"`
	ParentToolCallID string          `json:"parent_tool_call_id,omitempty"`

	// Tool outcome fields (tool_result blocks).
	ToolCallID string `json:"tool_call_id,omitempty"`
	Result     string `json:"result,omitempty"`
	IsError    bool   `json:"is_error,omitempty"`
}

// Clone returns a deep copy of the block.
func (b ContentBlock) Clone() ContentBlock {
	out := b
	if b.Input != nil {
		out.Input = append(json.RawMessage(nil), b.Input...)
	}
	return out
}

// CloneBlocks deep-copies a block slice for snapshotting.
func CloneBlocks(blocks []ContentBlock) []ContentBlock {
	if blocks == nil {
		return nil
	}
	out := make([]ContentBlock, len(blocks))
	for i, b := range blocks {
		out[i] = b.Clone()
	}
	return out
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	ID        MessageID      `json:"id"`
	Role      string         `json:"role"`
	Blocks    []ContentBlock `json:"blocks"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewUserMessage builds a user message holding a single text block.
func NewUserMessage(text string) *Message {
	return &Message{
		ID:        NewMessageID(),
		Role:      RoleUser,
		Blocks:    []ContentBlock{{Type: BlockTypeText, Text: text}},
		CreatedAt: time.Now(),
	}
}

// NewAssistantPlaceholder builds an empty assistant message for streaming
// content to attach to before the first byte of the body is read.
func NewAssistantPlaceholder() *Message {
	return &Message{
		ID:        NewMessageID(),
		Role:      RoleAssistant,
		CreatedAt: time.Now(),
	}
}

type Conversation struct {
	ID       ConversationID `json:"id"`
	Title    string         `json:"title,omitempty"`
	WorkDir  string         `json:"workdir,omitempty"`
	Messages []*Message     `json:"messages"`
}

// LastMessage returns the most recent message, or nil.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// Remote session status values reported by the server.
const (
	SessionStatusRunning   = "running"
	SessionStatusCompleted = "completed"
)

// RemoteSession describes a server-held streaming session. Purely
// informational; the server owns it.
type RemoteSession struct {
	ID             SessionID      `json:"id"`
	ConversationID ConversationID `json:"conversation_id"`
	Status         string         `json:"status"`
	StreamComplete bool           `json:"stream_complete"`
	BufferedEvents int            `json:"buffered_events"`
}

// StreamHandle is an open server stream: the session id issued for this
// attempt plus the chunked SSE body to decode.
type StreamHandle struct {
	SessionID SessionID
	Body      io.ReadCloser
}
