package stream

import (
	"encoding/json"
	"fmt"

	"github.com/user/gopherchat/internal/types"
)

// Event type tags on the wire. Unknown tags are forward-compatible and
// must be ignored, never rejected.
const (
	EventMessageStart      = "message_start"
	EventContentBlockStart = "content_block_start"
	EventContentBlockDelta = "content_block_delta"
	EventContentBlockStop  = "content_block_stop"
	EventMessageStop       = "message_stop"
	EventToolUse           = "tool_use"
	EventToolResult        = "tool_result"
	EventError             = "error"
	EventPing              = "ping"
)

// Event is one decoded frame of the streaming protocol. Type selects
// which fields are meaningful. Events carry no sequence numbers: order
// of arrival is the order of truth.
type Event struct {
	Type string `json:"type"`

	// content_block_start / content_block_delta / content_block_stop
	Index int                 `json:"index,omitempty"`
	Block *types.ContentBlock `json:"content_block,omitempty"`
	Delta *Delta              `json:"delta,omitempty"`

	// tool_use
	ID               string          `json:"id,omitempty"`
	Name             string          `json:"name,omitempty"`
	Input            json.RawMessage `json:"input,omitempty"`
	ParentToolCallID string          `json:"parent_tool_call_id,omitempty"`

	// tool_result
	ToolCallID string `json:"tool_call_id,omitempty"`
	Result     string `json:"result,omitempty"`
	IsError    bool   `json:"is_error,omitempty"`

	// error
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}

// Delta is the incremental content carried by a content_block_delta.
// Text deltas append to text/thinking blocks; partial_json appends to a
// tool_use block's input.
type Delta struct {
	Type        string `json:"type,omitempty"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
}

// ParseEvent decodes one payload into an Event. Payloads with an unknown
// type tag still parse; the dispatcher skips them. Malformed JSON is an
// error for the caller to log and drop, never to escalate.
func ParseEvent(payload string) (*Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return nil, fmt.Errorf("parse event: %w", err)
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("parse event: missing type tag")
	}
	return &ev, nil
}

// errorEvent builds a synthetic error event for failures that originate
// client-side (request, guard, transport) rather than on the wire.
func errorEvent(kind, message string) *Event {
	return &Event{Type: EventError, Kind: kind, Message: message}
}

// stopEvent builds a synthetic message_stop, used when the transport
// closes without delivering the real one.
func stopEvent() *Event {
	return &Event{Type: EventMessageStop}
}
