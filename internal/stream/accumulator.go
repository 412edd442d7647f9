package stream

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/user/gopherchat/internal/types"
)

// Block mutation helpers. Blocks are append/mutate-only while an attempt
// is active and are never rolled back; a failed or aborted stream freezes
// the sequence as-is.

func (s *Session) appendBlock(b types.ContentBlock) {
	s.mu.Lock()
	s.blocks = append(s.blocks, b)
	s.mu.Unlock()
	s.publish()
}

// appendToBlock applies a delta to the block at index i. Returns false
// when the index is out of range.
func (s *Session) appendToBlock(i int, d *Delta) bool {
	s.mu.Lock()
	if i < 0 || i >= len(s.blocks) {
		s.mu.Unlock()
		return false
	}
	b := &s.blocks[i]
	switch b.Type {
	case types.BlockTypeText, types.BlockTypeThinking:
		b.Text += d.Text
	case types.BlockTypeToolUse:
		b.Input = append(b.Input, d.PartialJSON...)
	}
	s.mu.Unlock()
	s.publish()
	return true
}

// hasToolUse reports whether a tool_use block with the given call id has
// been emitted.
func (s *Session) hasToolUse(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.blocks {
		if b.Type == types.BlockTypeToolUse && b.ID == id {
			return true
		}
	}
	return false
}

// accumulator applies decoded events to the session's content blocks and
// mirrors the snapshot into the destination conversation after every
// event, so a crash mid-stream leaves the best available partial state.
type accumulator struct {
	session *Session
	store   types.ConversationStore
	conv    types.ConversationID
	msgID   types.MessageID
}

// apply dispatches one event. Unknown event types are skipped; they must
// never abort the stream.
func (a *accumulator) apply(ctx context.Context, ev *Event) {
	switch ev.Type {
	case EventMessageStart, EventContentBlockStop, EventPing:
		// No accumulated state; block boundaries are implicit.

	case EventContentBlockStart:
		b := types.ContentBlock{Type: types.BlockTypeText}
		if ev.Block != nil {
			b = ev.Block.Clone()
		}
		a.session.appendBlock(b)

	case EventContentBlockDelta:
		if ev.Delta == nil || !a.session.appendToBlock(ev.Index, ev.Delta) {
			slog.Debug("dropping delta for unknown block", "index", ev.Index)
		}

	case EventToolUse:
		a.session.appendBlock(types.ContentBlock{
			Type:             types.BlockTypeToolUse,
			ID:               ev.ID,
			Name:             ev.Name,
			Input:            append(json.RawMessage(nil), ev.Input...),
			ParentToolCallID: ev.ParentToolCallID,
		})

	case EventToolResult:
		// Results attach by call id, not position.
		if !a.session.hasToolUse(ev.ToolCallID) {
			slog.Warn("dropping tool result without matching call", "tool_call_id", ev.ToolCallID)
			break
		}
		a.session.appendBlock(types.ContentBlock{
			Type:       types.BlockTypeToolResult,
			ToolCallID: ev.ToolCallID,
			Result:     ev.Result,
			IsError:    ev.IsError,
		})

	case EventMessageStop:
		a.session.finishStop()

	case EventError:
		a.session.fail(ev.Kind, ev.Message)

	default:
		slog.Debug("ignoring unknown stream event", "type", ev.Type)
	}

	a.sync(ctx)
}

// applyPayload parses and applies one decoded frame. Malformed payloads
// are logged and dropped.
func (a *accumulator) applyPayload(ctx context.Context, payload string) {
	ev, err := ParseEvent(payload)
	if err != nil {
		slog.Warn("skipping malformed stream payload", "error", err)
		return
	}
	a.apply(ctx, ev)
}

// sync overwrites the destination message's content with the full current
// snapshot. Idempotent; calling twice without an intervening apply writes
// the same state.
func (a *accumulator) sync(ctx context.Context) {
	_, blocks := a.session.Snapshot()
	if err := a.store.SetMessageBlocks(ctx, a.conv, a.msgID, blocks); err != nil {
		slog.Debug("sync to conversation failed", "conversation_id", string(a.conv), "error", err)
	}
}
