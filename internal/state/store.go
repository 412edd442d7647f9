// Package state holds the client's in-memory conversation state.
// Nothing here is persisted: session and content state live only for the
// duration of the process; the server remains the authoritative store.
package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/user/gopherchat/internal/types"
)

// ConversationStore is a mutex-guarded in-memory conversation registry.
type ConversationStore struct {
	mu            sync.RWMutex
	conversations map[types.ConversationID]*types.Conversation
}

// NewConversationStore creates an empty store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		conversations: make(map[types.ConversationID]*types.Conversation),
	}
}

// Get returns a copy of the conversation with the given id.
func (s *ConversationStore) Get(_ context.Context, id types.ConversationID) (*types.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("conversation not found: %s", id)
	}
	return cloneConversation(conv), nil
}

// Put stores the conversation, keeping an existing entry if one is
// already present.
func (s *ConversationStore) Put(_ context.Context, conv *types.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[conv.ID]; ok {
		return nil
	}
	s.conversations[conv.ID] = cloneConversation(conv)
	return nil
}

// Replace overwrites the stored conversation with the given copy,
// creating it if absent. Used for the post-stream authoritative reload.
func (s *ConversationStore) Replace(_ context.Context, conv *types.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations[conv.ID] = cloneConversation(conv)
	return nil
}

// AppendMessage adds a message to the end of the conversation.
func (s *ConversationStore) AppendMessage(_ context.Context, id types.ConversationID, msg *types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return fmt.Errorf("conversation not found: %s", id)
	}
	conv.Messages = append(conv.Messages, cloneMessage(msg))
	return nil
}

// SetMessageBlocks overwrites the content of the identified message with
// the given snapshot. Idempotent; streaming calls it after every applied
// event.
func (s *ConversationStore) SetMessageBlocks(_ context.Context, id types.ConversationID, msgID types.MessageID, blocks []types.ContentBlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return fmt.Errorf("conversation not found: %s", id)
	}
	for _, msg := range conv.Messages {
		if msg.ID == msgID {
			msg.Blocks = types.CloneBlocks(blocks)
			return nil
		}
	}
	return fmt.Errorf("message not found: %s", msgID)
}

func cloneMessage(msg *types.Message) *types.Message {
	out := *msg
	out.Blocks = types.CloneBlocks(msg.Blocks)
	return &out
}

func cloneConversation(conv *types.Conversation) *types.Conversation {
	out := *conv
	out.Messages = make([]*types.Message, len(conv.Messages))
	for i, m := range conv.Messages {
		out.Messages[i] = cloneMessage(m)
	}
	return &out
}
