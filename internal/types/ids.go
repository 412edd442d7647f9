// internal/types/ids.go
package types

import "github.com/google/uuid"

type ConversationID string
type SessionID string
type MessageID string

func NewConversationID() ConversationID {
	return ConversationID(uuid.New().String())
}

func NewMessageID() MessageID {
	return MessageID(uuid.New().String())
}
