// internal/types/interfaces.go
package types

import "context"

type ConversationStore interface {
	Get(ctx context.Context, id ConversationID) (*Conversation, error)
	Put(ctx context.Context, conv *Conversation) error
	Replace(ctx context.Context, conv *Conversation) error
	AppendMessage(ctx context.Context, id ConversationID, msg *Message) error
	SetMessageBlocks(ctx context.Context, id ConversationID, msgID MessageID, blocks []ContentBlock) error
}

// Backend is the server-side contract the streaming client consumes.
type Backend interface {
	OpenStream(ctx context.Context, id ConversationID, content string, sessionID SessionID) (*StreamHandle, error)
	OpenReconnect(ctx context.Context, sessionID SessionID) (*StreamHandle, error)
	CancelSession(ctx context.Context, id ConversationID, sessionID SessionID) error
	ListSessions(ctx context.Context) ([]*RemoteSession, error)
	GetConversation(ctx context.Context, id ConversationID) (*Conversation, error)
	SnapshotWorkdir(ctx context.Context, id ConversationID) error
}
