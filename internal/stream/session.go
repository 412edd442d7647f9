package stream

import (
	"context"
	"sync"

	"github.com/user/gopherchat/internal/types"
)

// Status is the lifecycle state of a streaming session.
type Status string

const (
	StatusIdle         Status = "idle"
	StatusConnecting   Status = "connecting"
	StatusStreaming    Status = "streaming"
	StatusReconnecting Status = "reconnecting"
	StatusDone         Status = "done"
	StatusError        Status = "error"
)

// active reports whether s is a state a live stream occupies.
func (s Status) active() bool {
	return s == StatusConnecting || s == StatusStreaming || s == StatusReconnecting
}

// Update is a state-change notification published to session watchers
// after every applied event. Blocks is a snapshot; watchers own it.
type Update struct {
	ConversationID types.ConversationID
	Status         Status
	Blocks         []types.ContentBlock
	ErrorKind      string
	ErrorMessage   string
}

// Session is the state machine for one streaming attempt. It is a plain
// observable: any caller can poll Snapshot or subscribe to Updates.
// Only one attempt may be active at a time; beginning a new attempt
// replaces the cancel handle and discards the prior one.
type Session struct {
	mu             sync.Mutex
	conversationID types.ConversationID
	sessionID      types.SessionID
	idAssigned     bool
	status         Status
	blocks         []types.ContentBlock
	cancel         context.CancelFunc
	cancelled      bool
	errKind        string
	errMessage     string

	watchers *notifier
}

// NewSession returns an idle session.
func NewSession() *Session {
	return &Session{
		status:   StatusIdle,
		watchers: newNotifier(),
	}
}

// begin starts a fresh attempt bound to the given conversation, replacing
// any prior cancel handle. The returned context governs every read of the
// attempt and is signalled by Cancel.
func (s *Session) begin(parent context.Context, id types.ConversationID, entry Status) context.Context {
	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	if s.conversationID != id {
		// The server session id follows the conversation; a new target
		// starts from scratch.
		s.sessionID = ""
	}
	s.conversationID = id
	s.idAssigned = false
	s.status = entry
	s.blocks = nil
	s.errKind = ""
	s.errMessage = ""
	s.cancel = cancel
	s.cancelled = false
	s.mu.Unlock()

	s.publish()
	return ctx
}

// Cancel signals the current attempt's cancel handle, if any. The stream
// loop exits through its abort path on the next pending read.
func (s *Session) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancelled = true
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// wasCancelled reports whether the current attempt was aborted by its own
// cancel handle. Such aborts map to a clean stop, not an error.
func (s *Session) wasCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// ConversationID returns the conversation the current attempt is bound to.
func (s *Session) ConversationID() types.ConversationID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// SessionID returns the server-issued session id for the current attempt,
// or empty if none has been assigned yet.
func (s *Session) SessionID() types.SessionID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// setSessionID assigns the server-issued id. The id is assigned exactly
// once per attempt; an empty header keeps the id carried over from the
// conversation's previous turn.
func (s *Session) setSessionID(id types.SessionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idAssigned || id == "" {
		return
	}
	s.sessionID = id
	s.idAssigned = true
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err returns the kind and message of the last error event, if the
// session is in the error state.
func (s *Session) Err() (kind, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errKind, s.errMessage
}

// Snapshot returns the current status and a deep copy of the accumulated
// content blocks.
func (s *Session) Snapshot() (Status, []types.ContentBlock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, types.CloneBlocks(s.blocks)
}

func (s *Session) setStatus(status Status) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
	s.publish()
}

// finishStop transitions an active session to done. Sessions already
// idle or terminal are left as-is, so a synthetic stop after an explicit
// cancel does not resurrect the attempt.
func (s *Session) finishStop() {
	s.mu.Lock()
	if !s.status.active() {
		s.mu.Unlock()
		return
	}
	s.status = StatusDone
	s.mu.Unlock()
	s.publish()
}

// fail records an error event and moves the session to the error state.
func (s *Session) fail(kind, message string) {
	s.mu.Lock()
	s.status = StatusError
	s.errKind = kind
	s.errMessage = message
	s.mu.Unlock()
	s.publish()
}

// idle returns the session to idle after an explicit cancel.
func (s *Session) idle() {
	s.mu.Lock()
	s.status = StatusIdle
	s.mu.Unlock()
	s.publish()
}

// Subscribe registers a watcher. The returned channel receives an Update
// after every state change; the second return value unsubscribes.
// Delivery is non-blocking: a slow watcher misses intermediate updates
// rather than stalling the stream.
func (s *Session) Subscribe() (<-chan Update, func()) {
	return s.watchers.subscribe()
}

func (s *Session) publish() {
	s.mu.Lock()
	u := Update{
		ConversationID: s.conversationID,
		Status:         s.status,
		Blocks:         types.CloneBlocks(s.blocks),
		ErrorKind:      s.errKind,
		ErrorMessage:   s.errMessage,
	}
	s.mu.Unlock()
	s.watchers.publish(u)
}
