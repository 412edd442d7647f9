// Package stream implements the client side of the chat backend's
// streaming protocol: one observable session state machine fed by an SSE
// frame decoder, with fresh-send and reconnect entry points.
package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/gopherchat/internal/sse"
	"github.com/user/gopherchat/internal/types"
)

const sideEffectTimeout = 30 * time.Second

// FactExtractor persists durable facts out of a conversation's recent
// turns. Invoked fire-and-forget after a completed stream; failures are
// swallowed.
type FactExtractor interface {
	Extract(ctx context.Context, conv *types.Conversation) error
}

// target is the immutable capture of which conversation a stream's
// output belongs to, taken at stream start. Output routes by this
// captured identity, never by the caller's current focus.
type target struct {
	id      types.ConversationID
	workdir string
}

// Client drives streaming sessions against the backend. All outcomes of
// a send are observed through the session's status, not return values.
type Client struct {
	backend types.Backend
	store   types.ConversationStore
	session *Session

	reconnecting atomic.Bool

	mu     sync.Mutex
	active types.ConversationID

	extractor FactExtractor
}

// Option configures optional Client behavior.
type Option func(*Client)

// WithFactExtractor enables post-stream memory extraction for
// conversations that carry a working directory.
func WithFactExtractor(e FactExtractor) Option {
	return func(c *Client) { c.extractor = e }
}

// New creates a Client over the given backend and conversation store.
func New(backend types.Backend, store types.ConversationStore, opts ...Option) *Client {
	c := &Client{
		backend: backend,
		store:   store,
		session: NewSession(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session exposes the observable session state machine.
func (c *Client) Session() *Session {
	return c.session
}

// SetActiveConversation records which conversation the caller currently
// displays. Sends are guarded against it.
func (c *Client) SetActiveConversation(id types.ConversationID) {
	c.mu.Lock()
	c.active = id
	c.mu.Unlock()
}

// ActiveConversation returns the caller's currently displayed conversation.
func (c *Client) ActiveConversation() types.ConversationID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// SendAndStream starts a fresh stream for the given conversation. The
// call blocks until the stream finishes; callers that want fire-and-forget
// run it in a goroutine and watch the session. No error is returned: every
// outcome, including the fast-fail guard, surfaces as session state.
func (c *Client) SendAndStream(ctx context.Context, conversationID types.ConversationID, text string) {
	// Guard before any network work: the stream must target the
	// conversation the caller still believes is active.
	if c.ActiveConversation() != conversationID {
		c.session.fail(ErrorKindState, ErrConversationMismatch.Error())
		return
	}
	if c.reconnecting.Load() {
		c.session.fail(ErrorKindState, "stream: reconnection in progress")
		return
	}

	conv, err := c.store.Get(ctx, conversationID)
	if err != nil {
		c.session.fail(ErrorKindState, err.Error())
		return
	}

	streamCtx := c.session.begin(ctx, conversationID, StatusConnecting)

	bound := target{id: conv.ID, workdir: conv.WorkDir}
	if bound.workdir != "" {
		c.detach("pre-turn snapshot", func(ctx context.Context) error {
			return c.backend.SnapshotWorkdir(ctx, bound.id)
		})
	}

	if err := c.store.AppendMessage(ctx, bound.id, types.NewUserMessage(text)); err != nil {
		c.session.fail(ErrorKindState, err.Error())
		return
	}

	handle, err := c.backend.OpenStream(streamCtx, bound.id, text, c.session.SessionID())
	if err != nil {
		c.finishRequestError(err)
		return
	}
	c.session.setSessionID(handle.SessionID)

	c.runStream(ctx, streamCtx, handle, bound)
}

// runStream is the decode/apply/sync loop shared by fresh sends and
// reconnects, plus the common post-loop reload and side effects.
func (c *Client) runStream(ctx, streamCtx context.Context, handle *types.StreamHandle, bound target) {
	defer handle.Body.Close()

	placeholder := types.NewAssistantPlaceholder()
	if err := c.store.AppendMessage(ctx, bound.id, placeholder); err != nil {
		c.session.fail(ErrorKindState, err.Error())
		return
	}
	if c.session.Status() != StatusReconnecting {
		c.session.setStatus(StatusStreaming)
	}

	acc := &accumulator{
		session: c.session,
		store:   c.store,
		conv:    bound.id,
		msgID:   placeholder.ID,
	}

	err := sse.ReadAll(streamCtx, handle.Body, func(payload string) error {
		acc.applyPayload(ctx, payload)
		return nil
	})

	switch {
	case err == nil, errors.Is(err, io.ErrUnexpectedEOF):
		// Normal close, or a close that lost the final frame. Either way
		// a missing message_stop is synthesized below.
	case c.session.wasCancelled():
		// Abort by our own cancel handle is a clean stop.
	default:
		acc.apply(ctx, errorEvent(ErrorKindNetwork, err.Error()))
		c.reload(ctx, bound)
		return
	}

	if c.session.Status().active() || c.session.wasCancelled() {
		// Exactly one stop closes the attempt; finishStop is a no-op when
		// an explicit cancel already returned the session to idle.
		acc.apply(ctx, stopEvent())
	}

	c.reload(ctx, bound)

	if bound.workdir != "" && c.extractor != nil {
		c.detach("memory extraction", func(ctx context.Context) error {
			conv, err := c.store.Get(ctx, bound.id)
			if err != nil {
				return err
			}
			return c.extractor.Extract(ctx, conv)
		})
	}
}

// finishRequestError maps a failed request to its terminal session state.
// An abort caused by our own cancel handle is not an error.
func (c *Client) finishRequestError(err error) {
	if c.session.wasCancelled() {
		c.session.finishStop()
		return
	}
	kind, message := classify(err)
	c.session.fail(kind, message)
}

// reload replaces the local conversation with the authoritative persisted
// copy. Covers streams that produced no content-block events yet still
// persisted a message server-side.
func (c *Client) reload(ctx context.Context, bound target) {
	reloadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	conv, err := c.backend.GetConversation(reloadCtx, bound.id)
	if err != nil {
		slog.Warn("post-stream conversation reload failed", "conversation_id", string(bound.id), "error", err)
		return
	}
	if err := c.store.Replace(ctx, conv); err != nil {
		slog.Warn("post-stream conversation replace failed", "conversation_id", string(bound.id), "error", err)
	}
}

// CancelStream aborts the active stream for the conversation and asks the
// server, best-effort, to stop its side of the work. The server call's
// failure is swallowed.
func (c *Client) CancelStream(conversationID types.ConversationID) {
	if c.session.ConversationID() != conversationID {
		return
	}
	sessionID := c.session.SessionID()
	c.session.Cancel()
	if sessionID != "" {
		c.detach("server-side cancel", func(ctx context.Context) error {
			return c.backend.CancelSession(ctx, conversationID, sessionID)
		})
	}
	c.session.idle()
}

// detach runs a fire-and-forget side effect on its own context. Failures
// are logged at debug and never reach the stream's error channel.
func (c *Client) detach(name string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			slog.Debug("detached task failed", "task", name, "error", err)
		}
	}()
}
