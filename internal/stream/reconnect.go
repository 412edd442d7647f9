package stream

import (
	"context"
	"log/slog"

	"github.com/user/gopherchat/internal/types"
)

// ReconnectActiveStream re-attaches to a server-held stream after the
// client restarts, replaying whatever events the server buffered. Returns
// the resumed conversation id, or false when there was nothing to resume.
// Reconnection failures degrade silently, except that a session confirmed
// running still produces a terminal stop so callers never wait on a
// phantom stream.
func (c *Client) ReconnectActiveStream(ctx context.Context) (types.ConversationID, bool) {
	// The flag goes up before any network call so concurrent startup code
	// does not reset session state out from under the reconnect.
	if !c.reconnecting.CompareAndSwap(false, true) {
		return "", false
	}
	defer c.reconnecting.Store(false)

	sessions, err := c.backend.ListSessions(ctx)
	if err != nil {
		slog.Debug("session discovery failed, nothing to resume", "error", err)
		return "", false
	}

	remote := pickResumable(sessions)
	if remote == nil {
		return "", false
	}

	streamCtx := c.session.begin(ctx, remote.ConversationID, StatusReconnecting)
	c.session.setSessionID(remote.ID)

	conv, err := c.backend.GetConversation(ctx, remote.ConversationID)
	if err != nil {
		slog.Warn("reconnect conversation fetch failed", "conversation_id", string(remote.ConversationID), "error", err)
		c.session.finishStop()
		return "", false
	}
	if err := c.store.Put(ctx, conv); err != nil {
		c.session.finishStop()
		return "", false
	}

	handle, err := c.backend.OpenReconnect(streamCtx, remote.ID)
	if err != nil {
		slog.Warn("reconnect transport failed", "session_id", string(remote.ID), "error", err)
		c.session.finishStop()
		return "", false
	}

	c.runStream(ctx, streamCtx, handle, target{id: conv.ID, workdir: conv.WorkDir})
	return conv.ID, true
}

// pickResumable selects the session to re-attach to: prefer one that is
// actively running, else one that completed while the client was offline
// but still holds unconsumed buffered events. A running session with zero
// buffered events is resumable (it just hasn't produced output yet); a
// completed session with zero buffered events is not (nothing left to
// replay).
func pickResumable(sessions []*types.RemoteSession) *types.RemoteSession {
	for _, s := range sessions {
		if s.Status == types.SessionStatusRunning {
			return s
		}
	}
	for _, s := range sessions {
		if s.StreamComplete && s.BufferedEvents > 0 {
			return s
		}
	}
	return nil
}
