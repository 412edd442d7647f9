// Package api is the HTTP client for the chat backend's REST and
// streaming endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/user/gopherchat/internal/stream"
	"github.com/user/gopherchat/internal/types"
)

const (
	sessionHeader = "X-Session-Id"

	// Unary requests get a deadline; stream bodies stay open until the
	// server closes them or the caller's context aborts, so the
	// underlying http.Client carries no timeout of its own.
	unaryTimeout = 30 * time.Second

	maxErrorBody = 64 << 10
)

// Client talks to the chat backend. It implements types.Backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a backend client for the given base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// OpenStream POSTs a new user turn and returns the response stream. The
// prior session id, when known, rides the request header; the response
// header may issue a new one.
func (c *Client) OpenStream(ctx context.Context, id types.ConversationID, content string, sessionID types.SessionID) (*types.StreamHandle, error) {
	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return nil, fmt.Errorf("marshal stream request: %w", err)
	}

	url := fmt.Sprintf("%s/stream/%s", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create stream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set(sessionHeader, string(sessionID))
	}

	return c.openStream(req)
}

// OpenReconnect re-attaches to a server-buffered stream by session id.
func (c *Client) OpenReconnect(ctx context.Context, sessionID types.SessionID) (*types.StreamHandle, error) {
	url := fmt.Sprintf("%s/stream/reconnect/%s", c.baseURL, sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create reconnect request: %w", err)
	}
	return c.openStream(req)
}

func (c *Client) openStream(req *http.Request) (*types.StreamHandle, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &stream.NetworkError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, &stream.HTTPError{
			Status:  resp.StatusCode,
			Message: errorMessage(resp),
		}
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, stream.ErrNoBody
	}
	return &types.StreamHandle{
		SessionID: types.SessionID(resp.Header.Get(sessionHeader)),
		Body:      resp.Body,
	}, nil
}

// CancelSession asks the server to terminate its side of a stream.
// Callers treat this as best-effort.
func (c *Client) CancelSession(ctx context.Context, id types.ConversationID, sessionID types.SessionID) error {
	ctx, cancel := context.WithTimeout(ctx, unaryTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/stream/%s/cancel", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("create cancel request: %w", err)
	}
	req.Header.Set(sessionHeader, string(sessionID))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cancel session: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("cancel session: HTTP %d", resp.StatusCode)
	}
	return nil
}

// ListSessions returns the server-held in-flight and just-completed
// streaming sessions.
func (c *Client) ListSessions(ctx context.Context) ([]*types.RemoteSession, error) {
	var sessions []*types.RemoteSession
	if err := c.getJSON(ctx, c.baseURL+"/stream/sessions", &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetConversation fetches the authoritative persisted conversation.
func (c *Client) GetConversation(ctx context.Context, id types.ConversationID) (*types.Conversation, error) {
	var conv types.Conversation
	url := fmt.Sprintf("%s/conversations/%s", c.baseURL, id)
	if err := c.getJSON(ctx, url, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// SnapshotWorkdir requests a pre-turn snapshot of the conversation's
// working directory. Fire-and-forget on the caller's side.
func (c *Client) SnapshotWorkdir(ctx context.Context, id types.ConversationID) error {
	ctx, cancel := context.WithTimeout(ctx, unaryTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/conversations/%s/snapshot", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("create snapshot request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("snapshot workdir: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("snapshot workdir: HTTP %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, unaryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &stream.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &stream.HTTPError{Status: resp.StatusCode, Message: errorMessage(resp)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// errorMessage extracts a failure message from a non-2xx response:
// JSON error fields first, then the raw body text, then the bare status
// code. Never fails.
func errorMessage(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	for _, path := range []string{"error.message", "error", "message"} {
		if v := gjson.GetBytes(body, path); v.Exists() && v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}

	text := strings.TrimSpace(string(body))
	if text != "" && utf8.ValidString(text) {
		return text
	}

	return fmt.Sprintf("HTTP %d", resp.StatusCode)
}
