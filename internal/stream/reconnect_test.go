package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/user/gopherchat/internal/types"
)

func TestReconnect_NothingToResume(t *testing.T) {
	client, _, _, _ := newTestClient(t)

	id, ok := client.ReconnectActiveStream(context.Background())
	if ok || id != "" {
		t.Errorf("expected nothing to resume, got %q %t", id, ok)
	}
	if got := client.Session().Status(); got != StatusIdle {
		t.Errorf("expected session untouched, got %s", got)
	}
}

func TestReconnect_DiscoveryFailure(t *testing.T) {
	client, backend, _, _ := newTestClient(t)
	backend.listErr = errors.New("connection refused")

	if _, ok := client.ReconnectActiveStream(context.Background()); ok {
		t.Error("expected silent degradation on discovery failure")
	}
	if got := client.Session().Status(); got != StatusIdle {
		t.Errorf("expected session untouched, got %s", got)
	}
}

func TestReconnect_ResumesRunningSession(t *testing.T) {
	client, backend, store, _ := newTestClient(t)

	remoteConv := &types.Conversation{ID: types.NewConversationID()}
	backend.conv = remoteConv
	backend.convErr = nil
	backend.sessions = []*types.RemoteSession{
		{ID: "s9", ConversationID: remoteConv.ID, Status: types.SessionStatusRunning},
	}
	backend.reconnectBody = io.NopCloser(strings.NewReader(
		"data: {\"type\":\"content_block_start\",\"index\":0,\"content_block\":{\"type\":\"text\"}}\n" +
			"data: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"text\":\"buffered output\"}}\n" +
			"data: {\"type\":\"message_stop\"}\n"))

	id, ok := client.ReconnectActiveStream(context.Background())
	if !ok {
		t.Fatal("expected resume")
	}
	if id != remoteConv.ID {
		t.Errorf("expected resumed conversation id, got %s", id)
	}
	if got := client.Session().Status(); got != StatusDone {
		t.Errorf("expected done after replay, got %s", got)
	}
	if got := client.Session().SessionID(); got != "s9" {
		t.Errorf("expected discovered session id, got %q", got)
	}

	if _, err := store.Get(context.Background(), remoteConv.ID); err != nil {
		t.Fatalf("expected conversation registered locally: %v", err)
	}
	_, blocks := client.Session().Snapshot()
	if len(blocks) != 1 || blocks[0].Text != "buffered output" {
		t.Errorf("expected buffered events applied, got %+v", blocks)
	}
}

func TestReconnect_TransportFailureStops(t *testing.T) {
	client, backend, _, _ := newTestClient(t)

	remoteConv := &types.Conversation{ID: types.NewConversationID()}
	backend.conv = remoteConv
	backend.convErr = nil
	backend.sessions = []*types.RemoteSession{
		{ID: "s9", ConversationID: remoteConv.ID, Status: types.SessionStatusRunning},
	}
	backend.reconnectErr = errors.New("connection refused")

	if _, ok := client.ReconnectActiveStream(context.Background()); ok {
		t.Error("expected resume to fail")
	}
	// A session confirmed running must still reach a terminal state so
	// callers never wait on a phantom stream.
	if got := client.Session().Status(); got != StatusDone {
		t.Errorf("expected terminal stop, got %s", got)
	}
}

func TestReconnect_ConversationFetchFailureStops(t *testing.T) {
	client, backend, _, _ := newTestClient(t)
	backend.sessions = []*types.RemoteSession{
		{ID: "s9", ConversationID: "c-remote", Status: types.SessionStatusRunning},
	}
	// convErr stays set: fetch fails.

	if _, ok := client.ReconnectActiveStream(context.Background()); ok {
		t.Error("expected resume to fail")
	}
	if got := client.Session().Status(); got != StatusDone {
		t.Errorf("expected terminal stop, got %s", got)
	}
}

func TestReconnect_SecondCallRejectedWhileRunning(t *testing.T) {
	client, _, _, _ := newTestClient(t)
	client.reconnecting.Store(true)

	if _, ok := client.ReconnectActiveStream(context.Background()); ok {
		t.Error("expected concurrent reconnect rejected")
	}
}

func TestPickResumable(t *testing.T) {
	running := &types.RemoteSession{ID: "r", Status: types.SessionStatusRunning}
	runningQuiet := &types.RemoteSession{ID: "rq", Status: types.SessionStatusRunning, BufferedEvents: 0}
	buffered := &types.RemoteSession{ID: "b", Status: types.SessionStatusCompleted, StreamComplete: true, BufferedEvents: 3}
	drained := &types.RemoteSession{ID: "d", Status: types.SessionStatusCompleted, StreamComplete: true, BufferedEvents: 0}

	tests := []struct {
		name     string
		sessions []*types.RemoteSession
		want     types.SessionID
	}{
		{"empty", nil, ""},
		{"prefers running over buffered", []*types.RemoteSession{buffered, running}, "r"},
		{"running with no output yet", []*types.RemoteSession{drained, runningQuiet}, "rq"},
		{"completed with buffered events", []*types.RemoteSession{drained, buffered}, "b"},
		{"completed and drained is not resumable", []*types.RemoteSession{drained}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pickResumable(tt.sessions)
			switch {
			case tt.want == "" && got != nil:
				t.Errorf("expected nil, got %s", got.ID)
			case tt.want != "" && (got == nil || got.ID != tt.want):
				t.Errorf("expected %s, got %+v", tt.want, got)
			}
		})
	}
}
