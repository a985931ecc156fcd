package hub

import (
	"encoding/json"
	"testing"

	"github.com/explorerd/explorerd/internal/events"
)

func TestConnect_ReturnsInitThenHistory(t *testing.T) {
	h := New()

	if err := h.Broadcast(events.ClientMessage{Kind: events.ClientDocReady, Payload: events.DocReadyPayload{Path: "a.html"}}); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}

	client := NewClient("c1", 8)
	init := events.ClientMessage{Kind: events.ClientInit, Payload: events.InitPayload{TargetPath: "/tmp/p"}}
	frames, err := h.Connect(client, init, nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("expected init + 1 history frame, got %d", len(frames))
	}

	var first map[string]any
	if err := json.Unmarshal(frames[0], &first); err != nil {
		t.Fatalf("unmarshal init frame: %v", err)
	}
	if first["type"] != "init" {
		t.Fatalf("expected first frame type init, got %v", first["type"])
	}

	var second map[string]any
	if err := json.Unmarshal(frames[1], &second); err != nil {
		t.Fatalf("unmarshal history frame: %v", err)
	}
	if second["type"] != "doc_ready" {
		t.Fatalf("expected second frame type doc_ready, got %v", second["type"])
	}

	if h.ClientCount() != 1 {
		t.Fatalf("expected 1 connected client, got %d", h.ClientCount())
	}
}

func TestConnect_IncludesChatHistoryWhenProvided(t *testing.T) {
	h := New()
	client := NewClient("c1", 8)
	init := events.ClientMessage{Kind: events.ClientInit, Payload: events.InitPayload{}}
	chat := events.ClientMessage{Kind: events.ClientChatHistory, Payload: events.ChatHistoryPayload{IsFullHistory: false}}

	frames, err := h.Connect(client, init, &chat)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("expected init + chat_history frames, got %d", len(frames))
	}
}

func TestBroadcast_DeliversToLiveClientsAndAppendsHistory(t *testing.T) {
	h := New()
	c1 := NewClient("c1", 8)
	c2 := NewClient("c2", 8)
	h.Connect(c1, events.ClientMessage{Kind: events.ClientInit, Payload: events.InitPayload{}}, nil)
	h.Connect(c2, events.ClientMessage{Kind: events.ClientInit, Payload: events.InitPayload{}}, nil)

	if err := h.Broadcast(events.ClientMessage{Kind: events.ClientAgentStopped, Payload: nil}); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}

	for _, c := range []*Client{c1, c2} {
		select {
		case data := <-c.Outbox():
			var m map[string]any
			json.Unmarshal(data, &m)
			if m["type"] != "agent_stopped" {
				t.Fatalf("unexpected broadcast payload for %s: %v", c.ID(), m)
			}
		default:
			t.Fatalf("expected %s to receive the broadcast", c.ID())
		}
	}

	if h.HistoryLength() != 1 {
		t.Fatalf("expected history length 1, got %d", h.HistoryLength())
	}
}

func TestBroadcast_DropsSlowClient(t *testing.T) {
	h := New()
	slow := NewClient("slow", 1)
	h.Connect(slow, events.ClientMessage{Kind: events.ClientInit, Payload: events.InitPayload{}}, nil)

	// Fill the 1-slot outbox so the next broadcast can't enqueue.
	if err := h.Broadcast(events.ClientMessage{Kind: events.ClientHeartbeat, Payload: events.HeartbeatPayload{}}); err != nil {
		t.Fatalf("Broadcast 1: %v", err)
	}
	if err := h.Broadcast(events.ClientMessage{Kind: events.ClientHeartbeat, Payload: events.HeartbeatPayload{}}); err != nil {
		t.Fatalf("Broadcast 2: %v", err)
	}

	if h.ClientCount() != 0 {
		t.Fatalf("expected the slow client to be dropped, count=%d", h.ClientCount())
	}
}

func TestDisconnect_RemovesClient(t *testing.T) {
	h := New()
	c := NewClient("c1", 8)
	h.Connect(c, events.ClientMessage{Kind: events.ClientInit, Payload: events.InitPayload{}}, nil)
	h.Disconnect(c)
	if h.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after disconnect, got %d", h.ClientCount())
	}
}

func TestResetHistory(t *testing.T) {
	h := New()
	h.Broadcast(events.ClientMessage{Kind: events.ClientAgentStopped, Payload: nil})
	if h.HistoryLength() != 1 {
		t.Fatal("expected 1 history entry before reset")
	}
	h.ResetHistory()
	if h.HistoryLength() != 0 {
		t.Fatal("expected history cleared after reset")
	}
}

type fakeDispatcher struct {
	prompted      string
	aborted       bool
	stopped       bool
	changedModel  string
	changedProv   string
	historyLoaded bool
}

func (f *fakeDispatcher) Prompt(text string)                  { f.prompted = text }
func (f *fakeDispatcher) Abort()                               { f.aborted = true }
func (f *fakeDispatcher) Stop()                                { f.stopped = true }
func (f *fakeDispatcher) ChangeModel(modelID, provider string) { f.changedModel, f.changedProv = modelID, provider }
func (f *fakeDispatcher) LoadHistory(client *Client)           { f.historyLoaded = true }

func TestHandleInbound_RoutesEachType(t *testing.T) {
	h := New()
	client := NewClient("c1", 8)

	cases := []struct {
		raw   string
		check func(*testing.T, *fakeDispatcher)
	}{
		{`{"type":"prompt","text":"hello"}`, func(t *testing.T, f *fakeDispatcher) {
			if f.prompted != "hello" {
				t.Fatalf("expected prompt routed, got %+v", f)
			}
		}},
		{`{"type":"abort"}`, func(t *testing.T, f *fakeDispatcher) {
			if !f.aborted {
				t.Fatalf("expected abort routed, got %+v", f)
			}
		}},
		{`{"type":"stop"}`, func(t *testing.T, f *fakeDispatcher) {
			if !f.stopped {
				t.Fatalf("expected stop routed, got %+v", f)
			}
		}},
		{`{"type":"change_model","modelId":"m","provider":"p"}`, func(t *testing.T, f *fakeDispatcher) {
			if f.changedModel != "m" || f.changedProv != "p" {
				t.Fatalf("expected change_model routed, got %+v", f)
			}
		}},
		{`{"type":"load_history"}`, func(t *testing.T, f *fakeDispatcher) {
			if !f.historyLoaded {
				t.Fatalf("expected load_history routed, got %+v", f)
			}
		}},
	}

	for _, c := range cases {
		f := &fakeDispatcher{}
		h.HandleInbound(client, []byte(c.raw), f)
		c.check(t, f)
	}
}

func TestHandleInbound_MalformedJSON_DroppedSilently(t *testing.T) {
	h := New()
	client := NewClient("c1", 8)
	f := &fakeDispatcher{}
	h.HandleInbound(client, []byte("not json"), f)
	if f.prompted != "" || f.aborted || f.stopped {
		t.Fatalf("expected no dispatch for malformed input, got %+v", f)
	}
}
