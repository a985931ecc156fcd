// Package hub implements the event fan-out described in spec.md §4.2: one
// agent producer broadcasting to N browser consumers, with full replay for
// late joiners.
//
// The teacher's wsHub (internal/dashboard/websocket.go) serializes all
// mutation through a single goroutine reading off channels, so the
// connections map never needs a lock. spec.md §5 instead calls for a single
// logical mutex guarding the engine's shared state, hub included ("all
// public mutators ... hub broadcast, hub connect/disconnect hold it"), so
// this hub is grounded on the teacher's *other* concurrency idiom instead —
// the sync.RWMutex-guarded structs used by internal/engine.Engine,
// internal/agent.Registry, and internal/agent.KillSwitch. The per-client
// slow-reader handling (non-blocking send, drop on full buffer) is carried
// over unchanged from wsHub.broadcast.
package hub

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/explorerd/explorerd/internal/events"
)

// Hub fans out outbound client messages to every connected browser and
// keeps the replayable history buffer spec.md §3 describes.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]bool
	history [][]byte
}

// New creates an empty Hub.
func New() *Hub {
	return &Hub{clients: make(map[*Client]bool)}
}

// Connect registers client and returns the frames to deliver synchronously,
// in order: the init snapshot, every prior history entry, and (if given) a
// chat_history frame — matching spec.md §4.2's connect() contract.
func (h *Hub) Connect(client *Client, init events.ClientMessage, chatHistory *events.ClientMessage) ([][]byte, error) {
	initBytes, err := json.Marshal(init)
	if err != nil {
		return nil, fmt.Errorf("marshaling init frame: %w", err)
	}

	var chatBytes []byte
	if chatHistory != nil {
		chatBytes, err = json.Marshal(*chatHistory)
		if err != nil {
			return nil, fmt.Errorf("marshaling chat history frame: %w", err)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true

	frames := make([][]byte, 0, 2+len(h.history))
	frames = append(frames, initBytes)
	frames = append(frames, h.history...)
	if chatBytes != nil {
		frames = append(frames, chatBytes)
	}
	return frames, nil
}

// Disconnect removes client from the live set, idempotently.
func (h *Hub) Disconnect(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.Close()
	}
}

// Broadcast serializes msg, appends it to history, and sends it to every
// live client. A client whose outbox is full is dropped from the set —
// this never blocks the broadcast (spec.md §4.2, §5).
func (h *Hub) Broadcast(msg events.ClientMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling broadcast message: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.history = append(h.history, data)
	for c := range h.clients {
		if !c.enqueue(data) {
			delete(h.clients, c)
			c.Close()
		}
	}
	return nil
}

// SendTo enqueues msg to a single client without broadcasting it to the
// rest of the set or recording it in the replay history. Used for
// per-client responses such as load_history's full-history reply
// (spec.md §4.2/§4.4), which only the requesting client should receive.
func (h *Hub) SendTo(client *Client, msg events.ClientMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return nil
	}
	if !client.enqueue(data) {
		delete(h.clients, client)
		client.Close()
	}
	return nil
}

// ClientCount returns the number of live clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HistoryLength returns the number of entries in the replay buffer.
func (h *Hub) HistoryLength() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.history)
}

// ResetHistory clears the replay buffer. Called on start/resume, not on
// crash (spec.md §3's event history buffer invariant).
func (h *Hub) ResetHistory() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.history = nil
}
