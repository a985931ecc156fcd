package hub

import "sync"

// Client is one live WebSocket connection's send-side handle. The transport
// layer (internal/wsproto, internal/server) owns the socket and drains
// Outbox in a per-connection write pump; the hub only ever enqueues.
//
// Grounded on the teacher's wsConn (internal/dashboard/websocket.go): a
// buffered outbound channel plus a mutex, so a slow reader never blocks the
// hub's broadcast.
type Client struct {
	id     string
	outbox chan []byte

	mu     sync.Mutex
	closed bool
}

// NewClient creates a Client with the given outbox buffer size. id is
// opaque to the hub; callers use it for logging.
func NewClient(id string, bufSize int) *Client {
	return &Client{id: id, outbox: make(chan []byte, bufSize)}
}

// ID returns the client's opaque identifier.
func (c *Client) ID() string { return c.id }

// Outbox is the channel the transport layer's write pump drains.
func (c *Client) Outbox() <-chan []byte { return c.outbox }

// enqueue attempts a non-blocking send. Returns false if the outbox is full
// or the client is already closed, in which case the caller must drop the
// client (spec.md §4.2: "failing sends mark the client dead").
func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.outbox <- data:
		return true
	default:
		return false
	}
}

// Close marks the client dead and closes its outbox, idempotently.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.outbox)
}
