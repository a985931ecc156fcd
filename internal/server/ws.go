package server

import (
	"log/slog"
	"net/http"

	"github.com/explorerd/explorerd/internal/engine"
	"github.com/explorerd/explorerd/internal/hub"
	"github.com/explorerd/explorerd/internal/wsproto"
	"github.com/google/uuid"
)

// clientOutboxSize bounds each browser's per-connection send buffer before
// the hub considers it a slow reader and drops it (spec.md §4.2, §5).
const clientOutboxSize = 64

// handleWS upgrades the connection, registers a hub.Client, and runs the
// read/write pumps for its lifetime. Grounded on the teacher's
// dashboard.handleWebSocket/writePump/readPump split (internal/dashboard/
// websocket.go), rebuilt on wsproto.Conn instead of gorilla/websocket.
func handleWS(eng *engine.Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != eng.Secret() {
			w.WriteHeader(http.StatusForbidden)
			return
		}

		netConn, rw, err := wsproto.Handshake(w, r)
		if err != nil {
			logger.Warn("websocket handshake failed", "error", err)
			return
		}
		conn := wsproto.NewConn(netConn, rw)

		client := hub.NewClient(uuid.NewString(), clientOutboxSize)
		frames, err := eng.Connect(client)
		if err != nil {
			logger.Error("connect failed", "error", err)
			_ = conn.Close()
			return
		}

		for _, f := range frames {
			if err := conn.WriteMessage(f); err != nil {
				eng.Disconnect(client)
				return
			}
		}

		done := make(chan struct{})
		go writePump(conn, client, done)
		readPump(eng, conn, client, logger)
		<-done
	}
}

// writePump drains the client's outbox onto the socket until it's closed
// by the hub (client dropped) or a write fails (socket error, handled by
// readPump noticing the read side break).
func writePump(conn *wsproto.Conn, client *hub.Client, done chan<- struct{}) {
	defer close(done)
	for msg := range client.Outbox() {
		if err := conn.WriteMessage(msg); err != nil {
			return
		}
	}
}

// readPump reads inbound frames and dispatches them to the engine via
// hub.HandleInbound (internal/hub/dispatch.go) until the client disconnects
// or the socket errors, then unregisters it from the hub (spec.md §4.2's
// dispatcher contract). *engine.Engine already satisfies hub.Dispatcher,
// so this is the single parse-and-route path for every inbound frame
// shape (spec.md §6: {type, text?, modelId?, provider?}) rather than a
// second copy of the switch.
func readPump(eng *engine.Engine, conn *wsproto.Conn, client *hub.Client, logger *slog.Logger) {
	defer func() {
		eng.Disconnect(client)
		_ = conn.Close()
	}()

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		eng.Hub().HandleInbound(client, data, eng)
	}
}
