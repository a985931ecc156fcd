// Package wsproto implements the RFC 6455 WebSocket framing spec.md §4.7
// names as its own, separately budgeted component: the accept handshake,
// masked-frame parsing, and unmasked-frame writing, built directly on
// net/http's Hijacker instead of github.com/gorilla/websocket.
//
// See DESIGN.md for why this hand-rolls framing rather than reusing the
// teacher's WebSocket dependency: spec.md gives this exactly the protocol
// mechanics a library would hide, and anchors its testable properties on
// them directly (masked client frames, ping/pong, payload length
// encodings).
package wsproto

import (
	"bufio"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"strings"
)

const magicGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// AcceptKey computes the Sec-WebSocket-Accept value for a client's
// Sec-WebSocket-Key, per RFC 6455 §1.3: SHA-1 of the key concatenated with
// the RFC magic GUID, base64-encoded.
func AcceptKey(clientKey string) string {
	h := sha1.New()
	h.Write([]byte(clientKey))
	h.Write([]byte(magicGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// Handshake validates the upgrade request, hijacks the underlying TCP
// connection, and writes the 101 Switching Protocols response. The caller
// owns the returned net.Conn/bufio.ReadWriter afterward — typically
// wrapping them in a Conn for framed reads/writes.
func Handshake(w http.ResponseWriter, r *http.Request) (net.Conn, *bufio.ReadWriter, error) {
	if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return nil, nil, fmt.Errorf("wsproto: missing Upgrade: websocket header")
	}
	key := r.Header.Get("Sec-WebSocket-Key")
	if key == "" {
		return nil, nil, fmt.Errorf("wsproto: missing Sec-WebSocket-Key")
	}

	hj, ok := w.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("wsproto: response writer does not support hijacking")
	}
	conn, rw, err := hj.Hijack()
	if err != nil {
		return nil, nil, fmt.Errorf("wsproto: hijack failed: %w", err)
	}

	accept := AcceptKey(key)
	response := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + accept + "\r\n\r\n"
	if _, err := rw.WriteString(response); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("wsproto: writing handshake response: %w", err)
	}
	if err := rw.Flush(); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("wsproto: flushing handshake response: %w", err)
	}
	return conn, rw, nil
}
