package wsproto

import (
	"bufio"
	"errors"
	"net"
	"unicode/utf8"
)

// ErrClosed is returned by ReadMessage when the peer sent a close frame.
var ErrClosed = errors.New("wsproto: connection closed")

// Conn is a framed WebSocket connection, reading masked client frames and
// writing unmasked server frames.
type Conn struct {
	netConn net.Conn
	rw      *bufio.ReadWriter
}

// NewConn wraps a hijacked connection (as returned by Handshake) for framed
// reads and writes.
func NewConn(netConn net.Conn, rw *bufio.ReadWriter) *Conn {
	return &Conn{netConn: netConn, rw: rw}
}

// ReadMessage blocks for the next text message. Ping frames are answered
// with an empty pong transparently; pong frames are ignored; non-UTF-8 text
// frames are dropped silently and reading continues (spec.md §4.7). A close
// frame yields ErrClosed; any other read failure is a socket error and is
// returned as-is, for the caller to treat as "mark the client dead".
func (c *Conn) ReadMessage() ([]byte, error) {
	for {
		f, err := readFrame(c.rw)
		if err != nil {
			return nil, err
		}
		switch f.opcode {
		case opClose:
			return nil, ErrClosed
		case opPing:
			if err := writeFrame(c.rw, opPong, nil); err != nil {
				return nil, err
			}
			if err := c.rw.Flush(); err != nil {
				return nil, err
			}
		case opPong:
			// No action required.
		case opText:
			if !utf8.Valid(f.payload) {
				continue
			}
			return f.payload, nil
		default:
			// opBinary and opContinuation are outside spec.md's accepted
			// shapes; drop and keep reading.
		}
	}
}

// WriteMessage sends an unfragmented, unmasked text frame.
func (c *Conn) WriteMessage(payload []byte) error {
	if err := writeFrame(c.rw, opText, payload); err != nil {
		return err
	}
	return c.rw.Flush()
}

// Close sends a close frame and closes the underlying socket.
func (c *Conn) Close() error {
	_ = writeFrame(c.rw, opClose, nil)
	_ = c.rw.Flush()
	return c.netConn.Close()
}
