// Package ws carries the peer byte stream inside WebSocket binary messages,
// one encoded frame per message, using gobwas/ws.
package ws

import (
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

const closeFrameTimeout = 100 * time.Millisecond

// Conn adapts a WebSocket connection to chat.Conn interface. Message
// payloads are concatenated into one continuous byte stream on read.
type Conn struct {
	conn   net.Conn
	reader io.Reader
	state  ws.State

	readMu        sync.Mutex
	readBuffer    []byte
	readBufferPos int

	writeMu sync.Mutex
}

func newConn(conn net.Conn, reader io.Reader, state ws.State) *Conn {
	if reader == nil {
		reader = conn
	}
	return &Conn{conn: conn, reader: reader, state: state}
}

// Read implements chat.Conn.
func (c *Conn) Read(p []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	for c.readBufferPos >= len(c.readBuffer) {
		// Control frames are answered through the locked writer so a pong
		// never lands inside a data message being written.
		data, op, err := wsutil.ReadData(readWriter{c.reader, lockedWriter{c}}, c.state)
		if err != nil {
			return 0, err
		}
		if op != ws.OpBinary {
			return 0, fmt.Errorf("unexpected websocket opcode %v", op)
		}
		c.readBuffer = data
		c.readBufferPos = 0
	}

	n := copy(p, c.readBuffer[c.readBufferPos:])
	c.readBufferPos += n
	if c.readBufferPos >= len(c.readBuffer) {
		c.readBuffer = nil
		c.readBufferPos = 0
	}
	return n, nil
}

// Write implements chat.Conn. p is sent as a single binary message.
func (c *Conn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := wsutil.WriteMessage(c.conn, c.state, ws.OpBinary, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close sends a close frame when no write is in flight and closes the
// connection. A blocked Write is interrupted rather than waited for.
func (c *Conn) Close() error {
	if c.writeMu.TryLock() {
		_ = c.conn.SetWriteDeadline(time.Now().Add(closeFrameTimeout))
		body := ws.NewCloseFrameBody(ws.StatusNormalClosure, "")
		_ = wsutil.WriteMessage(c.conn, c.state, ws.OpClose, body)
		c.writeMu.Unlock()
	}
	return c.conn.Close()
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

type readWriter struct {
	io.Reader
	io.Writer
}

type lockedWriter struct {
	c *Conn
}

func (w lockedWriter) Write(p []byte) (int, error) {
	w.c.writeMu.Lock()
	defer w.c.writeMu.Unlock()
	return w.c.conn.Write(p)
}
