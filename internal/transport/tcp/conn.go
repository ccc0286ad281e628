// Package tcp provides the raw TCP transport between the two peers.
package tcp

import (
	"io"
	"net"
)

// Conn adapts net.Conn to chat.Conn interface.
type Conn struct {
	conn   net.Conn
	reader io.Reader
}

// NewConn wraps a net.Conn.
func NewConn(conn net.Conn) *Conn {
	return &Conn{conn: conn, reader: conn}
}

// NewConnWithReader wraps a net.Conn whose first bytes were already
// buffered by reader while sniffing the protocol.
func NewConnWithReader(conn net.Conn, reader io.Reader) *Conn {
	return &Conn{conn: conn, reader: reader}
}

// Read implements chat.Conn.
func (c *Conn) Read(p []byte) (int, error) {
	return c.reader.Read(p)
}

// Write implements chat.Conn.
func (c *Conn) Write(p []byte) (int, error) {
	return c.conn.Write(p)
}

// Close implements chat.Conn.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
