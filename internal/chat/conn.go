// Package chat holds the pieces shared by the transports and the session:
// the byte-stream connection abstraction and the message log.
package chat

// Conn abstracts the single bidirectional byte stream to the peer, for both
// raw TCP and WebSocket. Frames are decoded from and encoded onto it by
// package protocol, so Read and Write carry raw stream bytes.
type Conn interface {
	// Read reads up to len(p) stream bytes.
	// Returns io.EOF when the peer has closed the connection.
	Read(p []byte) (int, error)

	// Write writes one encoded frame.
	Write(p []byte) (int, error)

	// Close closes the connection, unblocking a pending Read.
	Close() error

	// RemoteAddr returns the peer address for display and logging.
	RemoteAddr() string
}
