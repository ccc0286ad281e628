package ws

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/gobwas/ws"
)

// Upgrade performs the server side of the WebSocket handshake on an accepted
// connection. reader may hold bytes already consumed from conn while
// sniffing the protocol; nil means read from conn directly.
func Upgrade(conn net.Conn, reader io.Reader) (*Conn, error) {
	if reader == nil {
		reader = conn
	}
	if _, err := ws.Upgrade(readWriter{reader, conn}); err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}
	return newConn(conn, reader, ws.StateServerSide), nil
}

// Dial connects to the peer at address ("host:port") over WebSocket.
func Dial(ctx context.Context, address string) (*Conn, error) {
	conn, br, _, err := ws.Dial(ctx, "ws://"+address+"/")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to peer: %w", err)
	}
	var reader io.Reader
	if br != nil {
		reader = br
	}
	return newConn(conn, reader, ws.StateClientSide), nil
}
