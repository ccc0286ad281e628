package tcp

import (
	"context"
	"fmt"
	"net"
	"time"
)

const dialTimeout = 6 * time.Second

// Dial connects to the listening peer at address.
func Dial(ctx context.Context, address string) (*Conn, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to peer: %w", err)
	}
	return NewConn(conn), nil
}
