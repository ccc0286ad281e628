package transport

import (
	"bufio"
	"net"
)

type protocolType int

const (
	protocolTCP protocolType = iota
	protocolHTTP
)

// detectProtocol peeks at the first byte to tell a WebSocket handshake from
// a raw frame stream. Frames start with a type byte in 0..3 while an HTTP
// upgrade request starts with "GET ". A single byte is enough and never
// blocks on a short first frame.
func detectProtocol(conn net.Conn) (protocolType, *bufio.Reader, error) {
	reader := bufio.NewReader(conn)

	peek, err := reader.Peek(1)
	if err != nil {
		return protocolTCP, reader, err
	}

	if peek[0] == 'G' {
		return protocolHTTP, reader, nil
	}

	return protocolTCP, reader, nil
}
