// Package transport establishes the single peer connection for either role
// over raw TCP or WebSocket.
package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/omochice/toy-peer-chat/internal/chat"
	"github.com/omochice/toy-peer-chat/internal/transport/tcp"
	"github.com/omochice/toy-peer-chat/internal/transport/ws"
	"github.com/omochice/toy-peer-chat/pkg/protocol"
)

// Kind selects the stream carrying the frames.
type Kind string

const (
	KindTCP Kind = "tcp"
	KindWS  Kind = "ws"
	// KindAuto lets the server role accept either, by sniffing the first byte.
	KindAuto Kind = "auto"
)

// ParseKind validates a transport name; empty means tcp.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "", KindTCP:
		return KindTCP, nil
	case KindWS:
		return KindWS, nil
	case KindAuto:
		return KindAuto, nil
	default:
		return "", fmt.Errorf("unsupported transport %q", s)
	}
}

// Listener is the server role's side of connection setup.
type Listener struct {
	kind   Kind
	srv    *tcp.Server
	logger *slog.Logger
}

// Listen binds address for the server role.
func Listen(address string, kind Kind, logger *slog.Logger) (*Listener, error) {
	srv := tcp.New(address)
	if err := srv.Listen(); err != nil {
		return nil, &protocol.TransportError{Op: "listen", Addr: address, Err: err}
	}
	logger.Info("listening", "addr", srv.Addr(), "transport", string(kind))
	return &Listener{kind: kind, srv: srv, logger: logger}, nil
}

// Addr returns the bound address, empty once the peer has been accepted.
func (l *Listener) Addr() string {
	return l.srv.Addr()
}

// Close stops listening without accepting.
func (l *Listener) Close() {
	l.srv.Close()
}

// Accept waits for the one peer and wraps its connection per the kind.
// Cancelling ctx also aborts the protocol sniff and the WebSocket handshake.
func (l *Listener) Accept(ctx context.Context) (chat.Conn, error) {
	addr := l.srv.Addr()
	raw, err := l.srv.Accept(ctx)
	if err != nil {
		return nil, &protocol.TransportError{Op: "accept", Addr: addr, Err: err}
	}
	l.logger.Info("accepted peer", "remote", raw.RemoteAddr().String())

	if l.kind != KindWS && l.kind != KindAuto {
		return tcp.NewConn(raw), nil
	}

	stop := context.AfterFunc(ctx, func() { raw.Close() })
	conn, err := l.handshake(raw)
	if !stop() {
		if conn != nil {
			conn.Close()
		}
		return nil, &protocol.TransportError{Op: "accept", Addr: addr, Err: ctx.Err()}
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (l *Listener) handshake(raw net.Conn) (chat.Conn, error) {
	if l.kind == KindWS {
		return upgrade(raw, nil)
	}
	proto, reader, err := detectProtocol(raw)
	if err != nil {
		raw.Close()
		return nil, &protocol.TransportError{Op: "accept", Addr: raw.RemoteAddr().String(), Err: err}
	}
	if proto == protocolHTTP {
		l.logger.Debug("detected websocket peer")
		return upgrade(raw, reader)
	}
	return tcp.NewConnWithReader(raw, reader), nil
}

// Dial connects the client role to address.
func Dial(ctx context.Context, address string, kind Kind, logger *slog.Logger) (chat.Conn, error) {
	logger.Info("connecting", "target", address, "transport", string(kind))

	var (
		conn chat.Conn
		err  error
	)
	switch kind {
	case KindWS:
		conn, err = ws.Dial(ctx, address)
	default:
		conn, err = tcp.Dial(ctx, address)
	}
	if err != nil {
		logger.Warn("connect failed", "target", address, "error", err)
		return nil, &protocol.TransportError{Op: "dial", Addr: address, Err: err}
	}
	logger.Info("connected", "remote", conn.RemoteAddr())
	return conn, nil
}

func upgrade(raw net.Conn, reader io.Reader) (chat.Conn, error) {
	conn, err := ws.Upgrade(raw, reader)
	if err != nil {
		raw.Close()
		return nil, &protocol.TransportError{Op: "upgrade", Addr: raw.RemoteAddr().String(), Err: err}
	}
	return conn, nil
}
