package transport_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/omochice/toy-peer-chat/internal/chat"
	"github.com/omochice/toy-peer-chat/internal/transport"
	"github.com/omochice/toy-peer-chat/pkg/protocol"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func connect(t *testing.T, serverKind, clientKind transport.Kind) (server, client chat.Conn) {
	t.Helper()
	logger := discardLogger()

	l, err := transport.Listen("127.0.0.1:0", serverKind, logger)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	addr := l.Addr()

	type result struct {
		conn chat.Conn
		err  error
	}
	accepted := make(chan result, 1)
	go func() {
		conn, err := l.Accept(context.Background())
		accepted <- result{conn, err}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err = transport.Dial(ctx, addr, clientKind, logger)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	// The auto listener only decides once the first byte arrives.
	if err := protocol.WriteFrame(client, protocol.Ident{Name: "alice"}); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}

	var res result
	select {
	case res = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("Accept() did not return")
	}
	if res.err != nil {
		t.Fatalf("Accept() error = %v", res.err)
	}
	t.Cleanup(func() {
		client.Close()
		res.conn.Close()
	})
	return res.conn, client
}

func TestListenDial(t *testing.T) {
	tests := []struct {
		name   string
		server transport.Kind
		client transport.Kind
	}{
		{"tcp", transport.KindTCP, transport.KindTCP},
		{"websocket", transport.KindWS, transport.KindWS},
		{"auto with tcp peer", transport.KindAuto, transport.KindTCP},
		{"auto with websocket peer", transport.KindAuto, transport.KindWS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, client := connect(t, tt.server, tt.client)

			f, err := protocol.ReadFrame(server)
			if err != nil {
				t.Fatalf("server ReadFrame() error = %v", err)
			}
			if ident, ok := f.(protocol.Ident); !ok || ident.Name != "alice" {
				t.Errorf("server got %#v, want Ident{alice}", f)
			}

			go protocol.WriteFrame(server, protocol.Ident{Name: "bob"})
			f, err = protocol.ReadFrame(client)
			if err != nil {
				t.Fatalf("client ReadFrame() error = %v", err)
			}
			if ident, ok := f.(protocol.Ident); !ok || ident.Name != "bob" {
				t.Errorf("client got %#v, want Ident{bob}", f)
			}
		})
	}
}

func TestAccept_CancelDuringHandshake(t *testing.T) {
	for _, kind := range []transport.Kind{transport.KindWS, transport.KindAuto} {
		t.Run(string(kind), func(t *testing.T) {
			l, err := transport.Listen("127.0.0.1:0", kind, discardLogger())
			if err != nil {
				t.Fatalf("Listen() error = %v", err)
			}
			addr := l.Addr()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			errCh := make(chan error, 1)
			go func() {
				_, err := l.Accept(ctx)
				errCh <- err
			}()

			// The peer connects but never sends a byte.
			silent, err := net.Dial("tcp", addr)
			if err != nil {
				t.Fatalf("net.Dial() error = %v", err)
			}
			defer silent.Close()

			time.Sleep(50 * time.Millisecond)
			cancel()

			select {
			case err := <-errCh:
				if !errors.Is(err, context.Canceled) {
					t.Errorf("Accept() error = %v, want context.Canceled", err)
				}
				var te *protocol.TransportError
				if !errors.As(err, &te) || te.Op != "accept" {
					t.Errorf("Accept() error = %v, want accept TransportError", err)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("Accept() still blocked after cancel")
			}
		})
	}
}

func TestDial_Failure(t *testing.T) {
	l, err := transport.Listen("127.0.0.1:0", transport.KindTCP, discardLogger())
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	addr := l.Addr()
	l.Close()

	_, err = transport.Dial(context.Background(), addr, transport.KindTCP, discardLogger())
	var te *protocol.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("Dial() error = %v, want *protocol.TransportError", err)
	}
	if te.Op != "dial" {
		t.Errorf("TransportError.Op = %q, want %q", te.Op, "dial")
	}
}

func TestListen_Failure(t *testing.T) {
	_, err := transport.Listen("127.0.0.1:99999", transport.KindTCP, discardLogger())
	var te *protocol.TransportError
	if !errors.As(err, &te) || te.Op != "listen" {
		t.Errorf("Listen() error = %v, want listen TransportError", err)
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    transport.Kind
		wantErr bool
	}{
		{"", transport.KindTCP, false},
		{"tcp", transport.KindTCP, false},
		{"ws", transport.KindWS, false},
		{"auto", transport.KindAuto, false},
		{"udp", "", true},
	}
	for _, tt := range tests {
		got, err := transport.ParseKind(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseKind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
