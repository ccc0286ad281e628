package ws_test

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/omochice/toy-peer-chat/internal/chat"
	"github.com/omochice/toy-peer-chat/internal/transport/ws"
	"github.com/omochice/toy-peer-chat/pkg/protocol"
)

func TestConn_ImplementsInterface(t *testing.T) {
	var _ chat.Conn = (*ws.Conn)(nil)
}

// pair returns both ends of an upgraded loopback connection.
func pair(t *testing.T) (server, client *ws.Conn) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer listener.Close()

	type result struct {
		conn *ws.Conn
		err  error
	}
	accepted := make(chan result, 1)
	go func() {
		raw, err := listener.Accept()
		if err != nil {
			accepted <- result{err: err}
			return
		}
		conn, err := ws.Upgrade(raw, nil)
		accepted <- result{conn: conn, err: err}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err = ws.Dial(ctx, listener.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	res := <-accepted
	if res.err != nil {
		t.Fatalf("Upgrade() error = %v", res.err)
	}
	t.Cleanup(func() {
		client.Close()
		res.conn.Close()
	})
	return res.conn, client
}

func TestConn_FramesAcrossMessages(t *testing.T) {
	server, client := pair(t)

	want := []protocol.Frame{
		protocol.Ident{Name: "alice"},
		protocol.Msg{Content: "hi"},
		protocol.Ping{LastActive: 42},
	}

	go func() {
		for _, f := range want {
			if err := protocol.WriteFrame(client, f); err != nil {
				t.Errorf("WriteFrame() error = %v", err)
				return
			}
		}
	}()

	for i, w := range want {
		got, err := protocol.ReadFrame(server)
		if err != nil {
			t.Fatalf("ReadFrame() #%d error = %v", i, err)
		}
		if got.Type() != w.Type() {
			t.Errorf("ReadFrame() #%d type = %v, want %v", i, got.Type(), w.Type())
		}
	}
}

func TestConn_SmallReadBuffer(t *testing.T) {
	server, client := pair(t)

	go func() {
		if _, err := server.Write([]byte("hello websocket")); err != nil {
			t.Errorf("Write() error = %v", err)
		}
	}()

	buf := make([]byte, len("hello websocket"))
	for off := 0; off < len(buf); off += 3 {
		end := min(off+3, len(buf))
		if _, err := io.ReadFull(client, buf[off:end]); err != nil {
			t.Fatalf("ReadFull() error = %v", err)
		}
	}
	if string(buf) != "hello websocket" {
		t.Errorf("Read() = %q, want %q", string(buf), "hello websocket")
	}
}

func TestConn_CloseEndsPeerRead(t *testing.T) {
	server, client := pair(t)

	errCh := make(chan error, 1)
	go func() {
		_, err := protocol.ReadFrame(server)
		errCh <- err
	}()

	client.Close()

	select {
	case err := <-errCh:
		if !protocol.IsConnectionLost(err) {
			t.Errorf("ReadFrame() error = %v, want connection lost", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ReadFrame() still blocked after peer close")
	}
}

func TestConn_RemoteAddr(t *testing.T) {
	server, client := pair(t)
	if server.RemoteAddr() == "" || client.RemoteAddr() == "" {
		t.Error("RemoteAddr() returned empty string")
	}
}
