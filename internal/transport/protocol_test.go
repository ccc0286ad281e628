package transport

import (
	"net"
	"testing"
)

func TestDetectProtocol(t *testing.T) {
	tests := []struct {
		name  string
		first []byte
		want  protocolType
	}{
		{"ident frame", []byte{0x00, 0x05}, protocolTCP},
		{"msg frame", []byte{0x01}, protocolTCP},
		{"websocket upgrade", []byte("GET / HTTP/1.1\r\n"), protocolHTTP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, client := net.Pipe()
			defer server.Close()
			defer client.Close()

			go client.Write(tt.first)

			got, reader, err := detectProtocol(server)
			if err != nil {
				t.Fatalf("detectProtocol() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("detectProtocol() = %v, want %v", got, tt.want)
			}
			b, err := reader.ReadByte()
			if err != nil || b != tt.first[0] {
				t.Errorf("peeked byte consumed: got %v, %v", b, err)
			}
		})
	}
}

func TestDetectProtocol_ClosedConn(t *testing.T) {
	server, client := net.Pipe()
	client.Close()
	defer server.Close()

	if _, _, err := detectProtocol(server); err == nil {
		t.Error("detectProtocol() on closed conn error = nil")
	}
}
