package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"golang.org/x/net/netutil"
)

// Server listens for the one peer connection of the server role.
type Server struct {
	address  string
	listener net.Listener
	mu       sync.Mutex
}

// New creates a Server that will listen on address.
func New(address string) *Server {
	return &Server{address: address}
}

// Listen binds the listening socket. At most one connection is admitted.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}

	s.mu.Lock()
	s.listener = netutil.LimitListener(listener, 1)
	s.mu.Unlock()
	return nil
}

// Accept waits for exactly one inbound connection and then stops listening.
// Cancelling ctx aborts the wait.
func (s *Server) Accept(ctx context.Context) (net.Conn, error) {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return nil, errors.New("server is not listening")
	}

	stop := context.AfterFunc(ctx, func() { listener.Close() })
	defer stop()

	conn, err := listener.Accept()
	s.Close()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to accept connection: %w", err)
	}
	return conn, nil
}

// Close stops listening.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		s.listener.Close()
		s.listener = nil
	}
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
