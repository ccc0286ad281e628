// Package session runs one two-party chat connection: the handshake, the
// heartbeat, the idle evaluator and message exchange.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/omochice/toy-peer-chat/internal/chat"
	"github.com/omochice/toy-peer-chat/internal/metrics"
	"github.com/omochice/toy-peer-chat/internal/queue"
	"github.com/omochice/toy-peer-chat/internal/trace"
	"github.com/omochice/toy-peer-chat/internal/transport"
	"github.com/omochice/toy-peer-chat/pkg/protocol"
)

var (
	// ErrConnectionLost means the stream to the peer failed or was closed by it.
	ErrConnectionLost = errors.New("connection lost")
	// ErrNotConnected is returned when sending before the handshake completed.
	ErrNotConnected = errors.New("not connected")
)

// Options configures a Session.
type Options struct {
	Name      string
	Role      Role
	Address   string
	Port      int
	Transport transport.Kind

	// OnEvent is called after every state change, outside the session locks.
	OnEvent func(Event)
	// OnListen is called with the bound address once the server is listening.
	OnListen func(addr string)

	Logger *slog.Logger
	Tracer *trace.Recorder
	Clock  func() time.Time
	Timing Timing
}

// Session is one peer connection. All state lives behind stateMu; every
// socket write goes through sendMu. stateMu is never held while writing.
type Session struct {
	id        string
	name      string
	role      Role
	address   string
	port      int
	transport transport.Kind
	onEvent   func(Event)
	onListen  func(string)
	logger    *slog.Logger
	tracer    *trace.Recorder
	clock     func() time.Time
	timing    Timing

	stateMu     sync.Mutex
	status      Status
	peerName    string
	peerAddress string
	lastLocal   uint32
	lastPeer    uint32
	input       []byte
	conn        chat.Conn

	sendMu sync.Mutex

	log   *chat.Log
	inbox *queue.FrameQueue

	closeOnce sync.Once
	closeErr  error
}

// New creates a disconnected session.
func New(opts Options) *Session {
	id := uuid.NewString()

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	kind := opts.Transport
	if kind == "" {
		kind = transport.KindTCP
	}

	s := &Session{
		id:        id,
		name:      opts.Name,
		role:      opts.Role,
		address:   opts.Address,
		port:      opts.Port,
		transport: kind,
		onEvent:   opts.OnEvent,
		onListen:  opts.OnListen,
		logger:    logger.With("session_id", id, "role", opts.Role.String()),
		tracer:    opts.Tracer,
		clock:     clock,
		timing:    opts.Timing.withDefaults(),
		log:       chat.NewLog(),
		inbox:     queue.New(),
	}
	s.lastLocal = s.now()
	metrics.SetStatus(int(Disconnected))
	return s
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string {
	return s.id
}

// Connect establishes the connection for the session's role. The server
// accepts exactly one peer; the client dials and sends its Ident.
func (s *Session) Connect(ctx context.Context) error {
	if s.role == Server {
		return s.listenAndAccept(ctx)
	}

	addr := net.JoinHostPort(s.address, strconv.Itoa(s.port))
	conn, err := transport.Dial(ctx, addr, s.transport, s.logger)
	if err != nil {
		return err
	}
	s.Attach(conn)

	if err := s.write(conn, protocol.Ident{Name: s.name}); err != nil {
		conn.Close()
		return err
	}
	return nil
}

func (s *Session) listenAndAccept(ctx context.Context) error {
	l, err := transport.Listen(net.JoinHostPort("", strconv.Itoa(s.port)), s.transport, s.logger)
	if err != nil {
		return err
	}
	defer l.Close()

	if s.onListen != nil {
		s.onListen(l.Addr())
	}

	conn, err := l.Accept(ctx)
	if err != nil {
		return err
	}
	s.Attach(conn)
	return nil
}

// Attach adopts an established connection. The session stays Disconnected
// until the peer's Ident arrives.
func (s *Session) Attach(conn chat.Conn) {
	s.stateMu.Lock()
	s.conn = conn
	s.peerAddress = conn.RemoteAddr()
	addr := s.peerAddress
	s.stateMu.Unlock()

	s.logger.Info("peer attached", "remote", addr)
	s.emit(Event{Kind: EventPeer, Peer: addr})
}

// Run drives the connection until ctx is cancelled or the stream fails.
// It returns nil on cancellation and an error wrapping ErrConnectionLost
// otherwise. The session is closed when Run returns.
func (s *Session) Run(ctx context.Context) error {
	conn := s.connection()
	if conn == nil {
		return ErrNotConnected
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.receiveLoop(conn)
	})
	g.Go(func() error {
		s.deliveryLoop()
		return nil
	})
	g.Go(func() error {
		s.idleLoop(gctx)
		return nil
	})
	if s.role == Server {
		g.Go(func() error {
			return s.heartbeatLoop(gctx, conn)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		s.Close()
		return nil
	})

	err := g.Wait()
	if ctx.Err() != nil {
		s.logger.Info("session stopped")
		return nil
	}
	s.logger.Warn("session ended", "error", err)
	return err
}

// Close tears the session down. It unblocks a pending read and releases the
// delivery loop; it is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if conn := s.connection(); conn != nil {
			s.closeErr = conn.Close()
		}
		s.inbox.Close()
		metrics.SetInboxDepth(0)
	})
	return s.closeErr
}

// Snapshot returns a consistent copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	return Snapshot{
		Role:              s.role,
		Status:            s.status,
		LocalName:         s.name,
		PeerName:          s.peerName,
		PeerAddress:       s.peerAddress,
		LastLocalActivity: s.lastLocal,
		LastPeerActivity:  s.lastPeer,
		Input:             string(s.input),
		Log:               s.log.Entries(),
	}
}

// InsertRune appends r to the input buffer. Runes that would push the
// buffer past the wire content limit are ignored.
func (s *Session) InsertRune(r rune) {
	s.stateMu.Lock()
	s.lastLocal = s.now()
	if len(s.input)+utf8.RuneLen(r) <= protocol.MaxContentLen && utf8.ValidRune(r) {
		s.input = utf8.AppendRune(s.input, r)
	}
	s.stateMu.Unlock()

	s.emit(Event{Kind: EventInput})
}

// Backspace removes the last rune of the input buffer.
func (s *Session) Backspace() {
	s.stateMu.Lock()
	s.lastLocal = s.now()
	if len(s.input) > 0 {
		_, size := utf8.DecodeLastRune(s.input)
		s.input = s.input[:len(s.input)-size]
	}
	s.stateMu.Unlock()

	s.emit(Event{Kind: EventInput})
}

// SendInput sends the input buffer as a message and clears it. The buffer
// is kept when the session is not connected. An empty buffer sends nothing.
func (s *Session) SendInput() error {
	s.stateMu.Lock()
	s.lastLocal = s.now()
	status := s.status
	content := string(s.input)
	s.stateMu.Unlock()

	if status == Disconnected {
		return ErrNotConnected
	}
	if content == "" {
		return nil
	}

	if err := s.Send(protocol.Msg{Content: content}); err != nil {
		return err
	}

	// Runes typed while the message was being written stay in the buffer.
	s.stateMu.Lock()
	if bytes.HasPrefix(s.input, []byte(content)) {
		s.input = append(s.input[:0], s.input[len(content):]...)
	}
	s.stateMu.Unlock()

	s.emit(Event{Kind: EventInput})
	return nil
}

// Send writes msg to the peer and records it in the log.
func (s *Session) Send(msg protocol.Msg) error {
	s.stateMu.Lock()
	conn, status := s.conn, s.status
	s.stateMu.Unlock()

	if conn == nil || status == Disconnected {
		return ErrNotConnected
	}
	if err := s.write(conn, msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	entry := chat.Entry{
		Direction:   chat.Outgoing,
		Content:     msg.Content,
		Attachments: attachmentNames(msg.Attachments),
	}
	s.log.Append(entry)
	metrics.RecordMessage(chat.Outgoing.String())
	s.emit(Event{Kind: EventMessage, Entry: entry})
	return nil
}

func (s *Session) receiveLoop(conn chat.Conn) error {
	for {
		f, err := protocol.ReadFrame(conn)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrConnectionLost, err)
		}
		metrics.RecordFrame(metrics.DirectionReceived, f.Type().String())
		if err := s.tracer.Record(trace.Received, f); err != nil {
			s.logger.Warn("failed to record frame", "error", err)
		}

		if err := s.handleFrame(conn, f); err != nil {
			return fmt.Errorf("%w: %w", ErrConnectionLost, err)
		}
	}
}

func (s *Session) handleFrame(conn chat.Conn, f protocol.Frame) error {
	switch v := f.(type) {
	case protocol.Ident:
		s.stateMu.Lock()
		s.peerName = v.Name
		s.lastPeer = s.now()
		changed := s.status != Connected
		s.status = Connected
		s.stateMu.Unlock()

		s.logger.Info("peer identified", "peer", v.Name)
		if changed {
			metrics.SetStatus(int(Connected))
		}
		s.emit(Event{Kind: EventStatus, Status: Connected, Peer: v.Name})

		if s.role == Server {
			return s.write(conn, protocol.Ident{Name: s.name})
		}
	case protocol.Ping:
		s.stateMu.Lock()
		s.lastPeer = v.LastActive
		local := s.lastLocal
		s.stateMu.Unlock()

		return s.write(conn, protocol.Pong{LastActive: local})
	case protocol.Pong:
		s.stateMu.Lock()
		s.lastPeer = v.LastActive
		s.stateMu.Unlock()
	case protocol.Msg:
		s.inbox.Push(v)
		metrics.SetInboxDepth(s.inbox.Len())
	default:
		s.logger.Debug("ignoring frame", "type", f.Type().String())
	}
	return nil
}

func (s *Session) deliveryLoop() {
	for {
		f, ok := s.inbox.Pop()
		if !ok {
			return
		}
		metrics.SetInboxDepth(s.inbox.Len())

		msg, ok := f.(protocol.Msg)
		if !ok {
			continue
		}
		entry := chat.Entry{
			Direction:   chat.Incoming,
			Content:     msg.Content,
			Attachments: attachmentNames(msg.Attachments),
		}
		s.log.Append(entry)
		metrics.RecordMessage(chat.Incoming.String())

		s.stateMu.Lock()
		peer := s.peerName
		s.stateMu.Unlock()
		s.emit(Event{Kind: EventMessage, Peer: peer, Entry: entry})
	}
}

func (s *Session) idleLoop(ctx context.Context) {
	ticker := time.NewTicker(s.timing.IdleCheck)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkIdle()
		}
	}
}

// checkIdle flips Connected and Idle on the peer's activity gap. It never
// leaves or enters Disconnected.
func (s *Session) checkIdle() {
	now := s.clock()

	s.stateMu.Lock()
	gap := now.Sub(time.Unix(int64(s.lastPeer), 0))
	prev := s.status
	switch {
	case s.status == Connected && gap > s.timing.IdleTimeout:
		s.status = Idle
	case s.status == Idle && gap <= s.timing.IdleTimeout:
		s.status = Connected
	}
	next := s.status
	s.stateMu.Unlock()

	if next == prev {
		return
	}
	s.logger.Debug("status changed", "from", prev.String(), "to", next.String(), "gap", gap)
	metrics.SetStatus(int(next))
	s.emit(Event{Kind: EventStatus, Status: next})
}

func (s *Session) heartbeatLoop(ctx context.Context, conn chat.Conn) error {
	ticker := time.NewTicker(s.timing.Heartbeat)
	defer ticker.Stop()

	for {
		s.stateMu.Lock()
		local := s.lastLocal
		s.stateMu.Unlock()

		if err := s.write(conn, protocol.Ping{LastActive: local}); err != nil {
			return fmt.Errorf("%w: %w", ErrConnectionLost, err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Session) write(conn chat.Conn, f protocol.Frame) error {
	s.sendMu.Lock()
	err := protocol.WriteFrame(conn, f)
	s.sendMu.Unlock()
	if err != nil {
		return err
	}

	metrics.RecordFrame(metrics.DirectionSent, f.Type().String())
	if err := s.tracer.Record(trace.Sent, f); err != nil {
		s.logger.Warn("failed to record frame", "error", err)
	}
	return nil
}

func (s *Session) connection() chat.Conn {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.conn
}

func (s *Session) emit(e Event) {
	if s.onEvent != nil {
		s.onEvent(e)
	}
}

func (s *Session) now() uint32 {
	return uint32(s.clock().Unix())
}

func attachmentNames(as []protocol.Attachment) []string {
	if len(as) == 0 {
		return []string{}
	}
	names := make([]string, len(as))
	for i, a := range as {
		names[i] = a.Name
	}
	return names
}
