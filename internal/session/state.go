package session

import (
	"time"

	"github.com/omochice/toy-peer-chat/internal/chat"
)

// Status is the liveness of the peer connection.
type Status int

const (
	Disconnected Status = iota
	Connected
	Idle
)

// String returns the string representation of Status
func (s Status) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connected:
		return "Connected"
	case Idle:
		return "Idle"
	default:
		return "Unknown"
	}
}

// Role decides who listens, who sends the first Ident and who pings.
type Role int

const (
	Client Role = iota
	Server
)

// String returns the string representation of Role
func (r Role) String() string {
	if r == Server {
		return "server"
	}
	return "client"
}

// EventKind tells what changed.
type EventKind int

const (
	EventStatus EventKind = iota
	EventPeer
	EventMessage
	EventInput
)

// String returns the string representation of EventKind
func (k EventKind) String() string {
	switch k {
	case EventStatus:
		return "status"
	case EventPeer:
		return "peer"
	case EventMessage:
		return "message"
	case EventInput:
		return "input"
	default:
		return "unknown"
	}
}

// Event is delivered to Options.OnEvent after every state change. It is a
// redraw hint; renderers read state through Snapshot.
type Event struct {
	Kind   EventKind
	Status Status
	Peer   string
	Entry  chat.Entry
}

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	Role              Role
	Status            Status
	LocalName         string
	PeerName          string
	PeerAddress       string
	LastLocalActivity uint32
	LastPeerActivity  uint32
	Input             string
	Log               []chat.Entry
}

// Timing holds the loop intervals. The zero value of a field means its default.
type Timing struct {
	IdleCheck   time.Duration
	IdleTimeout time.Duration
	Heartbeat   time.Duration
}

const (
	DefaultIdleCheck   = time.Second
	DefaultIdleTimeout = 10 * time.Second
	DefaultHeartbeat   = 2 * time.Second
)

func (t Timing) withDefaults() Timing {
	if t.IdleCheck <= 0 {
		t.IdleCheck = DefaultIdleCheck
	}
	if t.IdleTimeout <= 0 {
		t.IdleTimeout = DefaultIdleTimeout
	}
	if t.Heartbeat <= 0 {
		t.Heartbeat = DefaultHeartbeat
	}
	return t
}
