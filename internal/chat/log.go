package chat

import (
	"sync"
)

// Direction tells whether a log entry was sent or received.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
)

// String returns the string representation of Direction
func (d Direction) String() string {
	switch d {
	case Outgoing:
		return "outgoing"
	case Incoming:
		return "incoming"
	default:
		return "unknown"
	}
}

// Entry is one exchanged message. Entries are never modified once appended.
type Entry struct {
	Direction   Direction
	Content     string
	Attachments []string
}

// Log is the ordered, append-only record of the conversation. It keeps every
// entry for the lifetime of the process.
type Log struct {
	entries []Entry
	mu      sync.RWMutex
}

// NewLog creates an empty Log.
func NewLog() *Log {
	return &Log{}
}

// Append adds an entry at the end of the log.
func (l *Log) Append(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

// Entries returns a copy of all entries in order.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns number of logged entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
