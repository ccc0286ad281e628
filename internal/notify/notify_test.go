package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/omochice/toy-peer-chat/internal/bus"
	"github.com/omochice/toy-peer-chat/internal/chat"
	"github.com/omochice/toy-peer-chat/internal/session"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []Payload
	err  error
}

func (r *recordingSender) Send(p Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, p)
	return r.err
}

func (r *recordingSender) payloads() []Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Payload(nil), r.sent...)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandleIncoming(t *testing.T) {
	tests := []struct {
		name  string
		event session.Event
		want  []Payload
	}{
		{
			name: "message",
			event: session.Event{
				Kind:  session.EventMessage,
				Peer:  "bob",
				Entry: chat.Entry{Direction: chat.Incoming, Content: " hi "},
			},
			want: []Payload{{Title: "@bob", Content: "hi"}},
		},
		{
			name: "empty content and unknown peer",
			event: session.Event{
				Kind:  session.EventMessage,
				Entry: chat.Entry{Direction: chat.Incoming},
			},
			want: []Payload{{Title: "@unknown", Content: "(empty)"}},
		},
		{
			name: "attachments",
			event: session.Event{
				Kind:  session.EventMessage,
				Peer:  "bob",
				Entry: chat.Entry{Content: "look", Attachments: []string{"a.png", "b.png"}},
			},
			want: []Payload{{Title: "@bob", Content: "look (+2 attachments)"}},
		},
		{
			name:  "non message event",
			event: session.Event{Kind: session.EventStatus, Status: session.Idle},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &recordingSender{}
			s := NewService(nil, sender, discard())
			s.handleIncoming(tt.event)
			if diff := cmp.Diff(tt.want, sender.payloads()); diff != "" {
				t.Errorf("payloads mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestService_FromBus(t *testing.T) {
	b := bus.New(discard())
	defer b.Close()

	sender := &recordingSender{err: errors.New("no notifier")}
	ctx, cancel := context.WithCancel(context.Background())
	done := NewService(b, sender, discard()).Start(ctx)

	b.Publish(bus.TopicIncoming, "ignored")
	b.Publish(bus.TopicIncoming, session.Event{
		Kind:  session.EventMessage,
		Peer:  "bob",
		Entry: chat.Entry{Direction: chat.Incoming, Content: "ping"},
	})

	deadline := time.Now().Add(time.Second)
	for len(sender.payloads()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("service did not stop after cancel")
	}

	want := []Payload{{Title: "@bob", Content: "ping"}}
	if diff := cmp.Diff(want, sender.payloads()); diff != "" {
		t.Errorf("payloads mismatch (-want +got):\n%s", diff)
	}
}

func TestService_StopsWhenBusCloses(t *testing.T) {
	b := bus.New(discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := NewService(b, &recordingSender{}, discard()).Start(ctx)
	b.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("service did not stop after the bus closed")
	}
}
