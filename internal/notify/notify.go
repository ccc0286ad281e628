// Package notify raises desktop notifications for received messages.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gen2brain/beeep"

	"github.com/omochice/toy-peer-chat/internal/bus"
	"github.com/omochice/toy-peer-chat/internal/session"
)

// Payload is a user-facing notification.
type Payload struct {
	Title   string
	Content string
}

// Sender delivers notifications.
type Sender interface {
	Send(payload Payload) error
}

// DesktopSender shows notifications through the platform notifier.
type DesktopSender struct{}

func (DesktopSender) Send(p Payload) error {
	return beeep.Notify(p.Title, p.Content, "")
}

// Service turns incoming-message events from the bus into notifications.
type Service struct {
	bus    bus.MessageBus
	sender Sender
	logger *slog.Logger
}

func NewService(messageBus bus.MessageBus, sender Sender, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default().With("component", "notify")
	}
	return &Service{bus: messageBus, sender: sender, logger: logger}
}

// Start subscribes and returns immediately; it stops when ctx is done or
// the bus is closed. The returned channel is closed once it has stopped.
func (s *Service) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	sub := s.bus.Subscribe(bus.TopicIncoming)

	go func() {
		defer close(done)

		for {
			select {
			case <-ctx.Done():
				s.bus.Unsubscribe(sub, bus.TopicIncoming)
				return
			case raw, ok := <-sub:
				if !ok {
					return
				}
				event, ok := raw.(session.Event)
				if !ok {
					continue
				}
				s.handleIncoming(event)
			}
		}
	}()
	return done
}

func (s *Service) handleIncoming(e session.Event) {
	if e.Kind != session.EventMessage {
		return
	}
	sender := strings.TrimSpace(e.Peer)
	if sender == "" {
		sender = "unknown"
	}
	body := strings.TrimSpace(e.Entry.Content)
	if body == "" {
		body = "(empty)"
	}
	if n := len(e.Entry.Attachments); n > 0 {
		body = fmt.Sprintf("%s (+%d attachments)", body, n)
	}

	if err := s.sender.Send(Payload{Title: "@" + sender, Content: body}); err != nil {
		s.logger.Warn("failed to send notification", "error", err)
	}
}
