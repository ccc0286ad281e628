// Package bus fans session events out to independent consumers.
package bus

import (
	"log/slog"
	"reflect"

	"github.com/cskr/pubsub"
)

const (
	// TopicState carries session.Event values for status, peer and input changes.
	TopicState = "session.state"
	// TopicIncoming carries session.Event values for received messages.
	TopicIncoming = "message.incoming"
)

// Subscription receives the payloads published on its topics. The bus
// closes it on Unsubscribe or Close.
type Subscription chan any

// MessageBus is the publish side and subscribe side used by the session
// wiring and its consumers.
type MessageBus interface {
	Publish(topic string, msg any)
	Subscribe(topic string) Subscription
	Unsubscribe(ch Subscription, topics ...string)
	Close()
}

// PubSubBus is a MessageBus backed by cskr/pubsub.
type PubSubBus struct {
	ps     *pubsub.PubSub
	logger *slog.Logger
}

// New creates a bus whose subscriptions buffer up to 128 payloads.
func New(logger *slog.Logger) *PubSubBus {
	return &PubSubBus{
		ps:     pubsub.New(128),
		logger: logger,
	}
}

// Publish delivers msg to every subscriber of topic. It blocks while a
// subscriber's buffer is full.
func (b *PubSubBus) Publish(topic string, msg any) {
	b.logger.Debug("publish", "topic", topic, "payload_type", payloadType(msg))
	b.ps.Pub(msg, topic)
}

// Subscribe returns a new subscription to topic.
func (b *PubSubBus) Subscribe(topic string) Subscription {
	ch := b.ps.Sub(topic)
	b.logger.Debug("subscribe", "topic", topic)
	return ch
}

// Unsubscribe removes ch from topics, or from all of them when none are
// given. It must not be called after Close.
func (b *PubSubBus) Unsubscribe(ch Subscription, topics ...string) {
	if len(topics) == 0 {
		b.ps.Unsub(ch)
		b.logger.Debug("unsubscribe", "mode", "all")
		return
	}
	b.ps.Unsub(ch, topics...)
	b.logger.Debug("unsubscribe", "topics", topics)
}

// Close shuts the bus down and closes every subscription.
func (b *PubSubBus) Close() {
	b.ps.Shutdown()
}

func payloadType(v any) string {
	if v == nil {
		return "<nil>"
	}
	return reflect.TypeOf(v).String()
}
