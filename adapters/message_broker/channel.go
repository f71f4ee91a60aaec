package message_broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/unclepete-20/chatbot-test/domain"
	"github.com/unclepete-20/chatbot-test/utils/log"
	"go.uber.org/zap"
)

const subscriberBuffer = 100

type subscriber struct {
	routingKey string
	ch         chan domain.Message
}

// ChannelMessageBroker implements MessageBroker using Go channels.
// Every subscriber gets its own buffered channel; a full subscriber drops
// the message instead of blocking the publisher.
type ChannelMessageBroker struct {
	mu     sync.RWMutex
	topics map[string][]*subscriber
	closed bool
}

// NewChannelMessageBroker creates a new channel-based message broker
func NewChannelMessageBroker() *ChannelMessageBroker {
	return &ChannelMessageBroker{
		topics: make(map[string][]*subscriber),
	}
}

// Publish sends a message to every subscriber of topic whose routing key is
// empty or equal to routingKey.
func (b *ChannelMessageBroker) Publish(ctx context.Context, topic string, routingKey string, message []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("message broker is closed")
	}

	msg := domain.Message{
		Topic:      topic,
		RoutingKey: routingKey,
		Payload:    message,
		Timestamp:  time.Now(),
	}

	delivered := 0
	for _, sub := range b.topics[topic] {
		if sub.routingKey != "" && sub.routingKey != routingKey {
			continue
		}
		select {
		case sub.ch <- msg:
			delivered++
		case <-ctx.Done():
			return ctx.Err()
		default:
			log.WithCtx(ctx).Warn("Subscriber channel full, dropping message",
				zap.String("topic", topic),
				zap.String("routingKey", routingKey))
		}
	}

	log.WithCtx(ctx).Debug("Message published to topic",
		zap.String("topic", topic),
		zap.String("routingKey", routingKey),
		zap.Int("payload_size", len(message)),
		zap.Int("delivered", delivered))
	return nil
}

// Subscribe registers a subscriber on topic. The returned channel is closed
// when ctx is done or the broker is closed.
func (b *ChannelMessageBroker) Subscribe(ctx context.Context, topic string, routingKey string) (<-chan domain.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("message broker is closed")
	}

	sub := &subscriber{routingKey: routingKey, ch: make(chan domain.Message, subscriberBuffer)}
	b.topics[topic] = append(b.topics[topic], sub)

	go func() {
		<-ctx.Done()
		b.unsubscribe(topic, sub)
	}()

	log.WithCtx(ctx).Info("Subscribed to topic", zap.String("topic", topic), zap.String("routingKey", routingKey))
	return sub.ch, nil
}

func (b *ChannelMessageBroker) unsubscribe(topic string, sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.topics[topic]
	for i, s := range subs {
		if s == sub {
			b.topics[topic] = append(subs[:i], subs[i+1:]...)
			close(sub.ch)
			break
		}
	}
	if len(b.topics[topic]) == 0 {
		delete(b.topics, topic)
	}
}

// Close closes the message broker and all subscriber channels
func (b *ChannelMessageBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for topic, subs := range b.topics {
		for _, sub := range subs {
			close(sub.ch)
		}
		log.With(zap.String("topic", topic)).Debug("Closed topic subscribers")
	}
	b.topics = make(map[string][]*subscriber)

	log.With().Info("Message broker closed")
	return nil
}

// GetTopicCount returns the number of topics with at least one subscriber
func (b *ChannelMessageBroker) GetTopicCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics)
}

// IsClosed returns whether the broker is closed
func (b *ChannelMessageBroker) IsClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}
