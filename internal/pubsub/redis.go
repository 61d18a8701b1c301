package pubsub

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisBroker implements Broker on top of Redis PUB/SUB so that broadcasts
// reach subscribers on every serving instance, not just the one that handled
// the triggering write. Register/unregister/publish semantics are identical
// to Registry; only the transport differs.
type RedisBroker struct {
	client *redis.Client

	mu      sync.Mutex
	closed  bool
	cancels map[*struct{}]func()
}

func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{
		client:  client,
		cancels: make(map[*struct{}]func()),
	}
}

func (b *RedisBroker) channel(sessionID string) string {
	return "session:events:" + sessionID
}

// Subscribe opens a Redis subscription for the session and pumps its
// messages into a buffered channel. Cancel is idempotent and closes the
// underlying subscription, which terminates the pump.
func (b *RedisBroker) Subscribe(sessionID string) (<-chan []byte, func()) {
	ch := make(chan []byte, subscriberBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.mu.Unlock()

	sub := b.client.Subscribe(context.Background(), b.channel(sessionID))
	msgs := sub.Channel()
	stop := make(chan struct{})
	key := new(struct{})

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.cancels, key)
			b.mu.Unlock()
			close(stop)
			_ = sub.Close()
		})
	}

	b.mu.Lock()
	b.cancels[key] = cancel
	b.mu.Unlock()

	go func() {
		defer close(ch)
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case ch <- []byte(msg.Payload):
				default:
					// Consumer stopped draining; drop it like the
					// in-process registry does.
					cancel()
					return
				}
			case <-stop:
				return
			}
		}
	}()

	return ch, cancel
}

// Publish serializes the event once and hands it to Redis. Delivery is
// fire-and-forget: a publish with zero subscribers is a no-op and transport
// errors are logged, never returned to the triggering request.
func (b *RedisBroker) Publish(sessionID string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("pubsub: marshal event: %v", err)
		return
	}
	if err := b.client.Publish(context.Background(), b.channel(sessionID), data).Err(); err != nil {
		log.Printf("pubsub: redis publish: %v", err)
	}
}

// Close cancels every live subscription.
func (b *RedisBroker) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	cancels := make([]func(), 0, len(b.cancels))
	for _, cancel := range b.cancels {
		cancels = append(cancels, cancel)
	}
	b.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}
