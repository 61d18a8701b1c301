package pubsub

import (
	"encoding/json"
	"log"
	"sync"
)

const subscriberBuffer = 16

// Registry is the process-local Broker: a map from session id to the set of
// open subscriber channels. Connect/disconnect race against broadcast
// iteration, so all structural mutation and delivery is serialized behind
// one mutex; sends are non-blocking, keeping the critical section short.
//
// Broadcasts only reach subscribers connected to this process; behind a load
// balancer with several instances, use RedisBroker instead.
type Registry struct {
	mu     sync.RWMutex
	subs   map[string]map[chan []byte]struct{}
	closed bool
}

func NewRegistry() *Registry {
	return &Registry{subs: make(map[string]map[chan []byte]struct{})}
}

// Subscribe registers a new channel under the session id, creating the
// per-session set lazily. The cancel function is idempotent: the channel is
// removed and closed exactly once, whether cancel fires first or a broadcast
// prunes the channel first.
func (r *Registry) Subscribe(sessionID string) (<-chan []byte, func()) {
	ch := make(chan []byte, subscriberBuffer)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if r.subs[sessionID] == nil {
		r.subs[sessionID] = make(map[chan []byte]struct{})
	}
	r.subs[sessionID][ch] = struct{}{}
	r.mu.Unlock()

	cancel := func() {
		r.remove(sessionID, ch)
	}
	return ch, cancel
}

// remove deletes the channel and closes it if it was still registered.
// Dropping the last channel removes the session entry entirely so short-lived
// sessions do not accumulate empty sets.
func (r *Registry) remove(sessionID string, ch chan []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(sessionID, ch)
}

func (r *Registry) removeLocked(sessionID string, ch chan []byte) {
	set, ok := r.subs[sessionID]
	if !ok {
		return
	}
	if _, ok := set[ch]; !ok {
		return
	}
	delete(set, ch)
	close(ch)
	if len(set) == 0 {
		delete(r.subs, sessionID)
	}
}

// Publish marshals the event once and offers it to every channel currently
// registered for the session. A channel that cannot accept the write (its
// consumer is gone or hopelessly behind) is pruned as part of the same
// publish; one dead channel never blocks delivery to the rest, and delivery
// failures never surface to the caller.
//
// Sends happen under the lock so a concurrent cancel cannot close a channel
// mid-broadcast. Subscriber channels are buffered and sends never block, so
// the critical section stays short.
func (r *Registry) Publish(sessionID string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("pubsub: marshal event: %v", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.subs[sessionID]
	if len(set) == 0 {
		return
	}
	var dead []chan []byte
	for ch := range set {
		select {
		case ch <- data:
		default:
			dead = append(dead, ch)
		}
	}
	for _, ch := range dead {
		r.removeLocked(sessionID, ch)
	}
}

// Close tears down the registry, force-closing every subscriber channel.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for _, set := range r.subs {
		for ch := range set {
			close(ch)
		}
	}
	r.subs = make(map[string]map[chan []byte]struct{})
}

// subscriberCount reports how many channels a session currently holds.
func (r *Registry) subscriberCount(sessionID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs[sessionID])
}

// hasSession reports whether the session still has a registered entry.
func (r *Registry) hasSession(sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.subs[sessionID]
	return ok
}
