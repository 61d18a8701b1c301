// Package pubsub fans session events out to long-lived stream subscribers.
package pubsub

// Broker delivers serialized events to every subscriber of a session.
// The in-process Registry covers a single serving instance; RedisBroker
// backs the same contract with Redis PUB/SUB for multi-instance deployments.
type Broker interface {
	// Subscribe opens a channel receiving JSON-encoded events for the
	// session. The returned cancel must be called on every exit path of
	// the consuming connection; calling it more than once is safe.
	Subscribe(sessionID string) (<-chan []byte, func())

	// Publish serializes the event once and delivers it best-effort to
	// every open subscriber channel. Publishing to a session with no
	// subscribers is a no-op, never an error.
	Publish(sessionID string, event any)

	// Close force-closes all subscriber channels; used at shutdown.
	Close()
}
