package pubsub

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"kuiz-session-service/internal/domain"
)

func TestPublishToUnknownSessionIsNoop(t *testing.T) {
	r := NewRegistry()
	// Must not panic or create an entry.
	r.Publish("missing", domain.NewStatusChangedEvent(domain.StatusCompleted))
	if r.hasSession("missing") {
		t.Fatalf("publish must not create a session entry")
	}
}

func TestSubscribeAndPublishDeliversInOrder(t *testing.T) {
	r := NewRegistry()
	ch, cancel := r.Subscribe("s1")
	defer cancel()

	r.Publish("s1", domain.NewStatusChangedEvent(domain.StatusInProgress))
	r.Publish("s1", domain.NewQuestionChangedEvent(nil))

	first := receive(t, ch)
	second := receive(t, ch)

	var ev struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(first, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Type != domain.EventStatusChanged {
		t.Fatalf("expected status_changed first, got %s", ev.Type)
	}
	if err := json.Unmarshal(second, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Type != domain.EventQuestionChanged {
		t.Fatalf("expected question_changed second, got %s", ev.Type)
	}
}

func TestQuestionChangedCarriesNullQuestion(t *testing.T) {
	r := NewRegistry()
	ch, cancel := r.Subscribe("s1")
	defer cancel()

	r.Publish("s1", domain.NewQuestionChangedEvent(nil))

	raw := receive(t, ch)
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	v, present := payload["currentQuestionId"]
	if !present || v != nil {
		t.Fatalf("expected explicit null currentQuestionId, got %v (present=%v)", v, present)
	}
}

func TestCancelIsIdempotentAndRemovesEntry(t *testing.T) {
	r := NewRegistry()
	_, cancel := r.Subscribe("s1")
	if r.subscriberCount("s1") != 1 {
		t.Fatalf("expected 1 subscriber")
	}

	cancel()
	cancel() // second call must be a no-op

	if r.hasSession("s1") {
		t.Fatalf("expected session entry removed after last unsubscribe")
	}
}

func TestLastUnsubscribeDropsSessionEntry(t *testing.T) {
	r := NewRegistry()
	_, cancel1 := r.Subscribe("s1")
	_, cancel2 := r.Subscribe("s1")

	cancel1()
	if !r.hasSession("s1") {
		t.Fatalf("entry must survive while a subscriber remains")
	}
	cancel2()
	if r.hasSession("s1") {
		t.Fatalf("entry must be dropped with the last subscriber")
	}
}

func TestDeadChannelIsPrunedAndOthersStillReceive(t *testing.T) {
	r := NewRegistry()
	dead, _ := r.Subscribe("s1")
	_ = dead // never drained: fills up and starts rejecting writes
	live, cancel := r.Subscribe("s1")
	defer cancel()

	// Overflow the dead channel's buffer; the publish that cannot be
	// accepted prunes it.
	for i := 0; i <= subscriberBuffer; i++ {
		r.Publish("s1", domain.NewHeartbeatEvent(time.Now()))
	}

	if got := r.subscriberCount("s1"); got != 1 {
		t.Fatalf("expected dead channel pruned, %d subscribers remain", got)
	}

	// The surviving channel received every publish it had room for.
	select {
	case <-live:
	default:
		t.Fatalf("live channel received nothing")
	}

	// And later publishes still reach it.
	drain(live)
	r.Publish("s1", domain.NewStatusChangedEvent(domain.StatusCompleted))
	receive(t, live)
}

func TestPrunedChannelIsClosed(t *testing.T) {
	r := NewRegistry()
	dead, _ := r.Subscribe("s1")

	for i := 0; i <= subscriberBuffer; i++ {
		r.Publish("s1", domain.NewHeartbeatEvent(time.Now()))
	}

	drain(dead)
	select {
	case _, ok := <-dead:
		if ok {
			t.Fatalf("expected pruned channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatalf("pruned channel was never closed")
	}
}

func TestConcurrentSubscribePublishUnsubscribe(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sessionID := fmt.Sprintf("s%d", n%4)
			ch, cancel := r.Subscribe(sessionID)
			for j := 0; j < 50; j++ {
				r.Publish(sessionID, domain.NewHeartbeatEvent(time.Now()))
				select {
				case <-ch:
				default:
				}
			}
			cancel()
		}(i)
	}
	wg.Wait()

	for n := 0; n < 4; n++ {
		if r.hasSession(fmt.Sprintf("s%d", n)) {
			t.Fatalf("expected all session entries removed, s%d remains", n)
		}
	}
}

func TestCloseForceClosesSubscribers(t *testing.T) {
	r := NewRegistry()
	ch, cancel := r.Subscribe("s1")

	r.Close()

	if _, ok := <-ch; ok {
		t.Fatalf("expected channel closed on registry shutdown")
	}
	cancel() // must not panic after Close

	// Subscriptions after Close come back already closed.
	ch2, _ := r.Subscribe("s1")
	if _, ok := <-ch2; ok {
		t.Fatalf("expected post-close subscription to be closed")
	}
}

func receive(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case data, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed while waiting for event")
		}
		return data
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
	return nil
}

func drain(ch <-chan []byte) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
