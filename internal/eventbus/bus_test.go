package eventbus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(4)
	defer unsub()

	b.Publish(Event{Type: "crime_completed", Payload: Payload{Category: "heist", Amount: 500}})

	select {
	case e := <-ch:
		if e.Type != "crime_completed" {
			t.Fatalf("unexpected type %q", e.Type)
		}
		if e.Payload.Amount != 500 {
			t.Fatalf("unexpected amount %v", e.Payload.Amount)
		}
		if e.Time.IsZero() {
			t.Fatal("expected Publish to stamp the event time")
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestSlowSubscriberDrops(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: "a"})
	b.Publish(Event{Type: "b"}) // buffer full, dropped

	e := <-ch
	if e.Type != "a" {
		t.Fatalf("expected first event, got %q", e.Type)
	}
	select {
	case e := <-ch:
		t.Fatalf("expected second event dropped, got %q", e.Type)
	default:
	}
}

func TestUnsubscribeIdempotent(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe(1)
	unsub()
	unsub() // must not panic

	// Publishing after unsubscribe should be a no-op, not a panic.
	b.Publish(Event{Type: "after"})
}
