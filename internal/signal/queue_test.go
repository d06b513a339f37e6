package signal

import (
	"context"
	"testing"
	"time"
)

func TestMemoryQueuePublishFansOut(t *testing.T) {
	queue := NewMemoryQueue(4)
	first := queue.Subscribe()
	second := queue.Subscribe()
	defer first.Close()
	defer second.Close()

	event := Event{Type: TypeGoLive, From: Sender{UserType: "producer"}}
	if err := queue.Publish(context.Background(), event); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	for i, sub := range []Subscription{first, second} {
		select {
		case got := <-sub.Events():
			if got.Type != TypeGoLive {
				t.Fatalf("subscriber %d: unexpected type %q", i, got.Type)
			}
			if !got.From.FromProducer() {
				t.Fatalf("subscriber %d: sender metadata lost", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: timed out waiting for event", i)
		}
	}
}

func TestMemoryQueueRejectsUntypedSignals(t *testing.T) {
	queue := NewMemoryQueue(1)
	if err := queue.Publish(context.Background(), Event{}); err == nil {
		t.Fatalf("expected publish of untyped signal to fail")
	}
}

func TestMemoryQueueDropsWhenSubscriberStalls(t *testing.T) {
	queue := NewMemoryQueue(1)
	sub := queue.Subscribe()
	defer sub.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := queue.Publish(ctx, Event{Type: TypeChatMessage}); err != nil {
			t.Fatalf("publish %d failed: %v", i, err)
		}
	}

	// Only the buffered event survives; the rest were dropped rather than
	// blocking the publisher.
	select {
	case <-sub.Events():
	case <-time.After(time.Second):
		t.Fatalf("expected one buffered event")
	}
	select {
	case event, ok := <-sub.Events():
		if ok {
			t.Fatalf("expected no further events, got %v", event)
		}
	default:
	}
}

func TestMemoryQueueCloseIsIdempotent(t *testing.T) {
	queue := NewMemoryQueue(1)
	sub := queue.Subscribe()
	sub.Close()
	sub.Close()

	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Fatalf("expected closed channel")
		}
	default:
		t.Fatalf("expected channel to be closed")
	}

	// Publishing after the only subscriber closed must not fail.
	if err := queue.Publish(context.Background(), Event{Type: TypeOpenChat}); err != nil {
		t.Fatalf("publish after close failed: %v", err)
	}
}

func TestMemoryQueueHonoursContextCancellation(t *testing.T) {
	queue := NewMemoryQueue(1)
	sub := queue.Subscribe()
	defer sub.Close()

	// Fill the buffer so the next publish hits the drop path, then cancel the
	// context and confirm publish still returns promptly.
	if err := queue.Publish(context.Background(), Event{Type: TypeGoLive}); err != nil {
		t.Fatalf("priming publish failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := queue.Publish(ctx, Event{Type: TypeGoLive}); err != nil && err != context.Canceled {
		t.Fatalf("unexpected publish error: %v", err)
	}
}
