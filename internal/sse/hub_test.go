package sse

import (
	"testing"

	"github.com/halcyonlabs/agentstudio-backend/internal/platform/logger"
)

func testHub(t *testing.T) *Hub {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return NewHub(log)
}

func TestPublishDeliversToSubscribedChannel(t *testing.T) {
	hub := testHub(t)
	client := hub.NewClient("session-a")

	hub.Publish(Message{Channel: "session-a", Event: EventGenerationStarted})

	select {
	case msg := <-client.Outbound:
		if msg.Event != EventGenerationStarted {
			t.Fatalf("event = %v", msg.Event)
		}
	default:
		t.Fatalf("message not delivered")
	}
}

func TestPublishSkipsOtherChannels(t *testing.T) {
	hub := testHub(t)
	client := hub.NewClient("session-a")

	hub.Publish(Message{Channel: "session-b", Event: EventGenerationCompleted})

	select {
	case msg := <-client.Outbound:
		t.Fatalf("unexpected delivery: %v", msg.Event)
	default:
	}
}

func TestPublishDropsForSlowClient(t *testing.T) {
	hub := testHub(t)
	client := hub.NewClient("session-a")

	// Fill the buffer, then one more; Publish must not block.
	for i := 0; i < cap(client.Outbound)+1; i++ {
		hub.Publish(Message{Channel: "session-a", Event: EventGenerationStarted})
	}
	if got := len(client.Outbound); got != cap(client.Outbound) {
		t.Fatalf("outbound length = %d, want full buffer", got)
	}
}

func TestRemoveClosesDoneAndUnsubscribes(t *testing.T) {
	hub := testHub(t)
	client := hub.NewClient("session-a")

	hub.Remove(client)

	select {
	case <-client.Done():
	default:
		t.Fatalf("done channel should close on removal")
	}

	hub.Publish(Message{Channel: "session-a", Event: EventGenerationStarted})
	select {
	case msg := <-client.Outbound:
		t.Fatalf("removed client still receives: %v", msg.Event)
	default:
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub := testHub(t)
	client := hub.NewClient("session-a", "session-b")

	hub.Unsubscribe(client, "session-a")
	hub.Publish(Message{Channel: "session-a", Event: EventGenerationStarted})
	hub.Publish(Message{Channel: "session-b", Event: EventGenerationCompleted})

	select {
	case msg := <-client.Outbound:
		if msg.Event != EventGenerationCompleted {
			t.Fatalf("event = %v", msg.Event)
		}
	default:
		t.Fatalf("remaining subscription should deliver")
	}
}
