package sse

import (
	"sync"

	"github.com/google/uuid"

	"github.com/halcyonlabs/agentstudio-backend/internal/platform/logger"
)

type Event string

const (
	EventGenerationStarted    Event = "GenerationStarted"
	EventGenerationSummarized Event = "GenerationSummarized"
	EventGenerationSearched   Event = "GenerationSearched"
	EventGenerationCompleted  Event = "GenerationCompleted"
	EventGenerationFailed     Event = "GenerationFailed"
	EventGenerationCancelled  Event = "GenerationCancelled"
)

// Message fans out to every client subscribed to Channel (the session id).
type Message struct {
	Channel string `json:"channel"`
	Event   Event  `json:"event"`
	Data    any    `json:"data,omitempty"`
}

type Client struct {
	ID       uuid.UUID
	Channels map[string]bool
	Outbound chan Message
	done     chan struct{}
}

func (c *Client) Done() <-chan struct{} { return c.done }

type Hub struct {
	mu            sync.RWMutex
	log           *logger.Logger
	subscriptions map[string]map[*Client]bool
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:           log.With("component", "SSEHub"),
		subscriptions: make(map[string]map[*Client]bool),
	}
}

func (h *Hub) NewClient(channels ...string) *Client {
	client := &Client{
		ID:       uuid.New(),
		Channels: make(map[string]bool),
		Outbound: make(chan Message, 16),
		done:     make(chan struct{}),
	}
	for _, ch := range channels {
		h.Subscribe(client, ch)
	}
	return client
}

func (h *Hub) Subscribe(client *Client, channel string) {
	if client == nil || channel == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	client.Channels[channel] = true
	if h.subscriptions[channel] == nil {
		h.subscriptions[channel] = make(map[*Client]bool)
	}
	h.subscriptions[channel][client] = true
}

func (h *Hub) Unsubscribe(client *Client, channel string) {
	if client == nil || channel == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(client.Channels, channel)
	if subs := h.subscriptions[channel]; subs != nil {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.subscriptions, channel)
		}
	}
}

func (h *Hub) Remove(client *Client) {
	if client == nil {
		return
	}
	h.mu.Lock()
	for channel := range client.Channels {
		if subs := h.subscriptions[channel]; subs != nil {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.subscriptions, channel)
			}
		}
	}
	h.mu.Unlock()
	close(client.done)
}

// Publish delivers to local subscribers; slow clients are skipped, not blocked on.
func (h *Hub) Publish(msg Message) {
	h.mu.RLock()
	subs := h.subscriptions[msg.Channel]
	clients := make([]*Client, 0, len(subs))
	for c := range subs {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.Outbound <- msg:
		default:
			h.log.Debug("Dropping SSE message for slow client", "client_id", c.ID.String(), "event", string(msg.Event))
		}
	}
}
