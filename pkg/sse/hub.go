// Package sse provides Server-Sent Events so open admin previews refresh
// when the blocks of their page change.
package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// PageChannel returns the channel carrying the events of one page.
func PageChannel(page string) string {
	return "page:" + page
}

// Event represents an SSE event.
type Event struct {
	ID      string `json:"id,omitempty"`
	Event   string `json:"event,omitempty"`
	Data    string `json:"data"`
	Channel string `json:"-"` // Internal: which channel to send to
}

// Client represents a connected SSE client.
type Client struct {
	ID       string
	Channels map[string]bool
	Events   chan *Event
}

// Hub manages SSE connections and event distribution.
type Hub struct {
	clients   map[string]*Client
	channels  map[string]map[string]*Client // channel -> client_id -> client
	broadcast chan *Event
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.RWMutex
	seq       atomic.Uint64
	keepAlive time.Duration
	logger    *slog.Logger
}

// NewHub creates a new SSE hub and starts its fan-out loop.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		clients:   make(map[string]*Client),
		channels:  make(map[string]map[string]*Client),
		broadcast: make(chan *Event, 256),
		done:      make(chan struct{}),
		keepAlive: 30 * time.Second,
		logger:    logger,
	}
	go h.run()
	return h
}

// run delivers published events until Close.
func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			return
		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

func (h *Hub) deliver(event *Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	targets := h.clients
	if event.Channel != "" && event.Channel != "*" {
		targets = h.channels[event.Channel]
	}
	for _, client := range targets {
		select {
		case client.Events <- event:
		default:
			// Client buffer full, skip
			h.logger.Debug("SSE client buffer full", "id", client.ID)
		}
	}
}

// register adds a client subscribed to channels.
func (h *Hub) register(client *Client, channels []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	for _, channel := range channels {
		client.Channels[channel] = true
		if h.channels[channel] == nil {
			h.channels[channel] = make(map[string]*Client)
		}
		h.channels[channel][client.ID] = client
	}
	h.logger.Debug("SSE client registered", "id", client.ID, "channels", channels)
}

// unregister removes a client from the hub and all its channels.
func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for channel := range client.Channels {
		if ch, ok := h.channels[channel]; ok {
			delete(ch, client.ID)
			if len(ch) == 0 {
				delete(h.channels, channel)
			}
		}
	}
	delete(h.clients, client.ID)
	h.logger.Debug("SSE client unregistered", "id", client.ID)
}

// Publish sends an event to a channel. It never blocks once the hub is
// closed.
func (h *Hub) Publish(channel, eventType, data string) {
	event := &Event{
		ID:      fmt.Sprintf("%d", h.seq.Add(1)),
		Event:   eventType,
		Data:    data,
		Channel: channel,
	}
	select {
	case h.broadcast <- event:
	case <-h.done:
	}
}

// PublishJSON sends a JSON event to a channel.
func (h *Hub) PublishJSON(channel, eventType string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", eventType, err)
	}
	h.Publish(channel, eventType, string(b))
	return nil
}

// Close stops the fan-out loop.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ChannelCount returns the number of clients in a channel.
func (h *Hub) ChannelCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// ServeHTTP streams events. Clients pick channels with repeated
// "channel" query parameters or a "page" parameter.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	channels := r.URL.Query()["channel"]
	if page := r.URL.Query().Get("page"); page != "" {
		channels = append(channels, PageChannel(page))
	}
	if len(channels) == 0 {
		channels = []string{"default"}
	}

	client := &Client{
		ID:       fmt.Sprintf("c%d", h.seq.Add(1)),
		Channels: make(map[string]bool),
		Events:   make(chan *Event, 32),
	}
	h.register(client, channels)
	defer h.unregister(client)

	// Send initial connection event
	fmt.Fprintf(w, "event: connected\ndata: {\"client_id\":%q}\n\n", client.ID)
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.done:
			return

		case event := <-client.Events:
			if event.ID != "" {
				fmt.Fprintf(w, "id: %s\n", event.ID)
			}
			if event.Event != "" {
				fmt.Fprintf(w, "event: %s\n", event.Event)
			}
			fmt.Fprintf(w, "data: %s\n\n", event.Data)
			flusher.Flush()

		case <-ticker.C:
			// Send keep-alive comment
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}
