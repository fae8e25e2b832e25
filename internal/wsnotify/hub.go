// Package wsnotify pushes review-queue and indexing-status events to
// connected web clients over a websocket, so a reviewer's browser
// updates live instead of polling the ingest API.
package wsnotify

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/opentestimony/internal/logging"
)

// Message types pushed to subscribers.
const (
	MessageTypePing             = "ping"
	MessageTypePong             = "pong"
	MessageTypeIndexingProgress = "indexing_progress"
	MessageTypeIndexingComplete = "indexing_complete"
	MessageTypeReviewQueued     = "review_queued"
	MessageTypeReviewDecided    = "review_decided"
)

// Message is the envelope every push carries.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub maintains the set of connected clients and fans broadcast messages
// out to them, following the same register/unregister/broadcast channel
// shape and deterministic (sorted-by-id) delivery order as the teacher's
// playback-event hub.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// Serve implements suture.Service so the hub runs under the bridge's
// supervision tree alongside the indexing worker.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			logging.Info().Str("component", "wsnotify-hub").Msg("websocket hub stopped")
			return ctx.Err()
		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logging.Info().Int("total_clients", len(h.clients)).Msg("websocket client connected")
		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			logging.Info().Int("total_clients", len(h.clients)).Msg("websocket client disconnected")
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// broadcastToClients delivers to every client in ascending id order so
// delivery order doesn't depend on Go's randomized map iteration.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.RLock()
	ordered := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		ordered = append(ordered, c)
	}
	h.mu.RUnlock()

	sort.Slice(ordered, func(i, j int) bool { return ordered[i].id < ordered[j].id })

	for _, c := range ordered {
		select {
		case c.send <- message:
		default:
			logging.Warn().Uint64("client_id", c.id).Msg("websocket client send buffer full, dropping message")
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// GetClientCount returns the number of currently connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastJSON queues a typed message for every connected client.
// Non-blocking: Serve's broadcast channel is buffered, and a full
// buffer just means this tick's update is dropped, not that the
// caller (an indexing worker or review handler) stalls.
func (h *Hub) BroadcastJSON(messageType string, data interface{}) {
	select {
	case h.broadcast <- Message{Type: messageType, Data: data}:
	default:
		logging.Warn().Str("message_type", messageType).Msg("websocket hub broadcast buffer full, dropping message")
	}
}

// IndexingProgressData is the payload for indexing_progress pushes.
type IndexingProgressData struct {
	MediaID string `json:"media_id"`
	Status  string `json:"status"`
}

// BroadcastIndexingProgress notifies subscribers a job changed status.
func (h *Hub) BroadcastIndexingProgress(mediaID, status string) {
	h.BroadcastJSON(MessageTypeIndexingProgress, IndexingProgressData{MediaID: mediaID, Status: status})
}

// ReviewQueuedData is the payload for review_queued pushes.
type ReviewQueuedData struct {
	MediaID   string    `json:"media_id"`
	MediaType string    `json:"media_type"`
	QueuedAt  time.Time `json:"queued_at"`
}

// BroadcastReviewQueued notifies subscribers a new item needs review.
func (h *Hub) BroadcastReviewQueued(mediaID, mediaType string) {
	h.BroadcastJSON(MessageTypeReviewQueued, ReviewQueuedData{MediaID: mediaID, MediaType: mediaType, QueuedAt: time.Now().UTC()})
}
