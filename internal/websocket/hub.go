// internal/websocket/hub.go
package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/metrics"
)

// Message kinds pushed to dashboard clients.
const (
	KindState        = "state"
	KindNotification = "notification"
	KindReading      = "reading"
)

// Envelope is the frame format sent to clients.
type Envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Hub maintains the set of active clients and broadcasts messages.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte  // Outbound frames
	register   chan *Client // Registration requests
	unregister chan *Client // Unregistration requests
	done       chan struct{}
	mu         sync.RWMutex
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

func NewHub(logger *zap.Logger, m *metrics.Metrics) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		logger:     logger,
		metrics:    m,
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.drop(client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			if client.Initial != nil {
				client.Send <- client.Initial // fresh buffer, cannot block
			}
			h.mu.Unlock()
			h.updateGauge()
			h.logger.Debug("websocket client registered", zap.String("remote", client.remote()))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.logger.Debug("websocket client unregistered", zap.String("remote", client.remote()))
			}
			h.mu.Unlock()
			h.updateGauge()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					// client is blocked or gone
					h.logger.Warn("websocket send buffer full, removing client", zap.String("remote", client.remote()))
					h.drop(client)
				}
			}
			h.mu.Unlock()
			h.updateGauge()
		}
	}
}

// drop must be called with h.mu held.
func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.Send)
}

func (h *Hub) updateGauge() {
	if h.metrics == nil {
		return
	}
	h.metrics.WebsocketClients.Set(float64(h.ClientCount()))
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RegisterClient safely registers a new client to the hub. It reports false
// once the hub has stopped.
func (h *Hub) RegisterClient(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues payload for every client. It never blocks: when the
// queue is full the frame is dropped, and the next state frame supersedes it.
func (h *Hub) Broadcast(kind string, payload interface{}) {
	messageBytes, err := Encode(kind, payload)
	if err != nil {
		h.logger.Error("marshal broadcast", zap.String("type", kind), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- messageBytes:
	default:
		h.logger.Warn("broadcast queue full, frame dropped", zap.String("type", kind))
	}
}

// Encode builds a client frame.
func Encode(kind string, payload interface{}) ([]byte, error) {
	return json.Marshal(Envelope{Type: kind, Payload: payload})
}
