// websocket/hub.go
package websocket

import (
	"sync"
	"time"

	convservices "tenant-onboarding-backend/conversation/services"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

type MessageType string

const (
	MessageTypeProgress MessageType = "ONBOARDING_PROGRESS"
	MessageTypeError    MessageType = "ERROR"
)

type WebSocketMessage struct {
	Type      MessageType `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Client is one connected dashboard session.
type Client struct {
	ID   uuid.UUID
	Conn *websocket.Conn
	Hub  *Hub
	Send chan WebSocketMessage
}

// Hub fans onboarding progress events out to every connected dashboard.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan WebSocketMessage
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan WebSocketMessage),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.broadcastToAll(message)
		}
	}
}

// BroadcastProgress implements the progress feed the session manager
// publishes to after every handled message.
func (h *Hub) BroadcastProgress(event convservices.ProgressEvent) {
	h.broadcast <- WebSocketMessage{
		Type:      MessageTypeProgress,
		Payload:   event,
		Timestamp: time.Now().UTC(),
	}
}

func (h *Hub) broadcastToAll(message WebSocketMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.Send <- message:
		default:
			// Slow consumer, drop it.
			close(client.Send)
			delete(h.clients, client)
		}
	}
}
