package websocket

import (
	"sync/atomic"

	"github.com/unclepete-20/chatbot-test/utils/log"
	"go.uber.org/zap"
)

// Hub tracks the connected clients. All map access happens on the run
// goroutine.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	closeAll   chan chan struct{}
	count      atomic.Int64
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		closeAll:   make(chan chan struct{}),
	}
}

// Run starts the hub
func (h *Hub) Run() {
	go h.run()
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.count.Store(int64(len(h.clients)))
			log.WithCtx(client.ctx).Debug("New client registered", zap.Int("clients", len(h.clients)))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				h.count.Store(int64(len(h.clients)))
				go client.Close()
				log.WithCtx(client.ctx).Debug("Client unregistered", zap.Int("clients", len(h.clients)))
			}

		case done := <-h.closeAll:
			for client := range h.clients {
				go client.Close()
			}
			log.With(zap.Int("clients", len(h.clients))).Info("Closing all clients")
			close(done)
		}
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// CloseAll asks every connected client to close. Their handlers unregister
// them as they finish.
func (h *Hub) CloseAll() {
	done := make(chan struct{})
	h.closeAll <- done
	<-done
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}
