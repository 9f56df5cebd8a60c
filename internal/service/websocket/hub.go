// Package websocket fans evidence notices out to connected WebSocket viewers.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"birdcam/internal/logger"
	"birdcam/internal/model"
)

const writeTimeout = 5 * time.Second

var (
	// ErrHubStopped is returned when a notice is offered after the hub has stopped.
	ErrHubStopped = errors.New("websocket hub stopped")
	// ErrBacklogFull is returned when viewers are too slow and the notice was dropped.
	ErrBacklogFull = errors.New("websocket backlog full, notice dropped")
)

const backlogSize = 16

// Hub tracks viewer connections and broadcasts messages to all of them.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logger.Logger
}

// NewHub creates a hub. Run must be started before clients register.
func NewHub(logger *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, backlogSize),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves registrations and broadcasts until ctx is cancelled, then closes every
// client connection.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mutex.Lock()
		for client := range h.clients {
			client.Close()
			delete(h.clients, client)
		}
		h.mutex.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer connected. Total: %d", total)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer disconnected. Total: %d", total)

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				client.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					h.logger.Warning("Dropping viewer after write error: %v", err)
					delete(h.clients, client)
					client.Close()
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Register adds a viewer. It returns false when the hub has stopped.
func (h *Hub) Register(client *websocket.Conn) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes and closes a viewer.
func (h *Hub) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues message for every viewer without waiting. When the backlog is full
// the message is dropped and ErrBacklogFull is returned.
func (h *Hub) Broadcast(ctx context.Context, message []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}
	select {
	case h.broadcast <- message:
		return nil
	default:
		return ErrBacklogFull
	}
}

// ClientCount returns the number of connected viewers.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Name identifies the listener in logs and metrics.
func (h *Hub) Name() string {
	return "websocket"
}

// OnEvidence broadcasts the JSON notice for evidence.
func (h *Hub) OnEvidence(ctx context.Context, evidence model.Evidence) error {
	payload, err := json.Marshal(evidence.Notice())
	if err != nil {
		return errors.Wrap(err, "failed to marshal evidence notice")
	}
	return h.Broadcast(ctx, payload)
}
