// Package stream pushes workflow snapshots to browser tabs over WebSocket.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/growthdesk/internal/workflow"
)

const (
	clientQueueSize = 16
	writeTimeout    = 10 * time.Second
)

// Message is the frame sent to clients.
type Message struct {
	Type     string             `json:"type"`
	Op       workflow.Op        `json:"op,omitempty"`
	Snapshot *workflow.Snapshot `json:"snapshot,omitempty"`
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc
}

// Hub fans workflow events out to the connections watching an instance.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{logger: logger, clients: make(map[string]map[*client]struct{})}
}

// Observe implements workflow.Observer.
func (h *Hub) Observe(ev workflow.Event) {
	snap := ev.Snapshot
	data, err := json.Marshal(Message{Type: "snapshot", Op: ev.Op, Snapshot: &snap})
	if err != nil {
		h.logger.Warn("Failed to encode workflow snapshot", "instance", ev.Instance, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[ev.Instance] {
		c.enqueue(data, h.logger)
	}
}

// Connections returns the number of sockets watching an instance.
func (h *Hub) Connections(instance string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[instance])
}

// CloseInstance disconnects every socket watching an instance.
func (h *Hub) CloseInstance(instance string) {
	h.mu.Lock()
	clients := h.clients[instance]
	delete(h.clients, instance)
	h.mu.Unlock()

	for c := range clients {
		_ = c.conn.Close(websocket.StatusNormalClosure, "session closed")
		c.cancel()
	}
}

// CloseAll disconnects every socket.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	instances := make([]string, 0, len(h.clients))
	for id := range h.clients {
		instances = append(instances, id)
	}
	h.mu.RUnlock()

	for _, id := range instances {
		h.CloseInstance(id)
	}
}

func (h *Hub) register(instance string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[instance]; !ok {
		h.clients[instance] = make(map[*client]struct{})
	}
	h.clients[instance][c] = struct{}{}
}

func (h *Hub) unregister(instance string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[instance]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, instance)
		}
	}
}

// enqueue never blocks; when the queue is full the oldest frame is dropped.
func (c *client) enqueue(data []byte, logger *slog.Logger) {
	select {
	case c.send <- data:
		return
	case <-c.ctx.Done():
		return
	default:
	}

	select {
	case <-c.send:
		logger.Debug("WebSocket queue full, dropped oldest frame")
	default:
	}
	select {
	case c.send <- data:
	default:
		logger.Warn("WebSocket queue full, dropping frame")
	}
}

func (c *client) writeLoop(logger *slog.Logger) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case data := <-c.send:
			ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
			err := c.conn.Write(ctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				if c.ctx.Err() == nil {
					logger.Debug("WebSocket write error", "error", err)
				}
				c.cancel()
				return
			}
		}
	}
}
