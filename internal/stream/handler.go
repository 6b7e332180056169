package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/ashureev/growthdesk/internal/identity"
	"github.com/ashureev/growthdesk/internal/session"
)

// Instances resolves the instance a socket watches.
type Instances interface {
	Get(userID, sessionID string) *session.Instance
}

// Handler upgrades /ws/workflow requests and streams snapshots.
type Handler struct {
	hub           *Hub
	instances     Instances
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a new WebSocket handler.
func NewHandler(hub *Hub, instances Instances, allowedOrigin string, isDev bool) *Handler {
	return &Handler{hub: hub, instances: instances, allowedOrigin: allowedOrigin, isDev: isDev}
}

type inbound struct {
	Type string `json:"type"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	slog.Info("WebSocket connection request", "user_id", userID, "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	inst := h.instances.Get(userID, sessionID)

	ctx, cancel := context.WithCancel(context.Background())
	c := &client{conn: ws, send: make(chan []byte, clientQueueSize), ctx: ctx, cancel: cancel}
	defer cancel()

	h.hub.register(inst.ID, c)
	defer h.hub.unregister(inst.ID, c)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writeLoop(slog.Default())
	}()

	h.sendSnapshot(c, inst)
	h.readLoop(ctx, c, inst, userID)

	cancel()
	wg.Wait()
	slog.Info("Workflow stream ended", "user_id", userID, "session_id", sessionID)
}

func (h *Handler) readLoop(ctx context.Context, c *client, inst *session.Instance, userID string) {
	defer c.cancel()
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				slog.Debug("WebSocket closed", "user_id", userID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "ping":
			h.send(c, Message{Type: "pong"})
		case "snapshot":
			h.sendSnapshot(c, inst)
		}
	}
}

func (h *Handler) sendSnapshot(c *client, inst *session.Instance) {
	snap := inst.Workflow.Snapshot()
	h.send(c, Message{Type: "snapshot", Snapshot: &snap})
}

func (h *Handler) send(c *client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Warn("Failed to encode WebSocket message", "error", err)
		return
	}
	c.enqueue(data, slog.Default())
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}
