package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/vivesbank/backend/shared/events"
)

var logger = log.With().Str("pkg", "websocket").Logger()

var connectionsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "websocket_connections",
	Help: "Open WebSocket connections per notification channel",
}, []string{"entity"})

// Notification is the envelope written to every WebSocket client.
type Notification struct {
	Entity    string `json:"entity"`
	Type      string `json:"type"`
	Data      any    `json:"data"`
	CreatedAt string `json:"createdAt"`
}

// Hub tracks the open connections of one notification channel, grouped by
// username. A user may hold several connections (tabs, devices).
type Hub struct {
	entity  string
	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

func NewHub(entity string) *Hub {
	return &Hub{entity: entity, clients: make(map[string]map[*client]struct{})}
}

func (h *Hub) Entity() string { return h.entity }

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.username]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.username] = set
	}
	set[c] = struct{}{}
	connectionsGauge.WithLabelValues(h.entity).Inc()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.username]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.username)
	}
	c.close()
	connectionsGauge.WithLabelValues(h.entity).Dec()
}

// SendToUser queues msg on every connection of username and returns how many
// connections received it. Connections with a full buffer are dropped.
func (h *Hub) SendToUser(username string, msg []byte) int {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients[username]))
	for c := range h.clients[username] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	return h.deliver(targets, msg)
}

func (h *Hub) Broadcast(msg []byte) int {
	h.mu.RLock()
	var targets []*client
	for _, set := range h.clients {
		for c := range set {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()
	return h.deliver(targets, msg)
}

func (h *Hub) deliver(targets []*client, msg []byte) int {
	sent := 0
	for _, c := range targets {
		switch c.trySend(msg) {
		case sendQueued:
			sent++
		case sendFull:
			logger.Warn().Str("entity", h.entity).Str("user", c.username).Msg("slow websocket client dropped")
			h.unregister(c)
		}
	}
	return sent
}

// Connections returns the number of open connections.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// Router routes notification stream events to the hub of their entity.
type Router struct {
	hubs map[string]*Hub
}

func NewRouter(hubs ...*Hub) *Router {
	r := &Router{hubs: make(map[string]*Hub, len(hubs))}
	for _, h := range hubs {
		r.hubs[h.entity] = h
	}
	return r
}

func (r *Router) Hub(entity string) *Hub { return r.hubs[entity] }

// Handle is an events.Handler for the notifications stream.
func (r *Router) Handle(_ context.Context, event events.Event) error {
	if event.Type != events.NotificationCreated {
		return nil
	}
	var n events.NotificationEvent
	if err := events.DecodeData(event, &n); err != nil {
		return err
	}
	hub, ok := r.hubs[n.Entity]
	if !ok {
		return fmt.Errorf("no websocket hub for entity %q", n.Entity)
	}
	msg, err := json.Marshal(Notification{
		Entity:    n.Entity,
		Type:      n.Kind,
		Data:      n.Data,
		CreatedAt: n.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	sent := hub.SendToUser(n.Recipient, msg)
	logger.Debug().Str("entity", n.Entity).Str("user", n.Recipient).Int("connections", sent).Msg("notification delivered")
	return nil
}
