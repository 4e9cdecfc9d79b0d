// Package websocket pushes live progression updates to connected clients.
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Message is one progression update pushed to a client. Payload carries the
// type-specific body: the session result, the badge, or the new tier.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Message types.
const (
	TypeSessionCompleted = "session_completed"
	TypeBadgeEarned      = "badge_earned"
	TypeTierChanged      = "tier_changed"
)

// Hub tracks connected clients grouped by account, so progression updates
// reach only the account they belong to.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[int64]map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub under its account.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.accountID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.accountID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if set, ok := h.clients[c.accountID]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			close(c.send)
		}
		if len(set) == 0 {
			delete(h.clients, c.accountID)
		}
	}
	h.mu.Unlock()
}

// SendTo delivers a message to every connection the account holds. Slow
// clients with a full buffer miss the message rather than stall the sender.
func (h *Hub) SendTo(accountID int64, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal update", "type", msg.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[accountID] {
		select {
		case c.send <- data:
		default:
		}
	}
}

// ClientCount returns the number of connected clients across all accounts.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}
