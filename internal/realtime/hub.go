package realtime

import (
	"context"
	"sync"

	"github.com/orderflowhq/orderflow-backend/pkg/config"
	"github.com/orderflowhq/orderflow-backend/pkg/logger"
	"github.com/orderflowhq/orderflow-backend/pkg/types"
)

// Events pushed to connected clients.
const (
	EventOrderUpdate      = "order-update"
	EventAdminOrderUpdate = "admin-order-update"
)

const defaultSendBuffer = 16

// Message is one outbound frame.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Client is one connected subscriber. The transport layer drains Receive and
// owns the underlying connection; the hub only queues.
type Client struct {
	userID  string
	isAdmin bool
	send    chan Message
}

// Receive returns the outbound queue. Closed on unregister.
func (c *Client) Receive() <-chan Message {
	return c.send
}

// UserID returns the subscriber identity the client registered with.
func (c *Client) UserID() string {
	return c.userID
}

// Hub fans order snapshots out to the owner's connections and the admin
// room. Sends are fire-and-forget: a client with a full queue misses the
// update rather than blocking the caller.
type Hub struct {
	mu     sync.RWMutex
	users  map[string]map[*Client]struct{}
	admins map[*Client]struct{}
	buffer int
	logg   *logger.Logger
}

// NewHub builds the hub with the configured per-connection send buffer.
func NewHub(cfg config.RealtimeConfig, logg *logger.Logger) *Hub {
	buffer := cfg.SendBuffer
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	return &Hub{
		users:  map[string]map[*Client]struct{}{},
		admins: map[*Client]struct{}{},
		buffer: buffer,
		logg:   logg,
	}
}

// Register adds a subscriber. Admins join the admin room on top of their own
// user room.
func (h *Hub) Register(userID string, isAdmin bool) *Client {
	client := &Client{
		userID:  userID,
		isAdmin: isAdmin,
		send:    make(chan Message, h.buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.users[userID]
	if !ok {
		conns = map[*Client]struct{}{}
		h.users[userID] = conns
	}
	conns[client] = struct{}{}
	if isAdmin {
		h.admins[client] = struct{}{}
	}
	return client
}

// Unregister removes one subscriber and closes its queue. The user entry is
// dropped when its last connection leaves.
func (h *Hub) Unregister(client *Client) {
	if client == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.users[client.userID]
	if !ok {
		return
	}
	if _, present := conns[client]; !present {
		return
	}
	delete(conns, client)
	if len(conns) == 0 {
		delete(h.users, client.userID)
	}
	delete(h.admins, client)
	close(client.send)
}

// NotifyOrderUpdate pushes the snapshot to the owner and the admin room.
// Implements the lifecycle engine's notifier; it must never block, so full
// queues drop.
func (h *Hub) NotifyOrderUpdate(snapshot types.OrderSnapshot) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.users[snapshot.UserID] {
		h.push(client, Message{Event: EventOrderUpdate, Data: snapshot})
	}
	for client := range h.admins {
		h.push(client, Message{Event: EventAdminOrderUpdate, Data: snapshot})
	}
}

// Send queues a message to a single client, dropping when the queue is full.
func (h *Hub) Send(client *Client, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.push(client, msg)
}

func (h *Hub) push(client *Client, msg Message) {
	select {
	case client.send <- msg:
	default:
		if h.logg != nil {
			h.logg.Debug(h.logg.WithUserID(context.Background(), client.userID),
				"realtime queue full, dropping message")
		}
	}
}

// ConnectionCount reports active connections, admin room included once.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, conns := range h.users {
		total += len(conns)
	}
	return total
}
