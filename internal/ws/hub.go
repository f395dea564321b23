package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pedefacil/api/internal/service"
)

// Event is the wire shape of every message pushed to clients.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// EventOrdersSnapshot carries the full filtered order list. Clients replace
// their local state with the payload; there are no incremental diffs to
// reconcile or lose.
const EventOrdersSnapshot = "orders.snapshot"

// Projector builds the per-client order projection.
// Satisfied by *service.Projector.
type Projector interface {
	List(ctx context.Context, tenantID uuid.UUID, f service.Filter) ([]service.OrderView, error)
}

// projectionTimeout bounds the DB work done per snapshot push.
const projectionTimeout = 5 * time.Second

// Hub maintains the set of connected clients grouped by tenant. A change
// signal for a tenant re-runs each client's projection and pushes a fresh
// snapshot; clients never receive another tenant's data because the
// projection itself is tenant-scoped.
type Hub struct {
	projector Projector

	// Registered clients by tenant ID
	rooms map[uuid.UUID]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	// Tenant IDs whose orders changed
	notify chan uuid.UUID

	mu sync.RWMutex
}

func NewHub(projector Projector) *Hub {
	return &Hub{
		projector:  projector,
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		notify:     make(chan uuid.UUID, 256),
	}
}

// Run starts the hub's main loop.
// This should be called as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.tenantID] == nil {
				h.rooms[client.tenantID] = make(map[*Client]bool)
			}
			h.rooms[client.tenantID][client] = true
			h.mu.Unlock()

			// New clients get the current state immediately instead of
			// waiting for the next change.
			h.pushSnapshot(client)

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.tenantID]; ok {
				if _, exists := clients[client]; exists {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.rooms, client.tenantID)
					}
				}
			}
			h.mu.Unlock()

		case tenantID := <-h.notify:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.rooms[tenantID]))
			for client := range h.rooms[tenantID] {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			for _, client := range clients {
				h.pushSnapshot(client)
			}
		}
	}
}

// Notify signals that the tenant's orders changed. The database listener
// calls this for every orders_changed notification.
func (h *Hub) Notify(tenantID uuid.UUID) {
	select {
	case h.notify <- tenantID:
	default:
		// Channel full; the next queued signal for this tenant will refresh
		// clients with the same authoritative state anyway.
		log.Printf("WARN: ws: notify channel full, dropping signal for tenant %s", tenantID)
	}
}

// pushSnapshot rebuilds the client's projection and sends it. Clients that
// cannot keep up are dropped; they reconnect and get a fresh snapshot.
func (h *Hub) pushSnapshot(client *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), projectionTimeout)
	defer cancel()

	views, err := h.projector.List(ctx, client.tenantID, client.filter)
	if err != nil {
		log.Printf("ERROR: ws: projection for tenant %s: %v", client.tenantID, err)
		return
	}

	payload, err := json.Marshal(views)
	if err != nil {
		log.Printf("ERROR: ws: marshal snapshot: %v", err)
		return
	}
	message, err := json.Marshal(Event{Type: EventOrdersSnapshot, Payload: payload})
	if err != nil {
		log.Printf("ERROR: ws: marshal event: %v", err)
		return
	}

	select {
	case client.send <- message:
	default:
		h.mu.Lock()
		if clients, ok := h.rooms[client.tenantID]; ok && clients[client] {
			delete(clients, client)
			close(client.send)
			if len(clients) == 0 {
				delete(h.rooms, client.tenantID)
			}
		}
		h.mu.Unlock()
	}
}
