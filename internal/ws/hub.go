package ws

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// Event represents a message broadcast to stream subscribers.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// tenantEvent routes an event to a single tenant's room.
type tenantEvent struct {
	TenantID uuid.UUID
	Event    Event
}

// Hub maintains the set of active stream clients per tenant and fans
// events out to them. A tenant with zero subscribers holds no state.
type Hub struct {
	rooms map[uuid.UUID]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *tenantEvent

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *tenantEvent, 256),
	}
}

// Run is the hub's main loop; call as a goroutine: go hub.Run()
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

		case event := <-h.broadcast:
			h.mu.Lock()
			clients := h.rooms[event.TenantID]

			message, err := json.Marshal(event.Event)
			if err != nil {
				h.mu.Unlock()
				continue
			}

			for client := range clients {
				select {
				case client.send <- message:
				default:
					// Slow client: drop it rather than block the hub.
					close(client.send)
					delete(h.rooms[event.TenantID], client)
					if len(h.rooms[event.TenantID]) == 0 {
						delete(h.rooms, event.TenantID)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastToTenant sends an event to every client subscribed to the
// tenant. Never blocks the caller beyond the hub's buffered channel.
func (h *Hub) BroadcastToTenant(tenantID uuid.UUID, event Event) {
	h.broadcast <- &tenantEvent{
		TenantID: tenantID,
		Event:    event,
	}
}
