package realtime

import (
	"encoding/json"
	"net/http"
	"sync"

	"ordergate/internal/orders"

	"github.com/gorilla/websocket"
)

// OrderEvent is broadcast to subscribers when an order commits.
type OrderEvent struct {
	OrderID   string `json:"order_id"`
	OwnerRef  string `json:"owner_ref"`
	Total     string `json:"total_amount"`
	Status    string `json:"status"`
	LineCount int    `json:"line_count"`
}

// Hub manages WebSocket subscribers and fans committed-order events out to
// them. Run must be started before events are published.
type Hub struct {
	connections map[*websocket.Conn]struct{}
	Register    chan *websocket.Conn
	Unregister  chan *websocket.Conn
	Broadcast   chan []byte
	mu          sync.Mutex
}

// NewHub constructs a Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[*websocket.Conn]struct{}),
		Register:    make(chan *websocket.Conn),
		Unregister:  make(chan *websocket.Conn),
		Broadcast:   make(chan []byte),
	}
}

// Run processes register/unregister/broadcast events.
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.Register:
			h.mu.Lock()
			h.connections[conn] = struct{}{}
			h.mu.Unlock()
		case conn := <-h.Unregister:
			h.mu.Lock()
			delete(h.connections, conn)
			h.mu.Unlock()
			conn.Close()
		case msg := <-h.Broadcast:
			h.mu.Lock()
			for conn := range h.connections {
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					conn.Close()
					delete(h.connections, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

// OrderCreated implements the orchestrator's publisher interface.
func (h *Hub) OrderCreated(order orders.Order) {
	event := OrderEvent{
		OrderID:   order.ID,
		OwnerRef:  order.OwnerRef,
		Total:     order.Total.StringFixed(2),
		Status:    string(order.Status),
		LineCount: len(order.Lines),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.Broadcast <- data
}

// Handler upgrades HTTP requests to WebSocket and registers the connection.
func (h *Hub) Handler() http.Handler {
	upgrader := websocket.Upgrader{}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.Register <- conn
	})
}
