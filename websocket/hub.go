package websocket

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Define notification types
const (
	NotificationTypeCommissionEarned   = "commission_earned"
	NotificationTypePlacementCompleted = "placement_completed"
)

// Notification represents a message sent over WebSocket
type Notification struct {
	Type    string      `json:"type"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	UserID  string      `json:"userID,omitempty"`
}

// Client represents a connected WebSocket client
type Client struct {
	UserID primitive.ObjectID
	Conn   *websocket.Conn
}

// Hub maintains the set of active clients and pushes ledger and placement
// events to member dashboards
type Hub struct {
	clients    map[primitive.ObjectID]*Client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[primitive.ObjectID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = client
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.UserID]; ok && current == client {
				delete(h.clients, client.UserID)
			}
			client.Conn.Close()
			h.mu.Unlock()
		}
	}
}

// SendToUser sends a message to a specific user
func (h *Hub) SendToUser(userID primitive.ObjectID, notification Notification) error {
	h.mu.RLock()
	client, ok := h.clients[userID]
	h.mu.RUnlock()

	if !ok {
		return fmt.Errorf("user not connected")
	}

	return client.Conn.WriteJSON(notification)
}

// NotifyCommissionEarned pushes a fresh ledger row to the beneficiary's
// dashboard. Not being connected is not an error worth surfacing.
func (h *Hub) NotifyCommissionEarned(beneficiaryID primitive.ObjectID, commissionData interface{}) error {
	notification := Notification{
		Type:    NotificationTypeCommissionEarned,
		Message: "You earned a new commission",
		Data:    commissionData,
	}

	return h.SendToUser(beneficiaryID, notification)
}

// NotifyPlacementCompleted tells a connected member their matrix position
func (h *Hub) NotifyPlacementCompleted(memberID primitive.ObjectID, placementData interface{}) error {
	notification := Notification{
		Type:    NotificationTypePlacementCompleted,
		Message: "Your matrix placement is complete",
		Data:    placementData,
	}

	return h.SendToUser(memberID, notification)
}
