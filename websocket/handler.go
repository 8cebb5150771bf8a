package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWebSocket upgrades an authenticated request and registers the member
// with the hub. The JWT middleware has already established identity, so the
// connection is trusted from the first frame.
func HandleWebSocket(c echo.Context, hub *Hub, userID primitive.ObjectID) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &Client{
		UserID: userID,
		Conn:   conn,
	}

	hub.register <- client

	conn.WriteJSON(Notification{
		Type:    "connected",
		Message: "WebSocket connection established",
		UserID:  userID.Hex(),
	})

	// Reads only detect disconnection; the dashboard never sends commands.
	go func() {
		defer func() {
			hub.unregister <- client
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()

	return nil
}
