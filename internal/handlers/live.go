// internal/handlers/live.go
package handlers

import (
	"encoding/json"
	"net/http"
	"sync"

	"fieldtrack_backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// LiveHub fans accepted location updates out to connected dashboard
// clients.
type LiveHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewLiveHub() *LiveHub {
	return &LiveHub{clients: make(map[*websocket.Conn]struct{})}
}

// HandleWebSocket upgrades the dashboard connection and holds it open
// until the client goes away.
func (hub *LiveHub) HandleWebSocket(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	hub.mu.Lock()
	hub.clients[conn] = struct{}{}
	hub.mu.Unlock()

	defer func() {
		hub.mu.Lock()
		delete(hub.clients, conn)
		hub.mu.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// BroadcastLocation pushes one accepted point to every connected client.
func (hub *LiveHub) BroadcastLocation(employeeID uint, point models.LocationPathPoint) {
	msg, err := json.Marshal(gin.H{
		"type":        "location_update",
		"employee_id": employeeID,
		"point":       point,
	})
	if err != nil {
		return
	}

	hub.mu.Lock()
	defer hub.mu.Unlock()
	for conn := range hub.clients {
		_ = conn.WriteMessage(websocket.TextMessage, msg)
	}
}
