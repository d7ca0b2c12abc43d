package handlers

import (
	"log"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"domus/internal/models"
	"domus/internal/services"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
)

// WebSocketHandler streams household events to connected clients
type WebSocketHandler struct {
	connManager *services.ConnectionManager
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(connManager *services.ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{connManager: connManager}
}

// Handle handles a new WebSocket connection on /ws/:householdId
func (h *WebSocketHandler) Handle(c *websocket.Conn) {
	householdID := c.Params("householdId")
	if householdID == "" {
		c.Close()
		return
	}

	conn := &models.HouseholdConnection{
		ConnID:      uuid.NewString(),
		HouseholdID: householdID,
		Conn:        c,
		CreatedAt:   time.Now().UTC(),
		WriteChan:   make(chan models.Event, 100),
		StopChan:    make(chan struct{}),
	}

	h.connManager.Add(conn)
	if m := services.GetMetrics(); m != nil {
		m.RecordWebSocketConnect()
	}
	defer func() {
		h.connManager.Remove(conn.ConnID)
		if m := services.GetMetrics(); m != nil {
			m.RecordWebSocketDisconnect()
		}
	}()

	c.SetReadDeadline(time.Now().Add(pongWait))
	c.SetPongHandler(func(string) error {
		c.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go h.writeLoop(conn)

	// Read loop exists only to observe the close; clients do not send
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("⚠️ [WS] connection %s closed unexpectedly: %v", conn.ConnID, err)
			}
			return
		}
	}
}

func (h *WebSocketHandler) writeLoop(conn *models.HouseholdConnection) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-conn.StopChan:
			return
		case event, ok := <-conn.WriteChan:
			if !ok {
				return
			}
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.Conn.WriteJSON(event); err != nil {
				log.Printf("⚠️ [WS] write failed for %s: %v", conn.ConnID, err)
				return
			}
		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
