package services

import (
	"log"
	"sync"

	"domus/internal/models"
)

// ConnectionManager manages all active WebSocket connections, indexed by
// connection ID with a secondary per-household index for fan-out
type ConnectionManager struct {
	connections map[string]*models.HouseholdConnection
	byHousehold map[string]map[string]*models.HouseholdConnection
	mutex       sync.RWMutex
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*models.HouseholdConnection),
		byHousehold: make(map[string]map[string]*models.HouseholdConnection),
	}
}

// Add adds a new connection
func (cm *ConnectionManager) Add(conn *models.HouseholdConnection) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	cm.connections[conn.ConnID] = conn
	if cm.byHousehold[conn.HouseholdID] == nil {
		cm.byHousehold[conn.HouseholdID] = make(map[string]*models.HouseholdConnection)
	}
	cm.byHousehold[conn.HouseholdID][conn.ConnID] = conn
	log.Printf("✅ Connection added: %s household=%s (Total: %d)", conn.ConnID, conn.HouseholdID, len(cm.connections))
}

// Remove removes a connection
func (cm *ConnectionManager) Remove(connID string) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	conn, exists := cm.connections[connID]
	if !exists {
		return
	}

	conn.MarkClosed()
	close(conn.WriteChan)
	close(conn.StopChan)
	delete(cm.connections, connID)

	if hh := cm.byHousehold[conn.HouseholdID]; hh != nil {
		delete(hh, connID)
		if len(hh) == 0 {
			delete(cm.byHousehold, conn.HouseholdID)
		}
	}
	log.Printf("❌ Connection removed: %s (Total: %d)", connID, len(cm.connections))
}

// Get retrieves a connection by ID
func (cm *ConnectionManager) Get(connID string) (*models.HouseholdConnection, bool) {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	conn, exists := cm.connections[connID]
	return conn, exists
}

// Count returns the number of active connections
func (cm *ConnectionManager) Count() int {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	return len(cm.connections)
}

// ForHousehold returns the active connections for one household
func (cm *ConnectionManager) ForHousehold(householdID string) []*models.HouseholdConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	hh := cm.byHousehold[householdID]
	conns := make([]*models.HouseholdConnection, 0, len(hh))
	for _, conn := range hh {
		conns = append(conns, conn)
	}
	return conns
}

// Broadcast sends an event to every connection of a household. Slow
// consumers are skipped rather than blocking the caller.
func (cm *ConnectionManager) Broadcast(householdID string, event models.Event) int {
	sent := 0
	for _, conn := range cm.ForHousehold(householdID) {
		if conn.SafeSend(event) {
			sent++
		}
	}
	return sent
}
