package models

import (
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
)

// HouseholdConnection represents a single WebSocket subscriber for a
// household's event stream
type HouseholdConnection struct {
	ConnID      string
	HouseholdID string
	Conn        *websocket.Conn
	CreatedAt   time.Time
	WriteChan   chan Event
	StopChan    chan struct{}
	Mutex       sync.Mutex
	closed      bool
}

// SafeSend queues an event for the writer goroutine, returning false when the
// connection has been torn down or its queue is full. A slow client drops
// events rather than blocking the bus handler.
func (hc *HouseholdConnection) SafeSend(ev Event) bool {
	hc.Mutex.Lock()
	if hc.closed {
		hc.Mutex.Unlock()
		return false
	}
	hc.Mutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			hc.Mutex.Lock()
			hc.closed = true
			hc.Mutex.Unlock()
		}
	}()

	select {
	case hc.WriteChan <- ev:
		return true
	default:
		return false
	}
}

// MarkClosed flags the connection so later sends bail out early
func (hc *HouseholdConnection) MarkClosed() {
	hc.Mutex.Lock()
	hc.closed = true
	hc.Mutex.Unlock()
}
