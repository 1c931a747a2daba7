package service

import (
	"sync"

	"github.com/harmony-chat/harmony-server/pkg/logger"
)

// Hub is the registry of live connections; broadcasts snapshot under the
// lock and send after release.
type Hub struct {
	lock        sync.RWMutex
	connections map[string]*Connection
}

func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
	}
}

func (h *Hub) Register(c *Connection) {
	h.lock.Lock()
	h.connections[c.ConnID()] = c
	h.lock.Unlock()
}

func (h *Hub) Unregister(connID string) {
	h.lock.Lock()
	delete(h.connections, connID)
	h.lock.Unlock()
}

func (h *Hub) Connection(connID string) *Connection {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return h.connections[connID]
}

func (h *Hub) Count() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.connections)
}

func (h *Hub) snapshot() []*Connection {
	h.lock.RLock()
	defer h.lock.RUnlock()
	conns := make([]*Connection, 0, len(h.connections))
	for _, c := range h.connections {
		conns = append(conns, c)
	}
	return conns
}

// Broadcast pushes an event to every live connection.
func (h *Hub) Broadcast(event string, data interface{}) {
	for _, c := range h.snapshot() {
		if err := c.WriteEvent(event, data); err != nil {
			logger.Debugw("could not broadcast event",
				"event", event, "connID", c.ConnID(), "error", err)
		}
	}
}

// CloseAll disconnects everything, for shutdown.
func (h *Hub) CloseAll() {
	for _, c := range h.snapshot() {
		c.Close()
	}
}
