package service

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/frostbyte73/core"
	"github.com/gorilla/websocket"

	"github.com/harmony-chat/harmony-server/pkg/logger"
	"github.com/harmony-chat/harmony-server/pkg/signal"
	"github.com/harmony-chat/harmony-server/pkg/store"
	"github.com/harmony-chat/harmony-server/pkg/utils"
)

const (
	pingFrequency = 10 * time.Second
	pingTimeout   = 2 * time.Second
	writeTimeout  = 2 * time.Second

	// outbound queue high-water mark; a slower consumer is disconnected
	writeQueueSize = 64
)

// Connection is one websocket client. A single writer goroutine drains
// the bounded outbound queue. Enqueueing never blocks: a full queue
// closes the connection, which counts as a disconnect.
type Connection struct {
	id string
	ws *websocket.Conn

	writeCh chan *signal.Envelope
	closed  core.Fuse

	lock sync.Mutex
	user *store.UserRef
}

func NewConnection(ws *websocket.Conn) *Connection {
	c := &Connection{
		id:      utils.NewGuid(utils.ConnectionPrefix),
		ws:      ws,
		writeCh: make(chan *signal.Envelope, writeQueueSize),
		closed:  core.NewFuse(),
	}

	ws.SetReadDeadline(time.Now().Add(3 * pingFrequency))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(3 * pingFrequency))
	})

	go c.writeWorker()
	return c
}

func (c *Connection) ConnID() string {
	return c.id
}

// SetUser records the identity announced by user_online.
func (c *Connection) SetUser(user store.UserRef) {
	c.lock.Lock()
	c.user = &user
	c.lock.Unlock()
}

// User returns the connection's identity; ok is false before user_online.
func (c *Connection) User() (store.UserRef, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.user == nil {
		return store.UserRef{}, false
	}
	return *c.user, true
}

// WriteEvent queues a fire-and-forget event.
func (c *Connection) WriteEvent(event string, data interface{}) error {
	return c.enqueue(&signal.Envelope{Event: event, Data: mustMarshal(data)})
}

// WriteAck queues the single reply to an acked request.
func (c *Connection) WriteAck(event string, id uint64, ack *signal.Ack) error {
	return c.enqueue(&signal.Envelope{Event: event, ID: &id, Data: mustMarshal(ack)})
}

func (c *Connection) enqueue(env *signal.Envelope) error {
	if c.closed.IsBroken() {
		return ErrConnectionClosed
	}
	select {
	case c.writeCh <- env:
		return nil
	default:
		logger.Warnw("outbound queue full, closing slow connection", nil,
			"connID", c.id, "event", env.Event)
		c.CloseWithReason(websocket.ClosePolicyViolation, "outbound queue overflow")
		return ErrWriteQueueFull
	}
}

func (c *Connection) writeWorker() {
	pingTicker := time.NewTicker(pingFrequency)
	defer pingTicker.Stop()

	for {
		select {
		case env, ok := <-c.writeCh:
			if !ok {
				return
			}
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteJSON(env); err != nil {
				logger.Debugw("could not write to websocket", "connID", c.id, "error", err)
				c.Close()
				return
			}
		case <-pingTicker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(pingTimeout)); err != nil {
				logger.Debugw("could not ping websocket", "connID", c.id, "error", err)
				c.Close()
				return
			}
		case <-c.closed.Watch():
			return
		}
	}
}

// ReadEnvelope blocks on the next inbound frame. Only the reader
// goroutine calls it.
func (c *Connection) ReadEnvelope() (*signal.Envelope, error) {
	_, payload, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	return signal.ParseEnvelope(payload)
}

func (c *Connection) Close() {
	c.CloseWithReason(websocket.CloseNormalClosure, "")
}

func (c *Connection) CloseWithReason(code int, reason string) {
	c.closed.Once(func() {
		msg := websocket.FormatCloseMessage(code, reason)
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(pingTimeout))
		_ = c.ws.Close()
	})
}

func (c *Connection) IsClosed() bool {
	return c.closed.IsBroken()
}

// mustMarshal defers encoding errors to the write path; payload types are
// all JSON-safe structs owned by pkg/signal.
func mustMarshal(data interface{}) json.RawMessage {
	if data == nil {
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		logger.Errorw("could not encode outbound payload", err)
		return json.RawMessage(`{}`)
	}
	return raw
}
