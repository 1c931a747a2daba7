// Package events carries domain events (server/channel creation, new
// messages) from the directory to the gateway broadcast path.
package events

import (
	"sync"

	"github.com/gammazero/workerpool"
)

type Kind string

const (
	KindServerCreated  Kind = "server_created"
	KindChannelCreated Kind = "channel_created"
	KindNewMessage     Kind = "new_message"
)

type Event struct {
	Kind    Kind
	Payload interface{}
}

type Handler func(ev Event)

// Bus dispatches events to subscribers on a single worker, so every
// subscriber observes events in publish order.
type Bus struct {
	lock     sync.RWMutex
	handlers []Handler
	pool     *workerpool.WorkerPool
}

func NewBus() *Bus {
	return &Bus{
		pool: workerpool.New(1),
	}
}

func (b *Bus) Subscribe(h Handler) {
	b.lock.Lock()
	b.handlers = append(b.handlers, h)
	b.lock.Unlock()
}

func (b *Bus) Publish(ev Event) {
	b.pool.Submit(func() {
		b.lock.RLock()
		handlers := make([]Handler, len(b.handlers))
		copy(handlers, b.handlers)
		b.lock.RUnlock()

		for _, h := range handlers {
			h(ev)
		}
	})
}

// Stop drains queued events and shuts the worker down.
func (b *Bus) Stop() {
	b.pool.StopWait()
}
