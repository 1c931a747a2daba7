package sfu

import (
	"context"
	"sync"

	"github.com/frostbyte73/core"

	"github.com/harmony-chat/harmony-server/pkg/logger"
	"github.com/harmony-chat/harmony-server/pkg/rtc/types"
	"github.com/harmony-chat/harmony-server/pkg/utils"
)

// Router owns one room's forwarding graph: the transports created on it
// and the producers available for consumption. Its codec set is fixed at
// creation (Opus 48k stereo with inband FEC).
type Router struct {
	id           string
	worker       *Worker
	capabilities types.RTPCapabilities

	lock       sync.RWMutex
	transports map[string]*WebRTCTransport
	producers  map[string]*Producer

	closed core.Fuse
}

func newRouter(w *Worker) *Router {
	return &Router{
		id:           utils.NewGuid(utils.RouterPrefix),
		worker:       w,
		capabilities: routerCapabilities(),
		transports:   make(map[string]*WebRTCTransport),
		producers:    make(map[string]*Producer),
		closed:       core.NewFuse(),
	}
}

func (r *Router) ID() string {
	return r.id
}

func (r *Router) RTPCapabilities() types.RTPCapabilities {
	return r.capabilities
}

func (r *Router) CreateTransport(ctx context.Context) (types.Transport, error) {
	if r.closed.IsBroken() {
		return nil, ErrRouterClosed
	}

	t, err := newWebRTCTransport(ctx, r)
	if err != nil {
		return nil, err
	}

	r.lock.Lock()
	r.transports[t.ID()] = t
	r.lock.Unlock()

	logger.Debugw("transport created", "routerID", r.id, "transportID", t.ID())
	return t, nil
}

// CanConsume reports whether the producer still exists here and the given
// capabilities can receive it.
func (r *Router) CanConsume(producerID string, caps types.RTPCapabilities) bool {
	r.lock.RLock()
	_, exists := r.producers[producerID]
	r.lock.RUnlock()
	return exists && canReceiveOpus(caps)
}

func (r *Router) producer(producerID string) *Producer {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.producers[producerID]
}

func (r *Router) addProducer(p *Producer) {
	r.lock.Lock()
	r.producers[p.ID()] = p
	r.lock.Unlock()
}

func (r *Router) removeProducer(producerID string) {
	r.lock.Lock()
	delete(r.producers, producerID)
	r.lock.Unlock()
}

func (r *Router) removeTransport(transportID string) {
	r.lock.Lock()
	delete(r.transports, transportID)
	r.lock.Unlock()
}

func (r *Router) Close() {
	r.closed.Once(func() {
		r.lock.Lock()
		transports := make([]*WebRTCTransport, 0, len(r.transports))
		for _, t := range r.transports {
			transports = append(transports, t)
		}
		r.transports = make(map[string]*WebRTCTransport)
		r.lock.Unlock()

		for _, t := range transports {
			t.Close()
		}
		r.worker.removeRouter(r.id)
		logger.Debugw("router closed", "routerID", r.id)
	})
}
