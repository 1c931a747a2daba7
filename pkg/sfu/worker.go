// Package sfu is the media plane: workers own the pion setting/media
// engines, routers own per-room forwarding graphs, and transports carry
// ICE/DTLS legs with their producers and consumers. The orchestrator in
// pkg/rtc drives it through the interfaces in pkg/rtc/types.
package sfu

import (
	"context"
	"sync"

	"github.com/frostbyte73/core"
	"github.com/pion/ice/v2"
	"github.com/pion/webrtc/v3"
	"github.com/pkg/errors"

	"github.com/harmony-chat/harmony-server/pkg/config"
	"github.com/harmony-chat/harmony-server/pkg/logger"
	"github.com/harmony-chat/harmony-server/pkg/rtc/types"
	"github.com/harmony-chat/harmony-server/pkg/utils"
)

// Worker hosts routers on one pion API instance. A worker that can no
// longer create media objects reports itself dead; the server treats that
// as fatal.
type Worker struct {
	id  string
	api *webrtc.API

	lock    sync.Mutex
	routers map[string]*Router
	onDied  func(error)

	closed core.Fuse
	dead   core.Fuse
}

func NewWorker(conf *config.RTCConfig) (*Worker, error) {
	se := webrtc.SettingEngine{
		LoggerFactory: logger.LoggerFactory(),
	}
	if err := se.SetEphemeralUDPPortRange(uint16(conf.MinPort), uint16(conf.MaxPort)); err != nil {
		return nil, errors.Wrap(err, "could not set rtc port range")
	}
	if conf.AnnouncedIP != "" {
		se.SetNAT1To1IPs([]string{conf.AnnouncedIP}, webrtc.ICECandidateTypeHost)
	}
	se.SetICEMulticastDNSMode(ice.MulticastDNSModeDisabled)

	me := &webrtc.MediaEngine{}
	if err := me.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: opusCodec(),
		PayloadType:        opusPayloadType,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, errors.Wrap(err, "could not register opus")
	}

	w := &Worker{
		id:      utils.NewGuid(utils.WorkerPrefix),
		api:     webrtc.NewAPI(webrtc.WithSettingEngine(se), webrtc.WithMediaEngine(me)),
		routers: make(map[string]*Router),
		closed:  core.NewFuse(),
		dead:    core.NewFuse(),
	}
	logger.Infow("media worker started", "workerID", w.id)
	return w, nil
}

func (w *Worker) ID() string {
	return w.id
}

// OnDied registers the fatal-error hook. The server exits non-zero when
// it fires; the media plane is unrecoverable.
func (w *Worker) OnDied(f func(error)) {
	w.lock.Lock()
	w.onDied = f
	w.lock.Unlock()
}

func (w *Worker) CreateRouter(_ context.Context) (types.Router, error) {
	if w.closed.IsBroken() {
		return nil, ErrWorkerClosed
	}

	r := newRouter(w)

	w.lock.Lock()
	w.routers[r.ID()] = r
	w.lock.Unlock()

	logger.Debugw("router created", "workerID", w.id, "routerID", r.ID())
	return r, nil
}

// RouterCount reports live routers, for least-loaded worker selection.
func (w *Worker) RouterCount() int {
	w.lock.Lock()
	defer w.lock.Unlock()
	return len(w.routers)
}

func (w *Worker) removeRouter(routerID string) {
	w.lock.Lock()
	delete(w.routers, routerID)
	w.lock.Unlock()
}

// fatal marks the worker dead and fires OnDied once.
func (w *Worker) fatal(err error) {
	w.dead.Once(func() {
		logger.Errorw("media worker died", err, "workerID", w.id)
		w.lock.Lock()
		onDied := w.onDied
		w.lock.Unlock()
		if onDied != nil {
			onDied(err)
		}
	})
}

func (w *Worker) Close() {
	w.closed.Once(func() {
		w.lock.Lock()
		routers := make([]*Router, 0, len(w.routers))
		for _, r := range w.routers {
			routers = append(routers, r)
		}
		w.lock.Unlock()

		for _, r := range routers {
			r.Close()
		}
		logger.Infow("media worker closed", "workerID", w.id)
	})
}

// Pool is a fixed set of workers; routers land on the least loaded one.
type Pool struct {
	workers []*Worker
}

func NewPool(conf *config.Config) (*Pool, error) {
	count := conf.WorkerCount()
	workers := make([]*Worker, 0, count)
	for i := 0; i < count; i++ {
		w, err := NewWorker(&conf.RTC)
		if err != nil {
			for _, created := range workers {
				created.Close()
			}
			return nil, err
		}
		workers = append(workers, w)
	}
	return &Pool{workers: workers}, nil
}

func (p *Pool) CreateRouter(ctx context.Context) (types.Router, error) {
	return p.pick().CreateRouter(ctx)
}

func (p *Pool) OnDied(f func(error)) {
	for _, w := range p.workers {
		w.OnDied(f)
	}
}

func (p *Pool) pick() *Worker {
	best := p.workers[0]
	for _, w := range p.workers[1:] {
		if w.RouterCount() < best.RouterCount() {
			best = w
		}
	}
	return best
}

func (p *Pool) Close() {
	for _, w := range p.workers {
		w.Close()
	}
}
