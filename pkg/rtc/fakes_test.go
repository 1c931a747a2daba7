package rtc

import (
	"context"
	"strings"
	"sync"

	"github.com/harmony-chat/harmony-server/pkg/rtc/types"
	"github.com/harmony-chat/harmony-server/pkg/utils"
)

// Hand-rolled fakes for the media plane. They keep just enough registry
// state for the orchestrator's checks to behave like the real pkg/sfu.

type fakeProvider struct {
	lock    sync.Mutex
	routers []*fakeRouter
	// when set, CreateTransport blocks until the channel is closed
	blockTransport chan struct{}
}

func (f *fakeProvider) CreateRouter(context.Context) (types.Router, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	r := &fakeRouter{
		id:        utils.NewGuid(utils.RouterPrefix),
		provider:  f,
		producers: make(map[string]*fakeProducer),
	}
	f.routers = append(f.routers, r)
	return r, nil
}

func (f *fakeProvider) setBlockTransport(ch chan struct{}) {
	f.lock.Lock()
	f.blockTransport = ch
	f.lock.Unlock()
}

func (f *fakeProvider) getBlockTransport() chan struct{} {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.blockTransport
}

func (f *fakeProvider) openRouters() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	n := 0
	for _, r := range f.routers {
		if !r.isClosed() {
			n++
		}
	}
	return n
}

type fakeRouter struct {
	id       string
	provider *fakeProvider

	lock       sync.Mutex
	producers  map[string]*fakeProducer
	transports []*fakeTransport
	closed     bool
}

func (r *fakeRouter) ID() string { return r.id }

func (r *fakeRouter) RTPCapabilities() types.RTPCapabilities {
	return types.RTPCapabilities{Codecs: []types.RTPCodecCapability{
		{MimeType: "audio/opus", ClockRate: 48000, Channels: 2, Parameters: "useinbandfec=1;stereo=1"},
	}}
}

func (r *fakeRouter) CreateTransport(ctx context.Context) (types.Transport, error) {
	if block := r.provider.getBlockTransport(); block != nil {
		<-block
	}
	t := &fakeTransport{
		id:     utils.NewGuid(utils.TransportPrefix),
		router: r,
	}
	r.lock.Lock()
	r.transports = append(r.transports, t)
	r.lock.Unlock()
	return t, nil
}

func (r *fakeRouter) CanConsume(producerID string, caps types.RTPCapabilities) bool {
	r.lock.Lock()
	_, exists := r.producers[producerID]
	r.lock.Unlock()
	if !exists {
		return false
	}
	for _, c := range caps.Codecs {
		if strings.EqualFold(c.MimeType, "audio/opus") {
			return true
		}
	}
	return false
}

func (r *fakeRouter) Close() {
	r.lock.Lock()
	r.closed = true
	r.lock.Unlock()
}

func (r *fakeRouter) isClosed() bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.closed
}

type fakeTransport struct {
	id     string
	router *fakeRouter

	lock          sync.Mutex
	onStateChange func(types.TransportState)
	connected     bool
	closed        bool
}

func (t *fakeTransport) ID() string { return t.id }

func (t *fakeTransport) Info() types.TransportInfo {
	return types.TransportInfo{
		ID:            t.id,
		ICEParameters: types.ICEParameters{UsernameFragment: "frag-" + t.id, Password: "pwd"},
		ICECandidates: []types.ICECandidate{{IP: "127.0.0.1", Port: 40000, Protocol: "udp", Type: "host"}},
		DTLSParameters: types.DTLSParameters{
			Fingerprints: []types.DTLSFingerprint{{Algorithm: "sha-256", Value: "00:11"}},
		},
	}
}

func (t *fakeTransport) Connect(context.Context, types.ICEParameters, types.DTLSParameters) error {
	t.lock.Lock()
	t.connected = true
	t.lock.Unlock()
	return nil
}

func (t *fakeTransport) Produce(_ context.Context, _ types.RTPParameters) (types.Producer, error) {
	p := &fakeProducer{
		id:     utils.NewGuid(utils.ProducerPrefix),
		router: t.router,
	}
	t.router.lock.Lock()
	t.router.producers[p.id] = p
	t.router.lock.Unlock()
	return p, nil
}

func (t *fakeTransport) Consume(_ context.Context, producerID string, caps types.RTPCapabilities) (types.Consumer, error) {
	if !t.router.CanConsume(producerID, caps) {
		return nil, ErrIncompatibleCodecs
	}
	return &fakeConsumer{
		id:         utils.NewGuid(utils.ConsumerPrefix),
		producerID: producerID,
	}, nil
}

func (t *fakeTransport) OnStateChange(f func(types.TransportState)) {
	t.lock.Lock()
	t.onStateChange = f
	t.lock.Unlock()
}

// die simulates a DTLS failure upcall.
func (t *fakeTransport) die() {
	t.lock.Lock()
	f := t.onStateChange
	t.lock.Unlock()
	if f != nil {
		f(types.TransportStateClosed)
	}
}

func (t *fakeTransport) Close() {
	t.lock.Lock()
	t.closed = true
	t.lock.Unlock()
}

func (t *fakeTransport) isClosed() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.closed
}

type fakeProducer struct {
	id     string
	router *fakeRouter

	lock   sync.Mutex
	paused bool
	closed bool
}

func (p *fakeProducer) ID() string            { return p.id }
func (p *fakeProducer) Kind() types.MediaKind { return types.MediaKindAudio }

func (p *fakeProducer) Paused() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.paused
}

func (p *fakeProducer) SetPaused(paused bool) {
	p.lock.Lock()
	p.paused = paused
	p.lock.Unlock()
}

func (p *fakeProducer) Close() {
	p.lock.Lock()
	p.closed = true
	p.lock.Unlock()
	p.router.lock.Lock()
	delete(p.router.producers, p.id)
	p.router.lock.Unlock()
}

func (p *fakeProducer) isClosed() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.closed
}

type fakeConsumer struct {
	id         string
	producerID string

	lock   sync.Mutex
	closed bool
}

func (c *fakeConsumer) ID() string            { return c.id }
func (c *fakeConsumer) ProducerID() string    { return c.producerID }
func (c *fakeConsumer) Kind() types.MediaKind { return types.MediaKindAudio }

func (c *fakeConsumer) RTPParameters() types.RTPParameters {
	return types.RTPParameters{
		Codecs:    []types.RTPCodecParameters{{MimeType: "audio/opus", PayloadType: 111, ClockRate: 48000, Channels: 2}},
		Encodings: []types.RTPEncodingParameters{{SSRC: 424242}},
	}
}

func (c *fakeConsumer) Close() {
	c.lock.Lock()
	c.closed = true
	c.lock.Unlock()
}

func (c *fakeConsumer) isClosed() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.closed
}

// fakeSink records events pushed to one connection.
type fakeSink struct {
	connID string

	lock   sync.Mutex
	events []sinkEvent
}

type sinkEvent struct {
	Event string
	Data  interface{}
}

func newFakeSink(connID string) *fakeSink {
	return &fakeSink{connID: connID}
}

func (s *fakeSink) ConnID() string { return s.connID }

func (s *fakeSink) WriteEvent(event string, data interface{}) error {
	s.lock.Lock()
	s.events = append(s.events, sinkEvent{Event: event, Data: data})
	s.lock.Unlock()
	return nil
}

func (s *fakeSink) recorded() []sinkEvent {
	s.lock.Lock()
	defer s.lock.Unlock()
	out := make([]sinkEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *fakeSink) count(event string) int {
	n := 0
	for _, ev := range s.recorded() {
		if ev.Event == event {
			n++
		}
	}
	return n
}

func (s *fakeSink) last(event string) (sinkEvent, bool) {
	events := s.recorded()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Event == event {
			return events[i], true
		}
	}
	return sinkEvent{}, false
}
