package sfu

import (
	"context"
	"sync"

	"github.com/frostbyte73/core"
	"github.com/pion/webrtc/v3"
	"github.com/pkg/errors"

	"github.com/harmony-chat/harmony-server/pkg/logger"
	"github.com/harmony-chat/harmony-server/pkg/rtc/types"
	"github.com/harmony-chat/harmony-server/pkg/utils"
)

// WebRTCTransport is one ICE/DTLS leg between a client and this server,
// built from the ORTC triple gatherer + ICE transport + DTLS transport.
// Whether it carries producers or consumers is decided by the session
// layer; the media objects themselves are direction-agnostic.
type WebRTCTransport struct {
	id     string
	router *Router

	gatherer *webrtc.ICEGatherer
	ice      *webrtc.ICETransport
	dtls     *webrtc.DTLSTransport
	info     types.TransportInfo

	lock          sync.Mutex
	onStateChange func(state types.TransportState)
	producers     map[string]*Producer
	consumers     map[string]*Consumer

	closed core.Fuse
}

func newWebRTCTransport(ctx context.Context, r *Router) (*WebRTCTransport, error) {
	api := r.worker.api

	gatherer, err := api.NewICEGatherer(webrtc.ICEGatherOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "could not create ice gatherer")
	}
	iceTransport := api.NewICETransport(gatherer)
	dtlsTransport, err := api.NewDTLSTransport(iceTransport, nil)
	if err != nil {
		gatherer.Close()
		return nil, errors.Wrap(err, "could not create dtls transport")
	}

	t := &WebRTCTransport{
		id:        utils.NewGuid(utils.TransportPrefix),
		router:    r,
		gatherer:  gatherer,
		ice:       iceTransport,
		dtls:      dtlsTransport,
		producers: make(map[string]*Producer),
		consumers: make(map[string]*Consumer),
		closed:    core.NewFuse(),
	}

	if err = t.gather(ctx); err != nil {
		t.Close()
		return nil, err
	}

	iceTransport.OnConnectionStateChange(func(state webrtc.ICETransportState) {
		switch state {
		case webrtc.ICETransportStateFailed:
			t.fireStateChange(types.TransportStateFailed)
		case webrtc.ICETransportStateClosed:
			t.fireStateChange(types.TransportStateClosed)
		}
	})
	dtlsTransport.OnStateChange(func(state webrtc.DTLSTransportState) {
		t.fireStateChange(dtlsState(state))
	})
	return t, nil
}

// gather runs candidate gathering to completion and assembles the
// parameters the client needs to build its side.
func (t *WebRTCTransport) gather(ctx context.Context) error {
	done := make(chan struct{})
	t.gatherer.OnLocalCandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			close(done)
		}
	})
	if err := t.gatherer.Gather(); err != nil {
		// no UDP port in the configured range could be bound; the media
		// plane cannot host transports anymore
		t.router.worker.fatal(errors.Wrap(err, "could not gather candidates"))
		return errors.Wrap(err, "could not gather candidates")
	}
	select {
	case <-done:
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "candidate gathering timed out")
	}

	candidates, err := t.gatherer.GetLocalCandidates()
	if err != nil {
		return errors.Wrap(err, "could not read local candidates")
	}
	iceParams, err := t.gatherer.GetLocalParameters()
	if err != nil {
		return errors.Wrap(err, "could not read ice parameters")
	}
	dtlsParams, err := t.dtls.GetLocalParameters()
	if err != nil {
		return errors.Wrap(err, "could not read dtls parameters")
	}

	t.info = types.TransportInfo{
		ID:             t.id,
		ICEParameters:  toICEParameters(iceParams),
		ICECandidates:  toICECandidates(candidates),
		DTLSParameters: toDTLSParameters(dtlsParams),
	}
	return nil
}

func (t *WebRTCTransport) ID() string {
	return t.id
}

func (t *WebRTCTransport) Info() types.TransportInfo {
	return t.info
}

func (t *WebRTCTransport) OnStateChange(f func(state types.TransportState)) {
	t.lock.Lock()
	t.onStateChange = f
	t.lock.Unlock()
}

func (t *WebRTCTransport) fireStateChange(state types.TransportState) {
	t.lock.Lock()
	f := t.onStateChange
	t.lock.Unlock()
	if f != nil {
		f(state)
	}
}

// Connect starts ICE connectivity and the DTLS handshake with the
// client's parameters. The server side is always the controlled agent.
func (t *WebRTCTransport) Connect(ctx context.Context, iceParams types.ICEParameters, dtlsParams types.DTLSParameters) error {
	if t.closed.IsBroken() {
		return ErrTransportClosed
	}

	errCh := make(chan error, 1)
	go func() {
		role := webrtc.ICERoleControlled
		if err := t.ice.Start(nil, fromICEParameters(iceParams), &role); err != nil {
			errCh <- errors.Wrap(err, "could not start ice")
			return
		}
		if err := t.dtls.Start(fromDTLSParameters(dtlsParams)); err != nil {
			errCh <- errors.Wrap(err, "could not start dtls")
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "transport connect timed out")
	}
}

// Produce attaches an RTP receiver for the client's stream and starts
// forwarding it into a local track consumers can subscribe to.
func (t *WebRTCTransport) Produce(_ context.Context, params types.RTPParameters) (types.Producer, error) {
	if t.closed.IsBroken() {
		return nil, ErrTransportClosed
	}
	codec, ok := opusFromParameters(params)
	if !ok {
		return nil, ErrNoAudioCodec
	}
	if len(params.Encodings) == 0 {
		return nil, ErrNoAudioCodec
	}

	receiver, err := t.router.worker.api.NewRTPReceiver(webrtc.RTPCodecTypeAudio, t.dtls)
	if err != nil {
		return nil, errors.Wrap(err, "could not create rtp receiver")
	}
	err = receiver.Receive(webrtc.RTPReceiveParameters{
		Encodings: []webrtc.RTPDecodingParameters{
			{
				RTPCodingParameters: webrtc.RTPCodingParameters{
					SSRC:        webrtc.SSRC(params.Encodings[0].SSRC),
					PayloadType: webrtc.PayloadType(codec.PayloadType),
				},
			},
		},
	})
	if err != nil {
		receiver.Stop()
		return nil, errors.Wrap(err, "could not start rtp receiver")
	}

	p, err := newProducer(t, receiver)
	if err != nil {
		receiver.Stop()
		return nil, err
	}

	t.lock.Lock()
	t.producers[p.ID()] = p
	t.lock.Unlock()
	t.router.addProducer(p)

	logger.Debugw("producer created",
		"transportID", t.id, "producerID", p.ID(), "ssrc", params.Encodings[0].SSRC)
	return p, nil
}

// Consume attaches an RTP sender for one of the router's producers.
func (t *WebRTCTransport) Consume(_ context.Context, producerID string, caps types.RTPCapabilities) (types.Consumer, error) {
	if t.closed.IsBroken() {
		return nil, ErrTransportClosed
	}

	producer := t.router.producer(producerID)
	if producer == nil {
		return nil, ErrProducerNotFound
	}
	if !canReceiveOpus(caps) {
		return nil, ErrIncompatibleCodecs
	}

	c, err := newConsumer(t, producer)
	if err != nil {
		return nil, err
	}

	t.lock.Lock()
	t.consumers[c.ID()] = c
	t.lock.Unlock()

	logger.Debugw("consumer created",
		"transportID", t.id, "consumerID", c.ID(), "producerID", producerID)
	return c, nil
}

func (t *WebRTCTransport) removeProducer(producerID string) {
	t.lock.Lock()
	delete(t.producers, producerID)
	t.lock.Unlock()
}

func (t *WebRTCTransport) removeConsumer(consumerID string) {
	t.lock.Lock()
	delete(t.consumers, consumerID)
	t.lock.Unlock()
}

// Close releases the transport's producers and consumers, then tears down
// DTLS, ICE, and the gatherer.
func (t *WebRTCTransport) Close() {
	t.closed.Once(func() {
		t.lock.Lock()
		producers := make([]*Producer, 0, len(t.producers))
		for _, p := range t.producers {
			producers = append(producers, p)
		}
		consumers := make([]*Consumer, 0, len(t.consumers))
		for _, c := range t.consumers {
			consumers = append(consumers, c)
		}
		t.lock.Unlock()

		for _, p := range producers {
			p.Close()
		}
		for _, c := range consumers {
			c.Close()
		}

		_ = t.dtls.Stop()
		_ = t.ice.Stop()
		_ = t.gatherer.Close()
		t.router.removeTransport(t.id)

		t.fireStateChange(types.TransportStateClosed)
		logger.Debugw("transport closed", "transportID", t.id)
	})
}

func dtlsState(state webrtc.DTLSTransportState) types.TransportState {
	switch state {
	case webrtc.DTLSTransportStateNew:
		return types.TransportStateNew
	case webrtc.DTLSTransportStateConnecting:
		return types.TransportStateConnecting
	case webrtc.DTLSTransportStateConnected:
		return types.TransportStateConnected
	case webrtc.DTLSTransportStateFailed:
		return types.TransportStateFailed
	default:
		return types.TransportStateClosed
	}
}
