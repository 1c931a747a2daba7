package sfu

import (
	"io"

	"github.com/frostbyte73/core"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/harmony-chat/harmony-server/pkg/logger"
	"github.com/harmony-chat/harmony-server/pkg/rtc/types"
	"github.com/harmony-chat/harmony-server/pkg/utils"
)

// Producer pumps a client's inbound RTP into a local track that consumers
// on other transports bind RTP senders to. Pausing stops the pump without
// tearing the stream down.
type Producer struct {
	id        string
	transport *WebRTCTransport
	receiver  *webrtc.RTPReceiver
	local     *webrtc.TrackLocalStaticRTP

	paused atomic.Bool
	closed core.Fuse
}

func newProducer(t *WebRTCTransport, receiver *webrtc.RTPReceiver) (*Producer, error) {
	id := utils.NewGuid(utils.ProducerPrefix)
	local, err := webrtc.NewTrackLocalStaticRTP(opusCodec(), id, t.router.ID())
	if err != nil {
		return nil, errors.Wrap(err, "could not create local track")
	}

	p := &Producer{
		id:        id,
		transport: t,
		receiver:  receiver,
		local:     local,
		closed:    core.NewFuse(),
	}
	go p.forward()
	return p, nil
}

func (p *Producer) ID() string {
	return p.id
}

func (p *Producer) Kind() types.MediaKind {
	return types.MediaKindAudio
}

func (p *Producer) Paused() bool {
	return p.paused.Load()
}

func (p *Producer) SetPaused(paused bool) {
	p.paused.Store(paused)
}

// forward is the pump: one goroutine per producer copying RTP from the
// remote track into the local one until either side goes away.
func (p *Producer) forward() {
	remote := p.receiver.Track()
	if remote == nil {
		return
	}
	var pkt *rtp.Packet
	var err error
	for {
		pkt, _, err = remote.ReadRTP()
		if err != nil {
			if err != io.EOF && !p.closed.IsBroken() {
				logger.Debugw("producer read ended", "producerID", p.id, "error", err)
			}
			return
		}
		if p.paused.Load() {
			continue
		}
		if err = p.local.WriteRTP(pkt); err != nil && err != io.ErrClosedPipe {
			logger.Debugw("producer write failed", "producerID", p.id, "error", err)
		}
	}
}

func (p *Producer) Close() {
	p.closed.Once(func() {
		_ = p.receiver.Stop()
		p.transport.router.removeProducer(p.id)
		p.transport.removeProducer(p.id)
		logger.Debugw("producer closed", "producerID", p.id)
	})
}
