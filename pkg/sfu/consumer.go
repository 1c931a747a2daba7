package sfu

import (
	"github.com/frostbyte73/core"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v3"
	"github.com/pkg/errors"

	"github.com/harmony-chat/harmony-server/pkg/logger"
	"github.com/harmony-chat/harmony-server/pkg/rtc/types"
	"github.com/harmony-chat/harmony-server/pkg/utils"
)

// Consumer binds an RTP sender on the consuming client's transport to a
// producer's local track.
type Consumer struct {
	id         string
	producerID string
	transport  *WebRTCTransport
	sender     *webrtc.RTPSender
	params     types.RTPParameters

	closed core.Fuse
}

func newConsumer(t *WebRTCTransport, producer *Producer) (*Consumer, error) {
	sender, err := t.router.worker.api.NewRTPSender(producer.local, t.dtls)
	if err != nil {
		return nil, errors.Wrap(err, "could not create rtp sender")
	}
	sendParams := sender.GetParameters()
	if err = sender.Send(sendParams); err != nil {
		return nil, errors.Wrap(err, "could not start rtp sender")
	}

	c := &Consumer{
		id:         utils.NewGuid(utils.ConsumerPrefix),
		producerID: producer.ID(),
		transport:  t,
		sender:     sender,
		params:     toConsumerParameters(sendParams, producer.ID()),
		closed:     core.NewFuse(),
	}
	go c.drainRTCP()
	return c, nil
}

func (c *Consumer) ID() string {
	return c.id
}

func (c *Consumer) ProducerID() string {
	return c.producerID
}

func (c *Consumer) Kind() types.MediaKind {
	return types.MediaKindAudio
}

func (c *Consumer) RTPParameters() types.RTPParameters {
	return c.params
}

// fractionLost is reported in 1/256 units; 64 is 25% loss.
const lossReportThreshold = 64

// drainRTCP keeps the sender's RTCP path flowing. Audio forwarding has no
// retransmission to drive, so the only thing worth surfacing is heavy
// receiver-side loss.
func (c *Consumer) drainRTCP() {
	for {
		pkts, _, err := c.sender.ReadRTCP()
		if err != nil {
			return
		}
		for _, pkt := range pkts {
			rr, ok := pkt.(*rtcp.ReceiverReport)
			if !ok {
				continue
			}
			for _, report := range rr.Reports {
				if report.FractionLost >= lossReportThreshold {
					logger.Debugw("consumer reporting heavy loss",
						"consumerID", c.id,
						"producerID", c.producerID,
						"fractionLost", report.FractionLost)
				}
			}
		}
	}
}

func (c *Consumer) Close() {
	c.closed.Once(func() {
		_ = c.sender.Stop()
		c.transport.removeConsumer(c.id)
		logger.Debugw("consumer closed", "consumerID", c.id, "producerID", c.producerID)
	})
}
