package rtc

import (
	"github.com/harmony-chat/harmony-server/pkg/rtc/types"
	"github.com/harmony-chat/harmony-server/pkg/signal"
	"github.com/harmony-chat/harmony-server/pkg/utils"
)

// Participant is one connection's seat in a voice room: its transports,
// its producer, and its consumers. Fields are guarded by the owning
// room's lock; media calls on the owned objects happen outside it, on the
// owning connection's event loop.
type Participant struct {
	id        string
	connID    string
	userID    string
	channelID string
	sink      signal.Sink

	send      types.Transport
	recv      types.Transport
	producer  types.Producer
	consumers map[string]types.Consumer
}

func newParticipant(connID, userID, channelID string, sink signal.Sink) *Participant {
	return &Participant{
		id:        utils.NewGuid(utils.ParticipantPrefix),
		connID:    connID,
		userID:    userID,
		channelID: channelID,
		sink:      sink,
		consumers: make(map[string]types.Consumer),
	}
}

func (p *Participant) ID() string {
	return p.id
}

func (p *Participant) ConnID() string {
	return p.connID
}

func (p *Participant) UserID() string {
	return p.userID
}

func (p *Participant) ChannelID() string {
	return p.channelID
}

// transport returns the participant's transport matching the given id, or
// nil if neither slot holds it.
func (p *Participant) transport(transportID string) types.Transport {
	if p.send != nil && p.send.ID() == transportID {
		return p.send
	}
	if p.recv != nil && p.recv.ID() == transportID {
		return p.recv
	}
	return nil
}

func (p *Participant) transportFor(direction types.Direction) types.Transport {
	if direction == types.DirectionSend {
		return p.send
	}
	return p.recv
}

func (p *Participant) setTransport(direction types.Direction, t types.Transport) {
	if direction == types.DirectionSend {
		p.send = t
	} else {
		p.recv = t
	}
}

// resources drains every owned media object for release outside the room
// lock. The participant is left empty.
func (p *Participant) resources() (transports []types.Transport, producer types.Producer, consumers []types.Consumer) {
	if p.send != nil {
		transports = append(transports, p.send)
		p.send = nil
	}
	if p.recv != nil {
		transports = append(transports, p.recv)
		p.recv = nil
	}
	producer = p.producer
	p.producer = nil
	for _, c := range p.consumers {
		consumers = append(consumers, c)
	}
	p.consumers = make(map[string]types.Consumer)
	return transports, producer, consumers
}

// consumersOf removes and returns this participant's consumers sourced
// from the given producer.
func (p *Participant) consumersOf(producerID string) []types.Consumer {
	var matched []types.Consumer
	for id, c := range p.consumers {
		if c.ProducerID() == producerID {
			matched = append(matched, c)
			delete(p.consumers, id)
		}
	}
	return matched
}
