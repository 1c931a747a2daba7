// Package signal defines the websocket wire protocol: the envelope, one
// typed payload per event, and the error codes surfaced to clients.
package signal

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Inbound event names.
const (
	EventUserOnline        = "user_online"
	EventSendMessage       = "send_message"
	EventJoinVoiceChannel  = "join_voice_channel"
	EventLeaveVoiceChannel = "leave_voice_channel"
	EventCreateTransport   = "create-transport"
	EventConnectTransport  = "connect-transport"
	EventProduce           = "produce"
	EventConsume           = "consume"
	EventPauseProducer     = "pause-producer"
	EventUserSpeaking      = "user_speaking"
)

// Outbound event names.
const (
	EventUsersUpdate             = "users_update"
	EventVoiceChannelUsersUpdate = "voice_channel_users_update"
	EventRouterRTPCapabilities   = "router-rtp-capabilities"
	EventExistingProducers       = "existing-producers"
	EventNewProducer             = "new-producer"
	EventProducerClosed          = "producer-closed"
	EventProducerPaused          = "producer-paused"
	EventUserSpeakingUpdate      = "user_speaking_update"
	EventServerCreated           = "server_created"
	EventChannelCreated          = "channel_created"
	EventNewMessage              = "new_message"
)

var ErrUnknownEvent = errors.New("unknown event")

// Envelope frames every message in both directions. ID is present iff the
// sender expects an ack; the ack reuses the event name and correlation id.
type Envelope struct {
	Event string          `json:"event"`
	ID    *uint64         `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func ParseEnvelope(payload []byte) (*Envelope, error) {
	env := &Envelope{}
	if err := json.Unmarshal(payload, env); err != nil {
		return nil, errors.Wrap(err, "could not decode envelope")
	}
	if env.Event == "" {
		return nil, errors.New("envelope has no event")
	}
	return env, nil
}

// Acked reports whether the sender attached a correlation id and so must
// receive exactly one reply.
func (e *Envelope) Acked() bool {
	return e.ID != nil
}

// Decode unmarshals the envelope's data into the event's payload struct
// and validates it.
func Decode[T Validator](e *Envelope) (T, error) {
	var payload T
	if len(e.Data) > 0 {
		if err := json.Unmarshal(e.Data, &payload); err != nil {
			return payload, NewError(ErrorBadRequest, errors.Wrap(err, "could not decode payload"))
		}
	}
	if err := payload.Validate(); err != nil {
		return payload, err
	}
	return payload, nil
}

type Validator interface {
	Validate() error
}

// Sink is one client's outbound event stream. The orchestrator and the
// broadcast paths push through it; the gateway's connection implements it
// with a bounded queue.
type Sink interface {
	ConnID() string
	WriteEvent(event string, data interface{}) error
}
