package signal

import (
	"encoding/json"

	"github.com/harmony-chat/harmony-server/pkg/rtc/types"
	"github.com/harmony-chat/harmony-server/pkg/store"
)

// Ack is the reply to an acked request. Success carries the
// operation-specific fields flattened next to it; failure carries only
// the error code.
type Ack struct {
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Result  interface{} `json:"-"`
}

func OkAck(result interface{}) *Ack {
	return &Ack{Success: true, Result: result}
}

func ErrAck(err error) *Ack {
	return &Ack{Success: false, Error: CodeOf(err)}
}

// MarshalJSON flattens the result fields next to success, producing
// {"success":true,"producer_id":"..."} rather than a nested object.
func (a *Ack) MarshalJSON() ([]byte, error) {
	fields := map[string]interface{}{"success": a.Success}
	if a.Error != "" {
		fields["error"] = a.Error
	}
	if a.Result != nil {
		data, err := json.Marshal(a.Result)
		if err != nil {
			return nil, err
		}
		if err = json.Unmarshal(data, &fields); err != nil {
			return nil, err
		}
		fields["success"] = a.Success
	}
	return json.Marshal(fields)
}

// Outbound payloads.

type UsersUpdate struct {
	Users []store.UserRef `json:"users"`
}

type VoiceChannelUsersUpdate struct {
	ChannelID string          `json:"channel_id"`
	Users     []store.UserRef `json:"users"`
}

type RouterRTPCapabilities struct {
	RTPCapabilities types.RTPCapabilities `json:"rtp_capabilities"`
}

type ProducerInfo struct {
	ProducerID string `json:"producer_id"`
	UserID     string `json:"user_id"`
}

type ExistingProducers struct {
	Producers []ProducerInfo `json:"producers"`
}

type NewProducer struct {
	ProducerID string `json:"producer_id"`
	UserID     string `json:"user_id"`
}

type ProducerClosed struct {
	ProducerID string `json:"producer_id"`
}

type ProducerPaused struct {
	ProducerID string `json:"producer_id"`
	Paused     bool   `json:"paused"`
}

type UserSpeakingUpdate struct {
	ConnID   string `json:"conn_id"`
	Speaking bool   `json:"speaking"`
}

type ServerCreated struct {
	Server *store.Server `json:"server"`
}

type ChannelCreated struct {
	ServerID string         `json:"server_id"`
	Channel  *store.Channel `json:"channel"`
}

type NewMessage struct {
	ServerID  string         `json:"server_id"`
	ChannelID string         `json:"channel_id"`
	Message   *store.Message `json:"message"`
}

// Acked operation results, flattened into the success ack.

type CreateTransportResult struct {
	types.TransportInfo
}

type ProduceResult struct {
	ProducerID string `json:"producer_id"`
}

type ConsumeResult struct {
	ConsumerID    string              `json:"consumer_id"`
	ProducerID    string              `json:"producer_id"`
	Kind          types.MediaKind     `json:"kind"`
	RTPParameters types.RTPParameters `json:"rtp_parameters"`
}
