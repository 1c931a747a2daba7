package signal

import (
	"errors"

	"github.com/harmony-chat/harmony-server/pkg/rtc/types"
)

// Inbound payloads. Validate runs at the boundary, before any state is
// touched; failures ack (or drop, for fire-and-forget events) with
// bad-request.

type UserOnline struct {
	User UserPayload `json:"user"`
}

type UserPayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

func (p UserOnline) Validate() error {
	if p.User.ID == "" || p.User.Username == "" {
		return NewError(ErrorBadRequest, errors.New("user id and username are required"))
	}
	return nil
}

type SendMessage struct {
	ServerID  string      `json:"server_id"`
	ChannelID string      `json:"channel_id"`
	Content   string      `json:"content"`
	User      UserPayload `json:"user"`
}

func (p SendMessage) Validate() error {
	if p.ServerID == "" || p.ChannelID == "" {
		return NewError(ErrorBadRequest, errors.New("server_id and channel_id are required"))
	}
	if p.Content == "" {
		return NewError(ErrorBadRequest, errors.New("content is required"))
	}
	if p.User.ID == "" {
		return NewError(ErrorBadRequest, errors.New("user is required"))
	}
	return nil
}

type JoinVoiceChannel struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
}

func (p JoinVoiceChannel) Validate() error {
	if p.ChannelID == "" || p.UserID == "" {
		return NewError(ErrorBadRequest, errors.New("channel_id and user_id are required"))
	}
	return nil
}

type LeaveVoiceChannel struct {
	ChannelID string `json:"channel_id"`
}

func (p LeaveVoiceChannel) Validate() error {
	if p.ChannelID == "" {
		return NewError(ErrorBadRequest, errors.New("channel_id is required"))
	}
	return nil
}

type CreateTransport struct {
	ChannelID string          `json:"channel_id"`
	Direction types.Direction `json:"direction"`
}

func (p CreateTransport) Validate() error {
	if p.ChannelID == "" {
		return NewError(ErrorBadRequest, errors.New("channel_id is required"))
	}
	if !p.Direction.Valid() {
		return NewError(ErrorBadRequest, errors.New("direction must be send or recv"))
	}
	return nil
}

type ConnectTransport struct {
	TransportID string `json:"transport_id"`
	// the pion ICE transport needs the remote ufrag/pwd to start
	// connectivity, so the client sends them alongside its DTLS role and
	// fingerprints
	ICEParameters  types.ICEParameters  `json:"ice_parameters"`
	DTLSParameters types.DTLSParameters `json:"dtls_parameters"`
}

func (p ConnectTransport) Validate() error {
	if p.TransportID == "" {
		return NewError(ErrorBadRequest, errors.New("transport_id is required"))
	}
	if p.ICEParameters.UsernameFragment == "" || p.ICEParameters.Password == "" {
		return NewError(ErrorBadRequest, errors.New("ice_parameters are required"))
	}
	if len(p.DTLSParameters.Fingerprints) == 0 {
		return NewError(ErrorBadRequest, errors.New("dtls_parameters are required"))
	}
	return nil
}

type Produce struct {
	TransportID   string              `json:"transport_id"`
	Kind          types.MediaKind     `json:"kind"`
	RTPParameters types.RTPParameters `json:"rtp_parameters"`
}

func (p Produce) Validate() error {
	if p.TransportID == "" {
		return NewError(ErrorBadRequest, errors.New("transport_id is required"))
	}
	if p.Kind != types.MediaKindAudio {
		return NewError(ErrorBadRequest, errors.New("kind must be audio"))
	}
	if len(p.RTPParameters.Codecs) == 0 || len(p.RTPParameters.Encodings) == 0 {
		return NewError(ErrorBadRequest, errors.New("rtp_parameters are required"))
	}
	return nil
}

type Consume struct {
	ProducerID      string                `json:"producer_id"`
	RTPCapabilities types.RTPCapabilities `json:"rtp_capabilities"`
	TransportID     string                `json:"transport_id"`
}

func (p Consume) Validate() error {
	if p.ProducerID == "" || p.TransportID == "" {
		return NewError(ErrorBadRequest, errors.New("producer_id and transport_id are required"))
	}
	if len(p.RTPCapabilities.Codecs) == 0 {
		return NewError(ErrorBadRequest, errors.New("rtp_capabilities are required"))
	}
	return nil
}

type PauseProducer struct {
	ProducerID string `json:"producer_id"`
	Paused     bool   `json:"paused"`
}

func (p PauseProducer) Validate() error {
	if p.ProducerID == "" {
		return NewError(ErrorBadRequest, errors.New("producer_id is required"))
	}
	return nil
}

type UserSpeaking struct {
	ChannelID string `json:"channel_id"`
	Speaking  bool   `json:"speaking"`
}

func (p UserSpeaking) Validate() error {
	if p.ChannelID == "" {
		return NewError(ErrorBadRequest, errors.New("channel_id is required"))
	}
	return nil
}
