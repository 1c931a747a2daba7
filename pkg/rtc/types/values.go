package types

type MediaKind string

const (
	MediaKindAudio MediaKind = "audio"
)

type Direction string

const (
	DirectionSend Direction = "send"
	DirectionRecv Direction = "recv"
)

func (d Direction) Valid() bool {
	return d == DirectionSend || d == DirectionRecv
}

type TransportState int

const (
	TransportStateNew TransportState = iota
	TransportStateConnecting
	TransportStateConnected
	TransportStateFailed
	TransportStateClosed
)

func (s TransportState) String() string {
	switch s {
	case TransportStateNew:
		return "new"
	case TransportStateConnecting:
		return "connecting"
	case TransportStateConnected:
		return "connected"
	case TransportStateFailed:
		return "failed"
	case TransportStateClosed:
		return "closed"
	}
	return "unknown"
}

// Terminal reports whether the transport can never carry media again.
func (s TransportState) Terminal() bool {
	return s == TransportStateFailed || s == TransportStateClosed
}

// TransportInfo is handed to the client in the create-transport ack so it
// can construct its side of the pair.
type TransportInfo struct {
	ID             string         `json:"id"`
	ICEParameters  ICEParameters  `json:"ice_parameters"`
	ICECandidates  []ICECandidate `json:"ice_candidates"`
	DTLSParameters DTLSParameters `json:"dtls_parameters"`
}

type ICEParameters struct {
	UsernameFragment string `json:"username_fragment"`
	Password         string `json:"password"`
	ICELite          bool   `json:"ice_lite,omitempty"`
}

type ICECandidate struct {
	Foundation string `json:"foundation"`
	Priority   uint32 `json:"priority"`
	IP         string `json:"ip"`
	Protocol   string `json:"protocol"`
	Port       uint16 `json:"port"`
	Type       string `json:"type"`
	TCPType    string `json:"tcp_type,omitempty"`
}

type DTLSParameters struct {
	Role         string            `json:"role,omitempty"`
	Fingerprints []DTLSFingerprint `json:"fingerprints"`
}

type DTLSFingerprint struct {
	Algorithm string `json:"algorithm"`
	Value     string `json:"value"`
}

// RTPCapabilities describes what a router or client endpoint can send or
// receive.
type RTPCapabilities struct {
	Codecs           []RTPCodecCapability `json:"codecs"`
	HeaderExtensions []RTPHeaderExtension `json:"header_extensions,omitempty"`
}

type RTPCodecCapability struct {
	MimeType             string   `json:"mime_type"`
	PreferredPayloadType uint8    `json:"preferred_payload_type,omitempty"`
	ClockRate            uint32   `json:"clock_rate"`
	Channels             uint16   `json:"channels,omitempty"`
	Parameters           string   `json:"parameters,omitempty"`
	RTCPFeedback         []string `json:"rtcp_feedback,omitempty"`
}

// RTPParameters describes one concrete stream: produce requests carry the
// client's, consume acks carry the server's.
type RTPParameters struct {
	MID              string                  `json:"mid,omitempty"`
	Codecs           []RTPCodecParameters    `json:"codecs"`
	HeaderExtensions []RTPHeaderExtension    `json:"header_extensions,omitempty"`
	Encodings        []RTPEncodingParameters `json:"encodings"`
}

type RTPCodecParameters struct {
	MimeType     string   `json:"mime_type"`
	PayloadType  uint8    `json:"payload_type"`
	ClockRate    uint32   `json:"clock_rate"`
	Channels     uint16   `json:"channels,omitempty"`
	Parameters   string   `json:"parameters,omitempty"`
	RTCPFeedback []string `json:"rtcp_feedback,omitempty"`
}

type RTPEncodingParameters struct {
	SSRC uint32 `json:"ssrc"`
}

type RTPHeaderExtension struct {
	URI string `json:"uri"`
	ID  int    `json:"id"`
}
