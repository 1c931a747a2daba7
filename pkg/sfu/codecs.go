package sfu

import (
	"strings"

	"github.com/pion/webrtc/v3"

	"github.com/harmony-chat/harmony-server/pkg/rtc/types"
)

const (
	opusClockRate   = 48000
	opusChannels    = 2
	opusPayloadType = 111
	opusFmtpLine    = "minptime=10;useinbandfec=1;stereo=1"
)

// opusCodec is the single codec every router is created with.
func opusCodec() webrtc.RTPCodecCapability {
	return webrtc.RTPCodecCapability{
		MimeType:    webrtc.MimeTypeOpus,
		ClockRate:   opusClockRate,
		Channels:    opusChannels,
		SDPFmtpLine: opusFmtpLine,
	}
}

func routerCapabilities() types.RTPCapabilities {
	return types.RTPCapabilities{
		Codecs: []types.RTPCodecCapability{
			{
				MimeType:             webrtc.MimeTypeOpus,
				PreferredPayloadType: opusPayloadType,
				ClockRate:            opusClockRate,
				Channels:             opusChannels,
				Parameters:           opusFmtpLine,
			},
		},
	}
}

// canReceiveOpus reports whether the client capabilities include an Opus
// codec the router's producers can be forwarded with.
func canReceiveOpus(caps types.RTPCapabilities) bool {
	for _, c := range caps.Codecs {
		if strings.EqualFold(c.MimeType, webrtc.MimeTypeOpus) && c.ClockRate == opusClockRate {
			return true
		}
	}
	return false
}

// opusFromParameters picks the Opus codec out of produce rtp_parameters.
func opusFromParameters(params types.RTPParameters) (types.RTPCodecParameters, bool) {
	for _, c := range params.Codecs {
		if strings.EqualFold(c.MimeType, webrtc.MimeTypeOpus) {
			return c, true
		}
	}
	return types.RTPCodecParameters{}, false
}

func toICEParameters(p webrtc.ICEParameters) types.ICEParameters {
	return types.ICEParameters{
		UsernameFragment: p.UsernameFragment,
		Password:         p.Password,
		ICELite:          p.ICELite,
	}
}

func fromICEParameters(p types.ICEParameters) webrtc.ICEParameters {
	return webrtc.ICEParameters{
		UsernameFragment: p.UsernameFragment,
		Password:         p.Password,
		ICELite:          p.ICELite,
	}
}

func toICECandidates(candidates []webrtc.ICECandidate) []types.ICECandidate {
	out := make([]types.ICECandidate, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, types.ICECandidate{
			Foundation: c.Foundation,
			Priority:   c.Priority,
			IP:         c.Address,
			Protocol:   c.Protocol.String(),
			Port:       c.Port,
			Type:       c.Typ.String(),
			TCPType:    c.TCPType,
		})
	}
	return out
}

func toDTLSParameters(p webrtc.DTLSParameters) types.DTLSParameters {
	fingerprints := make([]types.DTLSFingerprint, 0, len(p.Fingerprints))
	for _, f := range p.Fingerprints {
		fingerprints = append(fingerprints, types.DTLSFingerprint{
			Algorithm: f.Algorithm,
			Value:     f.Value,
		})
	}
	return types.DTLSParameters{
		Role:         dtlsRoleString(p.Role),
		Fingerprints: fingerprints,
	}
}

func fromDTLSParameters(p types.DTLSParameters) webrtc.DTLSParameters {
	fingerprints := make([]webrtc.DTLSFingerprint, 0, len(p.Fingerprints))
	for _, f := range p.Fingerprints {
		fingerprints = append(fingerprints, webrtc.DTLSFingerprint{
			Algorithm: f.Algorithm,
			Value:     f.Value,
		})
	}
	return webrtc.DTLSParameters{
		Role:         dtlsRoleFromString(p.Role),
		Fingerprints: fingerprints,
	}
}

func dtlsRoleString(r webrtc.DTLSRole) string {
	switch r {
	case webrtc.DTLSRoleClient:
		return "client"
	case webrtc.DTLSRoleServer:
		return "server"
	}
	return "auto"
}

func dtlsRoleFromString(s string) webrtc.DTLSRole {
	switch s {
	case "client":
		return webrtc.DTLSRoleClient
	case "server":
		return webrtc.DTLSRoleServer
	}
	return webrtc.DTLSRoleAuto
}

// toConsumerParameters converts the server-side sender parameters into the
// wire shape the consuming client loads.
func toConsumerParameters(p webrtc.RTPSendParameters, mid string) types.RTPParameters {
	codecs := make([]types.RTPCodecParameters, 0, len(p.Codecs))
	for _, c := range p.Codecs {
		codecs = append(codecs, types.RTPCodecParameters{
			MimeType:    c.MimeType,
			PayloadType: uint8(c.PayloadType),
			ClockRate:   c.ClockRate,
			Channels:    c.Channels,
			Parameters:  c.SDPFmtpLine,
		})
	}
	encodings := make([]types.RTPEncodingParameters, 0, len(p.Encodings))
	for _, e := range p.Encodings {
		encodings = append(encodings, types.RTPEncodingParameters{
			SSRC: uint32(e.SSRC),
		})
	}
	return types.RTPParameters{
		MID:       mid,
		Codecs:    codecs,
		Encodings: encodings,
	}
}
