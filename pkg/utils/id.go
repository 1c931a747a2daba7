package utils

import (
	"github.com/lithammer/shortuuid/v3"
)

const (
	NodePrefix        = "ND_"
	ConnectionPrefix  = "CN_"
	RoomPrefix        = "VR_"
	ParticipantPrefix = "PA_"
	WorkerPrefix      = "WK_"
	RouterPrefix      = "RT_"
	TransportPrefix   = "TR_"
	ProducerPrefix    = "PR_"
	ConsumerPrefix    = "CO_"
)

func NewGuid(prefix string) string {
	return prefix + shortuuid.New()
}
