package sfu

import "github.com/pkg/errors"

var (
	ErrWorkerClosed       = errors.New("worker is closed")
	ErrRouterClosed       = errors.New("router is closed")
	ErrTransportClosed    = errors.New("transport is closed")
	ErrProducerNotFound   = errors.New("producer not found on router")
	ErrIncompatibleCodecs = errors.New("no compatible codecs")
	ErrNoAudioCodec       = errors.New("rtp parameters carry no supported audio codec")
)
