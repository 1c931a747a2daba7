package rtc

import "github.com/pkg/errors"

var (
	ErrNotJoined          = errors.New("connection has not joined this voice channel")
	ErrAlreadyJoined      = errors.New("connection is joined to another voice channel")
	ErrRoomNotFound       = errors.New("voice room not found")
	ErrTransportNotFound  = errors.New("transport is not owned by this connection")
	ErrTransportExists    = errors.New("transport for this direction already exists")
	ErrNoSendTransport    = errors.New("operation requires the send transport")
	ErrNoRecvTransport    = errors.New("operation requires the recv transport")
	ErrProducerNotFound   = errors.New("producer not found in this room")
	ErrProducerExists     = errors.New("participant already has an audio producer")
	ErrIncompatibleCodecs = errors.New("incompatible codecs")
	ErrOperationTimedOut  = errors.New("media operation timed out")
)
