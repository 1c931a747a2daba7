package service

import (
	"github.com/pkg/errors"

	"github.com/harmony-chat/harmony-server/pkg/directory"
	"github.com/harmony-chat/harmony-server/pkg/rtc"
	"github.com/harmony-chat/harmony-server/pkg/signal"
)

var (
	ErrConnectionClosed = errors.New("connection is closed")
	ErrWriteQueueFull   = errors.New("outbound queue overflow")
)

// signalCode maps orchestrator and directory errors to the client-visible
// error codes. Unrecognized errors collapse to internal; their detail is
// logged, not sent.
func signalCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, rtc.ErrTransportNotFound),
		errors.Is(err, rtc.ErrProducerNotFound),
		errors.Is(err, rtc.ErrRoomNotFound),
		errors.Is(err, directory.ErrServerNotFound),
		errors.Is(err, directory.ErrChannelNotFound):
		return signal.ErrorNotFound
	case errors.Is(err, rtc.ErrNotJoined),
		errors.Is(err, rtc.ErrAlreadyJoined),
		errors.Is(err, rtc.ErrTransportExists),
		errors.Is(err, rtc.ErrNoSendTransport),
		errors.Is(err, rtc.ErrNoRecvTransport),
		errors.Is(err, rtc.ErrProducerExists),
		errors.Is(err, directory.ErrNotTextChannel):
		return signal.ErrorInvalidState
	case errors.Is(err, rtc.ErrIncompatibleCodecs):
		return signal.ErrorIncompatibleCodecs
	case errors.Is(err, directory.ErrNameRequired),
		errors.Is(err, directory.ErrBadChannelType):
		return signal.ErrorBadRequest
	default:
		return signal.CodeOf(err)
	}
}

// asSignalError wraps an error so the ack carries the right code.
func asSignalError(err error) error {
	if err == nil {
		return nil
	}
	return signal.NewError(signalCode(err), err)
}
