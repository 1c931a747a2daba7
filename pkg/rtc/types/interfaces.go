package types

import "context"

// RouterProvider hands out media routers, one per voice room. The SFU
// worker pool implements it; tests substitute fakes.
type RouterProvider interface {
	CreateRouter(ctx context.Context) (Router, error)
}

// Router owns the RTP routing graph for one voice room. Its codec set is
// fixed at creation.
type Router interface {
	ID() string
	RTPCapabilities() RTPCapabilities
	CreateTransport(ctx context.Context) (Transport, error)
	// CanConsume reports whether the producer exists on this router and the
	// given capabilities can receive it.
	CanConsume(producerID string, caps RTPCapabilities) bool
	Close()
}

// Transport is one ICE/DTLS leg between a client and the SFU. It is
// bidirectional at the media layer; send/recv is a session-level
// convention enforced by the orchestrator.
type Transport interface {
	ID() string
	Info() TransportInfo
	Connect(ctx context.Context, iceParams ICEParameters, dtlsParams DTLSParameters) error
	Produce(ctx context.Context, params RTPParameters) (Producer, error)
	Consume(ctx context.Context, producerID string, caps RTPCapabilities) (Consumer, error)
	// OnStateChange is invoked from the media plane on ICE/DTLS transitions.
	// Terminal states mean the transport is unusable.
	OnStateChange(f func(state TransportState))
	Close()
}

// Producer is an inbound audio stream from a client.
type Producer interface {
	ID() string
	Kind() MediaKind
	Paused() bool
	SetPaused(paused bool)
	Close()
}

// Consumer is an outbound audio stream to a client, sourced from one
// Producer on the same router.
type Consumer interface {
	ID() string
	ProducerID() string
	Kind() MediaKind
	RTPParameters() RTPParameters
	Close()
}
