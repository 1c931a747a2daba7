// Package rtc is the SFU orchestrator: it owns the voice rooms, the
// participants inside them, and the signaling-visible lifecycle of
// transports, producers, and consumers. The media plane itself lives in
// pkg/sfu behind the interfaces in pkg/rtc/types.
package rtc

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/harmony-chat/harmony-server/pkg/logger"
	"github.com/harmony-chat/harmony-server/pkg/rtc/types"
	"github.com/harmony-chat/harmony-server/pkg/signal"
	"github.com/harmony-chat/harmony-server/pkg/telemetry/prometheus"
)

// VoiceManager implements the signaling operations over the room
// registry. Rooms are created lazily on the first join for a channel and
// dropped when the last participant leaves (closing the router with
// them).
type VoiceManager struct {
	provider types.RouterProvider
	timeout  time.Duration

	lock  sync.RWMutex
	rooms map[string]*Room
	// connID → channelID, for O(1) leave/disconnect
	conns map[string]string
}

func NewVoiceManager(provider types.RouterProvider, timeout time.Duration) *VoiceManager {
	return &VoiceManager{
		provider: provider,
		timeout:  timeout,
		rooms:    make(map[string]*Room),
		conns:    make(map[string]string),
	}
}

// Join registers a connection in a channel's room, creating the room on
// first join. It emits router-rtp-capabilities followed by the
// existing-producers snapshot to the joining connection. Joining the same
// channel twice is idempotent; joining a different channel without
// leaving first is an error.
func (m *VoiceManager) Join(ctx context.Context, connID, userID, channelID string, sink signal.Sink) error {
	m.lock.RLock()
	joined, isJoined := m.conns[connID]
	m.lock.RUnlock()
	if isJoined && joined != channelID {
		return ErrAlreadyJoined
	}

	room, created, err := m.getOrCreateRoom(ctx, channelID)
	if err != nil {
		return err
	}

	room.lock.Lock()
	if _, exists := room.participants[connID]; !exists {
		room.participants[connID] = newParticipant(connID, userID, channelID, sink)
		prometheus.AddParticipant()
	}
	room.lock.Unlock()

	m.lock.Lock()
	m.conns[connID] = channelID
	m.lock.Unlock()

	if created {
		logger.Infow("voice room created",
			"roomID", room.id, "channelID", channelID, "routerID", room.router.ID())
	}
	logger.Debugw("participant joined",
		"connID", connID, "userID", userID, "channelID", channelID)

	if err = sink.WriteEvent(signal.EventRouterRTPCapabilities, &signal.RouterRTPCapabilities{
		RTPCapabilities: room.router.RTPCapabilities(),
	}); err != nil {
		return err
	}
	return sink.WriteEvent(signal.EventExistingProducers, &signal.ExistingProducers{
		Producers: room.existingProducers(connID),
	})
}

// getOrCreateRoom is double-checked: the router is created outside the
// registry lock, and a racing creation wins by arrival order with the
// loser's router closed.
func (m *VoiceManager) getOrCreateRoom(ctx context.Context, channelID string) (room *Room, created bool, err error) {
	m.lock.RLock()
	room = m.rooms[channelID]
	m.lock.RUnlock()
	if room != nil {
		return room, false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	router, err := m.provider.CreateRouter(ctx)
	if err != nil {
		return nil, false, errors.Wrap(err, "could not create router")
	}

	m.lock.Lock()
	if existing := m.rooms[channelID]; existing != nil {
		m.lock.Unlock()
		router.Close()
		return existing, false, nil
	}
	room = newRoom(channelID, router)
	m.rooms[channelID] = room
	m.lock.Unlock()

	prometheus.RoomStarted()
	return room, true, nil
}

// CreateTransport creates one WebRTC transport of the given direction for
// the participant. At most one transport per direction.
func (m *VoiceManager) CreateTransport(ctx context.Context, connID, channelID string, direction types.Direction) (types.TransportInfo, error) {
	room, participant, err := m.roomParticipant(connID, channelID)
	if err != nil {
		return types.TransportInfo{}, err
	}

	room.lock.RLock()
	exists := participant.transportFor(direction) != nil
	room.lock.RUnlock()
	if exists {
		return types.TransportInfo{}, ErrTransportExists
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	transport, err := await(ctx, func() (types.Transport, error) {
		return room.router.CreateTransport(ctx)
	})
	if err != nil {
		return types.TransportInfo{}, err
	}

	transport.OnStateChange(func(state types.TransportState) {
		if state.Terminal() {
			m.handleTransportDead(connID, channelID, direction, transport.ID())
		}
	})

	room.lock.Lock()
	participant.setTransport(direction, transport)
	room.lock.Unlock()

	logger.Debugw("transport assigned",
		"connID", connID, "channelID", channelID,
		"transportID", transport.ID(), "direction", direction)
	return transport.Info(), nil
}

// ConnectTransport runs ICE/DTLS connect with the client's parameters on
// a transport the connection owns.
func (m *VoiceManager) ConnectTransport(ctx context.Context, connID, transportID string, iceParams types.ICEParameters, dtlsParams types.DTLSParameters) error {
	room, participant, err := m.roomParticipantByConn(connID)
	if err != nil {
		return err
	}

	room.lock.RLock()
	transport := participant.transport(transportID)
	room.lock.RUnlock()
	if transport == nil {
		return ErrTransportNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return transport.Connect(ctx, iceParams, dtlsParams)
}

// Produce creates the participant's audio producer on its send transport
// and announces it to every other participant in the room.
func (m *VoiceManager) Produce(ctx context.Context, connID, transportID string, params types.RTPParameters) (producerID string, err error) {
	room, participant, err := m.roomParticipantByConn(connID)
	if err != nil {
		return "", err
	}

	room.lock.RLock()
	send := participant.send
	hasProducer := participant.producer != nil
	owned := participant.transport(transportID) != nil
	room.lock.RUnlock()

	if !owned {
		return "", ErrTransportNotFound
	}
	if send == nil || send.ID() != transportID {
		return "", ErrNoSendTransport
	}
	if hasProducer {
		return "", ErrProducerExists
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	producer, err := await(ctx, func() (types.Producer, error) {
		return send.Produce(ctx, params)
	})
	if err != nil {
		return "", err
	}

	room.lock.Lock()
	participant.producer = producer
	room.lock.Unlock()
	prometheus.AddProducer()

	logger.Debugw("producer started",
		"connID", connID, "channelID", participant.channelID, "producerID", producer.ID())

	room.broadcast(connID, signal.EventNewProducer, &signal.NewProducer{
		ProducerID: producer.ID(),
		UserID:     participant.userID,
	})
	return producer.ID(), nil
}

// PauseProducer pauses or resumes the participant's own producer and
// tells the room about it.
func (m *VoiceManager) PauseProducer(_ context.Context, connID, producerID string, paused bool) error {
	room, participant, err := m.roomParticipantByConn(connID)
	if err != nil {
		return err
	}

	room.lock.RLock()
	producer := participant.producer
	room.lock.RUnlock()
	if producer == nil || producer.ID() != producerID {
		return ErrProducerNotFound
	}

	producer.SetPaused(paused)
	room.broadcast(connID, signal.EventProducerPaused, &signal.ProducerPaused{
		ProducerID: producerID,
		Paused:     paused,
	})
	return nil
}

// Consume creates a consumer on the participant's recv transport for a
// producer in the same room. It starts unpaused.
func (m *VoiceManager) Consume(ctx context.Context, connID, producerID, transportID string, caps types.RTPCapabilities) (*signal.ConsumeResult, error) {
	room, participant, err := m.roomParticipantByConn(connID)
	if err != nil {
		return nil, err
	}

	room.lock.RLock()
	recv := participant.recv
	owned := participant.transport(transportID) != nil
	room.lock.RUnlock()

	if !owned {
		return nil, ErrTransportNotFound
	}
	if recv == nil || recv.ID() != transportID {
		return nil, ErrNoRecvTransport
	}
	if !m.producerInRoom(room, producerID) {
		return nil, ErrProducerNotFound
	}
	if !room.router.CanConsume(producerID, caps) {
		return nil, ErrIncompatibleCodecs
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	consumer, err := await(ctx, func() (types.Consumer, error) {
		return recv.Consume(ctx, producerID, caps)
	})
	if err != nil {
		return nil, err
	}

	room.lock.Lock()
	participant.consumers[consumer.ID()] = consumer
	room.lock.Unlock()
	prometheus.AddConsumer()

	logger.Debugw("consumer started",
		"connID", connID, "channelID", participant.channelID,
		"consumerID", consumer.ID(), "producerID", producerID)

	return &signal.ConsumeResult{
		ConsumerID:    consumer.ID(),
		ProducerID:    producerID,
		Kind:          consumer.Kind(),
		RTPParameters: consumer.RTPParameters(),
	}, nil
}

// Speaking relays voice-activity flags to the room's other participants.
func (m *VoiceManager) Speaking(connID string, speaking bool) {
	room := m.roomByConn(connID)
	if room == nil {
		return
	}
	room.broadcast(connID, signal.EventUserSpeakingUpdate, &signal.UserSpeakingUpdate{
		ConnID:   connID,
		Speaking: speaking,
	})
}

// Leave releases everything the connection owns in its room: producer
// (with producer-closed fan-out), consumers, transports, the seat itself,
// and the room when it empties. Safe to call twice; the disconnect path
// reuses it.
func (m *VoiceManager) Leave(connID string) (channelID string, left bool) {
	m.lock.Lock()
	channelID, left = m.conns[connID]
	if !left {
		m.lock.Unlock()
		return "", false
	}
	delete(m.conns, connID)
	room := m.rooms[channelID]
	m.lock.Unlock()

	if room == nil {
		return channelID, true
	}

	room.lock.Lock()
	participant := room.participants[connID]
	var transports []types.Transport
	var producer types.Producer
	var consumers []types.Consumer
	if participant != nil {
		delete(room.participants, connID)
		transports, producer, consumers = participant.resources()
	}
	empty := len(room.participants) == 0
	room.lock.Unlock()

	if participant == nil {
		m.dropRoomIfEmpty(room, empty)
		return channelID, true
	}
	prometheus.SubParticipant()

	if producer != nil {
		m.closeProducer(room, connID, producer)
	}
	for _, c := range consumers {
		c.Close()
		prometheus.SubConsumer()
	}
	for _, t := range transports {
		t.Close()
	}

	m.dropRoomIfEmpty(room, empty)
	logger.Debugw("participant left", "connID", connID, "channelID", channelID)
	return channelID, true
}

// closeProducer tears a producer down: peers' consumers of it are closed
// and every remaining participant hears producer-closed exactly once.
func (m *VoiceManager) closeProducer(room *Room, ownerConnID string, producer types.Producer) {
	producerID := producer.ID()
	producer.Close()
	prometheus.SubProducer()

	room.closePeerConsumers(producerID)
	room.broadcast(ownerConnID, signal.EventProducerClosed, &signal.ProducerClosed{
		ProducerID: producerID,
	})
}

func (m *VoiceManager) dropRoomIfEmpty(room *Room, empty bool) {
	if !empty {
		return
	}

	m.lock.Lock()
	if m.rooms[room.channelID] == room && room.participantCount() == 0 {
		delete(m.rooms, room.channelID)
	} else {
		room = nil
	}
	m.lock.Unlock()

	if room != nil {
		room.router.Close()
		prometheus.RoomEnded()
		logger.Infow("voice room closed", "roomID", room.id, "channelID", room.channelID)
	}
}

// handleTransportDead is the DTLS/ICE terminal-state upcall. A dead send
// transport implicitly closes the producer with the usual fan-out; a dead
// recv transport closes its consumers.
func (m *VoiceManager) handleTransportDead(connID, channelID string, direction types.Direction, transportID string) {
	m.lock.RLock()
	room := m.rooms[channelID]
	m.lock.RUnlock()
	if room == nil {
		return
	}

	room.lock.Lock()
	participant := room.participants[connID]
	if participant == nil {
		room.lock.Unlock()
		return
	}
	transport := participant.transportFor(direction)
	if transport == nil || transport.ID() != transportID {
		// already replaced or released by the leave path
		room.lock.Unlock()
		return
	}
	participant.setTransport(direction, nil)

	var producer types.Producer
	var consumers []types.Consumer
	if direction == types.DirectionSend {
		producer = participant.producer
		participant.producer = nil
	} else {
		for id, c := range participant.consumers {
			consumers = append(consumers, c)
			delete(participant.consumers, id)
		}
	}
	room.lock.Unlock()

	logger.Infow("transport died",
		"connID", connID, "channelID", channelID,
		"transportID", transportID, "direction", direction)

	if producer != nil {
		m.closeProducer(room, connID, producer)
	}
	for _, c := range consumers {
		c.Close()
		prometheus.SubConsumer()
	}
	transport.Close()
}

func (m *VoiceManager) producerInRoom(room *Room, producerID string) bool {
	room.lock.RLock()
	defer room.lock.RUnlock()
	for _, p := range room.participants {
		if p.producer != nil && p.producer.ID() == producerID {
			return true
		}
	}
	return false
}

func (m *VoiceManager) roomByConn(connID string) *Room {
	m.lock.RLock()
	defer m.lock.RUnlock()
	channelID, ok := m.conns[connID]
	if !ok {
		return nil
	}
	return m.rooms[channelID]
}

func (m *VoiceManager) roomParticipantByConn(connID string) (*Room, *Participant, error) {
	room := m.roomByConn(connID)
	if room == nil {
		return nil, nil, ErrNotJoined
	}
	participant := room.participant(connID)
	if participant == nil {
		return nil, nil, ErrNotJoined
	}
	return room, participant, nil
}

func (m *VoiceManager) roomParticipant(connID, channelID string) (*Room, *Participant, error) {
	m.lock.RLock()
	room := m.rooms[channelID]
	m.lock.RUnlock()
	if room == nil {
		return nil, nil, ErrRoomNotFound
	}
	participant := room.participant(connID)
	if participant == nil {
		return nil, nil, ErrNotJoined
	}
	return room, participant, nil
}

// RoomCount reports live rooms; used by tests and the health surface.
func (m *VoiceManager) RoomCount() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.rooms)
}

// HasSession reports whether the orchestrator still tracks the
// connection.
func (m *VoiceManager) HasSession(connID string) bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	_, ok := m.conns[connID]
	return ok
}

// CloseAll tears down every room, for shutdown.
func (m *VoiceManager) CloseAll() {
	m.lock.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.rooms = make(map[string]*Room)
	m.conns = make(map[string]string)
	m.lock.Unlock()

	for _, r := range rooms {
		r.router.Close()
	}
}

// await runs a media-plane call off the caller's goroutine so a hung SFU
// call cannot wedge the connection loop past its deadline. A result that
// arrives after the deadline is closed, not leaked.
func await[T interface{ Close() }](ctx context.Context, f func() (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		value, err := f()
		ch <- result{value: value, err: err}
	}()

	select {
	case res := <-ch:
		return res.value, res.err
	case <-ctx.Done():
		go func() {
			if res := <-ch; res.err == nil {
				res.value.Close()
			}
		}()
		var zero T
		return zero, errors.Wrap(ErrOperationTimedOut, ctx.Err().Error())
	}
}
