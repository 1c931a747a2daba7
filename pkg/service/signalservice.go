package service

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/harmony-chat/harmony-server/pkg/config"
	"github.com/harmony-chat/harmony-server/pkg/directory"
	"github.com/harmony-chat/harmony-server/pkg/logger"
	"github.com/harmony-chat/harmony-server/pkg/presence"
	"github.com/harmony-chat/harmony-server/pkg/rtc"
	"github.com/harmony-chat/harmony-server/pkg/signal"
	"github.com/harmony-chat/harmony-server/pkg/store"
	"github.com/harmony-chat/harmony-server/pkg/telemetry/prometheus"
)

// SignalService is the websocket front door. One reader goroutine per
// connection serializes its inbound events; replies and pushes go through
// the connection's write queue.
type SignalService struct {
	upgrader websocket.Upgrader

	manager  *rtc.VoiceManager
	dir      *directory.Directory
	registry *presence.Registry
	index    *presence.ChannelIndex
	hub      *Hub
}

func NewSignalService(
	conf *config.Config,
	manager *rtc.VoiceManager,
	dir *directory.Directory,
	registry *presence.Registry,
	index *presence.ChannelIndex,
	hub *Hub,
) *SignalService {
	allowed := make(map[string]bool)
	for _, origin := range conf.AllowedOrigins() {
		allowed[origin] = true
	}
	return &SignalService{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// same-origin and non-browser clients send no Origin
				return origin == "" || allowed[origin]
			},
		},
		manager:  manager,
		dir:      dir,
		registry: registry,
		index:    index,
		hub:      hub,
	}
}

func (s *SignalService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debugw("could not upgrade websocket", "error", err, "remote", r.RemoteAddr)
		return
	}

	conn := NewConnection(ws)
	s.hub.Register(conn)
	prometheus.AddConnection()
	logger.Infow("connection opened", "connID", conn.ConnID(), "remote", r.RemoteAddr)

	defer s.handleDisconnect(conn)

	for {
		env, err := conn.ReadEnvelope()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				logger.Debugw("websocket read failed", "connID", conn.ConnID(), "error", err)
			}
			return
		}
		s.dispatch(r.Context(), conn, env)
	}
}

// dispatch routes one inbound envelope. Acked events are answered exactly
// once, failure or success; fire-and-forget failures are logged and
// dropped.
func (s *SignalService) dispatch(ctx context.Context, conn *Connection, env *signal.Envelope) {
	prometheus.SignalEvent(env.Event)

	var ack *signal.Ack
	switch env.Event {
	case signal.EventUserOnline:
		s.handleUserOnline(conn, env)
	case signal.EventSendMessage:
		s.handleSendMessage(ctx, conn, env)
	case signal.EventJoinVoiceChannel:
		s.handleJoinVoice(ctx, conn, env)
	case signal.EventLeaveVoiceChannel:
		s.handleLeaveVoice(conn, env)
	case signal.EventCreateTransport:
		ack = s.handleCreateTransport(ctx, conn, env)
	case signal.EventConnectTransport:
		ack = s.handleConnectTransport(ctx, conn, env)
	case signal.EventProduce:
		ack = s.handleProduce(ctx, conn, env)
	case signal.EventConsume:
		ack = s.handleConsume(ctx, conn, env)
	case signal.EventPauseProducer:
		ack = s.handlePauseProducer(ctx, conn, env)
	case signal.EventUserSpeaking:
		s.handleUserSpeaking(conn, env)
	default:
		logger.Debugw("unknown event", "connID", conn.ConnID(), "event", env.Event)
		if env.Acked() {
			ack = signal.ErrAck(signal.NewError(signal.ErrorBadRequest, signal.ErrUnknownEvent))
		}
	}

	if env.Acked() && ack != nil {
		if !ack.Success {
			prometheus.SignalError(ack.Error)
		}
		if err := conn.WriteAck(env.Event, *env.ID, ack); err != nil {
			logger.Debugw("could not write ack",
				"connID", conn.ConnID(), "event", env.Event, "error", err)
		}
	}
}

// handleDisconnect is leave + presence removal + snapshot rebroadcast,
// idempotent against double-fire.
func (s *SignalService) handleDisconnect(conn *Connection) {
	conn.Close()
	s.hub.Unregister(conn.ConnID())

	if _, left := s.manager.Leave(conn.ConnID()); left {
		if _, updates, ok := s.index.RemoveConn(conn.ConnID()); ok {
			s.broadcastChannelUpdates(updates)
		}
	}
	if users, ok := s.registry.Remove(conn.ConnID()); ok {
		s.hub.Broadcast(signal.EventUsersUpdate, &signal.UsersUpdate{Users: users})
	}

	prometheus.SubConnection()
	logger.Infow("connection closed", "connID", conn.ConnID())
}

func (s *SignalService) handleUserOnline(conn *Connection, env *signal.Envelope) {
	payload, err := signal.Decode[signal.UserOnline](env)
	if err != nil {
		logger.Debugw("invalid user_online", "connID", conn.ConnID(), "error", err)
		return
	}

	user := store.UserRef{
		ID:       payload.User.ID,
		Username: payload.User.Username,
		Avatar:   payload.User.Avatar,
	}
	conn.SetUser(user)
	users := s.registry.Add(conn.ConnID(), user)
	s.hub.Broadcast(signal.EventUsersUpdate, &signal.UsersUpdate{Users: users})

	// catch-up: tell the newcomer about every occupied voice channel
	for _, update := range s.index.Snapshots() {
		if err = conn.WriteEvent(signal.EventVoiceChannelUsersUpdate, update); err != nil {
			return
		}
	}
}

func (s *SignalService) handleSendMessage(ctx context.Context, conn *Connection, env *signal.Envelope) {
	payload, err := signal.Decode[signal.SendMessage](env)
	if err != nil {
		logger.Debugw("invalid send_message", "connID", conn.ConnID(), "error", err)
		return
	}

	author := store.UserRef{
		ID:       payload.User.ID,
		Username: payload.User.Username,
		Avatar:   payload.User.Avatar,
	}
	// the new_message broadcast rides the event bus on append success
	if _, err = s.dir.AppendMessage(ctx, payload.ServerID, payload.ChannelID, payload.Content, author); err != nil {
		logger.Warnw("could not append message", err,
			"connID", conn.ConnID(), "serverID", payload.ServerID, "channelID", payload.ChannelID)
		return
	}
	prometheus.MessageSent()
}

func (s *SignalService) handleJoinVoice(ctx context.Context, conn *Connection, env *signal.Envelope) {
	payload, err := signal.Decode[signal.JoinVoiceChannel](env)
	if err != nil {
		logger.Debugw("invalid join_voice_channel", "connID", conn.ConnID(), "error", err)
		return
	}

	if err = s.manager.Join(ctx, conn.ConnID(), payload.UserID, payload.ChannelID, conn); err != nil {
		logger.Warnw("could not join voice channel", err,
			"connID", conn.ConnID(), "channelID", payload.ChannelID)
		return
	}

	user, ok := conn.User()
	if !ok {
		user = store.UserRef{ID: payload.UserID}
	}
	s.broadcastChannelUpdates(s.index.Add(payload.ChannelID, conn.ConnID(), user))
}

func (s *SignalService) handleLeaveVoice(conn *Connection, env *signal.Envelope) {
	payload, err := signal.Decode[signal.LeaveVoiceChannel](env)
	if err != nil {
		logger.Debugw("invalid leave_voice_channel", "connID", conn.ConnID(), "error", err)
		return
	}

	// fire-and-forget: the membership snapshot is the observable signal.
	// The orchestrator knows which channel the connection occupies; the
	// payload's channel_id is advisory and may not match it.
	channelID, left := s.manager.Leave(conn.ConnID())
	if !left {
		return
	}
	if channelID != payload.ChannelID {
		logger.Debugw("leave names a different channel than the session occupies",
			"connID", conn.ConnID(), "requested", payload.ChannelID, "actual", channelID)
	}
	if updates, ok := s.index.Remove(channelID, conn.ConnID()); ok {
		s.broadcastChannelUpdates(updates)
	}
}

func (s *SignalService) handleCreateTransport(ctx context.Context, conn *Connection, env *signal.Envelope) *signal.Ack {
	payload, err := signal.Decode[signal.CreateTransport](env)
	if err != nil {
		return signal.ErrAck(err)
	}

	info, err := s.manager.CreateTransport(ctx, conn.ConnID(), payload.ChannelID, payload.Direction)
	if err != nil {
		logger.Warnw("could not create transport", err,
			"connID", conn.ConnID(), "channelID", payload.ChannelID, "direction", payload.Direction)
		return signal.ErrAck(asSignalError(err))
	}
	return signal.OkAck(&signal.CreateTransportResult{TransportInfo: info})
}

func (s *SignalService) handleConnectTransport(ctx context.Context, conn *Connection, env *signal.Envelope) *signal.Ack {
	payload, err := signal.Decode[signal.ConnectTransport](env)
	if err != nil {
		return signal.ErrAck(err)
	}

	err = s.manager.ConnectTransport(ctx, conn.ConnID(), payload.TransportID, payload.ICEParameters, payload.DTLSParameters)
	if err != nil {
		logger.Warnw("could not connect transport", err,
			"connID", conn.ConnID(), "transportID", payload.TransportID)
		return signal.ErrAck(asSignalError(err))
	}
	return signal.OkAck(nil)
}

func (s *SignalService) handleProduce(ctx context.Context, conn *Connection, env *signal.Envelope) *signal.Ack {
	payload, err := signal.Decode[signal.Produce](env)
	if err != nil {
		return signal.ErrAck(err)
	}

	producerID, err := s.manager.Produce(ctx, conn.ConnID(), payload.TransportID, payload.RTPParameters)
	if err != nil {
		logger.Warnw("could not produce", err,
			"connID", conn.ConnID(), "transportID", payload.TransportID)
		return signal.ErrAck(asSignalError(err))
	}
	return signal.OkAck(&signal.ProduceResult{ProducerID: producerID})
}

func (s *SignalService) handleConsume(ctx context.Context, conn *Connection, env *signal.Envelope) *signal.Ack {
	payload, err := signal.Decode[signal.Consume](env)
	if err != nil {
		return signal.ErrAck(err)
	}

	result, err := s.manager.Consume(ctx, conn.ConnID(), payload.ProducerID, payload.TransportID, payload.RTPCapabilities)
	if err != nil {
		logger.Warnw("could not consume", err,
			"connID", conn.ConnID(), "producerID", payload.ProducerID)
		return signal.ErrAck(asSignalError(err))
	}
	return signal.OkAck(result)
}

func (s *SignalService) handlePauseProducer(ctx context.Context, conn *Connection, env *signal.Envelope) *signal.Ack {
	payload, err := signal.Decode[signal.PauseProducer](env)
	if err != nil {
		return signal.ErrAck(err)
	}

	if err = s.manager.PauseProducer(ctx, conn.ConnID(), payload.ProducerID, payload.Paused); err != nil {
		return signal.ErrAck(asSignalError(err))
	}
	return signal.OkAck(nil)
}

func (s *SignalService) handleUserSpeaking(conn *Connection, env *signal.Envelope) {
	payload, err := signal.Decode[signal.UserSpeaking](env)
	if err != nil {
		logger.Debugw("invalid user_speaking", "connID", conn.ConnID(), "error", err)
		return
	}
	_ = payload.ChannelID // membership decides the room; the field is advisory
	s.manager.Speaking(conn.ConnID(), payload.Speaking)
}

func (s *SignalService) broadcastChannelUpdates(updates []*signal.VoiceChannelUsersUpdate) {
	for _, update := range updates {
		s.hub.Broadcast(signal.EventVoiceChannelUsersUpdate, update)
	}
}
