// Package directory is the identity and channel directory: a thin service
// over the document store that resolves users, manages servers and
// channels, and appends chat messages. Mutations publish domain events on
// the bus for the gateway to fan out.
package directory

import (
	"context"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/harmony-chat/harmony-server/pkg/events"
	"github.com/harmony-chat/harmony-server/pkg/signal"
	"github.com/harmony-chat/harmony-server/pkg/store"
)

var (
	ErrNameRequired    = errors.New("name is required")
	ErrServerNotFound  = errors.New("server not found")
	ErrChannelNotFound = errors.New("channel not found")
	ErrNotTextChannel  = errors.New("channel does not hold messages")
	ErrBadChannelType  = errors.New("channel type must be text or voice")
)

const DefaultChannelName = "general"

type Directory struct {
	store store.Store
	bus   *events.Bus
}

func NewDirectory(s store.Store, bus *events.Bus) *Directory {
	return &Directory{
		store: s,
		bus:   bus,
	}
}

// Login resolves a user by username, creating one on first sight. Calling
// it twice with the same username returns the same user id.
func (d *Directory) Login(ctx context.Context, username string) (*store.User, error) {
	if username == "" {
		return nil, ErrNameRequired
	}

	var user *store.User
	err := d.store.Update(ctx, func(doc *store.Document) error {
		if existing := doc.UserByName(username); existing != nil {
			user = existing
			return nil
		}
		user = &store.User{
			ID:        uuid.NewString(),
			Username:  username,
			AvatarURL: avatarURL(username),
			CreatedAt: time.Now().UTC(),
		}
		doc.Users = append(doc.Users, user)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not persist user")
	}
	return user, nil
}

func (d *Directory) ListServers(ctx context.Context) ([]*store.Server, error) {
	doc, err := d.store.Read(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Servers, nil
}

// CreateServer creates a server with a default text channel and announces
// it to all connected clients.
func (d *Directory) CreateServer(ctx context.Context, name string) (*store.Server, error) {
	if name == "" {
		return nil, ErrNameRequired
	}

	now := time.Now().UTC()
	server := &store.Server{
		ID:   uuid.NewString(),
		Name: name,
		Channels: []*store.Channel{
			{
				ID:        uuid.NewString(),
				Name:      DefaultChannelName,
				Type:      store.ChannelTypeText,
				Messages:  []*store.Message{},
				CreatedAt: now,
			},
		},
		CreatedAt: now,
	}
	err := d.store.Update(ctx, func(doc *store.Document) error {
		doc.Servers = append(doc.Servers, server)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not persist server")
	}

	d.bus.Publish(events.Event{
		Kind:    events.KindServerCreated,
		Payload: &signal.ServerCreated{Server: server},
	})
	return server, nil
}

// CreateChannel appends a channel under a server; chType defaults to text.
func (d *Directory) CreateChannel(ctx context.Context, serverID, name string, chType store.ChannelType) (*store.Channel, error) {
	if name == "" {
		return nil, ErrNameRequired
	}
	if chType == "" {
		chType = store.ChannelTypeText
	}
	if chType != store.ChannelTypeText && chType != store.ChannelTypeVoice {
		return nil, ErrBadChannelType
	}

	channel := &store.Channel{
		ID:        uuid.NewString(),
		Name:      name,
		Type:      chType,
		CreatedAt: time.Now().UTC(),
	}
	if chType == store.ChannelTypeText {
		channel.Messages = []*store.Message{}
	}
	err := d.store.Update(ctx, func(doc *store.Document) error {
		server := doc.Server(serverID)
		if server == nil {
			return ErrServerNotFound
		}
		server.Channels = append(server.Channels, channel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.bus.Publish(events.Event{
		Kind:    events.KindChannelCreated,
		Payload: &signal.ChannelCreated{ServerID: serverID, Channel: channel},
	})
	return channel, nil
}

func (d *Directory) Messages(ctx context.Context, serverID, channelID string) ([]*store.Message, error) {
	doc, err := d.store.Read(ctx)
	if err != nil {
		return nil, err
	}
	server := doc.Server(serverID)
	if server == nil {
		return nil, ErrServerNotFound
	}
	channel := server.Channel(channelID)
	if channel == nil {
		return nil, ErrChannelNotFound
	}
	if channel.Messages == nil {
		return []*store.Message{}, nil
	}
	return channel.Messages, nil
}

// AppendMessage persists a message at the tail of a text channel and
// announces it. The store's serialized Update is what orders concurrent
// appends to the same channel.
func (d *Directory) AppendMessage(ctx context.Context, serverID, channelID, content string, user store.UserRef) (*store.Message, error) {
	msg := &store.Message{
		ID:        uuid.NewString(),
		Content:   content,
		User:      user,
		Timestamp: time.Now().UTC(),
	}
	err := d.store.Update(ctx, func(doc *store.Document) error {
		server := doc.Server(serverID)
		if server == nil {
			return ErrServerNotFound
		}
		channel := server.Channel(channelID)
		if channel == nil {
			return ErrChannelNotFound
		}
		if channel.Type != store.ChannelTypeText {
			return ErrNotTextChannel
		}
		channel.Messages = append(channel.Messages, msg)
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.bus.Publish(events.Event{
		Kind:    events.KindNewMessage,
		Payload: &signal.NewMessage{ServerID: serverID, ChannelID: channelID, Message: msg},
	})
	return msg, nil
}

// avatarURL derives a stable identicon for a username.
func avatarURL(username string) string {
	return "https://api.dicebear.com/7.x/initials/svg?seed=" + url.QueryEscape(username)
}
