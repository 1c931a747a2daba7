package store

import (
	"time"
)

type ChannelType string

const (
	ChannelTypeText  ChannelType = "text"
	ChannelTypeVoice ChannelType = "voice"
)

// Document is the single persisted root record. Writes replace it
// atomically; there are no partial updates on disk.
type Document struct {
	Users   []*User   `json:"users"`
	Servers []*Server `json:"servers"`
}

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Server struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Channels  []*Channel `json:"channels"`
	CreatedAt time.Time  `json:"created_at"`
}

type Channel struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Type      ChannelType `json:"type"`
	Messages  []*Message  `json:"messages,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	User      UserRef   `json:"user"`
	Timestamp time.Time `json:"timestamp"`
}

// UserRef is the denormalized author view embedded in messages and
// presence payloads.
type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

func EmptyDocument() *Document {
	return &Document{
		Users:   []*User{},
		Servers: []*Server{},
	}
}

// normalize repairs nil slices after decoding so appends and JSON
// round-trips behave.
func (d *Document) normalize() {
	if d.Users == nil {
		d.Users = []*User{}
	}
	if d.Servers == nil {
		d.Servers = []*Server{}
	}
	for _, s := range d.Servers {
		if s.Channels == nil {
			s.Channels = []*Channel{}
		}
	}
}

func (d *Document) UserByName(username string) *User {
	for _, u := range d.Users {
		if u.Username == username {
			return u
		}
	}
	return nil
}

func (d *Document) Server(id string) *Server {
	for _, s := range d.Servers {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (s *Server) Channel(id string) *Channel {
	for _, c := range s.Channels {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (u *User) Ref() UserRef {
	return UserRef{
		ID:       u.ID,
		Username: u.Username,
		Avatar:   u.AvatarURL,
	}
}
