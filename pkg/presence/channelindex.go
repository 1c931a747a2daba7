package presence

import (
	"sync"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/harmony-chat/harmony-server/pkg/signal"
	"github.com/harmony-chat/harmony-server/pkg/store"
)

// ChannelIndex is the voice channel membership index:
// channel_id → ordered (conn_id → user). Members keep join order so every
// client renders the same participant list.
type ChannelIndex struct {
	lock     sync.Mutex
	channels map[string]*orderedmap.OrderedMap[string, store.UserRef]
}

func NewChannelIndex() *ChannelIndex {
	return &ChannelIndex{
		channels: make(map[string]*orderedmap.OrderedMap[string, store.UserRef]),
	}
}

// Add records a connection in a channel and returns the updates to
// broadcast: one per non-empty channel.
func (x *ChannelIndex) Add(channelID, connID string, user store.UserRef) []*signal.VoiceChannelUsersUpdate {
	x.lock.Lock()
	defer x.lock.Unlock()

	members := x.channels[channelID]
	if members == nil {
		members = orderedmap.NewOrderedMap[string, store.UserRef]()
		x.channels[channelID] = members
	}
	members.Set(connID, user)
	return x.updatesLocked("")
}

// Remove drops a connection from a channel. If the channel just became
// empty, the returned updates include one final empty-users update for it
// before it is forgotten. ok=false means the connection was not a member.
func (x *ChannelIndex) Remove(channelID, connID string) (updates []*signal.VoiceChannelUsersUpdate, ok bool) {
	x.lock.Lock()
	defer x.lock.Unlock()

	members := x.channels[channelID]
	if members == nil || !members.Delete(connID) {
		return nil, false
	}
	emptied := ""
	if members.Len() == 0 {
		delete(x.channels, channelID)
		emptied = channelID
	}
	return x.updatesLocked(emptied), true
}

// RemoveConn is the disconnect path: it removes the connection from
// whichever channel holds it.
func (x *ChannelIndex) RemoveConn(connID string) (channelID string, updates []*signal.VoiceChannelUsersUpdate, ok bool) {
	x.lock.Lock()
	defer x.lock.Unlock()

	for id, members := range x.channels {
		if !members.Delete(connID) {
			continue
		}
		emptied := ""
		if members.Len() == 0 {
			delete(x.channels, id)
			emptied = id
		}
		return id, x.updatesLocked(emptied), true
	}
	return "", nil, false
}

// Channel returns the connection id of a channel's members in join order.
func (x *ChannelIndex) Channel(channelID string) []string {
	x.lock.Lock()
	defer x.lock.Unlock()

	members := x.channels[channelID]
	if members == nil {
		return nil
	}
	conns := make([]string, 0, members.Len())
	for el := members.Front(); el != nil; el = el.Next() {
		conns = append(conns, el.Key)
	}
	return conns
}

// Snapshots returns one update per non-empty channel, for catch-up on a
// new connection.
func (x *ChannelIndex) Snapshots() []*signal.VoiceChannelUsersUpdate {
	x.lock.Lock()
	defer x.lock.Unlock()
	return x.updatesLocked("")
}

func (x *ChannelIndex) updatesLocked(emptiedChannel string) []*signal.VoiceChannelUsersUpdate {
	updates := make([]*signal.VoiceChannelUsersUpdate, 0, len(x.channels)+1)
	for id, members := range x.channels {
		users := make([]store.UserRef, 0, members.Len())
		for el := members.Front(); el != nil; el = el.Next() {
			users = append(users, el.Value)
		}
		updates = append(updates, &signal.VoiceChannelUsersUpdate{
			ChannelID: id,
			Users:     users,
		})
	}
	if emptiedChannel != "" {
		updates = append(updates, &signal.VoiceChannelUsersUpdate{
			ChannelID: emptiedChannel,
			Users:     []store.UserRef{},
		})
	}
	return updates
}
