package rtc

import (
	"sync"

	"github.com/harmony-chat/harmony-server/pkg/logger"
	"github.com/harmony-chat/harmony-server/pkg/rtc/types"
	"github.com/harmony-chat/harmony-server/pkg/signal"
	"github.com/harmony-chat/harmony-server/pkg/utils"
)

// Room binds a voice channel to one router and its participants. It
// exists iff it has at least one participant; the manager drops it when
// the last one leaves.
//
// All map mutations happen under lock; snapshots are taken under lock and
// events are sent after release.
type Room struct {
	id        string
	channelID string
	router    types.Router

	lock         sync.RWMutex
	participants map[string]*Participant
}

func newRoom(channelID string, router types.Router) *Room {
	return &Room{
		id:           utils.NewGuid(utils.RoomPrefix),
		channelID:    channelID,
		router:       router,
		participants: make(map[string]*Participant),
	}
}

func (r *Room) ChannelID() string {
	return r.channelID
}

func (r *Room) Router() types.Router {
	return r.router
}

func (r *Room) participant(connID string) *Participant {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.participants[connID]
}

func (r *Room) participantCount() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.participants)
}

// existingProducers lists producers owned by participants other than the
// given connection, for the join-time snapshot.
func (r *Room) existingProducers(excludeConnID string) []signal.ProducerInfo {
	r.lock.RLock()
	defer r.lock.RUnlock()

	producers := make([]signal.ProducerInfo, 0, len(r.participants))
	for connID, p := range r.participants {
		if connID == excludeConnID || p.producer == nil {
			continue
		}
		producers = append(producers, signal.ProducerInfo{
			ProducerID: p.producer.ID(),
			UserID:     p.userID,
		})
	}
	return producers
}

// peers snapshots every participant's sink except the given connection's.
func (r *Room) peers(excludeConnID string) []signal.Sink {
	r.lock.RLock()
	defer r.lock.RUnlock()

	sinks := make([]signal.Sink, 0, len(r.participants))
	for connID, p := range r.participants {
		if connID == excludeConnID {
			continue
		}
		sinks = append(sinks, p.sink)
	}
	return sinks
}

// broadcast sends an event to every current participant except the
// excluded connection. The snapshot is taken under the lock; sends happen
// after release.
func (r *Room) broadcast(excludeConnID, event string, data interface{}) {
	for _, sink := range r.peers(excludeConnID) {
		if err := sink.WriteEvent(event, data); err != nil {
			logger.Debugw("could not push room event",
				"roomID", r.id, "channelID", r.channelID, "event", event,
				"connID", sink.ConnID(), "error", err)
		}
	}
}

// closePeerConsumers removes and closes every other participant's
// consumers of the given producer. Media teardown happens here, after the
// collection is released from the lock.
func (r *Room) closePeerConsumers(producerID string) {
	r.lock.Lock()
	var orphaned []types.Consumer
	for _, p := range r.participants {
		orphaned = append(orphaned, p.consumersOf(producerID)...)
	}
	r.lock.Unlock()

	for _, c := range orphaned {
		c.Close()
	}
}
