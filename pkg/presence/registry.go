// Package presence tracks who is online and who occupies which voice
// channel. Every mutation yields the snapshots the gateway broadcasts, so
// clients can reconstruct global state from any single update. Snapshots
// are built under the lock and sent by the caller after release.
package presence

import (
	"sync"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/harmony-chat/harmony-server/pkg/store"
)

// Registry maps live connections to their users, in connect order.
type Registry struct {
	lock  sync.Mutex
	users *orderedmap.OrderedMap[string, store.UserRef]
}

func NewRegistry() *Registry {
	return &Registry{
		users: orderedmap.NewOrderedMap[string, store.UserRef](),
	}
}

// Add registers a connection's user and returns the users_update snapshot.
func (r *Registry) Add(connID string, user store.UserRef) []store.UserRef {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.users.Set(connID, user)
	return r.snapshotLocked()
}

// Remove drops a connection and returns the snapshot, or ok=false if the
// connection was never registered (double-fire disconnect).
func (r *Registry) Remove(connID string) (users []store.UserRef, ok bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if !r.users.Delete(connID) {
		return nil, false
	}
	return r.snapshotLocked(), true
}

func (r *Registry) User(connID string) (store.UserRef, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.users.Get(connID)
}

func (r *Registry) Snapshot() []store.UserRef {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.snapshotLocked()
}

func (r *Registry) snapshotLocked() []store.UserRef {
	users := make([]store.UserRef, 0, r.users.Len())
	for el := r.users.Front(); el != nil; el = el.Next() {
		users = append(users, el.Value)
	}
	return users
}
