package store

import (
	"context"

	"github.com/harmony-chat/harmony-server/pkg/config"
)

// Store persists the root document. Read never fails the caller: a
// missing, corrupt, or unreachable document yields the empty default and
// a logged warning. Write errors are returned and surface as 5xx on the
// REST layer.
type Store interface {
	Read(ctx context.Context) (*Document, error)
	Write(ctx context.Context, doc *Document) error
	// Update applies fn to the current document and persists the result.
	// Updates are serialized, which is what orders text-channel appends.
	Update(ctx context.Context, fn func(doc *Document) error) error
	Close() error
}

func New(conf *config.StoreConfig) (Store, error) {
	if conf.UseRedis() {
		return NewRedisStore(&conf.Redis)
	}
	return NewLocalStore(conf.Path)
}
