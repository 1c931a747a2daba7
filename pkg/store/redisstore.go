package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/harmony-chat/harmony-server/pkg/config"
	"github.com/harmony-chat/harmony-server/pkg/logger"
)

// DocumentKey holds the whole JSON document; SET replaces it atomically.
const DocumentKey = "harmony:document"

type RedisStore struct {
	rc   *redis.Client
	lock sync.Mutex
}

func NewRedisStore(conf *config.RedisConfig) (*RedisStore, error) {
	rc := redis.NewClient(&redis.Options{
		Addr:     conf.Address,
		Username: conf.Username,
		Password: conf.Password,
		DB:       conf.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "could not connect to redis")
	}

	return &RedisStore{rc: rc}, nil
}

func (s *RedisStore) Read(ctx context.Context) (*Document, error) {
	data, err := s.rc.Get(ctx, DocumentKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warnw("could not read document from redis, using empty document", err)
		}
		return EmptyDocument(), nil
	}

	doc := &Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		logger.Warnw("stored document is corrupt, using empty document", err)
		return EmptyDocument(), nil
	}
	doc.normalize()
	return doc, nil
}

func (s *RedisStore) Write(ctx context.Context, doc *Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "could not encode document")
	}
	if err := s.rc.Set(ctx, DocumentKey, data, 0).Err(); err != nil {
		return errors.Wrap(err, "could not store document")
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, fn func(doc *Document) error) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	doc, err := s.Read(ctx)
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.Write(ctx, doc)
}

func (s *RedisStore) Close() error {
	return s.rc.Close()
}
