// Package redisstore keeps client blobs in Redis, for clients sharing state
// across machines.
package redisstore

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const DefaultPrefix = "chat-relay:client:"

type Store struct {
	rdb    redis.UniversalClient
	prefix string
}

func New(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{rdb: rdb, prefix: prefix}
}

// Dial connects and pings addr.
func Dial(ctx context.Context, addr, password string, db int) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(err, "redisstore: ping %s", addr)
	}
	return New(rdb, ""), nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "redisstore: get %s", key)
	}
	return b, true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	err := s.rdb.Set(ctx, s.prefix+key, value, 0).Err()
	return errors.Wrapf(err, "redisstore: put %s", key)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.rdb.Del(ctx, s.prefix+key).Err()
	return errors.Wrapf(err, "redisstore: delete %s", key)
}

func (s *Store) Close() error {
	return s.rdb.Close()
}
