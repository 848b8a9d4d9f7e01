package note

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"

	"notesy/internal/logging"
)

const noteKey = "notesy:note:%d:%d" // owner, id

// CachedStore is a redis read-through cache for Get in front of another Store. Writes go to
// the inner store first and then drop the cached entry. Cache failures are logged and never
// fail the call.
type CachedStore struct {
	Store
	Cache            *redis.Client
	TTL              time.Duration
	OperationTimeout time.Duration
}

func NewCachedStore(inner Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{Store: inner, Cache: rdb, TTL: ttl, OperationTimeout: 2 * time.Second}
}

func (s *CachedStore) Get(ctx context.Context, owner, id uint64) (*Note, error) {
	key := fmt.Sprintf(noteKey, owner, id)
	log := logging.Ctx(ctx)

	tcCtx, tcCancel := context.WithTimeout(ctx, s.OperationTimeout)
	get, err := s.Cache.Get(tcCtx, key).Result()
	tcCancel()
	if err != nil && err != redis.Nil {
		log.Error().Err(err).Str("key", key).Msg("failure to get note from cache")
	}
	if get != "" {
		var n Note
		if err := json.Unmarshal([]byte(get), &n); err != nil {
			log.Error().Err(err).Str("key", key).Msg("error parsing cached note")
		} else {
			return &n, nil
		}
	}

	n, err := s.Store.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(n); err != nil {
		log.Error().Err(err).Str("key", key).Msg("error encoding note for cache")
	} else {
		tcCtx, tcCancel := context.WithTimeout(ctx, s.OperationTimeout)
		defer tcCancel()
		if err := s.Cache.Set(tcCtx, key, data, s.TTL).Err(); err != nil {
			log.Error().Err(err).Str("key", key).Msg("failure to set note into cache")
		}
	}
	return n, nil
}

// GetFresh reads from the inner store without touching the cache.
func (s *CachedStore) GetFresh(ctx context.Context, owner, id uint64) (*Note, error) {
	return s.Store.Get(ctx, owner, id)
}

func (s *CachedStore) Replace(ctx context.Context, n *Note) error {
	if err := s.Store.Replace(ctx, n); err != nil {
		return err
	}
	s.evict(ctx, n.OwnerID, n.ID)
	return nil
}

func (s *CachedStore) Delete(ctx context.Context, owner, id uint64) (*Note, error) {
	n, err := s.Store.Delete(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	s.evict(ctx, owner, id)
	return n, nil
}

func (s *CachedStore) evict(ctx context.Context, owner, id uint64) {
	key := fmt.Sprintf(noteKey, owner, id)
	tcCtx, tcCancel := context.WithTimeout(context.WithoutCancel(ctx), s.OperationTimeout)
	defer tcCancel()
	if err := s.Cache.Del(tcCtx, key).Err(); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("key", key).Msg("failure to evict note from cache")
	}
}
