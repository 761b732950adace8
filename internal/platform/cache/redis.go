package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// Store is the subset of Cache's surface the storage manager relies on,
// letting a shared, cross-replica cache stand in for the in-process LRU.
type Store interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte)
	PutTTL(key string, value []byte, ttl time.Duration)
}

var _ Store = (*Cache)(nil)

// RedisStore is a Store backed by a shared Redis instance, for deployments
// running more than one replica of the content manager in front of the same
// backend set (spec.md §5's cache is described per-process; this extends it
// to a shared edge tier without changing the manager's call sites).
type RedisStore struct {
	client     *redis.Client
	defaultTTL time.Duration
}

// NewRedisStore connects to addr (host:port). defaultTTL backs PutTTL calls
// that pass a non-positive ttl.
func NewRedisStore(addr, password string, db int, defaultTTL time.Duration) *RedisStore {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	return &RedisStore{client: client, defaultTTL: defaultTTL}
}

func (r *RedisStore) Get(key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return val, true
}

func (r *RedisStore) Put(key string, value []byte) {
	r.PutTTL(key, value, r.defaultTTL)
}

func (r *RedisStore) PutTTL(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = r.client.Set(ctx, key, value, ttl).Err()
}
