package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/formfill-cli/internal/prompt"
)

const redisKeyPrefix = "prompt"

// RedisCache implements Cache on Redis. Records are stored as JSON and
// expire through the key TTL, so it needs no Prune.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Cache = (*RedisCache)(nil)

// NewRedis connects to the Redis server at url (redis://host:port/db) and
// verifies the connection.
func NewRedis(ctx context.Context, url string, ttl time.Duration) (*RedisCache, error) {
	if url == "" {
		return nil, eris.New("redis: url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, eris.Wrap(err, "redis: parse url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "redis: ping")
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

func redisKey(hash, model string) string {
	return redisKeyPrefix + ":" + model + ":" + hash
}

// Get implements prompt.Cache.
func (r *RedisCache) Get(ctx context.Context, hash, model string) (*prompt.Record, error) {
	raw, err := r.client.Get(ctx, redisKey(hash, model)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "redis: get prompt %s", hash)
	}
	var rec prompt.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, eris.Wrapf(err, "redis: decode prompt %s", hash)
	}
	return &rec, nil
}

// Put implements prompt.Cache.
func (r *RedisCache) Put(ctx context.Context, rec prompt.Record) error {
	rec = withIdentity(rec)
	data, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrapf(err, "redis: encode prompt %s", rec.PromptHash)
	}
	if err := r.client.Set(ctx, redisKey(rec.PromptHash, rec.Model), data, r.ttl).Err(); err != nil {
		return eris.Wrapf(err, "redis: put prompt %s", rec.PromptHash)
	}
	return nil
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
