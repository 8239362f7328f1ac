package stripeterminal

import (
	"context"

	"github.com/go-redis/redis/v8"
)

const rememberedPrefix = "terminal:remembered:"

// Registry remembers readers this location has connected to before, so
// discovery can prefer them.
type Registry interface {
	Remember(ctx context.Context, readerID string) error
	Forget(ctx context.Context, readerID string) error
	Remembered(ctx context.Context) (map[string]bool, error)
}

// RedisRegistry keeps remembered reader ids in a Redis set per location.
type RedisRegistry struct {
	client *redis.Client
	key    string
}

func NewRedisRegistry(client *redis.Client, locationID string) *RedisRegistry {
	return &RedisRegistry{client: client, key: rememberedPrefix + locationID}
}

func (r *RedisRegistry) Remember(ctx context.Context, readerID string) error {
	return r.client.SAdd(ctx, r.key, readerID).Err()
}

func (r *RedisRegistry) Forget(ctx context.Context, readerID string) error {
	return r.client.SRem(ctx, r.key, readerID).Err()
}

func (r *RedisRegistry) Remembered(ctx context.Context) (map[string]bool, error) {
	ids, err := r.client.SMembers(ctx, r.key).Result()
	if err == redis.Nil {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
