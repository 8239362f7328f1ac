package terminal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrReaderInUse is returned when another payment attempt holds the reader.
var ErrReaderInUse = errors.New("card reader is in use by another payment attempt")

const readerLockPrefix = "reader_lock:"

// ReaderLock hands out exclusive use of a reader to one payment attempt.
type ReaderLock interface {
	// Acquire returns a release func that must be called on every exit path.
	Acquire(ctx context.Context, readerID, owner string) (release func(), err error)
}

// RedisReaderLock coordinates reader ownership across processes with SETNX.
type RedisReaderLock struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisReaderLock(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisReaderLock {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisReaderLock{client: client, ttl: ttl, logger: logger}
}

// releaseScript deletes the key only if it is still held by the same owner.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

func (l *RedisReaderLock) Acquire(ctx context.Context, readerID, owner string) (func(), error) {
	key := readerLockPrefix + readerID
	ok, err := l.client.SetNX(ctx, key, owner, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire reader lock %s: %w", readerID, err)
	}
	if !ok {
		return nil, ErrReaderInUse
	}
	return func() { l.release(key, owner) }, nil
}

// release runs on a fresh context so it works after the attempt was canceled.
// A failed release leaves the reader locked until the TTL expires.
func (l *RedisReaderLock) release(key, owner string) {
	rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	deleted, err := releaseScript.Run(rctx, l.client, []string{key}, owner).Int64()
	if err != nil {
		l.logger.Error("Failed to release reader lock",
			zap.String("key", key), zap.String("owner", owner), zap.Duration("held_until_ttl", l.ttl), zap.Error(err))
		return
	}
	if deleted == 0 {
		l.logger.Warn("Reader lock expired or changed owner before release",
			zap.String("key", key), zap.String("owner", owner))
	}
}

// LocalReaderLock is an in-process ReaderLock.
type LocalReaderLock struct {
	mu     sync.Mutex
	owners map[string]string
}

func NewLocalReaderLock() *LocalReaderLock {
	return &LocalReaderLock{owners: make(map[string]string)}
}

func (l *LocalReaderLock) Acquire(_ context.Context, readerID, owner string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.owners[readerID]; held {
		return nil, ErrReaderInUse
	}
	l.owners[readerID] = owner
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.owners[readerID] == owner {
				delete(l.owners, readerID)
			}
		})
	}, nil
}

// Held reports whether readerID is currently leased.
func (l *LocalReaderLock) Held(readerID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.owners[readerID]
	return ok
}
