package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/societybill/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var (
	errEmptyLockKey   = errors.New("lock key is empty")
	errInvalidLockTTL = errors.New("lock ttl must be positive")
)

// Locker grants a single holder per key until release or ttl expiry.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

type RedisLocker struct {
	client *redis.Client
	script *redis.Script
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if err := validateLock(key, ttl); err != nil {
		return "", false, err
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}

// LocalLocker serialises runs within one process. It is used when no redis is configured.
type LocalLocker struct {
	mu    sync.Mutex
	locks *cache.Cache
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: cache.New(cache.NoExpiration, time.Minute)}
}

func (l *LocalLocker) TryLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	if err := validateLock(key, ttl); err != nil {
		return "", false, err
	}
	token := uuid.NewString()
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.locks.Add(key, token, ttl); err != nil {
		return "", false, nil
	}
	return token, true, nil
}

func (l *LocalLocker) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if current, ok := l.locks.Get(key); ok && current == token {
		l.locks.Delete(key)
	}
	return nil
}

func validateLock(key string, ttl time.Duration) error {
	if strings.TrimSpace(key) == "" {
		return errEmptyLockKey
	}
	if ttl <= 0 {
		return errInvalidLockTTL
	}
	return nil
}

// NewLocker picks the redis locker when REDIS_ADDR is set.
func NewLocker(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) Locker {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		log.Warn("redis not configured, generation lock is process-local")
		return NewLocalLocker()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return NewRedisLocker(client)
}
