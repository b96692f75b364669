// Package runlock keeps two tracker runs from writing the same stores at once.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const DefaultKey = "simple-price-alert:run"

var ErrLockHeld = errors.New("another run holds the lock")

// deletes the key only if we still own it
var release = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Config struct {
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
}

type Locker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func Connect(ctx context.Context, cfg Config, ttl time.Duration) (*Locker, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis %s: %w", cfg.Addr, err)
	}
	return New(client, DefaultKey, ttl), nil
}

func New(client *redis.Client, key string, ttl time.Duration) *Locker {
	return &Locker{client: client, key: key, ttl: ttl}
}

// Lease is a held lock. The TTL frees it if the process dies before Release.
type Lease struct {
	locker *Locker
	token  string
}

func (l *Locker) Acquire(ctx context.Context) (*Lease, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", l.key, ErrLockHeld)
	}
	return &Lease{locker: l, token: token}, nil
}

// Release is a no-op when the lease already expired and someone else took
// the lock.
func (s *Lease) Release(ctx context.Context) error {
	if err := release.Run(ctx, s.locker.client, []string{s.locker.key}, s.token).Err(); err != nil {
		return fmt.Errorf("release %s: %w", s.locker.key, err)
	}
	return nil
}

func (l *Locker) Close() error {
	return l.client.Close()
}
