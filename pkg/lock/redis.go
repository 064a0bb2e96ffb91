package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deletes the key only while it still holds our token
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Extends the lease only while the key still holds our token
const renewScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`

// ErrLeaseLost is reported when a held key expired or was taken over before
// it could be renewed
var ErrLeaseLost = errors.New("lock lease lost")

// ErrLockTimeout is returned when a key stays held for longer than the wait limit
var ErrLockTimeout = errors.New("timed out waiting for lock")

// RedisOptions tune the Redis lease locker
type RedisOptions struct {
	// Prefix is prepended to every key, e.g. "tilavaraus:lock"
	Prefix string

	// TTL bounds how long a crashed holder blocks others. Leases are renewed
	// every TTL/3 while held, so a run may take longer than TTL.
	TTL time.Duration

	// Wait bounds how long Acquire retries a held key
	Wait time.Duration

	// RetryInterval between attempts on a held key
	RetryInterval time.Duration
}

// Redis is a Locker for multi-process deployments backed by SET NX PX leases
type Redis struct {
	client  *redis.Client
	opts    RedisOptions
	release *redis.Script
	renew   *redis.Script
	logger  *zap.Logger
}

// NewRedis creates a Redis lease locker
func NewRedis(client *redis.Client, opts RedisOptions, logger *zap.Logger) *Redis {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.Wait <= 0 {
		opts.Wait = 30 * time.Second
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 100 * time.Millisecond
	}
	return &Redis{
		client:  client,
		opts:    opts,
		release: redis.NewScript(releaseScript),
		renew:   redis.NewScript(renewScript),
		logger:  logger,
	}
}

// NewRedisClient connects to Redis at url and pings it
func NewRedisClient(ctx context.Context, url, password string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	if password != "" {
		opts.Password = password
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

func (r *Redis) key(key string) string {
	if r.opts.Prefix == "" {
		return key
	}
	return r.opts.Prefix + ":" + key
}

func (r *Redis) Acquire(ctx context.Context, keys ...string) (func(), error) {
	token := uuid.NewString()
	held := make([]string, 0, len(keys))

	releaseHeld := func() {
		// Release with a fresh context so a cancelled caller still frees its keys
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for i := len(held) - 1; i >= 0; i-- {
			if err := r.release.Run(releaseCtx, r.client, []string{held[i]}, token).Err(); err != nil {
				r.logger.Error("Failed to release lock", zap.String("key", held[i]), zap.Error(err))
			}
		}
	}

	for _, key := range normalizeKeys(keys) {
		redisKey := r.key(key)
		if err := r.acquireOne(ctx, redisKey, token); err != nil {
			releaseHeld()
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		held = append(held, redisKey)
		r.logger.Debug("Acquired lock", zap.String("key", redisKey))
	}

	stop := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		keepAlive(stop, r.opts.TTL/3, func() error { return r.renewAll(held, token) }, r.logger)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-stopped
			releaseHeld()
		})
	}, nil
}

// renewAll extends every held lease back to the full TTL
func (r *Redis) renewAll(held []string, token string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, key := range held {
		n, err := r.renew.Run(ctx, r.client, []string{key}, token, r.opts.TTL.Milliseconds()).Int64()
		if err != nil {
			return fmt.Errorf("failed to renew lock %s: %w", key, err)
		}
		if n == 0 {
			return fmt.Errorf("lock %s: %w", key, ErrLeaseLost)
		}
	}
	return nil
}

// keepAlive calls renew every interval until stop is closed. A lost lease
// ends the loop. Other renewal errors are retried on the next tick.
func keepAlive(stop <-chan struct{}, interval time.Duration, renew func() error, logger *zap.Logger) {
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		err := renew()
		if err == nil {
			continue
		}
		if errors.Is(err, ErrLeaseLost) {
			logger.Error("Lock lease lost while held", zap.Error(err))
			return
		}
		logger.Warn("Failed to renew lock lease", zap.Error(err))
	}
}

func (r *Redis) acquireOne(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(r.opts.Wait)
	ticker := time.NewTicker(r.opts.RetryInterval)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.opts.TTL).Result()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
