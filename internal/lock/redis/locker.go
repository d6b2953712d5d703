// Package redis implements a distributed lock on a single Redis key.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/rueidis"
	"go.uber.org/zap"

	"github.com/kailas-cloud/esdex/internal/domain"
)

// releaseScript deletes the key only while it still holds our token.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// extendScript resets the expiry only while the key still holds our token.
const extendScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`

// ErrLockLost is returned by release when the key expired or was taken over.
var ErrLockLost = errors.New("lock lost")

// Config holds connection parameters for the lock store.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
}

// Locker takes exclusive leases on keys with SET NX PX. A held lease is
// extended every third of its ttl until released.
type Locker struct {
	client rueidis.Client
	token  func() string
	logger *zap.Logger
}

// NewLocker connects to Redis via rueidis.
func NewLocker(cfg Config, logger *zap.Logger) (*Locker, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	l := newLocker(client)
	if logger != nil {
		l.logger = logger
	}
	return l, nil
}

func newLocker(c rueidis.Client) *Locker {
	return &Locker{client: c, token: uuid.NewString, logger: zap.NewNop()}
}

// Ping checks connectivity.
func (l *Locker) Ping(ctx context.Context) error {
	if err := l.client.Do(ctx, l.client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (l *Locker) Close() {
	l.client.Close()
}

// Acquire takes key for ttl. It returns domain.ErrLocked when the key is
// already held. The returned release func frees the key if it is still ours.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	if ttl < time.Millisecond {
		return nil, fmt.Errorf("lock %s: ttl must be at least 1ms", key)
	}
	token := l.token()

	cmd := l.client.B().Set().Key(key).Value(token).Nx().PxMilliseconds(ttl.Milliseconds()).Build()
	if err := l.client.Do(ctx, cmd).Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, fmt.Errorf("lock %s: %w", key, domain.ErrLocked)
		}
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}

	keepCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	var lost atomic.Bool
	go func() {
		defer close(done)
		l.keepAlive(keepCtx, key, token, ttl, &lost)
	}()

	release := func(ctx context.Context) error {
		stop()
		<-done
		if lost.Load() {
			return fmt.Errorf("unlock %s: %w", key, ErrLockLost)
		}
		cmd := l.client.B().Eval().Script(releaseScript).Numkeys(1).Key(key).Arg(token).Build()
		n, err := l.client.Do(ctx, cmd).AsInt64()
		if err != nil {
			return fmt.Errorf("unlock %s: %w", key, err)
		}
		if n == 0 {
			return fmt.Errorf("unlock %s: %w", key, ErrLockLost)
		}
		return nil
	}
	return release, nil
}

// keepAlive extends the lease until ctx is done. A failed extension is
// retried on the next tick; an extension refused because the token changed
// marks the lease lost.
func (l *Locker) keepAlive(ctx context.Context, key, token string, ttl time.Duration, lost *atomic.Bool) {
	ticker := time.NewTicker(max(ttl/3, time.Millisecond))
	defer ticker.Stop()

	ms := strconv.FormatInt(ttl.Milliseconds(), 10)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		cmd := l.client.B().Eval().Script(extendScript).Numkeys(1).Key(key).Arg(token, ms).Build()
		n, err := l.client.Do(ctx, cmd).AsInt64()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.Warn("extend lock", zap.String("key", key), zap.Error(err))
			continue
		}
		if n == 0 {
			lost.Store(true)
			l.logger.Error("lock lost", zap.String("key", key))
			return
		}
	}
}
