package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	ErrLockNotAcquired = errors.New("appointment lock not acquired")
)

// Locker serializes writes to one appointment across processes. A reschedule
// confirmed in two sessions at once must not interleave read and update.
type Locker interface {
	WithAppointmentLock(ctx context.Context, appointmentID uuid.UUID, fn func(ctx context.Context) error) error
}

type redisLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

func NewRedisLocker(client *redis.Client, ttl time.Duration, logger zerolog.Logger) Locker {
	return &redisLocker{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "appointment_lock").Logger(),
	}
}

func lockKey(appointmentID uuid.UUID) string {
	return fmt.Sprintf("lock:appointment:%s", appointmentID)
}

func (l *redisLocker) WithAppointmentLock(ctx context.Context, appointmentID uuid.UUID, fn func(ctx context.Context) error) error {
	key := lockKey(appointmentID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire appointment lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		// the caller's context may already be done
		released, err := l.release(context.WithoutCancel(ctx), key, token)
		switch {
		case err != nil:
			l.logger.Warn().Err(err).Str("appointment_id", appointmentID.String()).Msg("lock release failed")
		case !released:
			// fn outlived the TTL, another writer may have run concurrently
			l.logger.Warn().Str("appointment_id", appointmentID.String()).Dur("ttl", l.ttl).Msg("lock expired before release")
		}
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

// release reports false when the key no longer holds our token.
func (l *redisLocker) release(ctx context.Context, key, token string) (bool, error) {
	n, err := unlockScript.Run(ctx, l.client, []string{key}, token).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("release appointment lock: %w", err)
	}
	return n > 0, nil
}
