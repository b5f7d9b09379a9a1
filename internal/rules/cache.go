package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/availability"
)

const DefaultCacheTTL = 5 * time.Minute

// CachedStore is a read-through Redis cache in front of another Store.
// Redis failures fall back to the underlying store.
type CachedStore struct {
	next   Store
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

func NewCachedStore(next Store, client *redis.Client, ttl time.Duration, logger zerolog.Logger) *CachedStore {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedStore{next: next, client: client, ttl: ttl, logger: logger}
}

func cacheKey(orgID uuid.UUID, kind string) string {
	return fmt.Sprintf("rules:%s:%s", orgID, kind)
}

func (c *CachedStore) BusinessHours(ctx context.Context, orgID uuid.UUID) ([]availability.BusinessHourRule, error) {
	return readThrough(ctx, c, cacheKey(orgID, "hours"), func(ctx context.Context) ([]availability.BusinessHourRule, error) {
		return c.next.BusinessHours(ctx, orgID)
	})
}

func (c *CachedStore) BlockedTimes(ctx context.Context, orgID uuid.UUID) ([]availability.BlockedWindow, error) {
	return readThrough(ctx, c, cacheKey(orgID, "blocks"), func(ctx context.Context) ([]availability.BlockedWindow, error) {
		return c.next.BlockedTimes(ctx, orgID)
	})
}

func (c *CachedStore) CapacityConfig(ctx context.Context, orgID uuid.UUID) ([]availability.CapacityRule, error) {
	return readThrough(ctx, c, cacheKey(orgID, "capacity"), func(ctx context.Context) ([]availability.CapacityRule, error) {
		return c.next.CapacityConfig(ctx, orgID)
	})
}

// Invalidate drops every cached configuration of orgID.
func (c *CachedStore) Invalidate(ctx context.Context, orgID uuid.UUID) error {
	err := c.client.Del(ctx,
		cacheKey(orgID, "hours"),
		cacheKey(orgID, "blocks"),
		cacheKey(orgID, "capacity"),
	).Err()
	if err != nil {
		return fmt.Errorf("invalidate rules cache: %w", err)
	}
	return nil
}

func readThrough[T any](ctx context.Context, c *CachedStore, key string, load func(context.Context) ([]T, error)) ([]T, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var out []T
		if jsonErr := json.Unmarshal(raw, &out); jsonErr == nil {
			return out, nil
		}
		c.logger.Warn().Str("key", key).Msg("discarding undecodable cache entry")
	case !errors.Is(err, redis.Nil):
		c.logger.Warn().Err(err).Str("key", key).Msg("rules cache read failed")
	}

	out, err := load(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(out)
	if err != nil {
		return out, nil
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("rules cache write failed")
	}
	return out, nil
}
