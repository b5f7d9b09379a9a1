package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/config"
)

// Options holds what the scheduler needs from Redis: the rule cache and the
// appointment move locks. Zero values fall back to the defaults below.
type Options struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	Timeout      time.Duration // per command read/write timeout
	PingTimeout  time.Duration
}

const (
	defaultPoolSize    = 10
	defaultTimeout     = 2 * time.Second
	defaultPingTimeout = 5 * time.Second
)

func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Addr:         cfg.RedisAddr,
		Username:     cfg.RedisUsername,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     cfg.RedisPoolSize,
		MinIdleConns: cfg.RedisMinIdleConns,
		Timeout:      cfg.RedisTimeout,
	}
}

func (o Options) redisOptions() *redis.Options {
	ro := &redis.Options{
		Addr:         o.Addr,
		Username:     o.Username,
		Password:     o.Password,
		DB:           o.DB,
		PoolSize:     defaultPoolSize,
		MinIdleConns: o.MinIdleConns,
		ReadTimeout:  defaultTimeout,
		WriteTimeout: defaultTimeout,
	}
	if o.PoolSize > 0 {
		ro.PoolSize = o.PoolSize
	}
	if o.MinIdleConns > ro.PoolSize {
		ro.MinIdleConns = ro.PoolSize
	}
	if o.Timeout > 0 {
		ro.ReadTimeout = o.Timeout
		ro.WriteTimeout = o.Timeout
	}
	return ro
}

// NewRedisClient dials Redis and pings it once before handing the client
// out, so a bad address fails at startup instead of on the first lookup.
func NewRedisClient(ctx context.Context, opts Options, logger zerolog.Logger) (*redis.Client, error) {
	ro := opts.redisOptions()
	rdb := redis.NewClient(ro)

	pingTimeout := opts.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = defaultPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s db %d: %w", ro.Addr, ro.DB, err)
	}

	logger.Info().
		Str("addr", ro.Addr).
		Int("db", ro.DB).
		Int("pool_size", ro.PoolSize).
		Dur("timeout", ro.ReadTimeout).
		Msg("connected to Redis")

	return rdb, nil
}
