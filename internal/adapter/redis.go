package adapter

import (
	"context"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the shared Redis connection pool
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// PoolSize defaults to 10 when zero
	PoolSize int
}

// RedisClient is the Redis surface of the indexer: the change stream and the view-call budget
//
//go:generate mockgen -source=redis.go -destination=../mocks/redis.go -package=mocks -mock_names=RedisClient=MockRedisClient,RedisRateLimiter=MockRedisRateLimiter
type RedisClient interface {
	Ping(ctx context.Context) error
	// XAdd appends values to stream and returns the entry id.
	// A positive maxLen trims the stream to roughly that many entries.
	XAdd(ctx context.Context, stream string, maxLen int64, values map[string]interface{}) (string, error)
	NewRateLimiter() RedisRateLimiter
	Close() error
}

// RedisRateLimiter is a GCRA limiter shared by every process using the same Redis
type RedisRateLimiter interface {
	Allow(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error)
}

type redisClient struct {
	client *redis.Client
}

// NewRedisClient creates a pooled Redis client; no connection is made until first use
func NewRedisClient(opts RedisOptions) RedisClient {
	poolSize := opts.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}
	return &redisClient{
		client: redis.NewClient(&redis.Options{
			Addr:         opts.Addr,
			Password:     opts.Password,
			DB:           opts.DB,
			PoolSize:     poolSize,
			MinIdleConns: 2,
		}),
	}
}

func (r *redisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisClient) XAdd(ctx context.Context, stream string, maxLen int64, values map[string]interface{}) (string, error) {
	args := &redis.XAddArgs{
		Stream: stream,
		ID:     "*",
		Values: values,
	}
	if maxLen > 0 {
		args.MaxLen = maxLen
		args.Approx = true
	}
	return r.client.XAdd(ctx, args).Result()
}

func (r *redisClient) NewRateLimiter() RedisRateLimiter {
	return redis_rate.NewLimiter(r.client)
}

func (r *redisClient) Close() error {
	return r.client.Close()
}
