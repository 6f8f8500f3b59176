// Package redis provides a narrow Redis client used by the Trust SDK as a
// shared cache tier: replicas of a validating service can share fetched
// key-set documents instead of each fetching them from the tenant's JWKS
// endpoint.
//
// The client wraps go-redis (github.com/redis/go-redis/v9) and adds
// OpenTelemetry tracing and structured error classification to the handful
// of commands the SDK uses. Connection pooling and reconnection are handled
// internally by go-redis.
//
// For testing, use [NewFromClient] to inject a mock or a miniredis-backed
// client:
//
//	mr := miniredis.RunT(t)
//	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
//	client := redis.NewFromClient(rdb, nil)
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/stricklysoft-trust/pkg/errors"
	"github.com/StricklySoft/stricklysoft-trust/pkg/secret"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
const tracerName = "github.com/StricklySoft/stricklysoft-trust/pkg/clients/redis"

// Nil is returned by Get when the key does not exist. It aliases the
// go-redis sentinel so callers do not need to import go-redis directly.
var Nil = redis.Nil

// Cmdable defines the Redis command surface the SDK uses. It is satisfied
// by [*redis.Client] and by mock implementations for unit testing, enabling
// dependency injection via [NewFromClient] without a real Redis instance.
type Cmdable interface {
	// Set sets the string value of a key with an optional expiration.
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd

	// Get returns the string value of a key.
	Get(ctx context.Context, key string) *redis.StringCmd

	// Del deletes one or more keys.
	Del(ctx context.Context, keys ...string) *redis.IntCmd

	// Exists returns the number of keys that exist from the specified keys.
	Exists(ctx context.Context, keys ...string) *redis.IntCmd

	// TTL returns the remaining time to live of a key.
	TTL(ctx context.Context, key string) *redis.DurationCmd

	// Ping checks the connection.
	Ping(ctx context.Context) *redis.StatusCmd
}

// Config holds connection settings for [NewClient].
type Config struct {
	// Addr is the host:port of the Redis server.
	Addr string `yaml:"addr" env:"REDIS_ADDR"`

	// Password authenticates against the server. Optional.
	Password secret.Secret `yaml:"-" env:"REDIS_PASSWORD"`

	// DB is the Redis database index.
	DB int `yaml:"db" env:"REDIS_DB"`

	// DialTimeout bounds connection establishment. Defaults to 5s.
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// Validate checks the configuration for logical correctness.
func (c *Config) Validate() *sserr.Error {
	if c.Addr == "" {
		return sserr.New(sserr.CodeValidationRequired, "redis: addr must not be empty")
	}
	if c.DB < 0 || c.DB > 15 {
		return sserr.Newf(sserr.CodeValidationRange, "redis: db index %d out of range 0-15", c.DB)
	}
	return nil
}

// Client wraps a Redis connection with tracing and error classification.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	cmdable Cmdable
	tracer  trace.Tracer
	dbIndex int
}

// NewClient connects to Redis with the given configuration and verifies the
// connection with a ping.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password.Value(),
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, wrapError(err, "redis: connection ping failed")
	}
	return &Client{
		cmdable: rdb,
		tracer:  otel.Tracer(tracerName),
		dbIndex: cfg.DB,
	}, nil
}

// NewFromClient creates a Client over a pre-existing [Cmdable]. Intended
// for tests (mocks, miniredis) and advanced wiring. cfg may be nil.
func NewFromClient(cmdable Cmdable, cfg *Config) *Client {
	dbIndex := 0
	if cfg != nil {
		dbIndex = cfg.DB
	}
	return &Client{
		cmdable: cmdable,
		tracer:  otel.Tracer(tracerName),
		dbIndex: dbIndex,
	}
}

// Set sets the string value of a key with an expiration.
func (c *Client) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	ctx, span := c.startSpan(ctx, "Set", fmt.Sprintf("SET %s", key))
	err := c.cmdable.Set(ctx, key, value, expiration).Err()
	finishSpan(span, err)
	if err != nil {
		return wrapError(err, "redis: set failed")
	}
	return nil
}

// Get returns the string value of a key. When the key does not exist the
// returned error wraps [Nil].
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	ctx, span := c.startSpan(ctx, "Get", fmt.Sprintf("GET %s", key))
	val, err := c.cmdable.Get(ctx, key).Result()
	finishSpan(span, err)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", err
		}
		return "", wrapError(err, "redis: get failed")
	}
	return val, nil
}

// Del deletes one or more keys and returns the number removed.
func (c *Client) Del(ctx context.Context, keys ...string) (int64, error) {
	ctx, span := c.startSpan(ctx, "Del", fmt.Sprintf("DEL %v", keys))
	val, err := c.cmdable.Del(ctx, keys...).Result()
	finishSpan(span, err)
	if err != nil {
		return 0, wrapError(err, "redis: del failed")
	}
	return val, nil
}

// Exists returns the number of the specified keys that exist.
func (c *Client) Exists(ctx context.Context, keys ...string) (int64, error) {
	ctx, span := c.startSpan(ctx, "Exists", fmt.Sprintf("EXISTS %v", keys))
	val, err := c.cmdable.Exists(ctx, keys...).Result()
	finishSpan(span, err)
	if err != nil {
		return 0, wrapError(err, "redis: exists failed")
	}
	return val, nil
}

// TTL returns the remaining time to live of a key. Returns -1 if the key
// has no expiration and -2 if the key does not exist.
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	ctx, span := c.startSpan(ctx, "TTL", fmt.Sprintf("TTL %s", key))
	val, err := c.cmdable.TTL(ctx, key).Result()
	finishSpan(span, err)
	if err != nil {
		return 0, wrapError(err, "redis: ttl failed")
	}
	return val, nil
}

// Health checks the connection with a ping.
func (c *Client) Health(ctx context.Context) error {
	ctx, span := c.startSpan(ctx, "Health", "PING")
	err := c.cmdable.Ping(ctx).Err()
	finishSpan(span, err)
	if err != nil {
		return wrapError(err, "redis: health check failed")
	}
	return nil
}

// Close closes the underlying connection if it supports closing.
func (c *Client) Close() error {
	if closer, ok := c.cmdable.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

func (c *Client) startSpan(ctx context.Context, operation, statement string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "redis."+operation,
		trace.WithAttributes(
			attribute.String("db.system", "redis"),
			attribute.Int("db.redis.database_index", c.dbIndex),
			attribute.String("db.statement", statement),
		),
	)
}

func finishSpan(span trace.Span, err error) {
	defer span.End()
	if err != nil && !errors.Is(err, redis.Nil) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// wrapError classifies a go-redis error into the SDK taxonomy: deadline
// errors map to [sserr.CodeTimeoutDependency], everything else to
// [sserr.CodeUnavailableDependency].
func wrapError(err error, message string) *sserr.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return sserr.Wrap(err, sserr.CodeTimeoutDependency, message)
	}
	return sserr.Wrap(err, sserr.CodeUnavailableDependency, message)
}
