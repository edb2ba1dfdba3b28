package redisrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/flowcraft-client/sessions"
	"github.com/redis/go-redis/v9"
)

var _ sessions.Repo = (*RedisRepo)(nil)

const (
	DefaultPrefix  = "flowcraft:session"
	defaultTimeout = 2 * time.Second
)

// RedisRepo keeps session values under "<prefix>:<key>". Useful when several
// processes on one host (or a backend-for-frontend) share a session.
type RedisRepo struct {
	client  redis.UniversalClient
	prefix  string
	ttl     time.Duration
	timeout time.Duration
}

type Option func(*RedisRepo)

// WithTTL expires stored values; zero keeps them until deleted.
func WithTTL(ttl time.Duration) Option {
	return func(r *RedisRepo) {
		r.ttl = ttl
	}
}

// WithTimeout bounds every Redis round trip.
func WithTimeout(timeout time.Duration) Option {
	return func(r *RedisRepo) {
		r.timeout = timeout
	}
}

func New(client redis.UniversalClient, prefix string, opts ...Option) *RedisRepo {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	r := &RedisRepo{
		client:  client,
		prefix:  prefix,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewFromURL parses a redis:// URL and checks the server is reachable.
func NewFromURL(ctx context.Context, redisURL, prefix string, opts ...Option) (*RedisRepo, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redisrepo.NewFromURL parse: %w", err)
	}
	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redisrepo.NewFromURL ping: %w", err)
	}
	return New(client, prefix, opts...), nil
}

func (r *RedisRepo) Close() error {
	return r.client.Close()
}

func (r *RedisRepo) key(k string) string {
	return r.prefix + ":" + k
}

func (r *RedisRepo) Get(key string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	v, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", sessions.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redisrepo.Get %s: %w", key, err)
	}
	return v, nil
}

// SetAll writes every value inside one MULTI/EXEC transaction.
func (r *RedisRepo) SetAll(values map[string]string) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range values {
			pipe.Set(ctx, r.key(k), v, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redisrepo.SetAll: %w", err)
	}
	return nil
}

func (r *RedisRepo) Delete(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = r.key(k)
	}
	if err := r.client.Del(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("redisrepo.Delete: %w", err)
	}
	return nil
}
