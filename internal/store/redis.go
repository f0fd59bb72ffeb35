package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abelbrown/dealfeed/internal/rotation"
)

// RedisConfig mirrors the envconfig layout used for other connection settings.
// Timeouts are in seconds.
type RedisConfig struct {
	URL          string `split_words:"true"`
	ReadTimeout  int    `split_words:"true" default:"3"`
	WriteTimeout int    `split_words:"true" default:"3"`
	DialTimeout  int    `split_words:"true" default:"5"`
}

// New parses the URL, applies timeouts and pings the server.
func (c RedisConfig) New(ctx context.Context) (*redis.Client, error) {
	opts, err := redis.ParseURL(c.URL)
	if err != nil {
		return nil, err
	}

	opts.ReadTimeout = time.Duration(c.ReadTimeout) * time.Second
	opts.WriteTimeout = time.Duration(c.WriteTimeout) * time.Second
	opts.DialTimeout = time.Duration(c.DialTimeout) * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// Redis keeps the rotation map in a single hash: field = identity key,
// value = RFC3339Nano timestamp.
type Redis struct {
	client redis.UniversalClient
	key    string
}

// NewRedis returns a store backed by the hash at key, e.g.
// "dealfeed:rotation:us:en".
func NewRedis(client redis.UniversalClient, key string) *Redis {
	return &Redis{client: client, key: key}
}

// Key returns the hash key.
func (r *Redis) Key() string { return r.key }

func (r *Redis) LoadAll(ctx context.Context) (rotation.Map, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, redisErr("load", err)
	}
	m := make(rotation.Map, len(fields))
	for k, v := range fields {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			continue
		}
		m[k] = t
	}
	return m, nil
}

// Persist swaps the hash contents in a MULTI/EXEC block.
func (r *Redis) Persist(ctx context.Context, m rotation.Map) error {
	values := make(map[string]any, len(m))
	for k, t := range m {
		values[k] = t.UTC().Format(time.RFC3339Nano)
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key)
		if len(values) > 0 {
			pipe.HSet(ctx, r.key, values)
		}
		return nil
	})
	if err != nil {
		return redisErr("persist", err)
	}
	return nil
}

func redisErr(op string, err error) error {
	return &rotation.PersistenceError{Op: op, Backend: "redis", Err: err}
}
