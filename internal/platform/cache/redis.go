// Package cache opens the shared Redis connection used for token revocation
// and as the job queue backend.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options configures the Redis connection.
type Options struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

const pingTimeout = 5 * time.Second

func (o Options) redisOptions() (*redis.Options, error) {
	if o.Addr == "" {
		return nil, errors.New("platform/cache: address required")
	}
	ro := &redis.Options{
		Addr:         o.Addr,
		Password:     o.Password,
		DB:           o.DB,
		PoolSize:     o.PoolSize,
		DialTimeout:  o.DialTimeout,
		ReadTimeout:  o.ReadTimeout,
		WriteTimeout: o.WriteTimeout,
	}
	if ro.DialTimeout == 0 {
		ro.DialTimeout = 3 * time.Second
	}
	if ro.ReadTimeout == 0 {
		ro.ReadTimeout = 2 * time.Second
	}
	if ro.WriteTimeout == 0 {
		ro.WriteTimeout = ro.ReadTimeout
	}
	return ro, nil
}

// New opens a client and pings it, closing the client again if the server is
// unreachable.
func New(ctx context.Context, opts Options) (*redis.Client, error) {
	ro, err := opts.redisOptions()
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(ro)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("platform/cache: ping %s: %w", opts.Addr, err)
	}
	return client, nil
}
