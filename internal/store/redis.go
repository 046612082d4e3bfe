package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// healthTimeout bounds the ping issued by Healthy.
const healthTimeout = time.Second

// Redis holds the client shared by the report cache and the job queue.
type Redis struct {
	Client *redis.Client
}

// NewRedis builds a client for addr. Connections are lazy; nothing is dialed
// until the first command.
func NewRedis(addr string) *Redis {
	return &Redis{Client: redis.NewClient(&redis.Options{
		Addr:         addr,
		PoolSize:     20,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})}
}

// Healthy pings redis within a short deadline.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	return r.Client.Ping(ctx).Err() == nil
}

func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
