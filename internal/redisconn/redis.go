// Package redisconn opens the Redis connection shared by the event bus and the
// rate limiter, and reports its health for /healthz.
package redisconn

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const checkTimeout = time.Second

// Redis is the console's shared redis client.
type Redis struct {
	Client *redis.Client
	addr   string
}

// Status is the health of the redis connection as shown on /healthz.
type Status struct {
	OK        bool    `json:"ok"`
	Addr      string  `json:"addr,omitempty"`
	LatencyMS float64 `json:"latency_ms,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// New connects to redis with short timeouts. The connection is lazy; use
// Check to test it.
func New(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &Redis{Client: client, addr: addr}
}

// Check pings redis and reports the round trip.
func (r *Redis) Check(ctx context.Context) Status {
	if r == nil || r.Client == nil {
		return Status{Error: "not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	if err := r.Client.Ping(ctx).Err(); err != nil {
		return Status{Addr: r.addr, Error: err.Error()}
	}
	return Status{OK: true, Addr: r.addr, LatencyMS: float64(time.Since(start).Microseconds()) / 1000}
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
