// Package broker connects to the Redis instance that carries the task
// queue. It exposes a liveness ping for the health pipeline and the
// connection options for the task runtime.
package broker

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/rickgao/deribit-prices/internal/config"
)

// Broker wraps a Redis client.
type Broker struct {
	client *redis.Client
	addr   string
}

// New creates a Broker. No connection is made until first use.
func New(cfg config.RedisConfig) *Broker {
	addr := Addr(cfg)
	return &Broker{
		client: redis.NewClient(&redis.Options{
			Addr:        addr,
			Password:    cfg.Password,
			DB:          cfg.DB,
			DialTimeout: cfg.DialTimeout,
		}),
		addr: addr,
	}
}

// Addr returns host:port for cfg.
func Addr(cfg config.RedisConfig) string {
	return net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}

// ConnOpt returns the task runtime's connection options for cfg.
func ConnOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:        Addr(cfg),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	}
}

// Ping sends PING and checks the reply.
func (b *Broker) Ping(ctx context.Context) error {
	pong, err := b.client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("ping redis at %s: %w", b.addr, err)
	}
	if pong != "PONG" {
		return fmt.Errorf("ping redis at %s: unexpected reply %q", b.addr, pong)
	}
	return nil
}

// Addr returns the broker address.
func (b *Broker) Addr() string {
	return b.addr
}

// Close closes the underlying client.
func (b *Broker) Close() error {
	return b.client.Close()
}
