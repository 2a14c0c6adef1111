// Package redis publishes live quotes to Redis for external consumers. The
// latest quote per instrument is kept in a key with TTL and every update is
// fanned out over PubSub. A circuit breaker guards against a flapping server.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/XavierD3728/stockquant/internal/metrics"
	"github.com/XavierD3728/stockquant/internal/pricefeed"
)

const defaultLatestTTL = 30 * time.Minute

// Config configures the Redis publisher.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Publisher writes quote updates to Redis.
type Publisher struct {
	client  *goredis.Client
	breaker *CircuitBreaker
	metrics *metrics.Metrics
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// New creates a Publisher and pings the server.
func New(cfg Config, m *metrics.Metrics) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	breaker := NewCircuitBreaker(5, 10*time.Second)
	breaker.OnStateChange = func(from, to State) {
		log.Printf("[redis] circuit breaker %s -> %s", from, to)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Publisher{client: client, breaker: breaker, metrics: m}, nil
}

// Run reads quotes from quoteCh and publishes them until ctx is cancelled or
// the channel is closed.
func (p *Publisher) Run(ctx context.Context, quoteCh <-chan pricefeed.Quote) {
	for {
		select {
		case <-ctx.Done():
			return
		case q, ok := <-quoteCh:
			if !ok {
				return
			}
			p.publish(ctx, q)
		}
	}
}

// publish pipelines SET latest + PUBLISH for one quote through the breaker.
func (p *Publisher) publish(ctx context.Context, q pricefeed.Quote) {
	data, err := json.Marshal(q)
	if err != nil {
		log.Printf("[redis] marshal quote %s: %v", q.Code, err)
		return
	}
	payload := string(data)

	err = p.breaker.Execute(func() error {
		pipe := p.client.Pipeline()
		pipe.Set(ctx, "quote:latest:"+q.Code, payload, defaultLatestTTL)
		pipe.Publish(ctx, "pub:quote:"+q.Code, payload)
		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil {
		if p.metrics != nil {
			p.metrics.QuotePublishErrors.Inc()
		}
		if err != ErrCircuitOpen {
			log.Printf("[redis] publish quote %s: %v", q.Code, err)
		}
	}
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
