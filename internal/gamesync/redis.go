package gamesync

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisTransport fans sync messages out through Redis pub/sub so hosts and
// players on different server instances share a channel.
type RedisTransport struct {
	client redis.UniversalClient
}

// NewRedisTransport wraps an existing client. The caller owns the client.
func NewRedisTransport(client redis.UniversalClient) *RedisTransport {
	return &RedisTransport{client: client}
}

type redisSubscription struct {
	ps   *redis.PubSub
	out  chan []byte
	done chan struct{}
	once sync.Once
}

// Subscribe blocks until Redis confirms the subscription.
func (t *RedisTransport) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	ps := t.client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	sub := &redisSubscription{
		ps:   ps,
		out:  make(chan []byte, defaultMemoryBuffer),
		done: make(chan struct{}),
	}
	go sub.pump()
	return sub, nil
}

func (s *redisSubscription) pump() {
	defer close(s.out)
	for msg := range s.ps.Channel() {
		select {
		case s.out <- []byte(msg.Payload):
		case <-s.done:
			return
		}
	}
}

func (s *redisSubscription) Messages() <-chan []byte { return s.out }

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

func (t *RedisTransport) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := t.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}
