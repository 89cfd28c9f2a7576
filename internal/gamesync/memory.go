package gamesync

import (
	"context"
	"sync"
)

const defaultMemoryBuffer = 64

// MemoryTransport is an in-process Transport. Subscribers that fall behind
// by more than the buffer lose messages; players recover via REQUEST_SYNC.
type MemoryTransport struct {
	mu       sync.Mutex
	buffer   int
	channels map[string]map[*memorySubscription]struct{}
}

// NewMemoryTransport creates an empty hub. buffer <= 0 selects the default.
func NewMemoryTransport(buffer int) *MemoryTransport {
	if buffer <= 0 {
		buffer = defaultMemoryBuffer
	}
	return &MemoryTransport{
		buffer:   buffer,
		channels: make(map[string]map[*memorySubscription]struct{}),
	}
}

type memorySubscription struct {
	hub     *MemoryTransport
	channel string
	ch      chan []byte
}

func (s *memorySubscription) Messages() <-chan []byte { return s.ch }

func (s *memorySubscription) Close() error {
	s.hub.unsubscribe(s)
	return nil
}

// Subscribe registers a new subscriber on channel.
func (t *MemoryTransport) Subscribe(_ context.Context, channel string) (Subscription, error) {
	sub := &memorySubscription{hub: t, channel: channel, ch: make(chan []byte, t.buffer)}
	t.mu.Lock()
	subs, ok := t.channels[channel]
	if !ok {
		subs = make(map[*memorySubscription]struct{})
		t.channels[channel] = subs
	}
	subs[sub] = struct{}{}
	t.mu.Unlock()
	return sub, nil
}

func (t *MemoryTransport) unsubscribe(sub *memorySubscription) {
	t.mu.Lock()
	defer t.mu.Unlock()
	subs := t.channels[sub.channel]
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.ch)
	if len(subs) == 0 {
		delete(t.channels, sub.channel)
	}
}

// Publish delivers payload to every subscriber of channel, including the
// publisher's own subscription.
func (t *MemoryTransport) Publish(_ context.Context, channel string, payload []byte) error {
	data := append([]byte(nil), payload...)
	t.mu.Lock()
	for sub := range t.channels[channel] {
		select {
		case sub.ch <- data:
		default:
			// Lagging subscriber; drop.
		}
	}
	t.mu.Unlock()
	return nil
}

// Subscribers returns the number of live subscriptions on channel.
func (t *MemoryTransport) Subscribers(channel string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.channels[channel])
}
