package gamesync

import (
	"context"
	"errors"
)

// ErrClosed is returned when using a closed transport, subscription or session.
var ErrClosed = errors.New("gamesync: closed")

// Transport is a shared broadcast channel. Every subscriber to a channel
// receives every payload published to it, in publish order per publisher.
// Delivery is best effort.
type Transport interface {
	Subscribe(ctx context.Context, channel string) (Subscription, error)
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Subscription is one participant's view of a channel. Messages is closed
// once the subscription ends.
type Subscription interface {
	Messages() <-chan []byte
	Close() error
}

// ChannelName returns the broadcast channel for a game.
func ChannelName(gameID string) string {
	return "game_" + gameID
}
