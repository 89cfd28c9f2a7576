package gamesync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/coder/websocket"
)

// MaxFrameBytes bounds a single sync frame. Full states carry question
// images, which may be inlined data URLs.
const MaxFrameBytes = 8 << 20

// ErrNotSubscribed is returned by WebSocketTransport.Publish when there is
// no open connection for the channel.
var ErrNotSubscribed = errors.New("gamesync: not subscribed to channel")

// WebSocketTransport talks to a relay server (see internal/relay) at
// {baseURL}/realtime/{channel}. Publishing requires an open subscription on
// the same channel because both share one connection.
type WebSocketTransport struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.Mutex
	conns map[string]*websocket.Conn
}

// NewWebSocketTransport accepts an http(s) or ws(s) base URL.
func NewWebSocketTransport(baseURL string, httpClient *http.Client) *WebSocketTransport {
	baseURL = strings.TrimRight(baseURL, "/")
	baseURL = strings.Replace(baseURL, "http://", "ws://", 1)
	baseURL = strings.Replace(baseURL, "https://", "wss://", 1)
	return &WebSocketTransport{
		baseURL:    baseURL,
		httpClient: httpClient,
		conns:      make(map[string]*websocket.Conn),
	}
}

type wsSubscription struct {
	t       *WebSocketTransport
	channel string
	conn    *websocket.Conn
	out     chan []byte
	cancel  context.CancelFunc
	once    sync.Once
}

func (t *WebSocketTransport) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	endpoint := t.baseURL + "/realtime/" + url.PathEscape(channel)
	conn, _, err := websocket.Dial(ctx, endpoint, &websocket.DialOptions{HTTPClient: t.httpClient})
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", endpoint, err)
	}
	conn.SetReadLimit(MaxFrameBytes)

	t.mu.Lock()
	if old, ok := t.conns[channel]; ok {
		_ = old.Close(websocket.StatusNormalClosure, "replaced")
	}
	t.conns[channel] = conn
	t.mu.Unlock()

	readCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub := &wsSubscription{
		t:       t,
		channel: channel,
		conn:    conn,
		out:     make(chan []byte, defaultMemoryBuffer),
		cancel:  cancel,
	}
	go sub.pump(readCtx)
	return sub, nil
}

func (s *wsSubscription) pump(ctx context.Context) {
	defer close(s.out)
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			return
		}
		select {
		case s.out <- data:
		case <-ctx.Done():
			return
		}
	}
}

func (s *wsSubscription) Messages() <-chan []byte { return s.out }

func (s *wsSubscription) Close() error {
	var err error
	s.once.Do(func() {
		s.t.mu.Lock()
		if s.t.conns[s.channel] == s.conn {
			delete(s.t.conns, s.channel)
		}
		s.t.mu.Unlock()
		s.cancel()
		err = s.conn.Close(websocket.StatusNormalClosure, "")
	})
	return err
}

// Publish writes payload on the channel's connection. The relay does not
// echo frames back to their sender.
func (t *WebSocketTransport) Publish(ctx context.Context, channel string, payload []byte) error {
	t.mu.Lock()
	conn, ok := t.conns[channel]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotSubscribed, channel)
	}
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}
