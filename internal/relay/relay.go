// Package relay serves the realtime broadcast channel over WebSocket so
// browser and CLI clients can share a game channel through the server.
package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mmynk/tripshare/internal/gamesync"
	"github.com/mmynk/tripshare/internal/metrics"
)

const writeTimeout = 10 * time.Second

// Relay bridges WebSocket connections onto a gamesync.Transport.
//
// Every valid frame a client sends is published to the channel and every
// frame on the channel is written to all other clients. State frames are
// accepted only from the connection holding the channel's host claim; the
// first connection to send state takes the claim and keeps it until it
// disconnects.
type Relay struct {
	transport gamesync.Transport
	logger    *slog.Logger
	metrics   *metrics.Metrics
	origins   []string

	mu    sync.Mutex
	hosts map[string]string
}

// New creates a relay. origins are passed to websocket.AcceptOptions;
// empty means same-origin only.
func New(transport gamesync.Transport, logger *slog.Logger, m *metrics.Metrics, origins ...string) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		transport: transport,
		logger:    logger,
		metrics:   m,
		origins:   origins,
		hosts:     make(map[string]string),
	}
}

// Mount registers the relay endpoint on r.
func (rl *Relay) Mount(r chi.Router) {
	r.Get("/realtime/{channel}", rl.ServeHTTP)
}

type connection struct {
	id      string
	channel string
	conn    *websocket.Conn

	mu     sync.Mutex
	sender string
}

func (c *connection) setSender(sender string) {
	c.mu.Lock()
	if c.sender == "" {
		c.sender = sender
	}
	c.mu.Unlock()
}

func (c *connection) getSender() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sender
}

func (rl *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	channel := chi.URLParam(r, "channel")
	if channel == "" {
		http.Error(w, "channel is required", http.StatusBadRequest)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: rl.origins})
	if err != nil {
		rl.logger.Warn("WebSocket accept failed", "channel", channel, "error", err)
		return
	}
	ws.SetReadLimit(gamesync.MaxFrameBytes)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub, err := rl.transport.Subscribe(ctx, channel)
	if err != nil {
		rl.logger.Error("Failed to subscribe", "channel", channel, "error", err)
		ws.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer sub.Close()

	c := &connection{id: uuid.NewString(), channel: channel, conn: ws}
	rl.metrics.RelayConnected(1)
	defer rl.metrics.RelayConnected(-1)
	defer rl.releaseHost(c)
	rl.logger.Debug("Relay client connected", "channel", channel, "conn", c.id)

	go rl.writeLoop(ctx, cancel, c, sub)

	err = rl.readLoop(ctx, c)
	status := websocket.CloseStatus(err)
	if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
		rl.logger.Debug("Relay client read failed", "channel", channel, "conn", c.id, "error", err)
	}
	ws.Close(websocket.StatusNormalClosure, "")
}

func (rl *Relay) readLoop(ctx context.Context, c *connection) error {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return err
		}

		frame, err := gamesync.Decode(data)
		if err != nil {
			rl.metrics.RelayFrame("rejected")
			rl.logger.Debug("Rejected relay frame", "channel", c.channel, "error", err)
			continue
		}
		c.setSender(frame.Sender)

		if typ := frame.Message.Type(); gamesync.IsHostOnly(typ) && !rl.mayHost(c, typ) {
			rl.metrics.RelayFrame("not_host")
			rl.logger.Warn("Dropped host frame from non-host connection", "channel", c.channel, "conn", c.id, "type", typ)
			continue
		}

		if err := rl.transport.Publish(ctx, c.channel, data); err != nil {
			rl.logger.Error("Failed to publish relay frame", "channel", c.channel, "error", err)
			return err
		}
		rl.metrics.RelayFrame("forwarded")
	}
}

func (rl *Relay) writeLoop(ctx context.Context, cancel context.CancelFunc, c *connection, sub gamesync.Subscription) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-sub.Messages():
			if !ok {
				return
			}
			if sender := c.getSender(); sender != "" && senderOf(data) == sender {
				continue
			}
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(wctx, websocket.MessageText, data)
			wcancel()
			if err != nil {
				return
			}
		}
	}
}

func senderOf(data []byte) string {
	var env struct {
		Sender string `json:"sender"`
	}
	_ = json.Unmarshal(data, &env)
	return env.Sender
}

func (rl *Relay) claimHost(c *connection) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	holder, ok := rl.hosts[c.channel]
	if !ok {
		rl.hosts[c.channel] = c.id
		rl.logger.Info("Host claimed channel", "channel", c.channel, "conn", c.id)
		return true
	}
	return holder == c.id
}

// mayHost reports whether c may send a host-only frame of type typ. State
// claims a free channel; a terminate needs the claim already held.
func (rl *Relay) mayHost(c *connection, typ gamesync.MessageType) bool {
	if gamesync.IsState(typ) {
		return rl.claimHost(c)
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.hosts[c.channel] == c.id
}

func (rl *Relay) releaseHost(c *connection) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.hosts[c.channel] == c.id {
		delete(rl.hosts, c.channel)
		rl.logger.Info("Host released channel", "channel", c.channel, "conn", c.id)
	}
}

// HostClaimed reports whether some connection holds the host claim for
// channel.
func (rl *Relay) HostClaimed(channel string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	_, ok := rl.hosts[channel]
	return ok
}
