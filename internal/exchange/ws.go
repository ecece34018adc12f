// ws.go implements the venue's WebSocket feeds: subscribe to top_of_book,
// account, and positions channels, producing the dispatcher's unified
// Event stream.
//
// One feed instance is run per logical channel (public top-of-book,
// private account/position/order). Both auto-reconnect with exponential
// backoff (1s → 30s max) and re-subscribe on reconnection. A read deadline
// (90s) ensures silent server failures are detected within ~2 missed pings.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"quoter/pkg/types"
)

const (
	pingInterval     = 50 * time.Second
	readTimeout      = 90 * time.Second
	maxReconnectWait = 30 * time.Second
	writeTimeout     = 10 * time.Second
)

// WSFeed manages a single WebSocket connection and pushes decoded events
// into the shared, bounded event channel the dispatcher reads from.
// Producers never touch engine state directly — only this channel.
type WSFeed struct {
	url      string
	channels []string
	auth     *Auth // nil for the public top-of-book channel

	conn   *websocket.Conn
	connMu sync.Mutex

	events chan<- types.Event
	logger *slog.Logger
}

// NewWSFeed creates a feed subscribing to channels on connect. auth is nil
// for the public top-of-book feed and non-nil for the private account feed.
func NewWSFeed(wsURL string, channels []string, auth *Auth, events chan<- types.Event, logger *slog.Logger) *WSFeed {
	return &WSFeed{
		url:      wsURL,
		channels: channels,
		auth:     auth,
		events:   events,
		logger:   logger.With("component", "ws", "channels", channels),
	}
}

// Run connects and maintains the WebSocket connection with auto-reconnect.
// Blocks until ctx is cancelled; the read loop checks the shutdown signal
// between frames, not mid-await.
func (f *WSFeed) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("websocket disconnected, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

// Close gracefully closes the connection.
func (f *WSFeed) Close() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

func (f *WSFeed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()

	defer func() {
		f.connMu.Lock()
		conn.Close()
		f.conn = nil
		f.connMu.Unlock()
	}()

	if err := f.sendSubscribe(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	f.logger.Info("websocket connected")

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go f.pingLoop(pingCtx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		f.dispatchMessage(ctx, msg)
	}
}

func (f *WSFeed) sendSubscribe() error {
	msg := struct {
		Operation string            `json:"operation"`
		Channels  []string          `json:"channels"`
		Auth      map[string]string `json:"auth,omitempty"`
	}{Operation: "subscribe", Channels: f.channels}

	if f.auth != nil {
		msg.Auth = f.auth.WSAuthPayload()
	}
	return f.writeJSON(msg)
}

func (f *WSFeed) dispatchMessage(ctx context.Context, data []byte) {
	var envelope struct {
		EventType string `json:"event_type"`
		TMs       uint64 `json:"t_ms"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		f.logger.Debug("ignoring non-json ws message", "data", string(data))
		return
	}

	switch envelope.EventType {
	case "book_ticker":
		var tick types.TopOfBookTick
		if err := json.Unmarshal(data, &tick); err != nil {
			f.logger.Error("decode book_ticker", "error", err)
			return
		}
		// Backpressure policy: book-ticks favor freshness over completeness —
		// drop the oldest queued tick rather than block the socket read loop.
		f.sendDropOldest(types.Event{Kind: types.EventBookTicker, TMs: envelope.TMs, Book: &tick})

	case "account_update":
		var acc types.AccountUpdate
		if err := json.Unmarshal(data, &acc); err != nil {
			f.logger.Error("decode account_update", "error", err)
			return
		}
		f.sendBlocking(ctx, types.Event{Kind: types.EventAccountUpdate, TMs: envelope.TMs, Account: &acc})

	case "position":
		var pos types.PositionUpdate
		if err := json.Unmarshal(data, &pos); err != nil {
			f.logger.Error("decode position", "error", err)
			return
		}
		f.sendBlocking(ctx, types.Event{Kind: types.EventPosition, TMs: envelope.TMs, Position: &pos})

	case "order":
		var ord types.OrderUpdate
		if err := json.Unmarshal(data, &ord); err != nil {
			f.logger.Error("decode order", "error", err)
			return
		}
		f.sendBlocking(ctx, types.Event{Kind: types.EventOrder, TMs: envelope.TMs, Order: &ord})

	case "config_update":
		f.sendBlocking(ctx, types.Event{Kind: types.EventConfigUpdate, TMs: envelope.TMs, Config: &types.ConfigUpdate{RawJSON: data}})

	default:
		f.logger.Debug("unrecognized ws event type, logging and dropping", "type", envelope.EventType)
		f.sendDropOldest(types.Event{Kind: types.EventOther, TMs: envelope.TMs, RawTag: envelope.EventType})
	}
}

func (f *WSFeed) sendBlocking(ctx context.Context, evt types.Event) {
	select {
	case f.events <- evt:
	case <-ctx.Done():
	}
}

func (f *WSFeed) sendDropOldest(evt types.Event) {
	select {
	case f.events <- evt:
		return
	default:
	}
	select {
	case <-f.events:
	default:
	}
	select {
	case f.events <- evt:
	default:
	}
}

func (f *WSFeed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.writeMessage(websocket.TextMessage, []byte("PING")); err != nil {
				f.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (f *WSFeed) writeJSON(v interface{}) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteJSON(v)
}

func (f *WSFeed) writeMessage(msgType int, data []byte) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteMessage(msgType, data)
}
