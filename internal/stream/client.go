package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Client is a single connection to the market event feed.
type Client interface {
	// Connect establishes the WebSocket connection.
	Connect(ctx context.Context) error

	// Close gracefully closes the connection.
	Close() error

	// Send writes raw bytes to the connection.
	Send(data []byte) error

	// Subscribe requests the given channels for the given markets.
	Subscribe(channels []string, marketAppIDs []int64) error

	// Unsubscribe drops the given subscription IDs.
	Unsubscribe(sids []int64) error

	// Events returns decoded feed frames, data messages and command
	// replies alike. Undecodable frames are dropped, not delivered.
	Events() <-chan Event

	// Errors returns a channel of connection errors. A stale connection
	// surfaces as ErrStaleConnection.
	Errors() <-chan error

	// IsConnected returns current connection state.
	IsConnected() bool

	// Dropped returns the count of frames dropped so far, either
	// undecodable or shed on a full event buffer.
	Dropped() int64
}

type client struct {
	cfg    ClientConfig
	logger *slog.Logger

	conn *websocket.Conn

	events chan Event
	errs   chan error
	done   chan struct{}

	// Write serialization
	writeMu sync.Mutex

	nextID  atomic.Int64
	dropped atomic.Int64

	mu        sync.RWMutex
	connected bool
	closed    bool
}

// NewClient creates a new event feed client.
func NewClient(cfg ClientConfig, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &client{
		cfg:    cfg,
		logger: logger,
		events: make(chan Event, cfg.BufferSize),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
}

// Connect dials the feed and starts the read and keepalive loops. The read
// deadline is armed immediately; every server ping or pong pushes it out by
// PingTimeout, so a silent connection times out on its own.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	c.mu.Unlock()

	header := http.Header{}
	header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		header.Set("X-API-Key", c.cfg.APIKey)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		return err
	}

	conn.SetReadDeadline(time.Now().Add(c.cfg.PingTimeout))

	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(c.cfg.PingTimeout))
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(c.cfg.PingTimeout))
		return nil
	})

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readLoop()
	go c.keepaliveLoop()

	c.logger.Debug("event feed connected", "url", c.cfg.URL)

	return nil
}

// Close gracefully closes the connection.
func (c *client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	c.mu.Unlock()

	close(c.done)

	if c.conn != nil {
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		return c.conn.Close()
	}

	return nil
}

// Send writes raw bytes to the connection.
func (c *client) Send(data []byte) error {
	c.mu.RLock()
	if !c.connected {
		c.mu.RUnlock()
		return ErrNotConnected
	}
	c.mu.RUnlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Subscribe requests the given channels for the given markets.
func (c *client) Subscribe(channels []string, marketAppIDs []int64) error {
	return c.sendCommand("subscribe", SubscribeParams{
		Channels:     channels,
		MarketAppIDs: marketAppIDs,
	})
}

// Unsubscribe drops the given subscription IDs.
func (c *client) Unsubscribe(sids []int64) error {
	return c.sendCommand("unsubscribe", UnsubscribeParams{SIDs: sids})
}

func (c *client) sendCommand(cmd string, params interface{}) error {
	data, err := json.Marshal(Command{
		ID:     c.nextID.Add(1),
		Cmd:    cmd,
		Params: params,
	})
	if err != nil {
		return err
	}
	return c.Send(data)
}

// Events returns the decoded event channel.
func (c *client) Events() <-chan Event {
	return c.events
}

// Errors returns the errors channel.
func (c *client) Errors() <-chan error {
	return c.errs
}

// IsConnected returns the current connection state.
func (c *client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Dropped returns the count of frames dropped so far.
func (c *client) Dropped() int64 {
	return c.dropped.Load()
}

// readLoop decodes frames into envelopes and hands them to the event
// channel. A read-deadline expiry means no ping arrived within PingTimeout
// and is reported as ErrStaleConnection.
func (c *client) readLoop() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			// Ignore errors after Close() is called
			select {
			case <-c.done:
				return
			default:
			}

			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				c.logger.Warn("no ping within deadline, connection stale",
					"timeout", c.cfg.PingTimeout,
				)
				err = ErrStaleConnection
			}
			select {
			case c.errs <- err:
			default:
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.dropped.Add(1)
			c.logger.Warn("undecodable feed frame", "error", err)
			continue
		}

		select {
		case c.events <- Event{Envelope: env, ReceivedAt: receivedAt}:
		case <-c.done:
			return
		default:
			c.dropped.Add(1)
			c.logger.Warn("event buffer full, dropping frame", "type", env.Type)
		}
	}
}

// keepaliveLoop pings the server so an idle but healthy connection keeps
// producing pongs that extend the read deadline.
func (c *client) keepaliveLoop() {
	interval := c.cfg.PingTimeout / 3
	if interval <= 0 {
		interval = 20 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()
			if conn == nil {
				continue
			}

			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				c.logger.Debug("keepalive ping failed", "error", err)
			}
		}
	}
}
