// Package stream owns the websocket session to the PumpPortal feed.
// It reconnects forever with jittered exponential backoff, probes
// liveness with pings, and republishes raw messages untouched; all
// knowledge of payload shapes lives in the normalizer.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/a2-stuff/pumpTUI/internal/domain"
	"github.com/a2-stuff/pumpTUI/internal/observability"
)

// Config configures stream connection behavior.
type Config struct {
	// Endpoint is the websocket feed URL.
	Endpoint string
	// APIKey is sent as a query credential when set.
	APIKey string
	// ReconnectSeed is the initial delay before a reconnect attempt.
	ReconnectSeed time.Duration
	// ReconnectMax is the maximum delay between reconnect attempts.
	ReconnectMax time.Duration
	// PingInterval is the interval for liveness probes.
	PingInterval time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
	// MessageBuffer is the raw message channel capacity.
	MessageBuffer int
}

// DefaultConfig returns default stream configuration.
func DefaultConfig() Config {
	return Config{
		Endpoint:      "wss://pumpportal.fun/api/data",
		ReconnectSeed: 1 * time.Second,
		ReconnectMax:  30 * time.Second,
		PingInterval:  10 * time.Second,
		ReadTimeout:   60 * time.Second,
		WriteTimeout:  10 * time.Second,
		MessageBuffer: 1024,
	}
}

// errNotConnected reports a send attempted between sessions. Subscribe
// intents recorded before the first connect are replayed on connect, so
// callers treat this as success.
var errNotConnected = errors.New("not connected")

// failedDialThreshold is the reconnect attempt within one outage at
// which a Failed lifecycle event is emitted. Reconnecting continues
// regardless; the event is a signal for operators, not a give-up.
const failedDialThreshold = 5

// RawMessage is one unparsed feed frame.
type RawMessage struct {
	Data       []byte
	ReceivedAt time.Time
}

// Client maintains exactly one logical feed session at a time.
type Client struct {
	config  Config
	log     *zap.SugaredLogger
	metrics *observability.Metrics

	conn   *websocket.Conn
	connMu sync.Mutex

	msgs      chan RawMessage
	lifecycle chan domain.LifecycleEvent

	// subscription state replayed after every reconnect
	subNewTokens  bool
	subMigrations bool
	trackedMints  map[string]struct{}
	subMu         sync.Mutex

	latencyNs  atomic.Int64
	lastPingAt atomic.Int64 // UnixNano of the last ping sent

	closed atomic.Bool
	done   chan struct{}
}

// New creates a stream client. Run must be called to start the session
// loop; metrics may be nil.
func New(config Config, log *zap.SugaredLogger, metrics *observability.Metrics) *Client {
	return &Client{
		config:       config,
		log:          log,
		metrics:      metrics,
		msgs:         make(chan RawMessage, config.MessageBuffer),
		lifecycle:    make(chan domain.LifecycleEvent, 16),
		trackedMints: make(map[string]struct{}),
		done:         make(chan struct{}),
	}
}

// Messages returns the raw message stream. The channel is closed when
// Run returns.
func (c *Client) Messages() <-chan RawMessage { return c.msgs }

// Lifecycle returns connection state change notifications. Events are
// dropped rather than blocking when the consumer lags.
func (c *Client) Lifecycle() <-chan domain.LifecycleEvent { return c.lifecycle }

// Latency returns the most recent ping round-trip estimate.
func (c *Client) Latency() time.Duration {
	return time.Duration(c.latencyNs.Load())
}

// SubscribeNewTokens asks the feed for token creation events. The
// subscription survives reconnects.
func (c *Client) SubscribeNewTokens() error {
	c.subMu.Lock()
	c.subNewTokens = true
	c.subMu.Unlock()
	return c.sendOrDefer(map[string]interface{}{"method": "subscribeNewToken"})
}

// SubscribeMigrations asks the feed for migration events. The
// subscription survives reconnects.
func (c *Client) SubscribeMigrations() error {
	c.subMu.Lock()
	c.subMigrations = true
	c.subMu.Unlock()
	return c.sendOrDefer(map[string]interface{}{"method": "subscribeMigration"})
}

// SubscribeTokenTrades asks the feed for trade events on the given
// mints. Tracked mints are resubscribed after reconnect.
func (c *Client) SubscribeTokenTrades(mints ...string) error {
	if len(mints) == 0 {
		return nil
	}
	c.subMu.Lock()
	for _, m := range mints {
		c.trackedMints[m] = struct{}{}
	}
	c.subMu.Unlock()
	return c.sendOrDefer(map[string]interface{}{"method": "subscribeTokenTrade", "keys": mints})
}

// sendOrDefer sends immediately when connected; otherwise the recorded
// subscription intent is replayed on the next (re)connect.
func (c *Client) sendOrDefer(payload map[string]interface{}) error {
	if err := c.send(payload); err != nil && !errors.Is(err, errNotConnected) {
		return err
	}
	return nil
}

// Run drives the session loop until ctx is cancelled or Close is
// called. Reconnection is never fatal; Run only returns on shutdown.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.msgs)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.ReconnectSeed
	bo.MaxInterval = c.config.ReconnectMax
	bo.Multiplier = 2.0
	bo.RandomizationFactor = 0.2
	bo.MaxElapsedTime = 0 // retry indefinitely

	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.closed.Load() {
			return nil
		}

		if err := c.connect(ctx); err != nil {
			if c.closed.Load() || ctx.Err() != nil {
				return ctx.Err()
			}
			attempt++
			c.log.Warnw("feed dial failed", "attempt", attempt, "error", err)
			c.noteReconnect("", attempt)
			if attempt == failedDialThreshold {
				c.emitLifecycle(domain.ConnFailed, "", attempt)
			}
			if !c.sleep(ctx, bo.NextBackOff()) {
				return ctx.Err()
			}
			continue
		}
		if c.closed.Load() || ctx.Err() != nil {
			c.closeConn()
			return ctx.Err()
		}

		sessionID := uuid.NewString()
		c.emitLifecycle(domain.ConnConnected, sessionID, attempt)
		attempt = 0
		bo.Reset()
		if c.metrics != nil {
			c.metrics.ConnectionState.Set(1)
		}
		c.log.Infow("feed connected", "session", sessionID, "endpoint", c.config.Endpoint)

		err := c.readSession(ctx, sessionID)
		if c.metrics != nil {
			c.metrics.ConnectionState.Set(0)
		}
		if c.closed.Load() || ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warnw("feed session ended, reconnecting", "session", sessionID, "error", err)

		// Announce the outage and pay the backoff delay up front, even
		// when the redial would succeed immediately; a flapping upstream
		// must never see a hot reconnect loop.
		attempt = 1
		c.noteReconnect(sessionID, attempt)
		if !c.sleep(ctx, bo.NextBackOff()) {
			return ctx.Err()
		}
	}
}

// Close shuts the client down. Safe to call multiple times.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return c.conn.Close()
	}
	return nil
}

// connect performs one dial plus subscription replay. A resubscribe
// failure tears the fresh connection back down.
func (c *Client) connect(ctx context.Context) error {
	if err := c.dial(ctx); err != nil {
		return err
	}
	if err := c.resubscribe(); err != nil {
		c.closeConn()
		return fmt.Errorf("resubscribe: %w", err)
	}
	return nil
}

// noteReconnect counts the attempt and emits a Reconnecting event.
func (c *Client) noteReconnect(sessionID string, attempt int) {
	if c.metrics != nil {
		c.metrics.Reconnects.Inc()
	}
	c.emitLifecycle(domain.ConnReconnecting, sessionID, attempt)
}

// sleep waits for d unless shutdown interrupts; false means stop.
func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-c.done:
		return false
	case <-time.After(d):
		return true
	}
}

func (c *Client) dial(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	endpoint := c.config.Endpoint
	if c.config.APIKey != "" {
		endpoint = fmt.Sprintf("%s?api-key=%s", endpoint, c.config.APIKey)
	}

	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	conn.SetPongHandler(func(string) error {
		sent := c.lastPingAt.Load()
		if sent > 0 {
			rtt := time.Since(time.Unix(0, sent))
			c.latencyNs.Store(int64(rtt))
			if c.metrics != nil {
				c.metrics.PingLatency.Observe(rtt.Seconds())
			}
		}
		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		return nil
	})

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	return nil
}

// resubscribe replays the subscription state on a fresh connection.
func (c *Client) resubscribe() error {
	c.subMu.Lock()
	subNew := c.subNewTokens
	subMig := c.subMigrations
	mints := make([]string, 0, len(c.trackedMints))
	for m := range c.trackedMints {
		mints = append(mints, m)
	}
	c.subMu.Unlock()

	if subNew {
		if err := c.send(map[string]interface{}{"method": "subscribeNewToken"}); err != nil {
			return err
		}
	}
	if subMig {
		if err := c.send(map[string]interface{}{"method": "subscribeMigration"}); err != nil {
			return err
		}
	}
	if len(mints) > 0 {
		if err := c.send(map[string]interface{}{"method": "subscribeTokenTrade", "keys": mints}); err != nil {
			return err
		}
	}
	return nil
}

// readSession pumps messages from one websocket session until it dies.
func (c *Client) readSession(ctx context.Context, sessionID string) error {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return errNotConnected
	}

	pingDone := make(chan struct{})
	defer close(pingDone)
	go c.pingLoop(conn, pingDone)

	conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			c.closeConn()
			return err
		}
		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		if c.metrics != nil {
			c.metrics.MessagesReceived.Inc()
		}

		// Block until the consumer takes it; the buffer absorbs
		// bursts and nothing downstream is allowed to be lossy.
		select {
		case c.msgs <- RawMessage{Data: message, ReceivedAt: time.Now()}:
		case <-ctx.Done():
			c.closeConn()
			return ctx.Err()
		case <-c.done:
			c.closeConn()
			return nil
		}
	}
}

// pingLoop sends liveness probes; the pong handler computes the RTT.
func (c *Client) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-c.done:
			return
		case <-ticker.C:
			c.lastPingAt.Store(time.Now().UnixNano())
			// WriteControl is safe to call concurrently with the
			// subscribe writes going through send.
			deadline := time.Now().Add(c.config.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				// Reader will observe the dead connection and
				// drive the reconnect path.
				return
			}
		}
	}
}

func (c *Client) send(payload interface{}) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return errNotConnected
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal subscribe payload: %w", err)
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}
	return nil
}

func (c *Client) closeConn() {
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()
}

func (c *Client) emitLifecycle(state domain.ConnState, sessionID string, attempt int) {
	ev := domain.LifecycleEvent{
		State:     state,
		SessionID: sessionID,
		Attempt:   attempt,
		Latency:   c.Latency(),
		At:        time.Now(),
	}
	select {
	case c.lifecycle <- ev:
	default:
		// Lifecycle is advisory; never block the session loop on a
		// slow consumer.
	}
}
