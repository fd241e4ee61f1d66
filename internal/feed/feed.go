package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// readWait is the time allowed between frames before the connection is
	// considered dead. Pongs extend it.
	readWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than readWait.
	pingPeriod = 30 * time.Second

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 5 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second

	handshakeTimeout = 15 * time.Second
)

// AvailabilityChecker reports whether the monitored coin is currently listed
// on the exchange. Feeds for unlisted markets wait instead of hammering a
// WebSocket that has nothing to say.
type AvailabilityChecker interface {
	PairListed(ctx context.Context) (bool, error)
}

// protocol is the exchange-specific half of a feed: what to send once the
// socket is up, and how to turn raw frames into handler calls.
type protocol interface {
	subscribe(conn *websocket.Conn) error
	handle(ctx context.Context, raw []byte)
}

// runner owns the connection lifecycle shared by all exchange feeds: dial,
// subscribe, read loop, ping keepalive, and reconnection with exponential
// backoff.
type runner struct {
	name          string
	wsURL         string
	proto         protocol
	avail         AvailabilityChecker
	checkInterval time.Duration
	logger        *slog.Logger
}

func newRunner(name, wsURL string, proto protocol, avail AvailabilityChecker, checkInterval time.Duration, logger *slog.Logger) *runner {
	return &runner{
		name:          name,
		wsURL:         wsURL,
		proto:         proto,
		avail:         avail,
		checkInterval: checkInterval,
		logger:        logger.With(slog.String("component", name+"_feed")),
	}
}

// Run connects and processes messages until ctx is cancelled, reconnecting
// with exponential backoff on any failure. The backoff resets once a
// connection gets as far as a successful subscribe.
func (r *runner) Run(ctx context.Context) error {
	if err := r.waitListed(ctx); err != nil {
		return err
	}

	delay := reconnectDelay
	for {
		subscribed := false
		err := r.runConnection(ctx, &subscribed)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if subscribed {
			delay = reconnectDelay
		}

		r.logger.Warn("feed disconnected, reconnecting",
			slog.Duration("retry_in", delay),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// waitListed blocks until the availability checker confirms the listing.
// A nil checker means the exchange is assumed live.
func (r *runner) waitListed(ctx context.Context) error {
	if r.avail == nil {
		return nil
	}
	interval := r.checkInterval
	if interval <= 0 {
		interval = time.Minute
	}
	for {
		listed, err := r.avail.PairListed(ctx)
		if err != nil {
			r.logger.Warn("availability check failed", slog.String("error", err.Error()))
		} else if listed {
			r.logger.Info("market listed, starting feed")
			return nil
		} else {
			r.logger.Debug("market not listed yet, waiting")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

func (r *runner) runConnection(ctx context.Context, subscribed *bool) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, r.wsURL, nil)
	if err != nil {
		return fmt.Errorf("feed: %s: connect: %w", r.name, err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readWait))
		return nil
	})

	if err := r.proto.subscribe(conn); err != nil {
		return fmt.Errorf("feed: %s: subscribe: %w", r.name, err)
	}
	*subscribed = true
	r.logger.Info("feed subscribed", slog.String("url", r.wsURL))

	// The pinger also closes the connection on ctx cancellation, which
	// unblocks ReadMessage below.
	stop := make(chan struct{})
	defer close(stop)
	go r.pingLoop(ctx, conn, stop)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("feed: %s: read: %w", r.name, err)
		}
		r.proto.handle(ctx, raw)
	}
}

func (r *runner) pingLoop(ctx context.Context, conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close()
			return
		case <-stop:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}

// sendJSON writes one JSON control message with the standard write deadline.
func sendJSON(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}
