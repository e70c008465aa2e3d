package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	handshakeTimeout = 10 * time.Second
	maxMessageSize   = 64 * 1024

	DefaultBackoff   = 5 * time.Second
	DefaultQueueSize = 256
)

var ErrInvalidEndpoint = errors.New("invalid websocket endpoint")

type Config struct {
	SourceURL string
	SinkURL   string
	Backoff   time.Duration
	QueueSize int
}

// Bridge forwards telemetry from a device-side websocket (the source) to the
// aggregation server's ingest socket (the sink). Each side reconnects on its
// own; messages read while the sink is away wait in a bounded queue.
type Bridge struct {
	cfg    Config
	dialer *websocket.Dialer
	queue  *Queue
	source *side
	sink   *side

	received  atomic.Uint64
	forwarded atomic.Uint64
	discarded atomic.Uint64
	ignored   atomic.Uint64
}

func New(cfg Config) (*Bridge, error) {
	if err := ValidateEndpoint(cfg.SourceURL); err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	if err := ValidateEndpoint(cfg.SinkURL); err != nil {
		return nil, fmt.Errorf("sink: %w", err)
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}

	return &Bridge{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
		},
		queue:  NewQueue(cfg.QueueSize),
		source: newSide("source", cfg.SourceURL),
		sink:   newSide("sink", cfg.SinkURL),
	}, nil
}

// ValidateEndpoint accepts absolute ws:// and wss:// URLs.
func ValidateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%w: %q must use ws or wss", ErrInvalidEndpoint, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: %q has no host", ErrInvalidEndpoint, raw)
	}
	return nil
}

// Run drives both sides until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	log.WithFields(log.Fields{
		"source":  b.cfg.SourceURL,
		"sink":    b.cfg.SinkURL,
		"backoff": b.cfg.Backoff,
		"queue":   b.cfg.QueueSize,
	}).Info("🚀 Relay bridge starting")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		b.maintain(ctx, b.source, b.pumpSource)
	}()
	go func() {
		defer wg.Done()
		b.maintain(ctx, b.sink, b.pumpSink)
	}()
	wg.Wait()

	log.Info("Relay bridge stopped")
}

// maintain keeps one side connected: dial, pump until the connection ends,
// wait out the backoff, repeat. It returns only when ctx is cancelled.
func (b *Bridge) maintain(ctx context.Context, s *side, pump func(context.Context, *websocket.Conn) error) {
	logger := log.WithField("side", s.name)
	for {
		s.set(StateConnecting)
		conn, _, err := b.dialer.DialContext(ctx, s.endpoint, nil)
		if err == nil {
			s.set(StateConnected)
			logger.WithField("endpoint", s.endpoint).Info("✅ Connected")
			err = pump(ctx, conn)
		}

		if ctx.Err() != nil {
			s.set(StateDisconnected)
			return
		}
		s.fail(err)
		logger.WithError(err).Warnf("Connection lost, retrying in %v", b.cfg.Backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(b.cfg.Backoff):
		}
	}
}

// pumpSource reads device frames, translates them and queues the result.
func (b *Bridge) pumpSource(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()
	stop := closeOnCancel(ctx, conn)
	defer stop()

	conn.SetReadLimit(maxMessageSize)
	keepalive(conn)
	done := make(chan struct{})
	defer close(done)
	go pinger(conn, done)

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		if messageType != websocket.TextMessage {
			continue
		}
		b.received.Add(1)

		out, forward, err := Translate(data)
		if err != nil {
			b.discarded.Add(1)
			log.WithError(err).Warn("Discarding source frame")
			continue
		}
		if !forward {
			b.ignored.Add(1)
			log.WithField("frame", string(data)).Debug("Ignoring non-telemetry source frame")
			continue
		}
		if b.queue.Push(out) {
			log.WithField("depth", b.queue.Len()).Warn("Forward queue full, dropped oldest message")
		}
	}
}

// pumpSink writes queued messages in order. A message leaves the queue only
// after a successful write, so whatever was pending when the sink dropped is
// sent first after it reconnects.
func (b *Bridge) pumpSink(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()
	stop := closeOnCancel(ctx, conn)
	defer stop()

	conn.SetReadLimit(maxMessageSize)
	keepalive(conn)
	closed := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				closed <- err
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		if seq, data, ok := b.queue.Peek(); ok {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return err
			}
			b.queue.Ack(seq)
			b.forwarded.Add(1)
			continue
		}

		select {
		case <-b.queue.Notify():
		case err := <-closed:
			return err
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return err
			}
		}
	}
}

func keepalive(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
}

func pinger(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// closeOnCancel closes c when ctx ends, unblocking any pending read.
func closeOnCancel(ctx context.Context, c io.Closer) (stop func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// Status is a point-in-time view of the bridge.
type Status struct {
	Source     SideStatus `json:"source"`
	Sink       SideStatus `json:"sink"`
	QueueDepth int        `json:"queueDepth"`
	Received   uint64     `json:"received"`
	Forwarded  uint64     `json:"forwarded"`
	Dropped    uint64     `json:"dropped"`
	Discarded  uint64     `json:"discarded"`
	Ignored    uint64     `json:"ignored"`
}

func (b *Bridge) Status() Status {
	return Status{
		Source:     b.source.status(),
		Sink:       b.sink.status(),
		QueueDepth: b.queue.Len(),
		Received:   b.received.Load(),
		Forwarded:  b.forwarded.Load(),
		Dropped:    b.queue.Dropped(),
		Discarded:  b.discarded.Load(),
		Ignored:    b.ignored.Load(),
	}
}

func (b *Bridge) SourceState() ConnState { return b.source.State() }

func (b *Bridge) SinkState() ConnState { return b.sink.State() }
