package realtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"deskpet/internal/ports"
)

var ErrChannelClosed = errors.New("realtime channel is closed")

var ErrChannelNotOpen = errors.New("realtime channel is not open yet")

// Config controls websocket dialing.
type Config struct {
	HandshakeTimeout time.Duration
}

// Dialer implements ports.ChannelDialer over gorilla websockets.
type Dialer struct {
	dialer *websocket.Dialer
	logger *slog.Logger
}

func NewDialer(cfg Config, logger *slog.Logger) *Dialer {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dialer{
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		logger: logger.With("component", "realtime"),
	}
}

func (d *Dialer) Open(ctx context.Context, endpoint string, handler ports.ChannelHandler) (ports.Channel, error) {
	if handler == nil {
		return nil, errors.New("channel handler is required")
	}
	wsURL, err := normalizeEndpoint(endpoint)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	ch := &channel{
		id:     id,
		logger: d.logger.With("channel", id),
		done:   make(chan struct{}),
	}

	go ch.run(ctx, d.dialer, wsURL, handler)
	return ch, nil
}

type channel struct {
	id     string
	logger *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func (c *channel) ID() string {
	return c.id
}

func (c *channel) Send(v any) error {
	c.mu.Lock()
	conn := c.conn
	closed := c.closed
	c.mu.Unlock()

	if closed {
		return ErrChannelClosed
	}
	if conn == nil {
		return ErrChannelNotOpen
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(v); err != nil {
		return fmt.Errorf("failed to send realtime message: %w", err)
	}
	return nil
}

func (c *channel) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			return
		}
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = conn.Close()
	})
	return nil
}

func (c *channel) run(ctx context.Context, dialer *websocket.Dialer, wsURL string, handler ports.ChannelHandler) {
	defer close(c.done)

	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		c.logger.Warn("dial failed", "err", err)
		handler.ChannelClosed(c, fmt.Errorf("failed to connect to backend: %w", err))
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		handler.ChannelClosed(c, nil)
		return
	}
	c.conn = conn
	c.mu.Unlock()

	c.logger.Debug("channel open")
	handler.ChannelOpened(c)

	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			handler.ChannelClosed(c, c.closeErr(err))
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		handler.ChannelMessage(c, payload)
	}
}

func (c *channel) closeErr(err error) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
	) {
		return nil
	}
	return fmt.Errorf("realtime channel read failed: %w", err)
}

func normalizeEndpoint(endpoint string) (string, error) {
	base := strings.TrimSpace(endpoint)
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid realtime endpoint: %w", err)
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return "", fmt.Errorf("invalid realtime endpoint scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", errors.New("invalid realtime endpoint: missing host")
	}
	return parsed.String(), nil
}
